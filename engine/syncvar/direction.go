package syncvar

import (
	"strings"

	"github.com/pkg/errors"
)

// SyncFlag is a set of sync endpoints
type SyncFlag uint8

const (
	// Server is the authoritative server
	Server SyncFlag = 1 << iota
	// Owner is the client owning the object
	Owner
	// ObserversOnly is every observing client except the owner
	ObserversOnly

	allSyncFlags = Server | Owner | ObserversOnly
)

func (f SyncFlag) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	if f&Server != 0 {
		parts = append(parts, "Server")
	}
	if f&Owner != 0 {
		parts = append(parts, "Owner")
	}
	if f&ObserversOnly != 0 {
		parts = append(parts, "ObserversOnly")
	}
	return strings.Join(parts, "|")
}

// SyncDirection decides which endpoints may write a field group and which receive its changes
type SyncDirection struct {
	From SyncFlag
	To   SyncFlag
}

// DefaultDirection is the server writing and every client receiving
var DefaultDirection = SyncDirection{From: Server, To: Owner | ObserversOnly}

func (d SyncDirection) String() string {
	return d.From.String() + "->" + d.To.String()
}

// Validate checks that writes of every writer in From can reach someone in To
func Validate(d SyncDirection) error {
	if d.From == 0 || d.From&^(Server|Owner) != 0 {
		return errors.Wrapf(ErrInvalidDirection, "%s: From must be a non-empty subset of Server|Owner", d)
	}
	if d.To == 0 || d.To&^allSyncFlags != 0 {
		return errors.Wrapf(ErrInvalidDirection, "%s: To must be a non-empty subset of Server|Owner|ObserversOnly", d)
	}
	if d.From == Server && d.To&Server != 0 {
		return errors.Wrapf(ErrInvalidDirection, "%s: server can not sync to itself", d)
	}
	if d.From&Owner != 0 && d.To&Server == 0 {
		return errors.Wrapf(ErrInvalidDirection, "%s: owner writes must be sent to the server", d)
	}
	return nil
}

// Role is the local peer's role relative to one object
type Role int

const (
	// RoleNone is an object that is not spawned yet, writes are local only
	RoleNone Role = iota
	// RoleServer is the authoritative server
	RoleServer
	// RoleOwner is the client owning the object
	RoleOwner
	// RoleObserver is a client observing an object it does not own
	RoleObserver
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "None"
	case RoleServer:
		return "Server"
	case RoleOwner:
		return "Owner"
	case RoleObserver:
		return "Observer"
	}
	return "Role?"
}

// RecipientSet is a set of peers a delta must be delivered to
type RecipientSet uint8

const (
	// RecipientServer is the server
	RecipientServer RecipientSet = 1 << iota
	// RecipientOwner is the owning client
	RecipientOwner
	// RecipientObservers are observing clients other than the owner
	RecipientObservers
)

// Has checks if r contains every recipient in o
func (r RecipientSet) Has(o RecipientSet) bool {
	return r&o == o
}

func (r RecipientSet) String() string {
	if r == 0 {
		return "{}"
	}
	var parts []string
	if r&RecipientServer != 0 {
		parts = append(parts, "Server")
	}
	if r&RecipientOwner != 0 {
		parts = append(parts, "Owner")
	}
	if r&RecipientObservers != 0 {
		parts = append(parts, "Observers")
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// CanWrite checks if a local write in role may mark fields dirty
func CanWrite(role Role, d SyncDirection) bool {
	switch role {
	case RoleNone:
		return true
	case RoleServer:
		return d.From&Server != 0
	case RoleOwner:
		return d.From&Owner != 0
	}
	return false
}

// Recipients returns who receives deltas of writes made locally in role
func Recipients(role Role, d SyncDirection) RecipientSet {
	var r RecipientSet
	switch role {
	case RoleServer:
		if d.From&Server == 0 {
			return 0
		}
		if d.To&Owner != 0 {
			r |= RecipientOwner
		}
		if d.To&ObserversOnly != 0 {
			r |= RecipientObservers
		}
	case RoleOwner:
		if d.From&Owner != 0 && d.To&Server != 0 {
			r |= RecipientServer
		}
	}
	return r
}

// RelayRecipients returns who the server forwards owner writes to, never the owner itself
func RelayRecipients(d SyncDirection) RecipientSet {
	if d.From&Owner != 0 && d.To&ObserversOnly != 0 {
		return RecipientObservers
	}
	return 0
}

// InitialRecipients returns which clients get the current state of the group when they start observing the entity
func InitialRecipients(d SyncDirection) RecipientSet {
	r := Recipients(RoleServer, d) | RelayRecipients(d)
	if d.From&Owner != 0 {
		r |= RecipientOwner
	}
	return r
}

// AcceptsFrom checks if a delta from the remote role may be applied locally in role
func AcceptsFrom(role Role, d SyncDirection) bool {
	switch role {
	case RoleServer:
		// only the owner sends deltas to the server
		return d.From&Owner != 0 && d.To&Server != 0
	case RoleOwner:
		return d.From&Server != 0 && d.To&Owner != 0
	case RoleObserver:
		return d.To&ObserversOnly != 0
	}
	return true
}
