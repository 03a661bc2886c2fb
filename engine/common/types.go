package common

import "fmt"

// NetID is the network identity of a replicated entity, assigned by the server on spawn
type NetID uint32

// InvalidNetID is the nil NetID, never assigned to a spawned entity
const InvalidNetID NetID = 0

// IsNil returns if NetID is nil
func (id NetID) IsNil() bool {
	return id == InvalidNetID
}

func (id NetID) String() string {
	return fmt.Sprintf("#%d", uint32(id))
}

// PeerID identifies a connected peer from the local host's point of view
type PeerID uint32

const (
	// ServerPeerID is the peer id of the server as seen by clients, and the "no owner" value on the server
	ServerPeerID PeerID = 0
)

// IsServer returns if the peer id refers to the server
func (id PeerID) IsServer() bool {
	return id == ServerPeerID
}

func (id PeerID) String() string {
	if id == ServerPeerID {
		return "peer<server>"
	}
	return fmt.Sprintf("peer<%d>", uint32(id))
}
