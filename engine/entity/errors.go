package entity

import "github.com/pkg/errors"

var (
	// ErrNotServer is returned by server-only operations on a client host
	ErrNotServer = errors.New("not a server")
	// ErrUnknownEntity is returned for a NetID that is not spawned
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownEntityType is returned for a type name that is not registered
	ErrUnknownEntityType = errors.New("unknown entity type")
	// ErrPeerNotConnected is returned when the peer has no connection
	ErrPeerNotConnected = errors.New("peer not connected")
	// ErrFingerprintMismatch is returned when both ends registered different entity types
	ErrFingerprintMismatch = errors.New("registry fingerprint mismatch")
	// ErrUnexpectedMessage is returned for a message that the receiving side must never get
	ErrUnexpectedMessage = errors.New("unexpected message")
	// ErrNotOwner is returned when a client sends a delta for an entity it does not own
	ErrNotOwner = errors.New("not the owner")
)
