// Package transport moves envelope packets between a server host and its client peers.
//
// Adapters deliver every callback of Handler through a post.Poster, so handlers always run on the main routine.
package transport

import (
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/pkg/errors"
)

// Reliability selects the delivery class of a message
type Reliability int

const (
	// Reliable messages arrive once and in order
	Reliable Reliability = iota
	// Unreliable messages may be dropped by adapters that support it
	Unreliable
)

func (r Reliability) String() string {
	if r == Reliable {
		return "reliable"
	}
	return "unreliable"
}

var (
	// ErrClosed is returned when using a closed transport
	ErrClosed = errors.New("transport closed")
	// ErrUnknownPeer is returned when sending to a peer that is not connected
	ErrUnknownPeer = errors.New("unknown peer")
)

// Handler receives connection events and messages
type Handler interface {
	OnPeerConnected(peer common.PeerID)
	OnPeerDisconnected(peer common.PeerID)
	OnReceive(peer common.PeerID, data []byte)
}

// Transport sends messages to connected peers
type Transport interface {
	Send(peer common.PeerID, data []byte, reliability Reliability) error
	Disconnect(peer common.PeerID) error
	Close() error
}
