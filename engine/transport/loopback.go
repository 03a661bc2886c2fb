package transport

import (
	"sync"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/post"
	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
)

// LoopbackServer is an in-memory server transport, clients attach with Connect
type LoopbackServer struct {
	handler    Handler
	poster     post.Poster
	lock       sync.Mutex
	clients    map[common.PeerID]*LoopbackClient
	nextPeerID common.PeerID
	closed     xnsyncutil.AtomicBool

	// DropUnreliable drops every unreliable message in both directions
	DropUnreliable xnsyncutil.AtomicBool
}

// LoopbackClient is the client end of an in-memory connection
type LoopbackClient struct {
	server  *LoopbackServer
	peer    common.PeerID
	handler Handler
	poster  post.Poster
	closed  xnsyncutil.AtomicBool
}

// NewLoopbackServer creates an in-memory server transport
func NewLoopbackServer(handler Handler, poster post.Poster) *LoopbackServer {
	if poster == nil {
		poster = post.Default()
	}
	return &LoopbackServer{
		handler:    handler,
		poster:     poster,
		clients:    map[common.PeerID]*LoopbackClient{},
		nextPeerID: common.ServerPeerID + 1,
	}
}

// Connect attaches a new client and reports the connection to both sides
func (s *LoopbackServer) Connect(handler Handler, poster post.Poster) (*LoopbackClient, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if poster == nil {
		poster = post.Default()
	}

	s.lock.Lock()
	c := &LoopbackClient{
		server:  s,
		peer:    s.nextPeerID,
		handler: handler,
		poster:  poster,
	}
	s.nextPeerID++
	s.clients[c.peer] = c
	s.lock.Unlock()

	s.poster.Post(func() {
		s.handler.OnPeerConnected(c.peer)
	})
	c.poster.Post(func() {
		c.handler.OnPeerConnected(common.ServerPeerID)
	})
	return c, nil
}

// PeerID returns the peer id the server knows the client by
func (c *LoopbackClient) PeerID() common.PeerID {
	return c.peer
}

func (s *LoopbackServer) drop(peer common.PeerID) bool {
	s.lock.Lock()
	c := s.clients[peer]
	delete(s.clients, peer)
	s.lock.Unlock()

	if c == nil {
		return false
	}
	c.closed.Store(true)
	s.poster.Post(func() {
		s.handler.OnPeerDisconnected(peer)
	})
	c.poster.Post(func() {
		c.handler.OnPeerDisconnected(common.ServerPeerID)
	})
	return true
}

// Send copies data to the client
func (s *LoopbackServer) Send(peer common.PeerID, data []byte, reliability Reliability) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.lock.Lock()
	c := s.clients[peer]
	s.lock.Unlock()
	if c == nil {
		return errors.Wrapf(ErrUnknownPeer, "send to %s", peer)
	}
	if reliability == Unreliable && s.DropUnreliable.Load() {
		return nil
	}

	buf := append([]byte(nil), data...)
	c.poster.Post(func() {
		if !c.closed.Load() {
			c.handler.OnReceive(common.ServerPeerID, buf)
		}
	})
	return nil
}

// Disconnect detaches the client
func (s *LoopbackServer) Disconnect(peer common.PeerID) error {
	if !s.drop(peer) {
		return errors.Wrapf(ErrUnknownPeer, "disconnect %s", peer)
	}
	return nil
}

// Close detaches all clients
func (s *LoopbackServer) Close() error {
	s.closed.Store(true)
	s.lock.Lock()
	peers := make([]common.PeerID, 0, len(s.clients))
	for peer := range s.clients {
		peers = append(peers, peer)
	}
	s.lock.Unlock()

	for _, peer := range peers {
		s.drop(peer)
	}
	return nil
}

// Send copies data to the server, which is the only valid peer
func (c *LoopbackClient) Send(peer common.PeerID, data []byte, reliability Reliability) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if peer != common.ServerPeerID {
		return errors.Wrapf(ErrUnknownPeer, "send to %s", peer)
	}
	s := c.server
	if reliability == Unreliable && s.DropUnreliable.Load() {
		return nil
	}

	buf := append([]byte(nil), data...)
	s.poster.Post(func() {
		if !c.closed.Load() {
			s.handler.OnReceive(c.peer, buf)
		}
	})
	return nil
}

// Disconnect detaches from the server
func (c *LoopbackClient) Disconnect(peer common.PeerID) error {
	if peer != common.ServerPeerID {
		return errors.Wrapf(ErrUnknownPeer, "disconnect %s", peer)
	}
	return c.Close()
}

// Close detaches from the server
func (c *LoopbackClient) Close() error {
	if !c.server.drop(c.peer) {
		return ErrClosed
	}
	return nil
}
