package transport

import (
	"net"
	"sync"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/post"
	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
)

// messageConn is a connection that preserves message boundaries
type messageConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// peerTable tracks the connections of one transport and pumps their messages to the handler
type peerTable struct {
	handler    Handler
	poster     post.Poster
	lock       sync.RWMutex
	conns      map[common.PeerID]messageConn
	nextPeerID common.PeerID
	closed     xnsyncutil.AtomicBool
}

func newPeerTable(handler Handler, poster post.Poster) *peerTable {
	if poster == nil {
		poster = post.Default()
	}
	return &peerTable{
		handler:    handler,
		poster:     poster,
		conns:      map[common.PeerID]messageConn{},
		nextPeerID: common.ServerPeerID + 1,
	}
}

// add registers the connection under a newly assigned peer id
func (pt *peerTable) add(conn messageConn) common.PeerID {
	pt.lock.Lock()
	peer := pt.nextPeerID
	pt.nextPeerID++
	pt.conns[peer] = conn
	pt.lock.Unlock()
	return peer
}

func (pt *peerTable) addAs(peer common.PeerID, conn messageConn) {
	pt.lock.Lock()
	pt.conns[peer] = conn
	pt.lock.Unlock()
}

func (pt *peerTable) remove(peer common.PeerID, conn messageConn) bool {
	pt.lock.Lock()
	defer pt.lock.Unlock()
	if cur, ok := pt.conns[peer]; !ok || cur != conn {
		return false
	}
	delete(pt.conns, peer)
	return true
}

func (pt *peerTable) get(peer common.PeerID) messageConn {
	pt.lock.RLock()
	conn := pt.conns[peer]
	pt.lock.RUnlock()
	return conn
}

// serve reads messages from the connection until it fails, then reports the disconnection
func (pt *peerTable) serve(peer common.PeerID, conn messageConn) {
	defer func() {
		conn.Close()
		if pt.remove(peer, conn) {
			pt.poster.Post(func() {
				pt.handler.OnPeerDisconnected(peer)
			})
		}
	}()

	gwlog.Infof("%s connected from %s", peer, conn.RemoteAddr())
	pt.poster.Post(func() {
		pt.handler.OnPeerConnected(peer)
	})

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if !pt.closed.Load() && !netutil.IsConnectionError(err) {
				gwlog.TraceError("%s read failed: %v", peer, err)
			}
			return
		}
		if consts.DEBUG_PACKETS {
			gwlog.Debugf("<<< %s: %d bytes", peer, len(data))
		}
		pt.poster.Post(func() {
			pt.handler.OnReceive(peer, data)
		})
	}
}

func (pt *peerTable) send(peer common.PeerID, data []byte) error {
	if pt.closed.Load() {
		return ErrClosed
	}
	conn := pt.get(peer)
	if conn == nil {
		return errors.Wrapf(ErrUnknownPeer, "send to %s", peer)
	}
	if consts.DEBUG_PACKETS {
		gwlog.Debugf(">>> %s: %d bytes", peer, len(data))
	}
	return conn.WriteMessage(data)
}

func (pt *peerTable) disconnect(peer common.PeerID) error {
	conn := pt.get(peer)
	if conn == nil {
		return errors.Wrapf(ErrUnknownPeer, "disconnect %s", peer)
	}
	if pt.remove(peer, conn) {
		pt.poster.Post(func() {
			pt.handler.OnPeerDisconnected(peer)
		})
	}
	return conn.Close()
}

func (pt *peerTable) close() error {
	pt.closed.Store(true)
	pt.lock.Lock()
	conns := pt.conns
	pt.conns = map[common.PeerID]messageConn{}
	pt.lock.Unlock()

	var firstErr error
	for peer, conn := range conns {
		peer := peer
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		pt.poster.Post(func() {
			pt.handler.OnPeerDisconnected(peer)
		})
	}
	return firstErr
}
