package transport

import (
	"io"
	"net"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/post"
	"github.com/pkg/errors"
	"github.com/xtaci/kcp-go"
)

const (
	// first message of every KCP session, lets the server see the client before it sends anything
	_KCP_HANDSHAKE = 0xFF

	_KCP_WINDOW_SIZE = 128
)

// KCPConfig configures the KCP sessions
type KCPConfig struct {
	DataShards        int
	ParityShards      int
	NoDelayIntervalMs int
}

// DefaultKCPConfig returns the KCP settings used when none are configured
func DefaultKCPConfig() KCPConfig {
	return KCPConfig{
		DataShards:        10,
		ParityShards:      3,
		NoDelayIntervalMs: 10,
	}
}

type kcpConn struct {
	sess            *kcp.UDPSession
	buf             []byte
	expectHandshake bool
}

func newKCPConn(sess *kcp.UDPSession, cfg KCPConfig, expectHandshake bool) *kcpConn {
	sess.SetReadBuffer(consts.TRANSPORT_READ_BUFFER_SIZE)
	sess.SetWriteBuffer(consts.TRANSPORT_WRITE_BUFFER_SIZE)
	// message mode keeps packet boundaries
	sess.SetStreamMode(false)
	sess.SetWriteDelay(false)
	sess.SetNoDelay(1, cfg.NoDelayIntervalMs, 2, 1)
	sess.SetWindowSize(_KCP_WINDOW_SIZE, _KCP_WINDOW_SIZE)
	return &kcpConn{
		sess:            sess,
		buf:             make([]byte, consts.MAX_PACKET_SIZE*16),
		expectHandshake: expectHandshake,
	}
}

func (kc *kcpConn) ReadMessage() ([]byte, error) {
	for {
		n, err := kc.sess.Read(kc.buf)
		if err != nil {
			return nil, err
		}
		if kc.expectHandshake {
			kc.expectHandshake = false
			if n == 1 && kc.buf[0] == _KCP_HANDSHAKE {
				continue
			}
			return nil, errors.Errorf("kcp: bad handshake from %s", kc.sess.RemoteAddr())
		}
		if n == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		data := make([]byte, n)
		copy(data, kc.buf[:n])
		return data, nil
	}
}

func (kc *kcpConn) WriteMessage(data []byte) error {
	_, err := kc.sess.Write(data)
	return err
}

func (kc *kcpConn) Close() error {
	return kc.sess.Close()
}

func (kc *kcpConn) RemoteAddr() net.Addr {
	return kc.sess.RemoteAddr()
}

// KCPServer accepts client peers over KCP
type KCPServer struct {
	listener *kcp.Listener
	cfg      KCPConfig
	peers    *peerTable
}

// ListenKCP starts accepting KCP sessions on addr
func ListenKCP(addr string, handler Handler, poster post.Poster, cfg KCPConfig) (*KCPServer, error) {
	listener, err := kcp.ListenWithOptions(addr, nil, cfg.DataShards, cfg.ParityShards)
	if err != nil {
		return nil, errors.Wrapf(err, "listen kcp %s", addr)
	}

	ks := &KCPServer{
		listener: listener,
		cfg:      cfg,
		peers:    newPeerTable(handler, poster),
	}
	gwlog.Infof("Listening on KCP: %s ...", listener.Addr())
	go ks.serve()
	return ks, nil
}

func (ks *KCPServer) serve() {
	for {
		sess, err := ks.listener.AcceptKCP()
		if err != nil {
			if !ks.peers.closed.Load() {
				gwlog.Errorf("kcp accept failed: %v", err)
			}
			return
		}

		conn := newKCPConn(sess, ks.cfg, true)
		peer := ks.peers.add(conn)
		go ks.peers.serve(peer, conn)
	}
}

// Addr returns the listening address
func (ks *KCPServer) Addr() net.Addr {
	return ks.listener.Addr()
}

// Send sends one message to the peer, both reliability classes ride the reliable session
func (ks *KCPServer) Send(peer common.PeerID, data []byte, reliability Reliability) error {
	return ks.peers.send(peer, data)
}

// Disconnect closes the session of the peer
func (ks *KCPServer) Disconnect(peer common.PeerID) error {
	return ks.peers.disconnect(peer)
}

// Close stops accepting and closes all sessions
func (ks *KCPServer) Close() error {
	err := ks.peers.close()
	if lerr := ks.listener.Close(); err == nil {
		err = lerr
	}
	return err
}

// KCPClient is the client side of a KCP session, the server is its only peer
type KCPClient struct {
	peers *peerTable
}

// DialKCP connects to a KCP server
func DialKCP(addr string, handler Handler, poster post.Poster, cfg KCPConfig) (*KCPClient, error) {
	sess, err := kcp.DialWithOptions(addr, nil, cfg.DataShards, cfg.ParityShards)
	if err != nil {
		return nil, errors.Wrapf(err, "dial kcp %s", addr)
	}

	conn := newKCPConn(sess, cfg, false)
	if err := conn.WriteMessage([]byte{_KCP_HANDSHAKE}); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "kcp handshake")
	}

	kc := &KCPClient{
		peers: newPeerTable(handler, poster),
	}
	kc.peers.addAs(common.ServerPeerID, conn)
	go kc.peers.serve(common.ServerPeerID, conn)
	return kc, nil
}

// Send sends one message to the server
func (kc *KCPClient) Send(peer common.PeerID, data []byte, reliability Reliability) error {
	return kc.peers.send(peer, data)
}

// Disconnect closes the session
func (kc *KCPClient) Disconnect(peer common.PeerID) error {
	return kc.peers.disconnect(peer)
}

// Close closes the session
func (kc *KCPClient) Close() error {
	return kc.peers.close()
}
