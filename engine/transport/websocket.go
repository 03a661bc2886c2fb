package transport

import (
	"net"
	"net/http"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/post"
	"github.com/pkg/errors"
	"golang.org/x/net/websocket"
)

type wsConn struct {
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn {
	ws.PayloadType = websocket.BinaryFrame
	return &wsConn{ws}
}

func (wc *wsConn) ReadMessage() ([]byte, error) {
	var data []byte
	if err := websocket.Message.Receive(wc.ws, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (wc *wsConn) WriteMessage(data []byte) error {
	return websocket.Message.Send(wc.ws, data)
}

func (wc *wsConn) Close() error {
	return wc.ws.Close()
}

func (wc *wsConn) RemoteAddr() net.Addr {
	return wc.ws.RemoteAddr()
}

// WebSocketServer accepts client peers as binary websocket connections
//
// It is an http.Handler; mount it on the websocket path of an http server.
type WebSocketServer struct {
	peers *peerTable
}

// NewWebSocketServer creates a websocket server delivering to handler
func NewWebSocketServer(handler Handler, poster post.Poster) *WebSocketServer {
	return &WebSocketServer{
		peers: newPeerTable(handler, poster),
	}
}

func (wss *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(wss.serveConn).ServeHTTP(w, r)
}

func (wss *WebSocketServer) serveConn(ws *websocket.Conn) {
	if wss.peers.closed.Load() {
		ws.Close()
		return
	}
	gwlog.Debugf("WebSocket Connection: %s", ws.Request().RemoteAddr)
	conn := newWSConn(ws)
	peer := wss.peers.add(conn)
	// the connection is closed when the handler returns
	wss.peers.serve(peer, conn)
}

// Send sends one binary frame to the peer
func (wss *WebSocketServer) Send(peer common.PeerID, data []byte, reliability Reliability) error {
	return wss.peers.send(peer, data)
}

// Disconnect closes the connection of the peer
func (wss *WebSocketServer) Disconnect(peer common.PeerID) error {
	return wss.peers.disconnect(peer)
}

// Close closes all connections, the http server is owned by the caller
func (wss *WebSocketServer) Close() error {
	return wss.peers.close()
}

// WebSocketClient is the client side of a websocket connection, the server is its only peer
type WebSocketClient struct {
	peers *peerTable
}

// DialWebSocket connects to a websocket server url such as ws://host:port/ws
func DialWebSocket(url string, origin string, handler Handler, poster post.Poster) (*WebSocketClient, error) {
	ws, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, errors.Wrapf(err, "dial websocket %s", url)
	}

	conn := newWSConn(ws)
	wc := &WebSocketClient{
		peers: newPeerTable(handler, poster),
	}
	wc.peers.addAs(common.ServerPeerID, conn)
	go wc.peers.serve(common.ServerPeerID, conn)
	return wc, nil
}

// Send sends one binary frame to the server
func (wc *WebSocketClient) Send(peer common.PeerID, data []byte, reliability Reliability) error {
	return wc.peers.send(peer, data)
}

// Disconnect closes the connection
func (wc *WebSocketClient) Disconnect(peer common.PeerID) error {
	return wc.peers.disconnect(peer)
}

// Close closes the connection
func (wc *WebSocketClient) Close() error {
	return wc.peers.close()
}
