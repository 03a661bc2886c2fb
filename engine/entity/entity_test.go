package entity

import (
	"testing"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/config"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/post"
	"github.com/Moddingdudes/Mirage-sub002/engine/proto"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
	"github.com/Moddingdudes/Mirage-sub002/engine/transport"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

var testStats = syncvar.NewSchema("TestStats").
	Field("hp", syncvar.Uint(16)).
	Field("name", syncvar.String()).
	Field("target", syncvar.Ref()).
	MustBuild()

var testInput = syncvar.NewSchema("TestInput").
	Direction(syncvar.SyncDirection{From: syncvar.Owner, To: syncvar.Server | syncvar.ObserversOnly}).
	Field("x", syncvar.Float32()).
	MustBuild()

var testSecret = syncvar.NewSchema("TestSecret").
	Direction(syncvar.SyncDirection{From: syncvar.Server, To: syncvar.Owner}).
	Field("gold", syncvar.Uint(32)).
	MustBuild()

func init() {
	RegisterEntity("TestAvatar", testStats, testInput, testSecret)
	RegisterEntity("TestCrate", testStats).SetDestroyWithOwner(true)
}

type testClient struct {
	queue *post.Queue
	em    *EntityManager
	conn  *transport.LoopbackClient
}

type testWorld struct {
	t      *testing.T
	queue  *post.Queue
	server *EntityManager
	tp     *transport.LoopbackServer
}

func newTestWorld(t *testing.T) *testWorld {
	cfg := config.Default().Sync
	cfg.Compress = true
	cfg.CompressThreshold = 32
	w := &testWorld{t: t, queue: post.NewQueue()}
	w.server = NewEntityManager(nil, true, &cfg)
	w.tp = transport.NewLoopbackServer(w.server, w.queue)
	w.server.SetTransport(w.tp)
	return w
}

func (w *testWorld) connect() *testClient {
	c := &testClient{queue: post.NewQueue()}
	c.em = NewEntityManager(nil, false, nil)
	conn, err := w.tp.Connect(c.em, c.queue)
	assert.Equal(w.t, nil, err)
	c.conn = conn
	c.em.SetTransport(conn)
	return c
}

// pump delivers messages until every queue is idle
func (w *testWorld) pump(clients ...*testClient) {
	for i := 0; i < 100; i++ {
		busy := w.queue.Len() > 0
		w.queue.Tick()
		for _, c := range clients {
			busy = busy || c.queue.Len() > 0
			c.queue.Tick()
		}
		if !busy {
			return
		}
	}
	w.t.Fatalf("queues never became idle")
}

func (w *testWorld) sync(clients ...*testClient) {
	for _, c := range clients {
		c.em.CollectSyncInfos()
	}
	w.pump(clients...)
	w.server.CollectSyncInfos()
	w.pump(clients...)
}

func TestHello(t *testing.T) {
	w := newTestWorld(t)
	var connected []common.PeerID
	w.server.SetConnectCallback(func(peer common.PeerID) {
		connected = append(connected, peer)
	})
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	assert.Equal(t, []common.PeerID{c1.conn.PeerID(), c2.conn.PeerID()}, connected)
	assert.Equal(t, []common.PeerID{c1.conn.PeerID(), c2.conn.PeerID()}, w.server.Peers())
	assert.Equal(t, c1.conn.PeerID(), c1.em.LocalPeer())
	assert.Equal(t, c2.conn.PeerID(), c2.em.LocalPeer())
	assert.Equal(t, []common.PeerID{common.ServerPeerID}, c1.em.Peers())

	names := []string{}
	for _, desc := range RegisteredEntityTypes() {
		names = append(names, desc.Name())
	}
	assert.Equal(t, []string{"TestAvatar", "TestCrate"}, names)
	assert.T(t, GetEntityTypeDesc("TestCrate").DestroyWithOwner())
}

func TestSpawnSendsInitialState(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	var spawned []string
	c1.em.SetSpawnCallback(func(e *Entity) {
		spawned = append(spawned, e.String())
	})

	e, err := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	assert.Equal(t, nil, err)
	assert.Equal(t, []common.PeerID{c1.conn.PeerID()}, e.Observers())
	assert.Equal(t, nil, e.Set("hp", 100))
	assert.Equal(t, nil, e.Set("name", "knight"))
	w.pump(c1, c2)

	ce := c1.em.GetEntity(e.ID)
	assert.NotEqual(t, (*Entity)(nil), ce)
	assert.Equal(t, []string{"TestAvatar<" + e.ID.String() + ">"}, spawned)
	assert.Equal(t, syncvar.RoleOwner, ce.Group(0).Role())
	assert.Equal(t, c1.conn.PeerID(), ce.Owner)
	// values set after the spawn message arrive with the next sync
	assert.Equal(t, uint64(0), ce.Get("hp"))
	assert.Equal(t, (*Entity)(nil), c2.em.GetEntity(e.ID))

	w.sync(c1, c2)
	assert.Equal(t, uint64(100), ce.Get("hp"))
	assert.Equal(t, "knight", ce.Get("name"))

	assert.Equal(t, nil, w.server.AddObserver(e.ID, c2.conn.PeerID()))
	w.pump(c1, c2)
	oe := c2.em.GetEntity(e.ID)
	assert.NotEqual(t, (*Entity)(nil), oe)
	assert.Equal(t, syncvar.RoleObserver, oe.Group(0).Role())
	assert.Equal(t, uint64(100), oe.Get("hp"))
	assert.Equal(t, "knight", oe.Get("name"))
}

func TestServerWritesReachRecipients(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	e, err := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, w.server.AddObserver(e.ID, c2.conn.PeerID()))
	w.pump(c1, c2)

	assert.Equal(t, nil, e.Set("hp", 42))
	assert.Equal(t, nil, e.Set("gold", 7))
	assert.T(t, e.IsDirty())
	w.sync(c1, c2)
	assert.T(t, !e.IsDirty())

	owned, observed := c1.em.GetEntity(e.ID), c2.em.GetEntity(e.ID)
	assert.Equal(t, uint64(42), owned.Get("hp"))
	assert.Equal(t, uint64(42), observed.Get("hp"))
	assert.Equal(t, uint64(7), owned.Get("gold"))
	assert.Equal(t, uint64(0), observed.Get("gold"))
}

func TestInitialStateFollowsDirection(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	e, err := w.server.SpawnWithData("TestAvatar", c1.conn.PeerID(), map[string]interface{}{"gold": 3})
	assert.Equal(t, nil, err)
	w.pump(c1, c2)
	owned := c1.em.GetEntity(e.ID)
	assert.Equal(t, uint64(3), owned.Get("gold"))

	assert.Equal(t, nil, e.Set("hp", 42))
	assert.Equal(t, nil, e.Set("gold", 7))
	w.sync(c1, c2)

	// the owner-only group never reaches a late observer
	assert.Equal(t, nil, w.server.AddObserver(e.ID, c2.conn.PeerID()))
	w.pump(c1, c2)
	observed := c2.em.GetEntity(e.ID)
	assert.NotEqual(t, (*Entity)(nil), observed)
	assert.Equal(t, uint64(42), observed.Get("hp"))
	assert.Equal(t, uint64(0), observed.Get("gold"))
	assert.Equal(t, uint64(7), owned.Get("gold"))
}

func TestOwnerWritesAreRelayed(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	e, _ := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	assert.Equal(t, nil, w.server.AddObserver(e.ID, c2.conn.PeerID()))
	w.pump(c1, c2)

	owned, observed := c1.em.GetEntity(e.ID), c2.em.GetEntity(e.ID)
	assert.Equal(t, nil, owned.Set("x", 1.5))
	c1.em.CollectSyncInfos()
	w.pump(c1, c2)
	assert.Equal(t, float32(1.5), e.Get("x"))
	assert.Equal(t, float32(0), observed.Get("x"))

	// a relay never comes back to the owner
	assert.Equal(t, nil, owned.Set("x", 2.5))
	w.server.CollectSyncInfos()
	w.pump(c1, c2)
	assert.Equal(t, float32(1.5), observed.Get("x"))
	assert.Equal(t, float32(2.5), owned.Get("x"))
}

func TestWriteAuthority(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	e, _ := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	assert.Equal(t, nil, w.server.AddObserver(e.ID, c2.conn.PeerID()))
	w.pump(c1, c2)

	err := e.Set("x", 1)
	assert.T(t, syncvar.IsAuthority(err))
	err = c1.em.GetEntity(e.ID).Set("hp", 1)
	assert.T(t, syncvar.IsAuthority(err))
	err = c2.em.GetEntity(e.ID).Set("x", 1)
	assert.T(t, syncvar.IsAuthority(err))
	err = e.Set("nope", 1)
	assert.Equal(t, syncvar.ErrUnknownField, errors.Cause(err))
}

func TestDeltaFromNonOwnerIgnored(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	e, _ := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	w.pump(c1, c2)

	forged := newEntity(e.TypeDesc(), e.ID, c2.conn.PeerID(), syncvar.RoleOwner, nil)
	assert.Equal(t, nil, forged.Set("x", 9))
	bw := bitstream.NewWriter(64)
	forged.writeDelta(bw, []uint64{0, forged.Group(1).ConsumeMask(), 0})

	sw := proto.NewSyncVarsWriter(proto.NewPeerConnection(c2.conn, common.ServerPeerID, nil, 0), 1200)
	sw.Add(e.ID, bw.CopyBytes())
	sw.Flush()
	assert.Equal(t, nil, sw.Err())
	w.pump(c1, c2)

	assert.Equal(t, float32(0), e.Get("x"))
	assert.Equal(t, 2, len(w.server.Peers()))
}

func TestReferencesResolveLocally(t *testing.T) {
	w := newTestWorld(t)
	c1 := w.connect()
	w.pump(c1)

	a, _ := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	b, _ := w.server.Spawn("TestCrate", c1.conn.PeerID())
	assert.Equal(t, nil, a.Set("target", b))
	w.pump(c1)
	w.sync(c1)

	ca := c1.em.GetEntity(a.ID)
	target, ok := ca.Group(0).ResolveRef("target")
	assert.T(t, ok)
	assert.Equal(t, c1.em.GetEntity(b.ID), target)

	w.pump(c1)
	assert.Equal(t, nil, w.server.Destroy(b.ID))
	w.pump(c1)
	_, ok = ca.Group(0).ResolveRef("target")
	assert.T(t, !ok)
}

func TestDestroyAndRemoveObserver(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	var destroyed []common.NetID
	c2.em.SetDestroyCallback(func(e *Entity) {
		destroyed = append(destroyed, e.ID)
		assert.T(t, e.IsDestroyed())
	})

	a, _ := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	b, _ := w.server.Spawn("TestCrate", common.ServerPeerID)
	assert.Equal(t, nil, w.server.AddObserver(a.ID, c2.conn.PeerID()))
	assert.Equal(t, nil, w.server.AddObserver(b.ID, c2.conn.PeerID()))
	w.pump(c1, c2)
	assert.Equal(t, 2, c2.em.NumEntities())

	assert.Equal(t, nil, w.server.RemoveObserver(b.ID, c2.conn.PeerID()))
	w.pump(c1, c2)
	assert.Equal(t, []common.NetID{b.ID}, destroyed)
	assert.Equal(t, 1, w.server.GetEntity(b.ID).NumGroups())

	assert.Equal(t, nil, w.server.Destroy(a.ID))
	w.pump(c1, c2)
	assert.Equal(t, []common.NetID{b.ID, a.ID}, destroyed)
	assert.Equal(t, 0, c1.em.NumEntities())
	assert.Equal(t, (*Entity)(nil), w.server.GetEntity(a.ID))

	assert.Equal(t, ErrUnknownEntity, errors.Cause(w.server.Destroy(a.ID)))
	assert.Equal(t, ErrPeerNotConnected, errors.Cause(w.server.AddObserver(b.ID, 99)))
}

func TestOwnerDisconnect(t *testing.T) {
	w := newTestWorld(t)
	c1, c2 := w.connect(), w.connect()
	w.pump(c1, c2)

	avatar, _ := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	crate, _ := w.server.Spawn("TestCrate", c1.conn.PeerID())
	assert.Equal(t, nil, w.server.AddObserver(avatar.ID, c2.conn.PeerID()))
	assert.Equal(t, nil, w.server.AddObserver(crate.ID, c2.conn.PeerID()))
	w.pump(c1, c2)
	assert.Equal(t, 2, c1.em.NumEntities())

	assert.Equal(t, nil, c1.conn.Close())
	w.pump(c1, c2)

	assert.Equal(t, []common.PeerID{c2.conn.PeerID()}, w.server.Peers())
	assert.Equal(t, 0, c1.em.NumEntities())
	assert.Equal(t, (*Entity)(nil), w.server.GetEntity(crate.ID))
	assert.Equal(t, (*Entity)(nil), c2.em.GetEntity(crate.ID))
	assert.Equal(t, common.ServerPeerID, avatar.Owner)
	assert.Equal(t, []common.PeerID{c2.conn.PeerID()}, avatar.Observers())
}

type nopHandler struct{}

func (nopHandler) OnPeerConnected(peer common.PeerID)        {}
func (nopHandler) OnPeerDisconnected(peer common.PeerID)     {}
func (nopHandler) OnReceive(peer common.PeerID, data []byte) {}

func TestFingerprintMismatchDisconnects(t *testing.T) {
	queue := post.NewQueue()
	tp := transport.NewLoopbackServer(nopHandler{}, queue)
	c := &testClient{queue: post.NewQueue()}
	c.em = NewEntityManager(nil, false, nil)
	conn, err := tp.Connect(c.em, c.queue)
	assert.Equal(t, nil, err)
	c.em.SetTransport(conn)

	pc := proto.NewPeerConnection(tp, conn.PeerID(), nil, 0)
	assert.Equal(t, nil, pc.SendHello(conn.PeerID(), RegistryFingerprint()+1))
	for i := 0; i < 4; i++ {
		queue.Tick()
		c.queue.Tick()
	}
	assert.Equal(t, 0, len(c.em.Peers()))
	assert.Equal(t, common.PeerID(0), c.em.LocalPeer())
}

func TestMalformedPacketDisconnects(t *testing.T) {
	w := newTestWorld(t)
	c1, c2, c3 := w.connect(), w.connect(), w.connect()
	w.pump(c1, c2, c3)

	assert.Equal(t, nil, c1.conn.Send(common.ServerPeerID, []byte{1, 2, 3}, transport.Reliable))
	w.pump(c1, c2, c3)
	assert.Equal(t, []common.PeerID{c2.conn.PeerID(), c3.conn.PeerID()}, w.server.Peers())

	// compressed flag set over a body that does not decompress
	corrupt := []byte{6, 0, 0, 0x80, 0xff, 0xff, 16, 0, 0, 0}
	err := w.server.HandlePacket(c3.conn.PeerID(), corrupt)
	assert.Equal(t, netutil.ErrMalformedPacket, errors.Cause(err))
	assert.T(t, isFatal(err))
	assert.Equal(t, nil, c3.conn.Send(common.ServerPeerID, corrupt, transport.Reliable))
	w.pump(c1, c2, c3)
	assert.Equal(t, []common.PeerID{c2.conn.PeerID()}, w.server.Peers())

	// clients never send destroy messages
	pc := proto.NewPeerConnection(c2.conn, common.ServerPeerID, nil, 0)
	assert.Equal(t, nil, pc.SendDestroyEntity(1))
	w.pump(c1, c2, c3)
	assert.Equal(t, 0, len(w.server.Peers()))
}

func TestHandlePacketErrors(t *testing.T) {
	em := NewEntityManager(nil, false, nil)
	err := em.HandlePacket(common.ServerPeerID, []byte{1})
	assert.T(t, isFatal(err))

	packet := proto.NewPacket(proto.MT_DESTROY_ENTITY)
	packet.AppendNetID(1)
	err = em.HandlePacket(common.ServerPeerID, append([]byte(nil), packet.Data()...))
	packet.Release()
	assert.Equal(t, ErrUnexpectedMessage, errors.Cause(err))

	packet = proto.NewPacket(proto.MT_HELLO)
	packet.AppendPeerID(3)
	err = em.HandlePacket(common.ServerPeerID, append([]byte(nil), packet.Data()...))
	packet.Release()
	assert.T(t, err != nil)
	assert.T(t, isFatal(err))
}

func TestClientCannotSpawn(t *testing.T) {
	em := NewEntityManager(nil, false, nil)
	_, err := em.Spawn("TestAvatar", 1)
	assert.Equal(t, ErrNotServer, err)

	server := NewEntityManager(nil, true, nil)
	_, err = server.Spawn("NoSuchType", common.ServerPeerID)
	assert.Equal(t, ErrUnknownEntityType, errors.Cause(err))
}

func TestFreezeRestore(t *testing.T) {
	w := newTestWorld(t)
	c1 := w.connect()
	w.pump(c1)

	a, _ := w.server.Spawn("TestAvatar", c1.conn.PeerID())
	b, _ := w.server.Spawn("TestCrate", common.ServerPeerID)
	assert.Equal(t, nil, a.Set("hp", 12))
	assert.Equal(t, nil, a.Set("name", "frozen"))
	assert.Equal(t, nil, a.Set("gold", 99))
	assert.Equal(t, nil, a.Set("target", b))
	assert.Equal(t, nil, b.Set("hp", 3))

	data, err := w.server.Freeze()
	assert.Equal(t, nil, err)

	restored := NewEntityManager(nil, true, nil)
	assert.Equal(t, nil, restored.Restore(data))
	assert.Equal(t, 2, restored.NumEntities())

	ra := restored.GetEntity(a.ID)
	assert.Equal(t, "TestAvatar", ra.TypeName)
	assert.Equal(t, common.ServerPeerID, ra.Owner)
	assert.Equal(t, uint64(12), ra.Get("hp"))
	assert.Equal(t, "frozen", ra.Get("name"))
	assert.Equal(t, uint64(99), ra.Get("gold"))
	assert.Equal(t, b.ID, ra.Get("target"))
	assert.T(t, !ra.IsDirty())
	assert.Equal(t, uint64(3), restored.GetEntity(b.ID).Get("hp"))

	c, err := restored.Spawn("TestCrate", common.ServerPeerID)
	assert.Equal(t, nil, err)
	assert.T(t, c.ID > b.ID)

	assert.T(t, restored.Restore(data) != nil)
	_, err = NewEntityManager(nil, false, nil).Freeze()
	assert.Equal(t, ErrNotServer, err)
}

func TestSpawnWithData(t *testing.T) {
	w := newTestWorld(t)
	c1 := w.connect()
	w.pump(c1)

	e, err := w.server.SpawnWithData("TestAvatar", c1.conn.PeerID(), map[string]interface{}{
		"hp":   30,
		"gold": 5,
		"x":    2.0,
	})
	assert.Equal(t, nil, err)
	assert.T(t, !e.IsDirty())
	w.pump(c1)

	ce := c1.em.GetEntity(e.ID)
	assert.Equal(t, uint64(30), ce.Get("hp"))
	assert.Equal(t, uint64(5), ce.Get("gold"))
	assert.Equal(t, float32(2), ce.Get("x"))

	_, err = w.server.SpawnWithData("TestAvatar", c1.conn.PeerID(), map[string]interface{}{"mana": 1})
	assert.Equal(t, syncvar.ErrUnknownField, errors.Cause(err))
	_, err = w.server.SpawnWithData("TestAvatar", c1.conn.PeerID(), map[string]interface{}{"hp": 70000})
	assert.Equal(t, syncvar.ErrInvalidValue, errors.Cause(err))
	assert.Equal(t, 1, w.server.NumEntities())
}
