package host

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/config"
	"github.com/Moddingdudes/Mirage-sub002/engine/entity"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
	"github.com/Moddingdudes/Mirage-sub002/engine/transport"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func init() {
	stats := syncvar.NewSchema("HostStats").
		Field("hp", syncvar.Uint(16)).
		MustBuild()
	entity.RegisterEntity("HostAvatar", stats)
}

func testSyncConfig() *config.SyncConfig {
	cfg := config.Default().Sync
	cfg.SyncIntervalMS = 20
	return &cfg
}

// call runs f on the host routine and waits for it
func call(h *Host, f func()) {
	done := make(chan struct{})
	h.Post(func() {
		f()
		close(done)
	})
	<-done
}

func waitFor(t *testing.T, h *Host, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		var ok bool
		call(h, func() {
			ok = cond()
		})
		if ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s: condition not met in time", h)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHostSync(t *testing.T) {
	server := New(true, testSyncConfig())
	lb := transport.NewLoopbackServer(server.EntityManager(), server.Poster())
	server.SetTransport(lb)

	client := New(false, testSyncConfig())
	conn, err := lb.Connect(client.EntityManager(), client.Poster())
	assert.Equal(t, nil, err)
	client.SetTransport(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Run(ctx)
	go client.Run(ctx)

	waitFor(t, client, func() bool {
		return client.EntityManager().LocalPeer() == conn.PeerID()
	})

	var id common.NetID
	call(server, func() {
		e, err := server.EntityManager().Spawn("HostAvatar", conn.PeerID())
		assert.Equal(t, nil, err)
		assert.Equal(t, nil, e.Set("hp", 5))
		id = e.ID
	})
	waitFor(t, client, func() bool {
		e := client.EntityManager().GetEntity(id)
		return e != nil && e.Get("hp") == uint64(5)
	})

	server.Terminate()
	server.WaitTerminated()
	assert.T(t, !server.IsRunning())
	waitFor(t, client, func() bool {
		return client.EntityManager().NumEntities() == 0 && len(client.EntityManager().Peers()) == 0
	})

	cancel()
	client.WaitTerminated()
	assert.T(t, !client.IsRunning())
}

func TestRunTwice(t *testing.T) {
	h := New(true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	call(h, func() {})
	assert.Equal(t, ErrAlreadyRunning, h.Run(ctx))
	cancel()
	h.WaitTerminated()
}

func TestFreezeRestore(t *testing.T) {
	dir, err := ioutil.TempDir("", "mirage-host")
	assert.Equal(t, nil, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "server_freezed.dat")

	h := New(true, testSyncConfig())
	go h.Run(context.Background())

	var id common.NetID
	call(h, func() {
		e, err := h.EntityManager().Spawn("HostAvatar", common.ServerPeerID)
		assert.Equal(t, nil, err)
		assert.Equal(t, nil, e.Set("hp", 77))
		id = e.ID
	})
	h.Freeze(path)
	h.WaitTerminated()

	restored := New(true, nil)
	assert.Equal(t, nil, restored.Restore(path))
	e := restored.EntityManager().GetEntity(id)
	assert.NotEqual(t, (*entity.Entity)(nil), e)
	assert.Equal(t, uint64(77), e.Get("hp"))

	assert.T(t, restored.Restore(filepath.Join(dir, "missing.dat")) != nil)
}

func TestListenErrors(t *testing.T) {
	server := New(true, nil)
	err := server.Listen("carrier-pigeon", "127.0.0.1:0", nil)
	assert.Equal(t, ErrUnknownTransport, errors.Cause(err))

	client := New(false, nil)
	assert.Equal(t, entity.ErrNotServer, client.Listen("kcp", "127.0.0.1:0", nil))
	assert.Equal(t, ErrUnknownTransport, errors.Cause(client.Dial("smoke", "127.0.0.1:1", nil)))
}

func TestServerOverKCP(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Transport = "kcp"
	cfg.Server.ListenAddr = "127.0.0.1:0"
	server, err := NewServer(cfg)
	assert.Equal(t, nil, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Run(ctx)

	ks := server.transport.(*transport.KCPServer)
	cfg.Client.Transport = "kcp"
	cfg.Client.ServerAddr = ks.Addr().String()
	client, err := NewClient(cfg)
	assert.Equal(t, nil, err)
	go client.Run(ctx)

	waitFor(t, server, func() bool {
		return len(server.EntityManager().Peers()) == 1
	})
	waitFor(t, client, func() bool {
		return client.EntityManager().LocalPeer() != common.ServerPeerID
	})

	client.Terminate()
	client.WaitTerminated()
	cancel()
	server.WaitTerminated()
}

func TestAddTimer(t *testing.T) {
	h := New(false, nil)
	fired := make(chan struct{}, 1)
	h.AddTimer(5*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatalf("timer never fired")
	}
	cancel()
	h.WaitTerminated()
	assert.Equal(t, 0, len(h.timers))
}
