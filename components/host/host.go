// Package host runs an entity manager and its transport on one main routine
package host

import (
	"context"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/Moddingdudes/Mirage-sub002/engine/config"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/entity"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/opmon"
	"github.com/Moddingdudes/Mirage-sub002/engine/post"
	"github.com/Moddingdudes/Mirage-sub002/engine/transport"
	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	timer "github.com/xiaonanln/goTimer"
)

const (
	rsNotRunning = iota
	rsRunning
	rsTerminating
	rsTerminated
	rsFreezing
	rsFreezed
)

var (
	// ErrAlreadyRunning is returned when Run is called twice
	ErrAlreadyRunning = errors.New("host already running")
	// ErrUnknownTransport is returned for transport names other than kcp and websocket
	ErrUnknownTransport = errors.New("unknown transport")
)

// Host owns an EntityManager and the transport feeding it
//
// All entity operations happen on the routine calling Run. Other routines use Post.
type Host struct {
	em           *entity.EntityManager
	queue        *post.Queue
	transport    transport.Transport
	httpServer   *http.Server
	syncInterval time.Duration
	timers       []*timer.Timer
	freezeFile   string
	runState     xnsyncutil.AtomicInt
	terminated   *xnsyncutil.OneTimeCond
}

// New creates a host without a transport, cfg may be nil to use the defaults
func New(isServer bool, cfg *config.SyncConfig) *Host {
	if cfg == nil {
		cfg = &config.Default().Sync
	}
	return &Host{
		em:           entity.NewEntityManager(nil, isServer, cfg),
		queue:        post.NewQueue(),
		syncInterval: time.Duration(cfg.SyncIntervalMS) * time.Millisecond,
		terminated:   xnsyncutil.NewOneTimeCond(),
	}
}

// NewServer creates a server host listening on the configured transport
func NewServer(cfg *config.MirageConfig) (*Host, error) {
	h := New(true, &cfg.Sync)
	if err := h.Listen(cfg.Server.Transport, cfg.Server.ListenAddr, &cfg.KCP); err != nil {
		return nil, err
	}
	return h, nil
}

// NewClient creates a client host connected to the configured server
func NewClient(cfg *config.MirageConfig) (*Host, error) {
	h := New(false, &cfg.Sync)
	if err := h.Dial(cfg.Client.Transport, cfg.Client.ServerAddr, &cfg.KCP); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) String() string {
	return fmt.Sprintf("Host<%s>", h.em)
}

// EntityManager returns the entity manager of the host
func (h *Host) EntityManager() *entity.EntityManager {
	return h.em
}

// Poster returns the queue that transports deliver events into
func (h *Host) Poster() post.Poster {
	return h.queue
}

// Post runs f on the host routine
func (h *Host) Post(f post.PostCallback) {
	h.queue.Post(f)
}

// SetTransport attaches a transport created with this host's entity manager and poster
func (h *Host) SetTransport(t transport.Transport) {
	h.transport = t
	h.em.SetTransport(t)
}

func kcpConfig(cfg *config.KCPConfig) transport.KCPConfig {
	kc := transport.DefaultKCPConfig()
	if cfg != nil {
		kc.DataShards = cfg.DataShards
		kc.ParityShards = cfg.ParityShards
		kc.NoDelayIntervalMs = cfg.NoDelayIntervalMS
	}
	return kc
}

// Listen starts the server transport, name is kcp or websocket
func (h *Host) Listen(name string, addr string, kcpCfg *config.KCPConfig) error {
	if !h.em.IsServer() {
		return entity.ErrNotServer
	}
	switch name {
	case "kcp":
		ks, err := transport.ListenKCP(addr, h.em, h.queue, kcpConfig(kcpCfg))
		if err != nil {
			return err
		}
		h.SetTransport(ks)
		gwlog.Infof("%s: listening on kcp://%s", h, ks.Addr())
	case "websocket":
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return errors.Wrapf(err, "listen %s", addr)
		}
		wss := transport.NewWebSocketServer(h.em, h.queue)
		mux := http.NewServeMux()
		mux.Handle(consts.WEBSOCKET_PATH, wss)
		h.httpServer = &http.Server{Handler: mux}
		go func() {
			if err := h.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				gwlog.Errorf("%s: http server stopped: %v", h, err)
			}
		}()
		h.SetTransport(wss)
		gwlog.Infof("%s: listening on ws://%s%s", h, ln.Addr(), consts.WEBSOCKET_PATH)
	default:
		return errors.Wrapf(ErrUnknownTransport, "%q", name)
	}
	return nil
}

// Dial connects a client host to the server, name is kcp or websocket
func (h *Host) Dial(name string, addr string, kcpCfg *config.KCPConfig) error {
	if h.em.IsServer() {
		return errors.Errorf("%s: server hosts do not dial", h)
	}
	switch name {
	case "kcp":
		kc, err := transport.DialKCP(addr, h.em, h.queue, kcpConfig(kcpCfg))
		if err != nil {
			return err
		}
		h.SetTransport(kc)
	case "websocket":
		url := "ws://" + addr + consts.WEBSOCKET_PATH
		wc, err := transport.DialWebSocket(url, "http://"+addr+"/", h.em, h.queue)
		if err != nil {
			return err
		}
		h.SetTransport(wc)
	default:
		return errors.Wrapf(ErrUnknownTransport, "%q", name)
	}
	gwlog.Infof("%s: connected to %s://%s", h, name, addr)
	return nil
}

// Restore loads entities from a file written by Freeze, before Run
func (h *Host) Restore(path string) error {
	t0 := time.Now()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return err
	}
	if err := h.em.Restore(data); err != nil {
		return err
	}
	gwlog.Infof("%s: restored from %s in %s", h, path, time.Since(t0))
	return nil
}

// Run is the main loop of the host, it returns when ctx is done or the host is terminated or freezed
func (h *Host) Run(ctx context.Context) error {
	if h.runState.Load() != rsNotRunning {
		return ErrAlreadyRunning
	}
	h.runState.Store(rsRunning)
	defer h.terminated.Signal()

	h.AddTimer(h.syncInterval, h.em.CollectSyncInfos)

	ticker := time.NewTicker(consts.HOST_TICK_INTERVAL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.doTerminate()
			return nil
		case <-ticker.C:
			switch h.runState.Load() {
			case rsTerminating:
				h.doTerminate()
				return nil
			case rsFreezing:
				if err := h.doFreeze(); err != nil {
					gwlog.Errorf("%s: freeze failed: %v", h, err)
					h.runState.Store(rsRunning)
				} else {
					return nil
				}
			}
			timer.Tick()
		}

		// after firing timers, check the posted functions
		h.queue.Tick()
	}
}

// Terminate asks the main loop to stop
func (h *Host) Terminate() {
	h.runState.Store(rsTerminating)
}

// Freeze asks the main loop of a server host to write all entities to path and stop
func (h *Host) Freeze(path string) {
	h.queue.Post(func() {
		h.freezeFile = path
		h.runState.Store(rsFreezing)
	})
}

// WaitTerminated blocks until Run returns
func (h *Host) WaitTerminated() {
	h.terminated.Wait()
}

// IsRunning checks if the main loop is running
func (h *Host) IsRunning() bool {
	return h.runState.Load() == rsRunning
}

// AddTimer calls cb on the host routine every d until the host stops, call it before Run or on the host routine
func (h *Host) AddTimer(d time.Duration, cb func()) *timer.Timer {
	t := timer.AddTimer(d, func() {
		// timers of every host fire on whichever routine ticks first
		h.queue.Post(cb)
	})
	h.timers = append(h.timers, t)
	return t
}

func (h *Host) stopTimers() {
	for _, t := range h.timers {
		t.Cancel()
	}
	h.timers = nil
}

func (h *Host) closeTransport() {
	if h.httpServer != nil {
		h.httpServer.Close()
	}
	if h.transport != nil {
		if err := h.transport.Close(); err != nil {
			gwlog.Warnf("%s: close transport: %v", h, err)
		}
	}
	// deliver the disconnects posted by Close
	h.queue.Tick()
}

func (h *Host) doTerminate() {
	h.stopTimers()
	h.queue.Tick()
	h.em.CollectSyncInfos()
	h.closeTransport()
	h.runState.Store(rsTerminated)
	opmon.Dump()
	gwlog.Infof("%s: terminated", h)
}

func (h *Host) doFreeze() error {
	h.queue.Tick()
	data, err := h.em.Freeze()
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(h.freezeFile, data, 0644); err != nil {
		return err
	}

	gwlog.Infof("%s: %d entities freezed to %s", h, h.em.NumEntities(), h.freezeFile)
	h.stopTimers()
	h.closeTransport()
	h.runState.Store(rsFreezed)
	return nil
}
