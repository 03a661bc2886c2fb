package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Moddingdudes/Mirage-sub002/components/host"
	"github.com/Moddingdudes/Mirage-sub002/engine/binutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/config"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/spf13/cobra"
)

const (
	_DEMO_TICK_INTERVAL   = 200 * time.Millisecond
	_LOAD_REPORT_INTERVAL = 10 * time.Second
)

type serveOptions struct {
	restore    string
	freezeFile string
	demo       bool
	daemon     bool
	pidFile    string
}

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a server host",
		Long: `Start a server host on the configured transport.

SIGINT and SIGTERM stop the server. SIGHUP freezes all entities to the freeze file
and stops, so that a new process can continue with --restore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.restore, "restore", "", "restore entities from a freeze file")
	cmd.Flags().StringVar(&opts.freezeFile, "freezefile", "server_freezed.dat", "file written when freezing on SIGHUP")
	cmd.Flags().BoolVar(&opts.demo, "demo", true, "run the demo world")
	cmd.Flags().BoolVarP(&opts.daemon, "daemon", "d", false, "run in daemon mode")
	cmd.Flags().StringVar(&opts.pidFile, "pidfile", "mirage.pid", "pid file written in daemon mode")
	return cmd
}

func loadConfig(rootOpts *rootOptions) *config.MirageConfig {
	if rootOpts.configFile != "" {
		config.SetConfigFile(rootOpts.configFile)
	}
	return config.Get()
}

func setupLogging(comp string, level string, logFile string, logStderr bool, override string) {
	if override != "" {
		level = override
	}
	gwlog.Setup(comp, level, logFile, logStderr)
}

func runServe(rootOpts *rootOptions, opts *serveOptions) error {
	cfg := loadConfig(rootOpts)
	if opts.daemon {
		daemoncontext := binutil.Daemonize(opts.pidFile)
		defer daemoncontext.Release()
	}
	setupLogging("server", cfg.Server.LogLevel, cfg.Server.LogFile, cfg.Server.LogStderr, rootOpts.logLevel)
	defer gwlog.Sync()
	gwlog.Infof("Read server config: \n%s\n", config.DumpPretty(cfg))
	binutil.SetupHTTPServer(cfg.Server.HTTPAddr)

	h, err := host.NewServer(cfg)
	if err != nil {
		return err
	}
	if opts.restore != "" {
		if err := h.Restore(opts.restore); err != nil {
			return err
		}
	}

	if opts.demo {
		world := newDemoWorld(h.EntityManager())
		world.spawnNPCs()
		h.AddTimer(_DEMO_TICK_INTERVAL, world.tick)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	em := h.EntityManager()
	if err := binutil.WatchLoad(ctx, _LOAD_REPORT_INTERVAL, func(info binutil.LoadInfo) {
		h.Post(func() {
			gwlog.Infof("%s: cpu %.1f%%, rss %dMB, %d entities, %d peers", h, info.CPUPercent, info.RSS>>20, len(em.Entities()), len(em.Peers()))
		})
	}); err != nil {
		gwlog.Warnf("%s: load report disabled: %v", h, err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, FreezeSignal)
	go func() {
		for sig := range signals {
			if sig == FreezeSignal {
				gwlog.Infof("%s: freezing to %s ...", h, opts.freezeFile)
				h.Freeze(opts.freezeFile)
			} else {
				gwlog.Infof("%s: %s received, terminating ...", h, sig)
				h.Terminate()
			}
		}
	}()

	return h.Run(ctx)
}
