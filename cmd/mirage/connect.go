package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Moddingdudes/Mirage-sub002/components/host"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/spf13/cobra"
)

type connectOptions struct {
	server string
	steer  bool
}

func newConnectCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &connectOptions{}
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Start a client host connected to a server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(rootOpts, opts)
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "", "server address, overrides [client] server_addr")
	cmd.Flags().BoolVar(&opts.steer, "steer", true, "steer the owned player randomly")
	return cmd
}

func runConnect(rootOpts *rootOptions, opts *connectOptions) error {
	cfg := loadConfig(rootOpts)
	if opts.server != "" {
		cfg.Client.ServerAddr = opts.server
	}
	setupLogging("client", cfg.Client.LogLevel, cfg.Client.LogFile, cfg.Client.LogStderr, rootOpts.logLevel)
	defer gwlog.Sync()

	h, err := host.NewClient(cfg)
	if err != nil {
		return err
	}
	client := newDemoClient(h.EntityManager())
	if opts.steer {
		h.AddTimer(_DEMO_TICK_INTERVAL, client.tick)
	}
	h.AddTimer(time.Second, func() {
		if len(h.EntityManager().Peers()) == 0 {
			gwlog.Infof("%s: server is gone", h)
			h.Terminate()
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return h.Run(ctx)
}
