package main

import (
	"time"

	"github.com/Moddingdudes/Mirage-sub002/cmd/mirage/process"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const _STOP_TIMEOUT = 30 * time.Second

func newStopCommand(rootOpts *rootOptions) *cobra.Command {
	var clients bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the mirage servers running on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopHosts(StopSignal, clients)
		},
	}
	cmd.Flags().BoolVar(&clients, "clients", false, "stop the clients as well")
	return cmd
}

func newFreezeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "freeze",
		Short: "Freeze the mirage servers running on this machine to their freeze files",
		Long: `Send the freeze signal to every running server and wait for it to exit.
Start the server again with serve --restore <freezefile> to continue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopHosts(FreezeSignal, false)
		},
	}
}

func stopHosts(signal process.Signal, clients bool) error {
	hs, err := detectHostStatus()
	if err != nil {
		return err
	}
	showHostStatus(hs)
	if !hs.IsRunning() {
		return errors.New("no host is running currently")
	}

	procs := hs.ServerProcs
	if clients {
		procs = append(procs, hs.ClientProcs...)
	}
	for _, proc := range procs {
		if err := stopProc(proc, signal); err != nil {
			return err
		}
	}
	return nil
}

func stopProc(proc process.Process, signal process.Signal) error {
	showMsg("stop process %s pid=%d", proc.Executable(), proc.Pid())
	if err := proc.Signal(signal); err != nil {
		return errors.Wrapf(err, "signal process %d failed", proc.Pid())
	}

	deadline := time.Now().Add(_STOP_TIMEOUT)
	for process.Exists(proc.Pid()) {
		if time.Now().After(deadline) {
			return errors.Errorf("process %d still running after %s", proc.Pid(), _STOP_TIMEOUT)
		}
		time.Sleep(time.Millisecond * 100)
	}
	return nil
}
