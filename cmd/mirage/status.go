package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Moddingdudes/Mirage-sub002/cmd/mirage/process"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// HostStatus lists the mirage hosts running on this machine
type HostStatus struct {
	ServerProcs []process.Process
	ClientProcs []process.Process
}

// IsRunning returns if any host is running
func (hs *HostStatus) IsRunning() bool {
	return len(hs.ServerProcs) > 0 || len(hs.ClientProcs) > 0
}

func newStatusCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List the mirage hosts running on this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, err := detectHostStatus()
			if err != nil {
				return err
			}
			showHostStatus(hs)
			return nil
		},
	}
}

// hostCommand returns the host subcommand (serve or connect) a mirage command line runs
func hostCommand(cmdline []string) string {
	if len(cmdline) == 0 {
		return ""
	}
	exe := strings.TrimSuffix(filepath.Base(cmdline[0]), BinaryExtension)
	if exe != "mirage" {
		return ""
	}
	for _, arg := range cmdline[1:] {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if arg == "serve" || arg == "connect" {
			return arg
		}
		return ""
	}
	return ""
}

func detectHostStatus() (*HostStatus, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, errors.Wrap(err, "list processes failed")
	}

	hs := &HostStatus{}
	mypid := int32(os.Getpid())
	for _, proc := range procs {
		if proc.Pid() == mypid {
			continue
		}
		cmdline, err := proc.CmdlineSlice()
		if err != nil {
			continue
		}

		switch hostCommand(cmdline) {
		case "serve":
			hs.ServerProcs = append(hs.ServerProcs, proc)
		case "connect":
			hs.ClientProcs = append(hs.ClientProcs, proc)
		}
	}
	return hs, nil
}

func showHostStatus(hs *HostStatus) {
	showMsg("%d servers running, %d clients running", len(hs.ServerProcs), len(hs.ClientProcs))

	var listProcs []process.Process
	listProcs = append(listProcs, hs.ServerProcs...)
	listProcs = append(listProcs, hs.ClientProcs...)
	for _, proc := range listProcs {
		cmdlineSlice, err := proc.CmdlineSlice()
		var cmdline string
		if err == nil {
			cmdline = strings.Join(cmdlineSlice, " ")
		} else {
			cmdline = fmt.Sprintf("get cmdline failed: %v", err)
		}

		showMsg("\t%-10d%-16s%s", proc.Pid(), proc.Executable(), cmdline)
	}
}
