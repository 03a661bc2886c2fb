// +build windows

package process

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// Signal is the signal type accepted by Process.Signal
type Signal = syscall.Signal

func (p process) Signal(sig Signal) error {
	return p.Process.SendSignal(windows.Signal(sig))
}
