// +build !windows

package main

import (
	"syscall"
)

const (
	// BinaryExtension extension used on unix
	BinaryExtension = ""
	// StopSignal syscall used to stop a host
	StopSignal = syscall.SIGTERM
	// FreezeSignal syscall used to freeze a server
	FreezeSignal = syscall.SIGHUP
)
