// +build windows

package main

import (
	"syscall"

	_ "github.com/go-ole/go-ole" // so that dep can resolve versions correctly
)

const (
	// BinaryExtension extension used on windows
	BinaryExtension = ".exe"
	// StopSignal syscall used to stop a host
	StopSignal = syscall.SIGKILL
	// FreezeSignal syscall used to freeze a server
	FreezeSignal = syscall.SIGHUP
)
