// +build windows

package binutil

import "github.com/Moddingdudes/Mirage-sub002/engine/gwlog"

type nopRelease int

func (_ nopRelease) Release() {

}

// Daemonize is not supported on windows; the command keeps running in the foreground
func Daemonize(pidFile string) nopRelease {
	gwlog.Warnf("can not run in daemon mode in windows, --daemon ignored")
	return nopRelease(0)
}
