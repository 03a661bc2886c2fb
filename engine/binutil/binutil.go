package binutil

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
)

// SetupHTTPServer starts the HTTP server for go tool pprof
func SetupHTTPServer(addr string) {
	if addr == "" {
		// pprof not enabled
		gwlog.Infof("pprof server not enabled")
		return
	}

	gwlog.Infof("http server listening on %s", addr)
	gwlog.Infof("pprof http://%s/debug/pprof/ ... available commands: ", addr)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/heap", addr)
	gwlog.Infof("    go tool pprof http://%s/debug/pprof/profile", addr)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			gwlog.Errorf("pprof server stopped: %v", err)
		}
	}()
}
