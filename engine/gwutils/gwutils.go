package gwutils

import (
	"fmt"

	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/pkg/errors"
)

// RunPanicless calls a function panic-freely
func RunPanicless(f func()) (paniced bool) {
	defer func() {
		err := recover()
		if err != nil {
			gwlog.TraceError("%p panic: %v", f, err)
			paniced = true
		}
	}()

	f()
	return
}

// CatchPanic calls f and converts a panic into an error
func CatchPanic(f func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(error); ok {
			err = e
		} else {
			err = errors.New(fmt.Sprint(r))
		}
	}()

	f()
	return
}
