package post

import (
	"sync"

	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwutils"
)

// PostCallback is the type of functions to be posted
type PostCallback func()

// Poster accepts callbacks to be executed on the main routine
type Poster interface {
	Post(f PostCallback)
}

// Queue collects callbacks posted from any goroutine and runs them on the routine calling Tick
type Queue struct {
	lock      sync.Mutex
	callbacks []PostCallback
}

// NewQueue creates an empty post queue
func NewQueue() *Queue {
	return &Queue{}
}

// Post a callback which will be executed when other things are done in the main routine
//
// Post might be called from other goroutine, so we use a lock to protect the data
func (q *Queue) Post(f PostCallback) {
	q.lock.Lock()
	q.callbacks = append(q.callbacks, f)
	q.lock.Unlock()
}

// Len returns the number of callbacks waiting
func (q *Queue) Len() int {
	q.lock.Lock()
	n := len(q.callbacks)
	q.lock.Unlock()
	return n
}

// Tick is called by the main routine to run all posted functions, including the ones posted by the callbacks themselves
func (q *Queue) Tick() {
	for { // loop until there is no callbacks posted anymore
		q.lock.Lock()
		if len(q.callbacks) == 0 {
			q.lock.Unlock()
			break
		}
		// switch callbacks in locked section
		callbacksCopy := q.callbacks
		q.callbacks = make([]PostCallback, 0, len(callbacksCopy))
		q.lock.Unlock()

		if len(callbacksCopy) >= consts.HOST_POST_QUEUE_WARN_LEN {
			gwlog.Warnf("post: %d callbacks queued in one tick", len(callbacksCopy))
		}

		for _, f := range callbacksCopy {
			gwutils.RunPanicless(f)
		}
	}
}

var defaultQueue = NewQueue()

// Post posts a callback to the default queue
func Post(f PostCallback) {
	defaultQueue.Post(f)
}

// Tick runs all callbacks of the default queue
func Tick() {
	defaultQueue.Tick()
}

// Default returns the default queue
func Default() *Queue {
	return defaultQueue
}
