// Package opmon records how long main-loop operations take and how many bytes each message kind moves.
package opmon

import (
	"sort"
	"sync"
	"time"

	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
)

var (
	operationAllocPool = sync.Pool{
		New: func() interface{} {
			return &Operation{}
		},
	}

	monitor = newMonitor()
)

func init() {
	if consts.OPMON_DUMP_INTERVAL > 0 {
		go func() {
			for {
				time.Sleep(consts.OPMON_DUMP_INTERVAL)
				monitor.Dump()
			}
		}()
	}
}

type _OpInfo struct {
	count         uint64
	totalDuration time.Duration
	maxDuration   time.Duration
}

type _ByteInfo struct {
	count      uint64
	totalBytes uint64
	maxBytes   int
}

type _Monitor struct {
	sync.Mutex
	opInfos   map[string]*_OpInfo
	byteInfos map[string]*_ByteInfo
}

func newMonitor() *_Monitor {
	m := &_Monitor{
		opInfos:   map[string]*_OpInfo{},
		byteInfos: map[string]*_ByteInfo{},
	}
	return m
}

func (monitor *_Monitor) record(opname string, duration time.Duration) {
	monitor.Lock()
	info := monitor.opInfos[opname]
	if info == nil {
		info = &_OpInfo{}
		monitor.opInfos[opname] = info
	}
	info.count += 1
	info.totalDuration += duration
	if duration > info.maxDuration {
		info.maxDuration = duration
	}
	monitor.Unlock()
}

func (monitor *_Monitor) recordBytes(name string, n int) {
	monitor.Lock()
	info := monitor.byteInfos[name]
	if info == nil {
		info = &_ByteInfo{}
		monitor.byteInfos[name] = info
	}
	info.count += 1
	info.totalBytes += uint64(n)
	if n > info.maxBytes {
		info.maxBytes = n
	}
	monitor.Unlock()
}

func (monitor *_Monitor) Dump() {
	monitor.Lock()
	opInfos, byteInfos := monitor.opInfos, monitor.byteInfos
	monitor.opInfos = map[string]*_OpInfo{} // clear to be empty
	monitor.byteInfos = map[string]*_ByteInfo{}
	monitor.Unlock()

	gwlog.Infof("opmon: =====================================================================================")
	for _, name := range sortedKeys(len(opInfos), func(f func(string)) {
		for name := range opInfos {
			f(name)
		}
	}) {
		opinfo := opInfos[name]
		gwlog.Infof("opmon: %-30sx%-10d AVG %-10s MAX %-10s", name, opinfo.count, opinfo.totalDuration/time.Duration(opinfo.count), opinfo.maxDuration)
	}
	for _, name := range sortedKeys(len(byteInfos), func(f func(string)) {
		for name := range byteInfos {
			f(name)
		}
	}) {
		bi := byteInfos[name]
		gwlog.Infof("opmon: %-30sx%-10d TOTAL %-10d AVG %-8d MAX %-8d", name, bi.count, bi.totalBytes, bi.totalBytes/bi.count, bi.maxBytes)
	}
}

func sortedKeys(n int, each func(f func(string))) []string {
	names := make([]string, 0, n)
	each(func(name string) {
		names = append(names, name)
	})
	sort.Strings(names)
	return names
}

// Operation is the type of operation to be monitored
type Operation struct {
	name      string
	startTime time.Time
}

// StartOperation creates a new operation
func StartOperation(operationName string) *Operation {
	op := operationAllocPool.Get().(*Operation)
	op.name = operationName
	op.startTime = time.Now()
	return op
}

// Finish finishes the operation and records the duration of operation
func (op *Operation) Finish(warnThreshold time.Duration) {
	takeTime := time.Now().Sub(op.startTime)
	monitor.record(op.name, takeTime)
	if takeTime >= warnThreshold {
		gwlog.Warnf("opmon: operation %s takes %s > %s", op.name, takeTime, warnThreshold)
	}
	operationAllocPool.Put(op)
}

// RecordBytes records n bytes moved by the named message kind
func RecordBytes(name string, n int) {
	monitor.recordBytes(name, n)
}

// Dump logs everything recorded since the last dump and starts over
func Dump() {
	monitor.Dump()
}

// Stats is a snapshot of the recorded numbers of one name
type Stats struct {
	Count      uint64
	TotalBytes uint64
	MaxBytes   int
	Total      time.Duration
	Max        time.Duration
}

// GetStats returns what has been recorded for name since the last dump
func GetStats(name string) Stats {
	monitor.Lock()
	defer monitor.Unlock()
	var st Stats
	if oi := monitor.opInfos[name]; oi != nil {
		st.Count, st.Total, st.Max = oi.count, oi.totalDuration, oi.maxDuration
	}
	if bi := monitor.byteInfos[name]; bi != nil {
		st.Count += bi.count
		st.TotalBytes, st.MaxBytes = bi.totalBytes, bi.maxBytes
	}
	return st
}
