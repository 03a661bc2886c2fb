package binutil

import (
	"context"
	"os"
	"time"

	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwutils"
	"github.com/shirou/gopsutil/process"
)

// LoadInfo is one sample of the current process load
type LoadInfo struct {
	CPUPercent float64
	RSS        uint64
}

// WatchLoad samples the load of the current process every interval and passes it to report.
// It returns when ctx is done.
func WatchLoad(ctx context.Context, interval time.Duration, report func(info LoadInfo)) error {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	gwlog.Infof("binutil: watching load of process %d every %s", pid, interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			gwutils.RunPanicless(func() {
				info, err := sampleLoad(ctx, p)
				if err != nil {
					gwlog.Warnf("binutil: sample process load failed: %v", err)
					return
				}
				report(info)
			})
		}
	}()
	return nil
}

func sampleLoad(ctx context.Context, p *process.Process) (info LoadInfo, err error) {
	if info.CPUPercent, err = p.CPUPercentWithContext(ctx); err != nil {
		return
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return
	}
	info.RSS = mem.RSS
	return
}
