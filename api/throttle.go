package api

import (
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// ErrOverloaded rejects an upload before any state is created. Thresholds
// set to zero disable the corresponding check.
var ErrOverloaded = errors.New("server is overloaded")

type Throttle struct {
	maxCPU      float64
	minFreeMem  int64
	minFreeDisk int64
	dir         string
	logger      *zap.Logger
}

func NewThrottle(maxCPU float64, minFreeMem, minFreeDisk int64, dir string, logger *zap.Logger) *Throttle {
	return &Throttle{
		maxCPU:      maxCPU,
		minFreeMem:  minFreeMem,
		minFreeDisk: minFreeDisk,
		dir:         dir,
		logger:      logger,
	}
}

// Check is a point-in-time admission gate. Probe failures are logged and
// treated as healthy rather than blocking uploads.
func (t *Throttle) Check() error {
	if t.maxCPU > 0 {
		pcts, err := cpu.Percent(0, false)
		if err != nil {
			t.logger.Warn("cpu probe failed", zap.Error(err))
		} else if len(pcts) > 0 && pcts[0] > t.maxCPU {
			return fmt.Errorf("%w: cpu usage %.1f%%", ErrOverloaded, pcts[0])
		}
	}

	if t.minFreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			t.logger.Warn("memory probe failed", zap.Error(err))
		} else if vm.Available < uint64(t.minFreeMem) {
			return fmt.Errorf("%w: %d bytes of memory available", ErrOverloaded, vm.Available)
		}
	}

	if t.minFreeDisk > 0 {
		d, err := disk.Usage(t.dir)
		if err != nil {
			t.logger.Warn("disk probe failed", zap.Error(err))
		} else if d.Free < uint64(t.minFreeDisk) {
			return fmt.Errorf("%w: %d bytes of disk free", ErrOverloaded, d.Free)
		}
	}

	return nil
}
