package telemetry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Sampler collects point-in-time resource snapshots. Every reading is
// best-effort: a failed source leaves its fields zero and the sampler
// logs at debug level instead of returning an error.
type Sampler struct {
	probe       Probe
	diskPath    string
	thermalRoot string
	log         zerolog.Logger
}

// NewSampler returns a sampler observing diskPath ("/" when empty) and
// the given accelerator probe (nil means no accelerator telemetry).
func NewSampler(probe Probe, diskPath string, log zerolog.Logger) *Sampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Sampler{
		probe:       probe,
		diskPath:    diskPath,
		thermalRoot: "/sys/class/thermal",
		log:         log,
	}
}

// Current takes a synchronous sample, independent of any background
// cadence.
func (s *Sampler) Current(ctx context.Context) Sample {
	sm := Sample{Timestamp: time.Now(), Accelerators: []Accelerator{}}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		sm.CPUPercent = pct[0]
	} else if err != nil {
		s.log.Debug().Err(err).Msg("cpu percent unavailable")
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		sm.CPUCount = n
	}
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		sm.CPUFreqMHz = infos[0].Mhz
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sm.MemoryTotal = vm.Total
		sm.MemoryUsed = vm.Used
		sm.MemoryAvailable = vm.Available
		sm.MemoryPercent = vm.UsedPercent
	} else {
		s.log.Debug().Err(err).Msg("memory stats unavailable")
	}

	if du, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		sm.DiskTotal = du.Total
		sm.DiskUsed = du.Used
		sm.DiskFree = du.Free
		sm.DiskPercent = du.UsedPercent
	} else {
		s.log.Debug().Err(err).Str("path", s.diskPath).Msg("disk stats unavailable")
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		sm.NetworkBytesSent = counters[0].BytesSent
		sm.NetworkBytesRecv = counters[0].BytesRecv
		sm.NetworkPacketsSent = counters[0].PacketsSent
		sm.NetworkPacketsRecv = counters[0].PacketsRecv
	}

	if pids, err := process.PidsWithContext(ctx); err == nil {
		sm.ProcessCount = len(pids)
	}
	if bt, err := host.BootTimeWithContext(ctx); err == nil {
		sm.BootTime = time.Unix(int64(bt), 0)
	}

	if temp, ok := readSysfsFloat(filepath.Join(s.thermalRoot, "thermal_zone0", "temp")); ok {
		c := temp / 1000
		sm.CPUTempC = &c
	}
	if s.probe != nil {
		if accs := s.probe.Accelerators(ctx); accs != nil {
			sm.Accelerators = accs
		}
	}
	return sm
}
