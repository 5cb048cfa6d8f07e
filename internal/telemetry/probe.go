package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxProbeCards bounds the card index scan under the DRM root.
const maxProbeCards = 8

// Probe reports accelerator devices, best-effort. Implementations must
// degrade to an empty list when no accelerator (or no management
// interface) is available, never return an error.
type Probe interface {
	Accelerators(ctx context.Context) []Accelerator
}

// SysfsProbe discovers AMD accelerators through the DRM sysfs tree
// (gpu_busy_percent, mem_info_vram_total, mem_info_vram_used under
// <root>/cardN/device). Root is overridable for tests; empty means
// /sys/class/drm.
type SysfsProbe struct {
	Root string
}

func (p SysfsProbe) Accelerators(ctx context.Context) []Accelerator {
	root := p.Root
	if root == "" {
		root = "/sys/class/drm"
	}
	var accs []Accelerator
	for i := 0; i < maxProbeCards; i++ {
		if ctx.Err() != nil {
			break
		}
		dev := filepath.Join(root, fmt.Sprintf("card%d", i), "device")
		util, ok := readSysfsFloat(filepath.Join(dev, "gpu_busy_percent"))
		if !ok {
			continue
		}
		total, _ := readSysfsUint(filepath.Join(dev, "mem_info_vram_total"))
		used, _ := readSysfsUint(filepath.Join(dev, "mem_info_vram_used"))
		accs = append(accs, Accelerator{
			ID:          i,
			Name:        fmt.Sprintf("AMD GPU (card%d)", i),
			MemoryTotal: total,
			MemoryUsed:  used,
			Utilization: util,
		})
	}
	return accs
}

func readSysfsFloat(path string) (float64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func readSysfsUint(path string) (uint64, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
