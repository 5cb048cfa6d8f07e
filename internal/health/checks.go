package health

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Check thresholds. CPU/memory/disk carry a warning and a critical
// level; the rest warn only.
const (
	cpuWarnPct      = 75.0
	cpuCritPct      = 90.0
	memWarnPct      = 80.0
	memCritPct      = 90.0
	diskWarnPct     = 85.0
	diskCritPct     = 95.0
	procCountWarn   = 1000
	cpuTempWarnC    = 80.0
	memPressurePct  = 85.0
	diskPressurePct = 90.0
	acceleratorPct  = 90.0
	serviceRSSMB    = 500.0
	serviceRespMax  = time.Second
)

// checkSystem applies resource thresholds to a fresh sample. Multiple
// simultaneous breaches accumulate; the report carries the highest
// severity among them.
func (c *Checker) checkSystem(ctx context.Context) Report {
	if c.metrics == nil {
		return Report{
			Status:  NotAvailable,
			Issues:  []string{"telemetry sampler not available"},
			Details: map[string]any{},
		}
	}
	sm := c.metrics.Current(ctx)

	status := Healthy
	issues := []string{}
	raise := func(s Severity, issue string) {
		status = status.max(s)
		issues = append(issues, issue)
	}

	switch {
	case sm.CPUPercent > cpuCritPct:
		raise(Critical, "Critical CPU usage")
	case sm.CPUPercent > cpuWarnPct:
		raise(Warning, "High CPU usage")
	}
	switch {
	case sm.MemoryPercent > memCritPct:
		raise(Critical, "Critical memory usage")
	case sm.MemoryPercent > memWarnPct:
		raise(Warning, "High memory usage")
	}
	switch {
	case sm.DiskPercent > diskCritPct:
		raise(Critical, "Critical disk usage")
	case sm.DiskPercent > diskWarnPct:
		raise(Warning, "High disk usage")
	}
	if sm.ProcessCount > procCountWarn {
		raise(Warning, "High process count")
	}

	details := map[string]any{
		"cpu_percent":    sm.CPUPercent,
		"memory_percent": sm.MemoryPercent,
		"disk_percent":   sm.DiskPercent,
		"process_count":  sm.ProcessCount,
	}
	if !sm.BootTime.IsZero() {
		details["uptime_hours"] = sm.Timestamp.Sub(sm.BootTime).Hours()
	}
	return Report{Status: status, Issues: issues, Details: details}
}

// checkResources reduces the lifecycle snapshot to a severity: no
// registered resources is NotAvailable, none loaded is Critical, fewer
// than half loaded is Warning. A recorded error contributes an issue
// without escalating past Warning on its own.
func (c *Checker) checkResources() Report {
	if c.lifecycle == nil {
		return Report{
			Status:  NotAvailable,
			Issues:  []string{"lifecycle manager not available"},
			Details: map[string]any{},
		}
	}
	resources := c.lifecycle.List()

	status := Healthy
	issues := []string{}
	perResource := map[string]any{}
	loaded := 0
	for _, r := range resources {
		perResource[r.ID] = map[string]any{
			"status":       r.Phase,
			"name":         r.Name,
			"size":         r.SizeClass,
			"capabilities": r.Capabilities,
		}
		if r.Loaded {
			loaded++
		}
		if r.LastError != "" {
			status = status.max(Warning)
			issues = append(issues, fmt.Sprintf("Resource %s in error state: %s", r.ID, r.LastError))
		}
	}

	total := len(resources)
	switch {
	case total == 0:
		status = status.max(NotAvailable)
		issues = append(issues, "No resources registered")
	case loaded == 0:
		status = status.max(Critical)
		issues = append(issues, "No resources loaded")
	case loaded*2 < total:
		status = status.max(Warning)
		issues = append(issues, "Less than half of registered resources are loaded")
	}

	healthPct := 0.0
	if total > 0 {
		healthPct = float64(loaded) / float64(total) * 100
	}
	return Report{
		Status: status,
		Issues: issues,
		Details: map[string]any{
			"resources": perResource,
			"summary": map[string]any{
				"total_resources":   total,
				"loaded_resources":  loaded,
				"health_percentage": healthPct,
			},
		},
	}
}

// checkTelemetry inspects pressure signals from a fresh sample.
// Optional signals (temperature, accelerators) are skipped when
// absent, not faulted.
func (c *Checker) checkTelemetry(ctx context.Context) Report {
	if c.metrics == nil {
		return Report{
			Status:  NotAvailable,
			Issues:  []string{"telemetry sampler not available"},
			Details: map[string]any{},
		}
	}
	sm := c.metrics.Current(ctx)

	status := Healthy
	issues := []string{}
	raise := func(s Severity, issue string) {
		status = status.max(s)
		issues = append(issues, issue)
	}

	if sm.CPUTempC != nil && *sm.CPUTempC > cpuTempWarnC {
		raise(Warning, fmt.Sprintf("High CPU temperature: %.1fC", *sm.CPUTempC))
	}
	if sm.MemoryPercent > memPressurePct {
		raise(Warning, "High memory pressure")
	}
	if sm.DiskPercent > diskPressurePct {
		raise(Warning, "High disk usage affecting performance")
	}
	for _, acc := range sm.Accelerators {
		if acc.MemoryTotal == 0 {
			continue
		}
		if float64(acc.MemoryUsed)/float64(acc.MemoryTotal)*100 > acceleratorPct {
			raise(Warning, fmt.Sprintf("Accelerator memory pressure: %s", acc.Name))
		}
	}

	return Report{
		Status: status,
		Issues: issues,
		Details: map[string]any{
			"cpu_percent":    sm.CPUPercent,
			"memory_percent": sm.MemoryPercent,
			"disk_percent":   sm.DiskPercent,
			"accelerators":   sm.Accelerators,
		},
	}
}

// checkService measures the service's own responsiveness and memory
// footprint. A missing collaborator degrades to Warning, never fails
// the check.
func (c *Checker) checkService(ctx context.Context) Report {
	status := Healthy
	issues := []string{}
	raise := func(s Severity, issue string) {
		status = status.max(s)
		issues = append(issues, issue)
	}

	if c.lifecycle == nil {
		raise(Warning, "Lifecycle manager not available")
	}
	if c.metrics == nil {
		raise(Warning, "Telemetry sampler not available")
	}

	details := map[string]any{}
	start := time.Now()
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err == nil {
		if mi, merr := proc.MemoryInfoWithContext(ctx); merr == nil {
			rssMB := float64(mi.RSS) / 1024 / 1024
			details["memory_usage_mb"] = rssMB
			if rssMB > serviceRSSMB {
				raise(Warning, fmt.Sprintf("High memory usage: %.2fMB", rssMB))
			}
		}
		if nt, terr := proc.NumThreadsWithContext(ctx); terr == nil {
			details["thread_count"] = nt
		}
	}
	elapsed := time.Since(start)
	details["response_time_ms"] = float64(elapsed.Microseconds()) / 1000
	if elapsed > serviceRespMax {
		raise(Warning, fmt.Sprintf("Slow response time: %dms", elapsed.Milliseconds()))
	}

	return Report{Status: status, Issues: issues, Details: details}
}
