// Package telemetry collects and retains system resource metrics.
//
// Files by concern:
//   - sample.go:  Sample, Accelerator and derived view/aggregate types
//   - probe.go:   best-effort accelerator discovery (sysfs DRM)
//   - sampler.go: synchronous collection via gopsutil
//   - store.go:   fixed-capacity ring buffer with averages and trend
//   - monitor.go: background sampling loop
//
// The sampler never returns an error: a failed reading yields a
// zero-valued field so one bad tick cannot halt monitoring.
package telemetry
