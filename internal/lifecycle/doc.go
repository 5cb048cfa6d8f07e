// Package lifecycle owns the mutable runtime state of every catalog resource
// and enforces the download -> materialize -> serve -> evict state machine.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, read-side queries.
//   - config.go: ManagerConfig and package defaults.
//   - types.go: Phase and the per-resource state record.
//   - errors.go: error taxonomy and predicates used for HTTP status mapping.
//   - download.go / load.go / unload.go: the state-machine operations.
//   - metrics.go: Prometheus instrumentation.
//
// Concurrency discipline: every mutating operation holds a per-resource lock,
// so operations on the same id are mutually exclusive while different ids
// proceed independently. Concurrent downloads of one id are additionally
// collapsed through singleflight so exactly one backend fetch occurs.
// Readers (Get, List, Info) take only the state read-lock and never block on
// in-flight operations.
package lifecycle
