package lifecycle

import (
	"time"

	"modelhostd/internal/backend"
)

// Phase is the lifecycle phase of one resource.
type Phase string

const (
	PhaseNotDownloaded Phase = "not_downloaded"
	PhaseDownloaded    Phase = "downloaded"
	PhaseLoaded        Phase = "loaded"
)

// resourceState is the mutable runtime record for one descriptor. It is owned
// exclusively by the Manager; the handle never leaves the package except as
// an opaque serve reference from Get.
//
// Invariant: phase == PhaseLoaded iff handle != nil.
type resourceState struct {
	phase          Phase
	device         string
	memoryMB       int
	loadDuration   time.Duration
	lastTransition time.Time
	lastErr        string
	handle         backend.Handle
	inflight       string // "", "download", "load" or "unload"
}
