package types

// ResourceInfo describes one catalog resource and its runtime phase.
// Returned by GET /models.
type ResourceInfo struct {
	// Stable identifier for the resource.
	// example: tinyllama
	ID string `json:"id" example:"tinyllama"`
	// Human-friendly name.
	// example: TinyLLaMA
	Name string `json:"name" example:"TinyLLaMA"`
	// Optional free-form description.
	Description string `json:"description,omitempty"`
	// Declared size class of the artifact set.
	// example: 2.2GB
	SizeClass string `json:"size" example:"2.2GB"`
	// Capability tags describing supported operations.
	// example: ["code-generation","explanation"]
	Capabilities []string `json:"capabilities"`
	// Current lifecycle phase: not_downloaded, downloaded or loaded.
	// example: loaded
	Phase string `json:"status" example:"loaded"`
	// Whether the resource is currently materialized in memory.
	// example: true
	Loaded bool `json:"is_loaded" example:"true"`
	// Device the resource resides on while loaded.
	// example: cpu
	Device string `json:"device,omitempty" example:"cpu"`
	// Measured memory footprint in MB while loaded.
	// example: 1200
	MemoryMB int `json:"memory_mb,omitempty" example:"1200"`
	// Wall-clock duration of the last successful load, in milliseconds.
	// example: 842
	LoadMillis int64 `json:"load_ms,omitempty" example:"842"`
	// Last error recorded for this resource, if any.
	LastError string `json:"last_error,omitempty"`
}
