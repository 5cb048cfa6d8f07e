package types

// ResourcesResponse wraps the list returned by GET /models.
type ResourcesResponse struct {
	// List of known resources.
	Models []ResourceInfo `json:"models"`
}

// DownloadRequest triggers an artifact download for one resource.
type DownloadRequest struct {
	// Resource identifier from the catalog.
	// example: tinyllama
	ModelID string `json:"model_id" example:"tinyllama"`
	// Re-download even if artifacts are already present.
	// example: false
	Force bool `json:"force,omitempty" example:"false"`
}

// LoadRequest materializes a downloaded resource into memory.
type LoadRequest struct {
	// Resource identifier from the catalog.
	// example: tinyllama
	ModelID string `json:"model_id" example:"tinyllama"`
	// Target device; "auto" picks an accelerator when available, else cpu.
	// example: auto
	Device string `json:"device,omitempty" example:"auto"`
}

// UnloadRequest evicts a loaded resource from memory.
type UnloadRequest struct {
	// Resource identifier from the catalog.
	// example: tinyllama
	ModelID string `json:"model_id" example:"tinyllama"`
}

// OpResponse reports the outcome of a lifecycle operation.
type OpResponse struct {
	// Human-readable result of the operation.
	// example: model tinyllama loaded
	Message string `json:"message" example:"model tinyllama loaded"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: tinyllama
	Error string `json:"error" example:"model not found: tinyllama"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
