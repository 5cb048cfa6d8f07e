package health

import "time"

// Report is the outcome of one sub-check: a severity, the accumulated
// issue strings, and a check-specific detail payload.
type Report struct {
	Status  Severity       `json:"status"`
	Issues  []string       `json:"issues"`
	Details map[string]any `json:"details"`
}

// Overall folds the four sub-reports into one status. Status is the
// maximum severity across the reports.
type Overall struct {
	Status          Severity  `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	System          Report    `json:"system_health"`
	Resources       Report    `json:"resource_health"`
	Telemetry       Report    `json:"telemetry_health"`
	Service         Report    `json:"service_health"`
	Recommendations []string  `json:"recommendations"`
}
