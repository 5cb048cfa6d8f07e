package health

// Severity is a health status level, totally ordered for aggregation:
// Healthy < NotAvailable < Warning < Error < Critical.
type Severity int

const (
	Healthy Severity = iota
	NotAvailable
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case NotAvailable:
		return "not_available"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the severity as its string form.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// max returns the higher of two severities.
func (s Severity) max(other Severity) Severity {
	if other > s {
		return other
	}
	return s
}
