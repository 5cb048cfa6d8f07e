package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelhostd/internal/telemetry"
	"modelhostd/pkg/types"
)

// DefaultHistorySize bounds the retained overall reports.
const DefaultHistorySize = 100

// ResourceLister exposes the lifecycle manager's read-only snapshot.
type ResourceLister interface {
	List() []types.ResourceInfo
}

// MetricSource provides a fresh sample, independent of the background
// sampling cadence.
type MetricSource interface {
	Current(ctx context.Context) telemetry.Sample
}

// CheckerConfig encapsulates Checker construction. Lifecycle and
// Metrics may be nil; the affected checks degrade instead of failing.
type CheckerConfig struct {
	Lifecycle   ResourceLister
	Metrics     MetricSource
	HistorySize int
	Logger      zerolog.Logger
}

// Checker runs the four sub-checks and aggregates them into one
// overall status plus recommendations, retaining a bounded history.
type Checker struct {
	lifecycle ResourceLister
	metrics   MetricSource
	log       zerolog.Logger
	started   time.Time

	mu      sync.Mutex
	history []Overall
	cap     int
}

func NewChecker(cfg CheckerConfig) *Checker {
	size := cfg.HistorySize
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &Checker{
		lifecycle: cfg.Lifecycle,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
		started:   time.Now(),
		cap:       size,
	}
}

// Check runs all four sub-checks, aggregates severity as the maximum
// across them, and appends the result to the history. A failure inside
// any check is converted into an Error-severity report rather than
// propagated.
func (c *Checker) Check(ctx context.Context) Overall {
	sys := c.guard("system", func() Report { return c.checkSystem(ctx) })
	res := c.guard("resource", func() Report { return c.checkResources() })
	tel := c.guard("telemetry", func() Report { return c.checkTelemetry(ctx) })
	svc := c.guard("service", func() Report { return c.checkService(ctx) })

	ov := Overall{
		Status:          sys.Status.max(res.Status).max(tel.Status).max(svc.Status),
		Timestamp:       time.Now(),
		UptimeSeconds:   time.Since(c.started).Seconds(),
		System:          sys,
		Resources:       res,
		Telemetry:       tel,
		Service:         svc,
		Recommendations: recommend(sys, res, tel, svc),
	}

	c.mu.Lock()
	c.history = append(c.history, ov)
	if len(c.history) > c.cap {
		c.history = c.history[len(c.history)-c.cap:]
	}
	c.mu.Unlock()

	c.log.Debug().Stringer("status", ov.Status).Msg("health check completed")
	return ov
}

// History returns retained overall reports oldest-first, optionally
// truncated to the most recent limit entries.
func (c *Checker) History(limit int) []Overall {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Overall, n)
	copy(out, c.history[len(c.history)-n:])
	return out
}

// RunCheck executes a single sub-check by kind: system, models,
// performance or service.
func (c *Checker) RunCheck(ctx context.Context, kind string) Report {
	switch kind {
	case "system":
		return c.guard("system", func() Report { return c.checkSystem(ctx) })
	case "models":
		return c.guard("resource", func() Report { return c.checkResources() })
	case "performance":
		return c.guard("telemetry", func() Report { return c.checkTelemetry(ctx) })
	case "service":
		return c.guard("service", func() Report { return c.checkService(ctx) })
	default:
		return Report{
			Status:  Error,
			Issues:  []string{fmt.Sprintf("unknown check type: %s", kind)},
			Details: map[string]any{},
		}
	}
}

// guard converts a panic inside a sub-check into an Error report so
// the aggregation pipeline always produces a result.
func (c *Checker) guard(name string, check func() Report) (rep Report) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("check", name).Msg("health check failed")
			rep = Report{
				Status:  Error,
				Issues:  []string{fmt.Sprintf("%s health check failed: %v", name, r)},
				Details: map[string]any{},
			}
		}
	}()
	return check()
}
