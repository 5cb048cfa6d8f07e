package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelhostd/internal/health"
	"modelhostd/internal/telemetry"
	"modelhostd/pkg/types"
)

// LifecycleService is the lifecycle manager surface consumed by the
// HTTP layer.
type LifecycleService interface {
	List() []types.ResourceInfo
	Download(ctx context.Context, id string, force bool) error
	Load(ctx context.Context, id, device string) error
	Unload(ctx context.Context, id string) error
	Ready() bool
}

// TelemetryStore serves retained samples and derived aggregates.
type TelemetryStore interface {
	History(limit int) []telemetry.Sample
	AverageOver(d time.Duration) (telemetry.Averages, bool)
	Trend(window int) telemetry.Trend
}

// MetricSampler provides an on-demand sample for /system/resources.
type MetricSampler interface {
	Current(ctx context.Context) telemetry.Sample
}

// HealthService runs aggregated and per-kind health checks.
type HealthService interface {
	Check(ctx context.Context) health.Overall
	History(limit int) []health.Overall
	RunCheck(ctx context.Context, kind string) health.Report
}

// Services bundles the collaborators behind the HTTP surface. Any nil
// entry degrades its routes to 503 instead of failing construction.
type Services struct {
	Lifecycle LifecycleService
	Store     TelemetryStore
	Sampler   MetricSampler
	Health    HealthService
}

func NewMux(svc Services) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		if svc.Lifecycle == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "lifecycle manager unavailable")
			return
		}
		writeJSON(w, types.ResourcesResponse{Models: svc.Lifecycle.List()})
	})

	r.Post("/models/download", func(w http.ResponseWriter, r *http.Request) {
		if svc.Lifecycle == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "lifecycle manager unavailable")
			return
		}
		var req types.DownloadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ModelID) == "" {
			writeJSONError(w, http.StatusBadRequest, "model_id is required")
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		start := time.Now()
		if err := svc.Lifecycle.Download(ctx, req.ModelID, req.Force); err != nil {
			writeLifecycleError(w, r, "download", req.ModelID, start, err)
			return
		}
		logOp(r, "download", req.ModelID, start)
		writeJSON(w, types.OpResponse{Message: "model " + req.ModelID + " downloaded"})
	})

	r.Post("/models/load", func(w http.ResponseWriter, r *http.Request) {
		if svc.Lifecycle == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "lifecycle manager unavailable")
			return
		}
		var req types.LoadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ModelID) == "" {
			writeJSONError(w, http.StatusBadRequest, "model_id is required")
			return
		}
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		start := time.Now()
		if err := svc.Lifecycle.Load(ctx, req.ModelID, req.Device); err != nil {
			writeLifecycleError(w, r, "load", req.ModelID, start, err)
			return
		}
		logOp(r, "load", req.ModelID, start)
		writeJSON(w, types.OpResponse{Message: "model " + req.ModelID + " loaded"})
	})

	r.Post("/models/unload", func(w http.ResponseWriter, r *http.Request) {
		if svc.Lifecycle == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "lifecycle manager unavailable")
			return
		}
		var req types.UnloadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ModelID) == "" {
			writeJSONError(w, http.StatusBadRequest, "model_id is required")
			return
		}
		start := time.Now()
		if err := svc.Lifecycle.Unload(r.Context(), req.ModelID); err != nil {
			writeLifecycleError(w, r, "unload", req.ModelID, start, err)
			return
		}
		logOp(r, "unload", req.ModelID, start)
		writeJSON(w, types.OpResponse{Message: "model " + req.ModelID + " unloaded"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if svc.Health == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "health checker unavailable")
			return
		}
		writeJSON(w, svc.Health.Check(r.Context()))
	})

	r.Get("/health/history", func(w http.ResponseWriter, r *http.Request) {
		if svc.Health == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "health checker unavailable")
			return
		}
		reports := svc.Health.History(queryInt(r, "limit", 0))
		writeJSON(w, map[string]any{"history": reports, "count": len(reports)})
	})

	r.Get("/health/{kind}", func(w http.ResponseWriter, r *http.Request) {
		if svc.Health == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "health checker unavailable")
			return
		}
		writeJSON(w, svc.Health.RunCheck(r.Context(), chi.URLParam(r, "kind")))
	})

	r.Get("/performance", func(w http.ResponseWriter, r *http.Request) {
		if svc.Store == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "telemetry store unavailable")
			return
		}
		samples := svc.Store.History(queryInt(r, "limit", 0))
		writeJSON(w, map[string]any{"metrics": samples, "count": len(samples)})
	})

	r.Get("/performance/average", func(w http.ResponseWriter, r *http.Request) {
		if svc.Store == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "telemetry store unavailable")
			return
		}
		minutes := queryInt(r, "minutes", 5)
		if minutes <= 0 {
			writeJSONError(w, http.StatusBadRequest, "minutes must be positive")
			return
		}
		avg, ok := svc.Store.AverageOver(time.Duration(minutes) * time.Minute)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "no samples in the requested window")
			return
		}
		trend := svc.Store.Trend(10)
		writeJSON(w, map[string]any{
			"duration_minutes": minutes,
			"averages":         avg,
			"trend":            trend,
		})
	})

	r.Get("/system/resources", func(w http.ResponseWriter, r *http.Request) {
		if svc.Sampler == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "telemetry sampler unavailable")
			return
		}
		writeJSON(w, svc.Sampler.Current(r.Context()).Resources())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Lifecycle != nil && svc.Lifecycle.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSON enforces the JSON Content-Type and body size limit, then
// decodes into dst. It writes the error response itself and reports
// whether the caller should proceed.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// An oversized body also lands here; 400 avoids leaking limits.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
