package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, the HTTP layer
// stays silent (the metrics middleware still observes everything).
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logOp(r *http.Request, op, id string, start time.Time) {
	if zlog == nil {
		return
	}
	e := zlog.Info().Str("op", op).Str("model", id).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	e.Msg("lifecycle op completed")
}

func logOpError(r *http.Request, op, id string, status int, start time.Time, err error) {
	if zlog == nil {
		return
	}
	e := zlog.Warn().Str("op", op).Str("model", id).Int("status", status).Dur("dur", time.Since(start)).Err(err)
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	e.Msg("lifecycle op failed")
}
