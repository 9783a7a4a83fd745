package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

var quietPaths = map[string]struct{}{
	"/health/live":  {},
	"/health/ready": {},
	"/metrics":      {},
}

// Logging emits one line per request once the handler returns. Health check and
// scrape traffic is logged at debug level.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			rec := newResponseRecorder(w, false)
			r = r.WithContext(ctx)

			next.ServeHTTP(rec, r)

			fields := map[string]any{
				"status":      rec.Status(),
				"bytes":       rec.written,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				fields["route"] = rctx.RoutePattern()
			}
			ctx = logg.WithFields(ctx, fields)

			switch {
			case rec.Status() >= http.StatusInternalServerError:
				logg.Warn(ctx, "request.failed")
			case isQuiet(r.URL.Path):
				logg.Debug(ctx, "request.complete")
			default:
				logg.Info(ctx, "request.complete")
			}
		})
	}
}

func isQuiet(path string) bool {
	_, ok := quietPaths[path]
	return ok
}
