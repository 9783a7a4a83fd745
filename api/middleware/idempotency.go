package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tradelines-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tradelines-backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replayed"

	adminIdempotencyTTL = 24 * time.Hour
	moneyIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL         = 2 * time.Minute
	maxIdempotencyKey   = 255
)

// idempotentRoutes lists the POST routes that require an Idempotency-Key.
// Patterns use chi syntax; {param} matches exactly one path segment.
var idempotentRoutes = []struct {
	pattern string
	ttl     time.Duration
}{
	{"/api/v1/admin/brokers", adminIdempotencyTTL},
	{"/api/v1/admin/brokers/{brokerId}/approve", adminIdempotencyTTL},
	{"/api/v1/orders", moneyIdempotencyTTL},
	{"/api/v1/checkout", moneyIdempotencyTTL},
	{"/api/v1/admin/orders/{orderId}/manual-payment", moneyIdempotencyTTL},
	{"/api/v1/admin/payouts", moneyIdempotencyTTL},
	{"/api/v1/admin/payouts/{payoutId}/process", moneyIdempotencyTTL},
}

type idempotencyState string

const (
	stateInFlight  idempotencyState = "in_flight"
	stateCompleted idempotencyState = "completed"
)

type idempotencyRecord struct {
	State       idempotencyState `json:"state"`
	RequestHash string           `json:"request_hash"`
	Status      int              `json:"status,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
	Body        []byte           `json:"body,omitempty"`
}

// Idempotency makes retries of money-moving requests safe. The first request
// claims the key with an in-flight marker; a completed non-5xx response is
// stored and replayed for retries carrying the same body. Server errors
// release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, ok := routeTTL(r.Method, routePattern(r))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if idemKey == "" || len(idemKey) > maxIdempotencyKey {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required (max 255 characters)"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(r, body)
			key := store.IdempotencyKey(idempotencyScope(r), idemKey)

			claim, _ := json.Marshal(idempotencyRecord{State: stateInFlight, RequestHash: hash})
			claimed, err := store.SetNX(ctx, key, string(claim), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayExisting(w, r, store, key, hash, logg)
				return
			}

			rec := newResponseRecorder(w, true)
			next.ServeHTTP(rec, r)

			if err := store.Del(ctx, key); err != nil {
				logError(r, logg, "release idempotency claim", err)
				return
			}
			if rec.Status() >= http.StatusInternalServerError {
				return
			}
			done, _ := json.Marshal(idempotencyRecord{
				State:       stateCompleted,
				RequestHash: hash,
				Status:      rec.Status(),
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if _, err := store.SetNX(ctx, key, string(done), ttl); err != nil {
				logError(r, logg, "persist idempotency record", err)
			}
		})
	}
}

func replayExisting(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	stored, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The claim expired or was released between SetNX and Get.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is being retried, try again"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != hash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.State != stateCompleted {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this Idempotency-Key is still in progress"))
		return
	}

	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(replayHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

// idempotencyScope keys records per actor and concrete path so two brokers
// can reuse the same client-generated key.
func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{ActorIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.URL.RawQuery))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		// Group-level middleware only sees the mount pattern ("/api/v1/*").
		if pattern := rctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if matchRoute(route.pattern, path) {
			return route.ttl, true
		}
	}
	return 0, false
}

// matchRoute compares segment by segment. It accepts both a chi pattern and
// a concrete path on the right-hand side.
func matchRoute(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}

func logError(r *http.Request, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(r.Context(), msg, err)
}
