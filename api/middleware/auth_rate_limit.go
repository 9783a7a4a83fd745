package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/tradelines-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/redis"
)

const maxCredentialBody = 16 << 10

type rateLimiterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// RateLimitPolicy is a fixed-window limit applied per client IP and per
// API key. A zero limit disables that dimension.
type RateLimitPolicy struct {
	Name   string
	Window time.Duration
	PerIP  int
	PerKey int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerKey > 0)
}

func (p RateLimitPolicy) name() string {
	if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" {
		return name
	}
	return "auth"
}

// rateCounter is one dimension checked for a request.
type rateCounter struct {
	scope string
	id    string
	limit int
}

// AuthRateLimit throttles credential exchange. Counters live in Redis so the
// limit holds across API replicas; the API key is read from the JSON body and
// only its hash is used in keys and logs.
func AuthRateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			counters := []rateCounter{{scope: "ip", id: clientIP(r), limit: policy.PerIP}}
			if policy.PerKey > 0 {
				body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				if apiKey := extractAPIKey(body); apiKey != "" {
					counters = append(counters, rateCounter{scope: "key", id: hashValue(apiKey), limit: policy.PerKey})
				}
			}

			for _, c := range counters {
				if c.limit <= 0 || c.id == "" {
					continue
				}
				count, err := store.IncrWithTTL(ctx, redis.RateLimitKey(c.scope, policy.name(), c.id), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if count > int64(c.limit) {
					rejectRateLimited(ctx, logg, w, policy, c, count)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, policy RateLimitPolicy, c rateCounter, count int64) {
	if logg != nil {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"policy":   policy.name(),
			"scope":    c.scope,
			"subject":  c.id,
			"attempts": count,
			"limit":    c.limit,
		}), "auth.rate_limit.blocked")
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Round(time.Second).Seconds())))
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

// clientIP prefers the left-most X-Forwarded-For hop set by the platform router.
func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		first, _, _ := strings.Cut(header, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func extractAPIKey(payload []byte) string {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.APIKey)
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:16])
}
