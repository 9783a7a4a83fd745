package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/redis/redistest"
)

func tokenRequest(remote, apiKey string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token",
		strings.NewReader(`{"api_key":"`+apiKey+`","api_secret":"secret"}`))
	req.RemoteAddr = remote
	return req
}

func TestAuthRateLimitPassesBodyThrough(t *testing.T) {
	policy := RateLimitPolicy{Name: "token", Window: time.Minute, PerIP: 2, PerKey: 2}
	handler := AuthRateLimit(policy, redistest.NewStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			APIKey string `json:"api_key"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tlk_tester", body.APIKey)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, tokenRequest("1.2.3.4:5678", "tlk_tester"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimitPerKey(t *testing.T) {
	policy := RateLimitPolicy{Name: "token", Window: time.Minute, PerKey: 2}
	handler := AuthRateLimit(policy, redistest.NewStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// Rotating IPs does not escape the key limit.
	codes := make([]int, 0, 3)
	for _, remote := range []string{"1.1.1.1:1", "2.2.2.2:1", "3.3.3.3:1"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, tokenRequest(remote, "tlk_blocked"))
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), string(pkgerrors.CodeRateLimit))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestAuthRateLimitPerIP(t *testing.T) {
	policy := RateLimitPolicy{Name: "token", Window: time.Minute, PerIP: 1}
	handler := AuthRateLimit(policy, redistest.NewStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, tokenRequest("9.9.9.9:1", "tlk_a"))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, tokenRequest("9.9.9.9:2", "tlk_b"))
	other := httptest.NewRecorder()
	handler.ServeHTTP(other, tokenRequest("8.8.8.8:1", "tlk_c"))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestAuthRateLimitKeysAreNamespacedAndHashed(t *testing.T) {
	store := redistest.NewStore()
	policy := RateLimitPolicy{Name: "Token", Window: time.Minute, PerIP: 5, PerKey: 5}
	handler := AuthRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := tokenRequest("10.0.0.1:1", "tlk_secret_value")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	keys := store.Keys()
	require.Len(t, keys, 2)
	assert.Contains(t, keys, "tl:rl:ip:token:203.0.113.9")
	assert.Contains(t, keys, "tl:rl:key:token:"+hashValue("tlk_secret_value"))
	for _, key := range keys {
		assert.NotContains(t, key, "tlk_secret_value")
		assert.Equal(t, time.Minute, store.TTL(key))
	}
}

func TestAuthRateLimitDisabledPolicy(t *testing.T) {
	store := redistest.NewStore()
	handler := AuthRateLimit(RateLimitPolicy{Window: time.Minute}, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), tokenRequest("1.2.3.4:1", "tlk"))
	assert.Empty(t, store.Keys())
}

func TestAuthRateLimitStoreOutage(t *testing.T) {
	store := redistest.NewStore()
	store.Err = assert.AnError
	handler := AuthRateLimit(RateLimitPolicy{Window: time.Minute, PerIP: 1}, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, tokenRequest("1.2.3.4:1", "tlk"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
