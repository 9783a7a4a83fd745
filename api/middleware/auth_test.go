package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/pkg/auth"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejections(t *testing.T) {
	brokerID := uuid.New()
	brokerToken := mintTestToken(t, enums.RoleBroker, &brokerID)
	adminToken := mintTestToken(t, enums.RoleAdmin, nil)

	tests := []struct {
		name     string
		header   string
		verifier stubSessionVerifier
		want     int
	}{
		{name: "no header", verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "scheme only", header: "Bearer", verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer invalid", verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "revoked session", header: "Bearer " + brokerToken, verifier: stubSessionVerifier{ok: false}, want: http.StatusUnauthorized},
		{name: "session store down", header: "Bearer " + adminToken, verifier: stubSessionVerifier{err: errors.New("redis down")}, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(testJWT, tt.verifier, nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func TestAuthSeedsClaims(t *testing.T) {
	brokerID := uuid.New()
	token := mintTestToken(t, enums.RoleBroker, &brokerID)

	var (
		actor  string
		role   enums.Role
		broker *uuid.UUID
		jti    string
	)
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = ActorIDFromContext(r.Context())
		role = RoleFromContext(r.Context())
		broker = BrokerIDFromContext(r.Context())
		jti = TokenIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, brokerID.String(), actor)
	assert.Equal(t, enums.RoleBroker, role)
	require.NotNil(t, broker)
	assert.Equal(t, brokerID, *broker)
	assert.NotEmpty(t, jti)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("  bearer   abc "))
	assert.Equal(t, "abc", bearerToken("abc"))
	assert.Empty(t, bearerToken("Bearer "))
	assert.Empty(t, bearerToken(""))
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.RoleAdmin)(okHandler())

	brokerID := uuid.New()
	tests := map[string]struct {
		claims *auth.AccessTokenClaims
		want   int
	}{
		"admin":     {claims: &auth.AccessTokenClaims{ActorID: "admin", Role: enums.RoleAdmin}, want: http.StatusOK},
		"broker":    {claims: &auth.AccessTokenClaims{ActorID: brokerID.String(), Role: enums.RoleBroker, BrokerID: &brokerID}, want: http.StatusForbidden},
		"anonymous": {want: http.StatusForbidden},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}

func mintTestToken(t *testing.T, role enums.Role, brokerID *uuid.UUID) string {
	t.Helper()
	actor := "admin"
	if brokerID != nil {
		actor = brokerID.String()
	}
	token, _, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		ActorID:  actor,
		Role:     role,
		BrokerID: brokerID,
	})
	require.NoError(t, err)
	return token
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(context.Context, string) (bool, error) {
	return s.ok && s.err == nil, s.err
}
