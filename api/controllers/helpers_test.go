package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/api/middleware"
	pkgAuth "github.com/angelmondragon/tradelines-backend/pkg/auth"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

func asBroker(r *http.Request, brokerID uuid.UUID) *http.Request {
	claims := &pkgAuth.AccessTokenClaims{
		ActorID:          "broker:" + brokerID.String(),
		Role:             enums.RoleBroker,
		BrokerID:         &brokerID,
		RegisteredClaims: jwt.RegisteredClaims{ID: "tok-broker"},
	}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func asAdmin(r *http.Request) *http.Request {
	claims := &pkgAuth.AccessTokenClaims{
		ActorID:          "admin",
		Role:             enums.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ID: "tok-admin"},
	}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
