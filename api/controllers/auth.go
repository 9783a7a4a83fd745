package controllers

import (
	"net/http"

	"github.com/angelmondragon/tradelines-backend/api/middleware"
	"github.com/angelmondragon/tradelines-backend/api/responses"
	"github.com/angelmondragon/tradelines-backend/api/validators"
	"github.com/angelmondragon/tradelines-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

// AuthIssueToken exchanges an API key pair for an access token.
func AuthIssueToken(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.TokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.IssueToken(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AuthRevokeToken ends the session of the calling token.
func AuthRevokeToken(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		tokenID := middleware.TokenIDFromContext(r.Context())
		if tokenID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		if err := svc.RevokeToken(r.Context(), tokenID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"revoked": true})
	}
}
