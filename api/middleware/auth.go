package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/tradelines-backend/api/responses"
	pkgAuth "github.com/angelmondragon/tradelines-backend/pkg/auth"
	"github.com/angelmondragon/tradelines-backend/pkg/auth/session"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

// Auth requires a valid bearer access token whose session is still live and
// stores its claims on the request context.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r.Context(), cfg, verifier, r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if logg != nil {
				ctx = logg.WithFields(ctx, claimFields(claims))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, verifier session.AccessSessionChecker, header string) (*pkgAuth.AccessTokenClaims, error) {
	token := bearerToken(header)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if verifier == nil {
		return claims, nil
	}

	live, err := verifier.HasSession(ctx, claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// bearerToken accepts "Bearer <token>" in any case as well as a bare token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	return header
}

func claimFields(claims *pkgAuth.AccessTokenClaims) map[string]any {
	fields := map[string]any{
		"actor_id":   claims.ActorID,
		"actor_role": string(claims.Role),
	}
	if claims.BrokerID != nil {
		fields["broker_id"] = claims.BrokerID.String()
	}
	return fields
}
