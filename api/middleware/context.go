package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/tradelines-backend/pkg/auth"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

type contextKey string

const ctxClaims contextKey = "access_claims"

// WithClaims stores verified token claims on the context.
func WithClaims(ctx context.Context, claims *pkgAuth.AccessTokenClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClaims, claims)
}

func ClaimsFromContext(ctx context.Context) *pkgAuth.AccessTokenClaims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(ctxClaims).(*pkgAuth.AccessTokenClaims)
	return claims
}

func ActorIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.ActorID
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.Role {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Role
	}
	return ""
}

// BrokerIDFromContext returns the broker a broker token is bound to; admins have none.
func BrokerIDFromContext(ctx context.Context) *uuid.UUID {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.BrokerID
	}
	return nil
}

// TokenIDFromContext returns the jti used to track the session.
func TokenIDFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.ID
	}
	return ""
}
