// Package auth mints and parses HS256 access tokens for admins and brokers.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintAccessToken signs a token for payload valid for the configured lifetime.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, *AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return "", nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", nil, fmt.Errorf("jwt issuer is required")
	}
	if cfg.Expiration() <= 0 {
		return "", nil, fmt.Errorf("jwt expiration minutes must be positive")
	}
	if !payload.Role.IsValid() {
		return "", nil, fmt.Errorf("invalid role %q", payload.Role)
	}
	if payload.Role == enums.RoleBroker && payload.BrokerID == nil {
		return "", nil, fmt.Errorf("broker tokens require a broker id")
	}
	if strings.TrimSpace(payload.ActorID) == "" {
		return "", nil, fmt.Errorf("actor id is required")
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := &AccessTokenClaims{
		ActorID:  payload.ActorID,
		Role:     payload.Role,
		BrokerID: payload.BrokerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.ActorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiration())),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", nil, fmt.Errorf("signing jwt: %w", err)
	}
	return signed, claims, nil
}

// ParseAccessToken validates signature, issuer and expiry and returns the claims.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}
	return claims, nil
}
