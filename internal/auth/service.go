// Package auth exchanges broker and operator API credentials for access tokens.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	pkgAuth "github.com/angelmondragon/tradelines-backend/pkg/auth"
	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	adminActorID              = "admin"
	tokenTypeBearer           = "Bearer"
)

// Service defines the behavior needed by the token controller.
type Service interface {
	IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error)
	RevokeToken(ctx context.Context, accessID string) error
}

type brokerAuthenticator interface {
	Authenticate(ctx context.Context, apiKey, secret string) (*models.Broker, error)
}

type sessionManager interface {
	Register(ctx context.Context, accessID, actorID string, ttl time.Duration) error
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Brokers        brokerAuthenticator
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	Admin          config.AdminConfig
	Logger         *logger.Logger
}

type service struct {
	brokers brokerAuthenticator
	session sessionManager
	jwtCfg  config.JWTConfig
	admin   config.AdminConfig
	logg    *logger.Logger
	now     func() time.Time
}

// NewService constructs a token service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Brokers == nil {
		return nil, fmt.Errorf("broker authenticator is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	return &service{
		brokers: params.Brokers,
		session: params.SessionManager,
		jwtCfg:  params.JWTConfig,
		admin:   params.Admin,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

func (s *service) IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" || req.APISecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	var payload pkgAuth.AccessTokenPayload
	if s.isAdminKey(apiKey) {
		ok, err := security.VerifySecret(req.APISecret, s.admin.SecretHash)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify admin secret")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		payload.ActorID = adminActorID
		payload.Role = enums.RoleAdmin
	} else {
		broker, err := s.brokers.Authenticate(ctx, apiKey, req.APISecret)
		if err != nil {
			return nil, err
		}
		if broker.Status != enums.BrokerStatusActive {
			return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "broker account is %s", broker.Status)
		}
		brokerID := broker.ID
		payload.ActorID = broker.ID.String()
		payload.Role = enums.RoleBroker
		payload.BrokerID = &brokerID
	}

	now := s.now().UTC()
	token, claims, err := pkgAuth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	if err := s.session.Register(ctx, claims.ID, claims.ActorID, s.jwtCfg.Expiration()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register access session")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"actor_id": claims.ActorID, "role": claims.Role}), "access token issued")
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresAt:   claims.ExpiresAt.Time,
		Role:        claims.Role,
		BrokerID:    claims.BrokerID,
	}, nil
}

func (s *service) RevokeToken(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing token id")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke access session")
	}
	return nil
}

func (s *service) isAdminKey(apiKey string) bool {
	if s.admin.APIKey == "" || s.admin.SecretHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.admin.APIKey)) == 1
}
