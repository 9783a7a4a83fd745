package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// TokenRequest carries the API key pair exchanged for an access token.
type TokenRequest struct {
	APIKey    string `json:"api_key" validate:"required"`
	APISecret string `json:"api_secret" validate:"required"`
}

// TokenResponse is returned by the token endpoint.
type TokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresAt   time.Time  `json:"expires_at"`
	Role        enums.Role `json:"role"`
	BrokerID    *uuid.UUID `json:"broker_id,omitempty"`
}
