package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// AccessTokenPayload is what the token endpoint knows when minting.
type AccessTokenPayload struct {
	ActorID  string
	Role     enums.Role
	BrokerID *uuid.UUID
	JTI      string
}

// AccessTokenClaims is the typed JWT body.
type AccessTokenClaims struct {
	ActorID  string     `json:"actor_id"`
	Role     enums.Role `json:"role"`
	BrokerID *uuid.UUID `json:"broker_id,omitempty"`
	jwt.RegisteredClaims
}

// CanActForBroker reports whether the caller may read or act on brokerID's data.
func (c *AccessTokenClaims) CanActForBroker(brokerID uuid.UUID) bool {
	if c == nil {
		return false
	}
	if c.Role == enums.RoleAdmin {
		return true
	}
	return c.Role == enums.RoleBroker && c.BrokerID != nil && *c.BrokerID == brokerID
}
