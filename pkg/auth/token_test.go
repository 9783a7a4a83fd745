package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "tradelines",
	ExpirationMinutes: 30,
}

func TestMintAndParseBrokerToken(t *testing.T) {
	now := time.Now().UTC()
	brokerID := uuid.New()

	token, minted, err := MintAccessToken(testJWT, now, AccessTokenPayload{
		ActorID:  brokerID.String(),
		Role:     enums.RoleBroker,
		BrokerID: &brokerID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, minted.ID)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	assert.Equal(t, enums.RoleBroker, claims.Role)
	require.NotNil(t, claims.BrokerID)
	assert.Equal(t, brokerID, *claims.BrokerID)
	assert.Equal(t, minted.ID, claims.ID)
	assert.Equal(t, "tradelines", claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)

	assert.True(t, claims.CanActForBroker(brokerID))
	assert.False(t, claims.CanActForBroker(uuid.New()))
}

func TestAdminCanActForAnyBroker(t *testing.T) {
	token, _, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{ActorID: "ops", Role: enums.RoleAdmin})
	require.NoError(t, err)
	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	assert.True(t, claims.CanActForBroker(uuid.New()))
}

func TestMintRejectsBadPayloads(t *testing.T) {
	now := time.Now()
	_, _, err := MintAccessToken(testJWT, now, AccessTokenPayload{ActorID: "x", Role: enums.RoleBroker})
	assert.Error(t, err, "broker without broker id")

	_, _, err = MintAccessToken(testJWT, now, AccessTokenPayload{ActorID: "x", Role: "superuser"})
	assert.Error(t, err)

	_, _, err = MintAccessToken(testJWT, now, AccessTokenPayload{Role: enums.RoleAdmin})
	assert.Error(t, err)

	_, _, err = MintAccessToken(config.JWTConfig{Issuer: "i", ExpirationMinutes: 1}, now, AccessTokenPayload{ActorID: "x", Role: enums.RoleAdmin})
	assert.Error(t, err)
}

func TestParseRejectsTamperedAndExpiredTokens(t *testing.T) {
	token, _, err := MintAccessToken(testJWT, time.Now(), AccessTokenPayload{ActorID: "ops", Role: enums.RoleAdmin})
	require.NoError(t, err)

	other := testJWT
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)

	other = testJWT
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	_, err = ParseAccessToken(testJWT, parts[0]+"."+parts[1]+".AAAA")
	assert.Error(t, err)

	expired, _, err := MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), AccessTokenPayload{ActorID: "ops", Role: enums.RoleAdmin})
	require.NoError(t, err)
	_, err = ParseAccessToken(testJWT, expired)
	assert.Error(t, err)
}
