package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
)

func TestEffectiveBrokerPinsBrokerTokens(t *testing.T) {
	own := uuid.New()
	req := asBroker(httptest.NewRequest(http.MethodGet, "/", nil), own)

	got, err := EffectiveBroker(req, nil)
	require.NoError(t, err)
	assert.Equal(t, own, *got)

	same := own
	got, err = EffectiveBroker(req, &same)
	require.NoError(t, err)
	assert.Equal(t, own, *got)

	other := uuid.New()
	_, err = EffectiveBroker(req, &other)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestEffectiveBrokerAdminChoosesFreely(t *testing.T) {
	req := asAdmin(httptest.NewRequest(http.MethodGet, "/", nil))

	got, err := EffectiveBroker(req, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	target := uuid.New()
	got, err = EffectiveBroker(req, &target)
	require.NoError(t, err)
	assert.Equal(t, target, *got)
}

func TestBrokerFromPath(t *testing.T) {
	own := uuid.New()

	req := withURLParam(asBroker(httptest.NewRequest(http.MethodGet, "/", nil), own), "brokerId", own.String())
	got, err := BrokerFromPath(req)
	require.NoError(t, err)
	assert.Equal(t, own, got)

	req = withURLParam(asBroker(httptest.NewRequest(http.MethodGet, "/", nil), own), "brokerId", uuid.NewString())
	_, err = BrokerFromPath(req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "brokerId", own.String())
	_, err = BrokerFromPath(req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	req = withURLParam(asAdmin(httptest.NewRequest(http.MethodGet, "/", nil)), "brokerId", "nope")
	_, err = BrokerFromPath(req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
