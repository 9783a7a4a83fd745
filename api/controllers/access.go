package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/api/middleware"
	"github.com/angelmondragon/tradelines-backend/api/validators"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
)

// BrokerFromPath parses the {brokerId} path parameter and checks that the
// caller may act for that broker.
func BrokerFromPath(r *http.Request) (uuid.UUID, error) {
	brokerID, err := validators.ParseUUIDParam(r, "brokerId")
	if err != nil {
		return uuid.Nil, err
	}
	if err := AuthorizeBroker(r, brokerID); err != nil {
		return uuid.Nil, err
	}
	return brokerID, nil
}

// AuthorizeBroker rejects callers that cannot act for brokerID.
func AuthorizeBroker(r *http.Request, brokerID uuid.UUID) error {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !claims.CanActForBroker(brokerID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to act for this broker")
	}
	return nil
}

// EffectiveBroker resolves the broker a request acts for. Broker tokens are
// pinned to their own broker; admins may name one or none.
func EffectiveBroker(r *http.Request, requested *uuid.UUID) (*uuid.UUID, error) {
	if own := middleware.BrokerIDFromContext(r.Context()); own != nil {
		if requested != nil && *requested != *own {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to act for this broker")
		}
		id := *own
		return &id, nil
	}
	if requested != nil {
		if err := AuthorizeBroker(r, *requested); err != nil {
			return nil, err
		}
	}
	return requested, nil
}
