package controllers

import (
	"net/http"

	"github.com/angelmondragon/tradelines-backend/api/middleware"
	"github.com/angelmondragon/tradelines-backend/api/responses"
	"github.com/angelmondragon/tradelines-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/tradelines-backend/internal/checkout"
	"github.com/angelmondragon/tradelines-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

type checkoutRequest struct {
	orders.CreateOrderInput
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

// Checkout creates a pending order and a hosted payment session for it.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "card payments not configured"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brokerID, err := EffectiveBroker(r, payload.BrokerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload.BrokerID = brokerID
		payload.ActorID = middleware.ActorIDFromContext(r.Context())

		result, err := svc.Execute(r.Context(), checkoutsvc.Input{
			Order:      payload.CreateOrderInput,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
