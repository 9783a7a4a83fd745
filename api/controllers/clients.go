package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/api/middleware"
	"github.com/angelmondragon/tradelines-backend/api/responses"
	"github.com/angelmondragon/tradelines-backend/api/validators"
	"github.com/angelmondragon/tradelines-backend/internal/clients"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

type clientView struct {
	ID            uuid.UUID  `json:"id"`
	BrokerID      *uuid.UUID `json:"broker_id,omitempty"`
	Email         string     `json:"email"`
	Name          *string    `json:"name,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	ExcludedBanks []string   `json:"excluded_banks"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newClientView(c *models.Client) clientView {
	banks := []string(c.ExcludedBanks)
	if banks == nil {
		banks = []string{}
	}
	return clientView{
		ID:            c.ID,
		BrokerID:      c.BrokerID,
		Email:         c.Email,
		Name:          c.Name,
		Phone:         c.Phone,
		ExcludedBanks: banks,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type onboardClientRequest struct {
	BrokerID      *uuid.UUID `json:"broker_id,omitempty"`
	Email         string     `json:"email" validate:"required,email,max=254"`
	Name          *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone         *string    `json:"phone,omitempty" validate:"omitempty,max=40"`
	ExcludedBanks []string   `json:"excluded_banks,omitempty" validate:"omitempty,max=100,dive,max=120"`
}

type excludedBanksRequest struct {
	ExcludedBanks []string `json:"excluded_banks" validate:"max=100,dive,max=120"`
}

// OnboardClient finds the client by email or creates it, merging any
// excluded banks into the stored list. Responds 201 only when a row was created.
func OnboardClient(svc clients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "client service unavailable"))
			return
		}

		var body onboardClientRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brokerID, err := EffectiveBroker(r, body.BrokerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetOrCreate(r.Context(), clients.OnboardInput{
			Email:         body.Email,
			Name:          body.Name,
			Phone:         body.Phone,
			ExcludedBanks: body.ExcludedBanks,
			BrokerID:      brokerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, newClientView(result.Client))
	}
}

// GetClient returns one client. Brokers only see their own clients.
func GetClient(svc clients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "client service unavailable"))
			return
		}
		clientID, err := validators.ParseUUIDParam(r, "clientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		client, err := svc.Get(r.Context(), clientID, middleware.BrokerIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newClientView(client))
	}
}

// UpdateClientExcludedBanks replaces the client's excluded bank list.
func UpdateClientExcludedBanks(svc clients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "client service unavailable"))
			return
		}
		clientID, err := validators.ParseUUIDParam(r, "clientId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body excludedBanksRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		client, err := svc.UpdateExcludedBanks(r.Context(), clientID, middleware.BrokerIDFromContext(r.Context()), body.ExcludedBanks)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newClientView(client))
	}
}
