package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradelines-backend/api/middleware"
	"github.com/angelmondragon/tradelines-backend/api/responses"
	"github.com/angelmondragon/tradelines-backend/api/validators"
	"github.com/angelmondragon/tradelines-backend/internal/brokers"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

type brokerView struct {
	ID                  uuid.UUID          `json:"id"`
	Name                string             `json:"name"`
	BusinessName        *string            `json:"business_name,omitempty"`
	Email               string             `json:"email"`
	Phone               *string            `json:"phone,omitempty"`
	Status              enums.BrokerStatus `json:"status"`
	RevenueSharePercent decimal.Decimal    `json:"revenue_share_percent"`
	MarkupType          enums.MarkupType   `json:"markup_type"`
	MarkupValue         decimal.Decimal    `json:"markup_value"`
	APIKey              string             `json:"api_key"`
	ApprovedAt          *time.Time         `json:"approved_at,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

func newBrokerView(b *models.Broker) brokerView {
	return brokerView{
		ID:                  b.ID,
		Name:                b.Name,
		BusinessName:        b.BusinessName,
		Email:               b.Email,
		Phone:               b.Phone,
		Status:              b.Status,
		RevenueSharePercent: b.RevenueSharePercent,
		MarkupType:          b.MarkupType,
		MarkupValue:         b.MarkupValue,
		APIKey:              b.APIKey,
		ApprovedAt:          b.ApprovedAt,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}

type onboardBrokerRequest struct {
	Name                string           `json:"name" validate:"required,max=200"`
	BusinessName        *string          `json:"business_name,omitempty" validate:"omitempty,max=200"`
	Email               string           `json:"email" validate:"required,email,max=254"`
	Phone               *string          `json:"phone,omitempty" validate:"omitempty,max=40"`
	RevenueSharePercent *decimal.Decimal `json:"revenue_share_percent,omitempty"`
	MarkupType          string           `json:"markup_type" validate:"omitempty,oneof=PERCENTAGE FIXED percentage fixed"`
	MarkupValue         decimal.Decimal  `json:"markup_value"`
}

type onboardBrokerResponse struct {
	Broker    brokerView `json:"broker"`
	APISecret string     `json:"api_secret"`
}

type updateBrokerRequest struct {
	Name                *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	BusinessName        *string          `json:"business_name,omitempty" validate:"omitempty,max=200"`
	Phone               *string          `json:"phone,omitempty" validate:"omitempty,max=40"`
	RevenueSharePercent *decimal.Decimal `json:"revenue_share_percent,omitempty"`
	MarkupType          *string          `json:"markup_type,omitempty"`
	MarkupValue         *decimal.Decimal `json:"markup_value,omitempty"`
	Status              *string          `json:"status,omitempty"`
}

func (req updateBrokerRequest) toInput() (brokers.UpdateInput, error) {
	input := brokers.UpdateInput{
		Name:                req.Name,
		BusinessName:        req.BusinessName,
		Phone:               req.Phone,
		RevenueSharePercent: req.RevenueSharePercent,
		MarkupValue:         req.MarkupValue,
	}
	if req.MarkupType != nil {
		mt, err := enums.ParseMarkupType(strings.ToUpper(strings.TrimSpace(*req.MarkupType)))
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid markup_type")
		}
		input.MarkupType = &mt
	}
	if req.Status != nil {
		st, err := enums.ParseBrokerStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		input.Status = &st
	}
	return input, nil
}

// AdminOnboardBroker registers a broker in PENDING status. The API secret
// appears in this response only.
func AdminOnboardBroker(svc brokers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "broker service unavailable"))
			return
		}

		var body onboardBrokerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		markupType := enums.MarkupTypePercentage
		if body.MarkupType != "" {
			markupType = enums.MarkupType(strings.ToUpper(body.MarkupType))
		}
		result, err := svc.Onboard(r.Context(), brokers.OnboardInput{
			Name:                strings.TrimSpace(body.Name),
			BusinessName:        body.BusinessName,
			Email:               strings.TrimSpace(body.Email),
			Phone:               body.Phone,
			RevenueSharePercent: body.RevenueSharePercent,
			MarkupType:          markupType,
			MarkupValue:         body.MarkupValue,
			ActorID:             middleware.ActorIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccessStatus(w, http.StatusCreated, onboardBrokerResponse{
			Broker:    newBrokerView(result.Broker),
			APISecret: result.APISecret,
		})
	}
}

// AdminGetBroker returns one broker without credentials.
func AdminGetBroker(svc brokers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "broker service unavailable"))
			return
		}
		brokerID, err := validators.ParseUUIDParam(r, "brokerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		broker, err := svc.Get(r.Context(), brokerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBrokerView(broker))
	}
}

// AdminUpdateBroker applies a partial update to a broker's profile or terms.
func AdminUpdateBroker(svc brokers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "broker service unavailable"))
			return
		}
		brokerID, err := validators.ParseUUIDParam(r, "brokerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateBrokerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		broker, err := svc.Update(r.Context(), brokerID, input, middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBrokerView(broker))
	}
}

// AdminApproveBroker activates a pending broker.
func AdminApproveBroker(svc brokers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "broker service unavailable"))
			return
		}
		brokerID, err := validators.ParseUUIDParam(r, "brokerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		broker, err := svc.Approve(r.Context(), brokerID, middleware.ActorIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBrokerView(broker))
	}
}
