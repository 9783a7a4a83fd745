package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/api/validators"
	internalorders "github.com/angelmondragon/tradelines-backend/internal/orders"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
)

func parseFilters(r *http.Request) (internalorders.OrderFilters, error) {
	var filters internalorders.OrderFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(strings.ToUpper(raw))
		if err != nil {
			return filters, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").WithDetails(map[string]any{"field": "status"})
		}
		filters.Status = &status
	}

	from, err := validators.ParseQueryDate(r, "date_from")
	if err != nil {
		return filters, err
	}
	to, err := validators.ParseQueryDate(r, "date_to")
	if err != nil {
		return filters, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "date_to must not precede date_from")
	}
	filters.DateFrom = from
	filters.DateTo = to
	return filters, nil
}

func parseUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
