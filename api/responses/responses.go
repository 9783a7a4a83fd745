package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/types"
)

const requestIDHeader = "X-Request-Id"

// terseCodes never expose the caller-facing message, even on 4xx, so callers
// learn nothing about why verification failed.
var terseCodes = map[pkgerrors.Code]struct{}{
	pkgerrors.CodeSignature: {},
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError renders err as the error envelope. Untyped errors become
// INTERNAL_ERROR. Client errors log at warn and server errors at error.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	apiErr := types.APIError{
		Code:      string(typed.Code()),
		Message:   publicMessage(typed, meta),
		RequestID: w.Header().Get(requestIDHeader),
	}
	if meta.DetailsAllowed {
		apiErr.Details = typed.Details()
	}

	if logg != nil {
		logRequestError(ctx, logg, err, typed, meta)
	}
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiErr})
}

func publicMessage(typed *pkgerrors.Error, meta pkgerrors.Metadata) string {
	if _, terse := terseCodes[typed.Code()]; terse {
		return meta.PublicMessage
	}
	if meta.HTTPStatus >= http.StatusInternalServerError || typed.Message() == "" {
		return meta.PublicMessage
	}
	return typed.Message()
}

func logRequestError(ctx context.Context, logg *logger.Logger, err error, typed *pkgerrors.Error, meta pkgerrors.Metadata) {
	dump := pkgerrors.Dump(err)
	fields := map[string]any{
		"error_code":  dump.Code,
		"error_chain": dump.Chain,
		"http_status": meta.HTTPStatus,
	}
	if pg := dump.Postgres; pg != nil {
		fields["pg_code"] = pg.Code
		fields["pg_detail"] = pg.Detail
		fields["pg_message"] = pg.Message
		fields["pg_table"] = pg.Table
		fields["pg_column"] = pg.Column
		fields["pg_constraint"] = pg.Constraint
	}
	if details, ok := typed.Details().(map[string]any); ok {
		if step, ok := details["step"]; ok {
			fields["step"] = step
		}
	}
	ctx = logg.WithFields(ctx, fields)

	if meta.HTTPStatus < http.StatusInternalServerError {
		logg.Warn(logg.WithField(ctx, "error", dump.TopMessage), "request.rejected")
		return
	}
	logg.Error(ctx, "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("encode response")
	}
}
