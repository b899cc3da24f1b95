package responses

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/dealdesk/dealdesk-backend/pkg/errors"
	"github.com/dealdesk/dealdesk-backend/pkg/logger"
	"github.com/dealdesk/dealdesk-backend/pkg/types"
)

func WriteSuccess(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, data any) {
	WriteSuccessStatus(ctx, w, logg, http.StatusOK, data)
}

func WriteSuccessStatus(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, status int, data any) {
	writeJSON(ctx, w, logg, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps a service error to the HTTP envelope. Client-facing codes
// pass the service message through; everything else gets the generic public
// message for its code.
func WriteError(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, err error) {
	code := pkgerrors.CodeInternal
	message := ""
	var details any

	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
		message = typed.Message()
		details = typed.Details()
	}

	meta := pkgerrors.MetadataFor(code)

	switch code {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeLockViolation,
		pkgerrors.CodeIdempotency:
		if message == "" {
			message = meta.PublicMessage
		}
	default:
		message = meta.PublicMessage
	}

	if !meta.DetailsAllowed {
		details = nil
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = logg.WithFields(ctx, map[string]any{
			"error_code":    code,
			"http_status":   meta.HTTPStatus,
			"error_dump":    dump,
			"error_message": dump.TopMessage,
		})
		if meta.HTTPStatus >= http.StatusInternalServerError {
			logg.Error(ctx, "request failed", err)
		} else {
			logg.Warn(ctx, "request rejected")
		}
	}

	writeJSON(ctx, w, logg, meta.HTTPStatus, types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(code),
			Message: message,
			Details: details,
		},
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logg != nil {
		logg.Error(ctx, "writing response body", err)
	}
}
