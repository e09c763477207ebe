package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/types"
)

const requestIDHeader = "X-Request-Id"

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError maps err onto its HTTP status and the public error envelope.
// Client errors are logged at warn level, everything else at error level.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if typed.Code() != pkgerrors.CodeInternal {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:      string(typed.Code()),
			Message:   msg,
			RequestID: w.Header().Get(requestIDHeader),
		},
	}
	if meta.DetailsAllowed {
		payload.Error.Details = typed.Details()
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		fields := map[string]any{
			"error_code":  dump.Code,
			"error_chain": dump.Chain,
			"status":      meta.HTTPStatus,
		}
		if dump.PGCode != "" {
			fields["pg_code"] = dump.PGCode
			fields["pg_constraint"] = dump.PGConstraint
			fields["pg_table"] = dump.PGTable
			fields["pg_detail"] = dump.PGDetail
		}
		if dump.StripeRequestID != "" || dump.StripeCode != "" {
			fields["stripe_type"] = dump.StripeType
			fields["stripe_code"] = dump.StripeCode
			fields["stripe_request_id"] = dump.StripeRequestID
			fields["stripe_status"] = dump.StripeStatus
		}
		ctx = logg.WithFields(ctx, fields)
		if meta.HTTPStatus < http.StatusInternalServerError {
			logg.Warn(logg.WithField(ctx, "error", dump.TopMessage), "request.rejected")
		} else {
			logg.Error(ctx, "request.error", err)
		}
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
