package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/angelmondragon/crm-backend/api/responses"
	"github.com/angelmondragon/crm-backend/internal/gateway"
	"github.com/angelmondragon/crm-backend/internal/subscriptions"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
)

const maxWebhookBytes = 1 << 16

type webhookVerifier interface {
	VerifyAndParseWebhook(payload []byte, signature string) (*gateway.WebhookEvent, error)
}

// EventHandler applies a verified billing event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *gateway.WebhookEvent) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// StripeWebhookParams wires the Stripe webhook endpoint.
type StripeWebhookParams struct {
	Verifier webhookVerifier
	Handler  EventHandler
	Guard    stripeWebhookGuard
	Metrics  *metrics.BillingMetrics
	Logger   *logger.Logger
}

type webhookAck struct {
	Status string `json:"status"`
}

// StripeWebhook verifies, deduplicates and applies Stripe events. Bad
// signatures and malformed payloads get 400 and change nothing; transient
// processing failures get 503 and release the event id so Stripe's retry is
// processed.
func StripeWebhook(params StripeWebhookParams) http.HandlerFunc {
	logg := params.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if params.Verifier == nil || params.Handler == nil || params.Guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			params.Metrics.IncWebhookEvent("unverified", metrics.OutcomeFailure)
			responses.WriteError(ctx, logg, w, readError(err))
			return
		}

		event, err := params.Verifier.VerifyAndParseWebhook(payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			params.Metrics.IncWebhookEvent("unverified", metrics.OutcomeFailure)
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithStripeEvent(ctx, event.ID, event.Type)
		}

		if !subscriptions.Handles(event.Type) {
			params.Metrics.IncWebhookEvent(event.Type, metrics.OutcomeIgnored)
			responses.WriteSuccess(w, webhookAck{Status: "ignored"})
			return
		}

		alreadyProcessed, err := params.Guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			params.Metrics.IncWebhookEvent(event.Type, metrics.OutcomeReplay)
			responses.WriteSuccess(w, webhookAck{Status: "duplicate"})
			return
		}

		if err := params.Handler.HandleEvent(ctx, event); err != nil {
			if delErr := params.Guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "release webhook idempotency key", delErr)
			}
			params.Metrics.IncWebhookEvent(event.Type, metrics.OutcomeFailure)
			responses.WriteError(ctx, logg, w, processingError(err))
			return
		}

		params.Metrics.IncWebhookEvent(event.Type, metrics.OutcomeSuccess)
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteSuccess(w, webhookAck{Status: "ok"})
	}
}

// processingError keeps client-side errors as they are and turns everything
// else into a 503 so the provider redelivers.
func processingError(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeDependency:
			return err
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "process webhook event")
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, errors.Join(gateway.ErrPayloadMalformed, err), "webhook payload too large").
			WithDetails(map[string]any{"limit_bytes": tooLarge.Limit})
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
}
