package gateway

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// VerifyAndParseWebhook checks the Stripe-Signature header against the
// signing secret and decodes the event envelope.
func (g *StripeGateway) VerifyAndParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, signatureError(webhook.ErrNotSigned)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.signingSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, signatureError(err)
		}
		return nil, malformedError(err)
	}
	if event.ID == "" || event.Type == "" || event.Data == nil {
		return nil, malformedError(errors.New("event is missing id, type or data"))
	}
	return &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
		Data: event.Data.Raw,
	}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// DecodeCheckoutCompletion reads a checkout.session.completed payload.
func DecodeCheckoutCompletion(event *WebhookEvent) (*CheckoutCompletion, error) {
	if event == nil || len(event.Data) == 0 {
		return nil, malformedError(errors.New("event data required"))
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data, &session); err != nil {
		return nil, malformedError(err)
	}
	completion := &CheckoutCompletion{
		SessionID:         session.ID,
		ClientReferenceID: session.ClientReferenceID,
	}
	if session.Customer != nil {
		completion.CustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		completion.SubscriptionID = session.Subscription.ID
	}
	if completion.ClientReferenceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no client reference").
			WithDetails(map[string]any{"session_id": session.ID})
	}
	return completion, nil
}

// DecodeSubscription reads a customer.subscription.* payload.
func DecodeSubscription(event *WebhookEvent) (*SubscriptionSnapshot, error) {
	if event == nil || len(event.Data) == 0 {
		return nil, malformedError(errors.New("event data required"))
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data, &sub); err != nil {
		return nil, malformedError(err)
	}
	if sub.ID == "" {
		return nil, malformedError(errors.New("subscription id missing"))
	}
	snapshot, err := subscriptionSnapshot(&sub)
	if err != nil {
		// deletion payloads may omit items; the id alone is enough there
		return &SubscriptionSnapshot{ID: sub.ID, Status: string(sub.Status)}, nil
	}
	return snapshot, nil
}
