package subscriptions

import (
	"context"

	"github.com/angelmondragon/crm-backend/internal/gateway"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// Handles reports whether HandleEvent acts on eventType. Other events are
// acknowledged without effect.
func Handles(eventType string) bool {
	switch eventType {
	case gateway.EventCheckoutSessionCompleted,
		gateway.EventCustomerSubscriptionDeleted,
		gateway.EventCustomerSubscriptionUpdated:
		return true
	default:
		return false
	}
}

// HandleEvent dispatches a verified webhook event.
func (r *Reconciler) HandleEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	switch event.Type {
	case gateway.EventCheckoutSessionCompleted:
		completion, err := gateway.DecodeCheckoutCompletion(event)
		if err != nil {
			return err
		}
		return r.HandleCheckoutCompleted(ctx, completion)
	case gateway.EventCustomerSubscriptionDeleted:
		snapshot, err := gateway.DecodeSubscription(event)
		if err != nil {
			return err
		}
		return r.HandleSubscriptionDeleted(ctx, snapshot)
	case gateway.EventCustomerSubscriptionUpdated:
		snapshot, err := gateway.DecodeSubscription(event)
		if err != nil {
			return err
		}
		return r.HandleSubscriptionUpdated(ctx, snapshot)
	default:
		return nil
	}
}
