package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// Gateway is the billing provider surface the reconciler depends on. Results
// are provider-neutral snapshots and failures are typed *pkgerrors.Error
// values.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	RetrieveSubscription(ctx context.Context, id string) (*SubscriptionSnapshot, error)
	RetrieveProduct(ctx context.Context, id string) (*ProductSnapshot, error)
	DeleteSubscription(ctx context.Context, id, idempotencyKey string) error
	VerifyAndParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutParams describes a hosted subscription checkout.
type CheckoutParams struct {
	CustomerReference string
	PriceKey          enums.PlanKey
	SuccessURL        string
	CancelURL         string
}

// SubscriptionSnapshot is the subset of a provider subscription the
// reconciler reads.
type SubscriptionSnapshot struct {
	ID               string
	CustomerID       string
	ProductID        string
	Status           string
	CurrentPeriodEnd time.Time
}

// IsLive reports whether the provider still bills the subscription.
func (s *SubscriptionSnapshot) IsLive() bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case "active", "trialing", "past_due":
		return true
	default:
		return false
	}
}

// ProductSnapshot carries the product name matched against plan names.
type ProductSnapshot struct {
	ID   string
	Name string
}

// WebhookEvent is a verified provider event.
type WebhookEvent struct {
	ID   string
	Type string
	Data json.RawMessage
}

// CheckoutCompletion is the payload of a completed checkout session.
type CheckoutCompletion struct {
	SessionID         string
	ClientReferenceID string
	CustomerID        string
	SubscriptionID    string
}

// Event types the reconciler reacts to.
const (
	EventCheckoutSessionCompleted    = "checkout.session.completed"
	EventCustomerSubscriptionDeleted = "customer.subscription.deleted"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
)

var (
	// ErrSignatureInvalid marks a webhook whose signature does not verify.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrPayloadMalformed marks a webhook body that is not a valid event.
	ErrPayloadMalformed = errors.New("webhook payload malformed")
)

func signatureError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errors.Join(ErrSignatureInvalid, err), "invalid webhook signature")
}

func malformedError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, errors.Join(ErrPayloadMalformed, err), "malformed webhook payload")
}

// CancelIdempotencyKey is the provider idempotency key used for every
// deletion attempt of subscriptionID, so retries never double-cancel.
func CancelIdempotencyKey(subscriptionID string) string {
	return "crm-cancel-" + subscriptionID
}
