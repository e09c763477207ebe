package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	pkgstripe "github.com/angelmondragon/crm-backend/pkg/stripe"
)

const checkoutSessionPlaceholder = "session_id={CHECKOUT_SESSION_ID}"

type checkoutSessionAPI interface {
	Create(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

type subscriptionAPI interface {
	Retrieve(ctx context.Context, id string, params *stripe.SubscriptionRetrieveParams) (*stripe.Subscription, error)
	Cancel(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
}

type productAPI interface {
	Retrieve(ctx context.Context, id string, params *stripe.ProductRetrieveParams) (*stripe.Product, error)
}

type priceResolver interface {
	PriceIDFor(key enums.PlanKey) (string, error)
}

// StripeParams groups dependencies for the Stripe-backed gateway.
type StripeParams struct {
	Client  *pkgstripe.Client
	Prices  priceResolver
	Metrics *metrics.BillingMetrics
}

// StripeGateway implements Gateway with stripe-go.
type StripeGateway struct {
	sessions      checkoutSessionAPI
	subscriptions subscriptionAPI
	products      productAPI
	prices        priceResolver
	metrics       *metrics.BillingMetrics
	signingSecret string
	timeout       time.Duration
}

// NewStripeGateway builds the gateway from the shared Stripe client.
func NewStripeGateway(params StripeParams) (*StripeGateway, error) {
	if params.Client == nil || params.Client.API() == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Prices == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	api := params.Client.API()
	return &StripeGateway{
		sessions:      api.V1CheckoutSessions,
		subscriptions: api.V1Subscriptions,
		products:      api.V1Products,
		prices:        params.Prices,
		metrics:       params.Metrics,
		signingSecret: params.Client.SigningSecret(),
		timeout:       params.Client.Timeout(),
	}, nil
}

// CreateCheckoutSession opens a subscription-mode checkout for one unit of the
// price configured for params.PriceKey.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	if strings.TrimSpace(params.CustomerReference) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "customer reference is required")
	}
	priceID, err := g.prices.PriceIDFor(params.PriceKey)
	if err != nil {
		return "", err
	}

	req := &stripe.CheckoutSessionCreateParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID:  stripe.String(params.CustomerReference),
		SuccessURL:         stripe.String(successURL(params.SuccessURL)),
		CancelURL:          stripe.String(params.CancelURL),
		PaymentMethodTypes: []*string{stripe.String("card")},
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}

	var session *stripe.CheckoutSession
	err = g.call(ctx, "create_checkout_session", func(ctx context.Context) error {
		var callErr error
		session, callErr = g.sessions.Create(ctx, req)
		return callErr
	})
	if err != nil {
		return "", mapStripeError(err, "create checkout session")
	}
	if session == nil || session.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "stripe returned an empty checkout session")
	}
	return session.ID, nil
}

// RetrieveSubscription loads id. A missing subscription maps to CodeNotFound.
func (g *StripeGateway) RetrieveSubscription(ctx context.Context, id string) (*SubscriptionSnapshot, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	var sub *stripe.Subscription
	err := g.call(ctx, "retrieve_subscription", func(ctx context.Context) error {
		var callErr error
		sub, callErr = g.subscriptions.Retrieve(ctx, id, &stripe.SubscriptionRetrieveParams{})
		return callErr
	})
	if err != nil {
		return nil, mapStripeError(err, "retrieve subscription")
	}
	return subscriptionSnapshot(sub)
}

// RetrieveProduct loads the product whose name identifies the plan.
func (g *StripeGateway) RetrieveProduct(ctx context.Context, id string) (*ProductSnapshot, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var product *stripe.Product
	err := g.call(ctx, "retrieve_product", func(ctx context.Context) error {
		var callErr error
		product, callErr = g.products.Retrieve(ctx, id, &stripe.ProductRetrieveParams{})
		return callErr
	})
	if err != nil {
		return nil, mapStripeError(err, "retrieve product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &ProductSnapshot{ID: product.ID, Name: product.Name}, nil
}

// DeleteSubscription cancels id immediately. The idempotency key makes
// repeated attempts safe.
func (g *StripeGateway) DeleteSubscription(ctx context.Context, id, idempotencyKey string) error {
	if strings.TrimSpace(id) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	params := &stripe.SubscriptionCancelParams{}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	err := g.call(ctx, "delete_subscription", func(ctx context.Context) error {
		_, callErr := g.subscriptions.Cancel(ctx, id, params)
		return callErr
	})
	if err != nil {
		return mapStripeError(err, "delete subscription")
	}
	return nil
}

func (g *StripeGateway) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	timeout := g.timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(callCtx)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	g.metrics.ObserveGatewayCall(operation, time.Since(start), err)
	return err
}

func successURL(base string) string {
	if strings.Contains(base, "{CHECKOUT_SESSION_ID}") {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + checkoutSessionPlaceholder
}

func subscriptionSnapshot(sub *stripe.Subscription) (*SubscriptionSnapshot, error) {
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	snapshot := &SubscriptionSnapshot{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		snapshot.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil && item.Price.Product != nil {
			snapshot.ProductID = item.Price.Product.ID
		}
		if item.CurrentPeriodEnd > 0 {
			snapshot.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
	}
	if snapshot.ProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "subscription has no product").
			WithDetails(map[string]any{"subscription_id": sub.ID})
	}
	return snapshot, nil
}

func mapStripeError(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message+": timed out")
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message+": not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message).
			WithDetails(map[string]any{
				"provider_code":   string(stripeErr.Code),
				"provider_status": stripeErr.HTTPStatusCode,
			})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
