package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/internal/gateway"
	"github.com/angelmondragon/crm-backend/internal/teams"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
)

type teamStore interface {
	GetTeamByID(ctx context.Context, id uuid.UUID) (*models.Team, error)
	GetTeamByRemoteSubscriptionID(ctx context.Context, subscriptionID string) (*models.Team, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(team *models.Team) error) (*models.Team, error)
}

type planCatalog interface {
	LookupByKey(ctx context.Context, key enums.PlanKey) (*models.Plan, error)
	LookupByRemoteProductName(ctx context.Context, name string) (*models.Plan, error)
	Free(ctx context.Context) (*models.Plan, error)
}

type sessionStore interface {
	Create(ctx context.Context, session *models.CheckoutSession) error
	FindByRemoteID(ctx context.Context, remoteSessionID string) (*models.CheckoutSession, error)
	MarkCompleted(ctx context.Context, remoteSessionID, customerID, subscriptionID string) (bool, error)
}

// ReconcilerParams groups dependencies for the subscription reconciler.
type ReconcilerParams struct {
	Teams      teamStore
	Plans      planCatalog
	Gateway    gateway.Gateway
	Sessions   sessionStore
	SuccessURL string
	CancelURL  string
	Logger     *logger.Logger
	Now        func() time.Time
}

// Reconciler owns every transition of a team's billing state:
// no plan, checkout pending, active, cancelled (back on Free).
type Reconciler struct {
	teams      teamStore
	plans      planCatalog
	gateway    gateway.Gateway
	sessions   sessionStore
	successURL string
	cancelURL  string
	logg       *logger.Logger
	now        func() time.Time
}

// NewReconciler validates params and builds a Reconciler.
func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Teams == nil {
		return nil, fmt.Errorf("team store required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("billing gateway required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("checkout session store required")
	}
	if strings.TrimSpace(params.SuccessURL) == "" || strings.TrimSpace(params.CancelURL) == "" {
		return nil, fmt.Errorf("checkout success and cancel urls required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		teams:      params.Teams,
		plans:      params.Plans,
		gateway:    params.Gateway,
		sessions:   params.Sessions,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// StartUpgrade opens a hosted checkout for a paid plan and records it as
// pending. The team row is left untouched until the provider confirms.
func (r *Reconciler) StartUpgrade(ctx context.Context, team *models.Team, key enums.PlanKey) (string, error) {
	if team == nil {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}
	if !key.IsPaid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %q cannot be purchased", key)).
			WithDetails(map[string]any{"plan": string(key)})
	}
	if team.IsActive() && team.HasRemoteSubscription() {
		return "", pkgerrors.New(pkgerrors.CodeConflict, "team already has an active subscription; cancel it before starting a new checkout").
			WithDetails(map[string]any{"team_id": team.ID.String()})
	}

	sessionID, err := r.gateway.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		CustomerReference: team.ID.String(),
		PriceKey:          key,
		SuccessURL:        r.successURL,
		CancelURL:         r.cancelURL,
	})
	if err != nil {
		return "", err
	}

	if err := r.sessions.Create(ctx, &models.CheckoutSession{
		TeamID:          team.ID,
		RemoteSessionID: sessionID,
		PlanKey:         key,
		Status:          enums.CheckoutSessionStatusPending,
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record checkout session")
	}
	r.info(ctx, fmt.Sprintf("checkout session %s started for team %s (%s)", sessionID, team.ID, key))
	return sessionID, nil
}

// HandleCheckoutCompleted links the provider customer and subscription to the
// team named by the session's client reference. The plan stays as it is
// until ConfirmSession; replays leave the row unchanged. A subscription the
// new one replaces is deleted at the provider first so it cannot keep billing
// unreferenced.
func (r *Reconciler) HandleCheckoutCompleted(ctx context.Context, completion *gateway.CheckoutCompletion) error {
	if completion == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout completion required")
	}
	teamID, err := uuid.Parse(completion.ClientReferenceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "team not found for checkout session").
			WithDetails(map[string]any{"client_reference_id": completion.ClientReferenceID})
	}

	team, err := r.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	fresh, err := r.isFreshCompletion(ctx, completion.SessionID)
	if err != nil {
		return err
	}
	replaced := ""
	if fresh {
		if replaced, err = r.settleReplacedSubscription(ctx, team, completion.SubscriptionID); err != nil {
			return err
		}
	}

	_, err = r.teams.Mutate(ctx, teamID, func(tm *models.Team) error {
		changed := false
		if completion.CustomerID != "" && stringValue(tm.RemoteCustomerID) != completion.CustomerID {
			tm.RemoteCustomerID = stringPtr(completion.CustomerID)
			changed = true
		}
		current := stringValue(tm.RemoteSubscriptionID)
		if fresh && completion.SubscriptionID != "" && current != completion.SubscriptionID {
			if current != "" && current != replaced {
				// the previous subscription must be settled before it is replaced
				return pkgerrors.New(pkgerrors.CodeDependency, "previous subscription is still linked").
					WithDetails(map[string]any{"subscription_id": current})
			}
			tm.RemoteSubscriptionID = stringPtr(completion.SubscriptionID)
			tm.RemoteCancelPending = false
			changed = true
		}
		if !changed {
			return teams.ErrUnchanged
		}
		return nil
	})
	if err != nil {
		return err
	}

	if completion.SessionID != "" {
		if _, err := r.sessions.MarkCompleted(ctx, completion.SessionID, completion.CustomerID, completion.SubscriptionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark checkout session completed")
		}
	}
	return nil
}

// isFreshCompletion reports whether the session has not been applied yet.
// Sessions this service never recorded count as fresh.
func (r *Reconciler) isFreshCompletion(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return true, nil
	}
	session, err := r.sessions.FindByRemoteID(ctx, sessionID)
	if err != nil {
		if db.IsNotFound(err) {
			return true, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load checkout session")
	}
	return session.Status == enums.CheckoutSessionStatusPending, nil
}

// settleReplacedSubscription deletes the team's current subscription at the
// provider when a different one is about to take its place, and returns the
// id it deleted.
func (r *Reconciler) settleReplacedSubscription(ctx context.Context, team *models.Team, incoming string) (string, error) {
	if incoming == "" || !team.HasRemoteSubscription() {
		return "", nil
	}
	previous := *team.RemoteSubscriptionID
	if previous == incoming {
		return "", nil
	}
	if err := r.deleteRemote(ctx, previous); err != nil {
		return "", err
	}
	r.info(ctx, fmt.Sprintf("subscription %s replaced by %s on team %s", previous, incoming, team.ID))
	return previous, nil
}

// ConfirmSession pulls the team's subscription from the provider and, when
// its product names a known plan, activates that plan until the current
// period ends.
func (r *Reconciler) ConfirmSession(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	team, err := r.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasRemoteSubscription() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "team has no subscription to confirm").
			WithDetails(map[string]any{"team_id": teamID.String()})
	}
	if team.RemoteCancelPending {
		return nil, cancelPendingError(teamID)
	}
	subscriptionID := *team.RemoteSubscriptionID

	snapshot, err := r.gateway.RetrieveSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !snapshot.IsLive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not active").
			WithDetails(map[string]any{"status": snapshot.Status})
	}
	product, err := r.gateway.RetrieveProduct(ctx, snapshot.ProductID)
	if err != nil {
		return nil, err
	}
	plan, err := r.plans.LookupByRemoteProductName(ctx, product.Name)
	if err != nil {
		return nil, err
	}

	updated, err := r.teams.Mutate(ctx, teamID, func(tm *models.Team) error {
		if stringValue(tm.RemoteSubscriptionID) != subscriptionID {
			return pkgerrors.New(pkgerrors.CodeConflict, "subscription changed while confirming")
		}
		if tm.RemoteCancelPending {
			return cancelPendingError(teamID)
		}
		tm.PlanID = &plan.ID
		tm.PlanStatus = enums.PlanStatusActive
		tm.PlanEndDate = periodEnd(snapshot.CurrentPeriodEnd)
		if tm.RemoteCustomerID == nil && snapshot.CustomerID != "" {
			tm.RemoteCustomerID = stringPtr(snapshot.CustomerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.info(ctx, fmt.Sprintf("team %s activated on %s", teamID, plan.Name))
	return updated, nil
}

// CancelPlan moves the team to Free/cancelled first and only then deletes the
// provider subscription. When the deletion fails the local state stands, the
// team is flagged for the retry job, and the returned team comes with a
// dependency error.
func (r *Reconciler) CancelPlan(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	free, err := r.plans.Free(ctx)
	if err != nil {
		return nil, err
	}

	var subscriptionID string
	team, err := r.teams.Mutate(ctx, teamID, func(tm *models.Team) error {
		subscriptionID = stringValue(tm.RemoteSubscriptionID)
		tm.PlanID = &free.ID
		tm.PlanStatus = enums.PlanStatusCancelled
		tm.PlanEndDate = nil
		tm.RemoteCancelPending = subscriptionID != ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	if subscriptionID == "" {
		return team, nil
	}

	if err := r.deleteRemote(ctx, subscriptionID); err != nil {
		r.warn(ctx, fmt.Sprintf("remote cancel of %s failed for team %s; queued for retry", subscriptionID, teamID))
		return team, err
	}

	cleared, err := r.clearSubscription(ctx, teamID, subscriptionID)
	if err != nil {
		return team, err
	}
	return cleared, nil
}

// RetryRemoteCancel re-attempts the provider deletion for a team flagged by
// CancelPlan.
func (r *Reconciler) RetryRemoteCancel(ctx context.Context, team *models.Team) error {
	if team == nil || !team.RemoteCancelPending {
		return nil
	}
	if !team.HasRemoteSubscription() {
		_, err := r.clearSubscription(ctx, team.ID, "")
		return err
	}
	subscriptionID := *team.RemoteSubscriptionID
	if err := r.deleteRemote(ctx, subscriptionID); err != nil {
		return err
	}
	_, err := r.clearSubscription(ctx, team.ID, subscriptionID)
	return err
}

// UpgradePlan assigns the plan named by key directly, without billing.
func (r *Reconciler) UpgradePlan(ctx context.Context, teamID uuid.UUID, key enums.PlanKey) (*models.Team, error) {
	plan, err := r.plans.LookupByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.teams.Mutate(ctx, teamID, func(tm *models.Team) error {
		if tm.PlanID != nil && *tm.PlanID == plan.ID {
			return teams.ErrUnchanged
		}
		tm.PlanID = &plan.ID
		return nil
	})
}

// HandleSubscriptionDeleted returns the owning team to Free/cancelled when the
// provider ends its subscription.
func (r *Reconciler) HandleSubscriptionDeleted(ctx context.Context, snapshot *gateway.SubscriptionSnapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	team, err := r.teams.GetTeamByRemoteSubscriptionID(ctx, snapshot.ID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	_, err = r.clearSubscription(ctx, team.ID, snapshot.ID)
	return err
}

// HandleSubscriptionUpdated refreshes the end date of an active team after a
// renewal.
func (r *Reconciler) HandleSubscriptionUpdated(ctx context.Context, snapshot *gateway.SubscriptionSnapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id required")
	}
	team, err := r.teams.GetTeamByRemoteSubscriptionID(ctx, snapshot.ID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	_, err = r.teams.Mutate(ctx, team.ID, func(tm *models.Team) error {
		if !tm.IsActive() || stringValue(tm.RemoteSubscriptionID) != snapshot.ID {
			return teams.ErrUnchanged
		}
		end := periodEnd(snapshot.CurrentPeriodEnd)
		if end == nil || (tm.PlanEndDate != nil && tm.PlanEndDate.Equal(*end)) {
			return teams.ErrUnchanged
		}
		tm.PlanEndDate = end
		return nil
	})
	return err
}

// RefreshExpiredPlan re-reads the subscription of an active team whose end
// date has passed, extending it when the provider renewed and downgrading
// to Free otherwise.
func (r *Reconciler) RefreshExpiredPlan(ctx context.Context, team *models.Team) error {
	if team == nil || !team.IsActive() {
		return nil
	}
	if !team.HasRemoteSubscription() {
		return r.downgrade(ctx, team.ID, "")
	}
	subscriptionID := *team.RemoteSubscriptionID
	snapshot, err := r.gateway.RetrieveSubscription(ctx, subscriptionID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return r.downgrade(ctx, team.ID, subscriptionID)
		}
		return err
	}
	if !snapshot.IsLive() {
		return r.downgrade(ctx, team.ID, subscriptionID)
	}
	if !snapshot.CurrentPeriodEnd.After(r.now()) {
		return nil
	}
	return r.HandleSubscriptionUpdated(ctx, snapshot)
}

func (r *Reconciler) downgrade(ctx context.Context, teamID uuid.UUID, subscriptionID string) error {
	free, err := r.plans.Free(ctx)
	if err != nil {
		return err
	}
	_, err = r.teams.Mutate(ctx, teamID, func(tm *models.Team) error {
		if !tm.IsActive() || stringValue(tm.RemoteSubscriptionID) != subscriptionID {
			return teams.ErrUnchanged
		}
		tm.PlanID = &free.ID
		tm.PlanStatus = enums.PlanStatusCancelled
		tm.PlanEndDate = nil
		tm.RemoteSubscriptionID = nil
		return nil
	})
	if err == nil {
		r.info(ctx, fmt.Sprintf("team %s downgraded after plan expiry", teamID))
	}
	return err
}

func (r *Reconciler) deleteRemote(ctx context.Context, subscriptionID string) error {
	err := r.gateway.DeleteSubscription(ctx, subscriptionID, gateway.CancelIdempotencyKey(subscriptionID))
	if err != nil && pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil
	}
	return err
}

// clearSubscription unlinks subscriptionID from the team once it is gone at
// the provider. A team without a subscription cannot stay on a paid plan, so
// the row is forced back to Free/cancelled in the same write.
func (r *Reconciler) clearSubscription(ctx context.Context, teamID uuid.UUID, subscriptionID string) (*models.Team, error) {
	free, err := r.plans.Free(ctx)
	if err != nil {
		return nil, err
	}
	return r.teams.Mutate(ctx, teamID, func(tm *models.Team) error {
		if stringValue(tm.RemoteSubscriptionID) != subscriptionID {
			return teams.ErrUnchanged
		}
		if subscriptionID == "" && !tm.RemoteCancelPending {
			return teams.ErrUnchanged
		}
		tm.RemoteSubscriptionID = nil
		tm.RemoteCancelPending = false
		tm.PlanID = &free.ID
		tm.PlanStatus = enums.PlanStatusCancelled
		tm.PlanEndDate = nil
		return nil
	})
}

func cancelPendingError(teamID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "plan was cancelled; provider cancellation is still pending").
		WithDetails(map[string]any{"team_id": teamID.String()})
}

func (r *Reconciler) info(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Info(ctx, msg)
	}
}

func (r *Reconciler) warn(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Warn(ctx, msg)
	}
}

func periodEnd(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	end := t.UTC()
	return &end
}

func stringPtr(v string) *string {
	return &v
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
