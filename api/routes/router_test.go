package routes

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/crm-backend/internal/entitlements"
	"github.com/angelmondragon/crm-backend/internal/gateway"
	"github.com/angelmondragon/crm-backend/internal/leads"
	"github.com/angelmondragon/crm-backend/internal/plans"
	"github.com/angelmondragon/crm-backend/internal/subscriptions"
	"github.com/angelmondragon/crm-backend/internal/teams"
	"github.com/angelmondragon/crm-backend/internal/users"
	stripewebhook "github.com/angelmondragon/crm-backend/internal/webhooks/stripe"
	pkgAuth "github.com/angelmondragon/crm-backend/pkg/auth"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	"github.com/angelmondragon/crm-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/crm-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/crm-backend/pkg/stripe"
)

const webhookSecret = "whsec_router"

// scriptedGateway verifies webhooks with the real Stripe gateway and scripts
// every outbound provider call.
type scriptedGateway struct {
	*gateway.StripeGateway
	subscriptions map[string]*gateway.SubscriptionSnapshot
	products      map[string]*gateway.ProductSnapshot
	deleteErr     error
}

func (g *scriptedGateway) CreateCheckoutSession(context.Context, gateway.CheckoutParams) (string, error) {
	return "cs_router_1", nil
}

func (g *scriptedGateway) RetrieveSubscription(_ context.Context, id string) (*gateway.SubscriptionSnapshot, error) {
	if sub, ok := g.subscriptions[id]; ok {
		return sub, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
}

func (g *scriptedGateway) RetrieveProduct(_ context.Context, id string) (*gateway.ProductSnapshot, error) {
	if p, ok := g.products[id]; ok {
		return p, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (g *scriptedGateway) DeleteSubscription(context.Context, string, string) error {
	return g.deleteErr
}

type env struct {
	handler http.Handler
	conn    *gorm.DB
	gw      *scriptedGateway
	cfg     *config.Config
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(
		&models.User{}, &models.Plan{}, &models.Team{}, &models.TeamMember{},
		&models.CheckoutSession{}, &models.Lead{}, &models.Client{},
	))
	planRepo := plans.NewRepository(conn)
	for _, p := range []models.Plan{
		{Key: enums.PlanKeyFree, Name: "Free", MaxLeads: 5, MaxClients: 5},
		{Key: enums.PlanKeySmallTeam, Name: "Small Team", MaxLeads: 25, MaxClients: 25, Price: 19},
		{Key: enums.PlanKeyBigTeam, Name: "Big Team", Price: 49},
	} {
		plan := p
		require.NoError(t, planRepo.Upsert(ctx, &plan))
	}

	mr := miniredis.RunT(t)
	redisClient, err := pkgredis.New(ctx, config.RedisConfig{URL: "redis://" + mr.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "crm", ExpirationMinutes: 60},
	}
	logg := logger.New(logger.Options{ServiceName: "router-test"})

	catalog, err := plans.NewCatalog(plans.CatalogParams{Repo: planRepo, PriceIDs: map[enums.PlanKey]string{
		enums.PlanKeySmallTeam: "price_small", enums.PlanKeyBigTeam: "price_big",
	}})
	require.NoError(t, err)
	leadRepo := leads.NewRepository(conn)
	teamSvc, err := teams.NewService(teams.ServiceParams{
		Repo:  teams.NewRepository(conn),
		Users: users.NewRepository(conn),
		Leads: leadRepo,
		Plans: catalog,
		Tx:    db.NewFromGorm(conn),
	})
	require.NoError(t, err)
	ent, err := entitlements.NewService(teamSvc, catalog, leadRepo)
	require.NoError(t, err)

	stripeClient, err := pkgstripe.NewClient(ctx, config.StripeConfig{APIKey: "sk_test_router", Secret: webhookSecret}, nil)
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	billingMetrics := metrics.NewBillingMetrics(registry)
	realGateway, err := gateway.NewStripeGateway(gateway.StripeParams{Client: stripeClient, Prices: catalog, Metrics: billingMetrics})
	require.NoError(t, err)
	gw := &scriptedGateway{
		StripeGateway: realGateway,
		subscriptions: map[string]*gateway.SubscriptionSnapshot{},
		products:      map[string]*gateway.ProductSnapshot{},
	}

	reconciler, err := subscriptions.NewReconciler(subscriptions.ReconcilerParams{
		Teams:      teamSvc,
		Plans:      catalog,
		Gateway:    gw,
		Sessions:   subscriptions.NewSessionRepository(conn),
		SuccessURL: "https://app.example.com/thankyou",
		CancelURL:  "https://app.example.com/plans",
		Logger:     logg,
	})
	require.NoError(t, err)
	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, time.Hour, "")
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:         cfg,
		Logger:         logg,
		DB:             db.NewFromGorm(conn),
		Redis:          redisClient,
		Teams:          teamSvc,
		Plans:          catalog,
		Entitlements:   ent,
		Reconciler:     reconciler,
		Gateway:        gw,
		WebhookGuard:   guard,
		BillingMetrics: billingMetrics,
		Gatherer:       registry,
		PublishableKey: "pk_test_router",
	})
	return &env{handler: handler, conn: conn, gw: gw, cfg: cfg}
}

func (e *env) newUser(t *testing.T, email string) string {
	t.Helper()
	user, err := users.NewRepository(e.conn).Create(context.Background(), users.CreateUserDTO{Email: email})
	require.NoError(t, err)
	token, err := pkgAuth.MintAccessToken(e.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: user.ID})
	require.NoError(t, err)
	return token
}

func (e *env) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *env) webhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stripe/webhook/", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

type teamPayload struct {
	ID         uuid.UUID `json:"id"`
	PlanStatus string    `json:"plan_status"`
	Plan       struct {
		Name string `json:"name"`
	} `json:"plan"`
	PlanEndDate *time.Time `json:"plan_end_date"`
	Members     []struct {
		Email string `json:"email"`
	} `json:"members"`
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
}

func signedEvent(t *testing.T, id, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return payload, fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/health/live", "", "").Code)
	ready := e.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, ready.Code, ready.Body.String())
	assert.NotEmpty(t, ready.Header().Get("X-Request-Id"))

	metricsResp := e.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, metricsResp.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/v1/team/get-my-team/", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/api/v1/stripe/cancel_plan/", "", "").Code)
}

func TestUserWithoutTeamGets404(t *testing.T) {
	e := newEnv(t)
	token := e.newUser(t, "solo@example.com")
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/v1/team/get-my-team/", token, "").Code)
}

func TestCheckoutLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	owner := e.newUser(t, "owner@example.com")
	e.newUser(t, "member@example.com")

	created := e.do(t, http.MethodPost, "/api/v1/team/", owner, `{"name":"Acme"}`)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var team teamPayload
	decodeData(t, created, &team)
	assert.Equal(t, "Free", team.Plan.Name)
	assert.Equal(t, "cancelled", team.PlanStatus)

	added := e.do(t, http.MethodPost, "/api/v1/team/add-member/", owner, `{"email":"member@example.com"}`)
	require.Equal(t, http.StatusOK, added.Code, added.Body.String())
	missing := e.do(t, http.MethodPost, "/api/v1/team/add-member/", owner, `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	bad := e.do(t, http.MethodPost, "/api/v1/stripe/create-checkout-session/", owner, `{"plan":"platinum"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	checkout := e.do(t, http.MethodPost, "/api/v1/stripe/create-checkout-session/", owner, `{"plan":"smallteam"}`)
	require.Equal(t, http.StatusOK, checkout.Code, checkout.Body.String())
	var session map[string]string
	decodeData(t, checkout, &session)
	assert.Equal(t, "cs_router_1", session["sessionId"])

	forged, _ := signedEvent(t, "evt_forged", gateway.EventCheckoutSessionCompleted, map[string]any{
		"id": "cs_router_1", "object": "checkout.session", "client_reference_id": team.ID.String(),
		"customer": "cus_evil", "subscription": "sub_evil",
	})
	assert.Equal(t, http.StatusBadRequest, e.webhook(t, forged, "t=1,v1=deadbeef").Code)
	var untouched models.Team
	require.NoError(t, e.conn.First(&untouched, "id = ?", team.ID).Error)
	assert.Nil(t, untouched.RemoteCustomerID)

	payload, sig := signedEvent(t, "evt_completed", gateway.EventCheckoutSessionCompleted, map[string]any{
		"id": "cs_router_1", "object": "checkout.session", "client_reference_id": team.ID.String(),
		"customer": "cus_1", "subscription": "sub_1",
	})
	require.Equal(t, http.StatusOK, e.webhook(t, payload, sig).Code)
	require.Equal(t, http.StatusOK, e.webhook(t, payload, sig).Code)

	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	e.gw.subscriptions["sub_1"] = &gateway.SubscriptionSnapshot{ID: "sub_1", CustomerID: "cus_1", ProductID: "prod_small", Status: "active", CurrentPeriodEnd: periodEnd}
	e.gw.products["prod_small"] = &gateway.ProductSnapshot{ID: "prod_small", Name: "Small Team"}

	confirmed := e.do(t, http.MethodPost, "/api/v1/stripe/check_session/", owner, "")
	require.Equal(t, http.StatusOK, confirmed.Code, confirmed.Body.String())
	decodeData(t, confirmed, &team)
	assert.Equal(t, "Small Team", team.Plan.Name)
	assert.Equal(t, "active", team.PlanStatus)
	require.NotNil(t, team.PlanEndDate)
	assert.True(t, team.PlanEndDate.Equal(periodEnd))
	assert.Len(t, team.Members, 2)

	cancelled := e.do(t, http.MethodPost, "/api/v1/stripe/cancel_plan/", owner, "")
	require.Equal(t, http.StatusOK, cancelled.Code, cancelled.Body.String())
	decodeData(t, cancelled, &team)
	assert.Equal(t, "Free", team.Plan.Name)
	assert.Equal(t, "cancelled", team.PlanStatus)
	assert.Nil(t, team.PlanEndDate)
}

func TestUpgradePlanAndEntitlementsOverHTTP(t *testing.T) {
	e := newEnv(t)
	owner := e.newUser(t, "owner@example.com")
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/v1/team/", owner, `{"name":"Acme"}`).Code)

	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/v1/team/entitlements/?resource=leads&count=6", owner, "").Code)

	upgraded := e.do(t, http.MethodPost, "/api/v1/team/upgrade-plan/", owner, `{"plan":"bigteam"}`)
	require.Equal(t, http.StatusOK, upgraded.Code, upgraded.Body.String())
	var team teamPayload
	decodeData(t, upgraded, &team)
	assert.Equal(t, "Big Team", team.Plan.Name)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/v1/team/entitlements/?resource=leads&count=6", owner, "").Code)

	plansResp := e.do(t, http.MethodGet, "/api/v1/team/plans/", owner, "")
	require.Equal(t, http.StatusOK, plansResp.Code)
	var catalog []map[string]any
	decodeData(t, plansResp, &catalog)
	assert.Len(t, catalog, 3)
}
