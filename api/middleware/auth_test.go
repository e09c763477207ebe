package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/auth"
	"github.com/angelmondragon/crm-backend/pkg/config"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "crm", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsUserID(t *testing.T) {
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{UserID: userID})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var captured string
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured != userID.String() {
		t.Fatalf("expected user %s got %s", userID, captured)
	}
}

type stubResolver struct {
	team *models.Team
	err  error
}

func (s stubResolver) GetTeamForUser(context.Context, uuid.UUID) (*models.Team, error) {
	return s.team, s.err
}

func TestTeamContextResolvesTeam(t *testing.T) {
	team := &models.Team{ID: uuid.New(), Name: "Acme"}
	var captured *models.Team
	handler := TeamContext(stubResolver{team: team}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = TeamFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || captured != team {
		t.Fatalf("expected team in context, status=%d", resp.Code)
	}
}

func TestTeamContextWithoutTeamIsNotFound(t *testing.T) {
	handler := TeamContext(stubResolver{err: pkgerrors.New(pkgerrors.CodeNotFound, "team not found")}, nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestTeamContextRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	TeamContext(stubResolver{}, nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
