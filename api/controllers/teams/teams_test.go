package teams

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/api/middleware"
	"github.com/angelmondragon/crm-backend/internal/entitlements"
	teamsvc "github.com/angelmondragon/crm-backend/internal/teams"
	"github.com/angelmondragon/crm-backend/pkg/db/models"
	"github.com/angelmondragon/crm-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

type stubTeamService struct {
	team      *models.Team
	created   string
	addedMail string
	addErr    error
}

func (s *stubTeamService) GetTeamByID(_ context.Context, id uuid.UUID) (*models.Team, error) {
	if s.team == nil || s.team.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "team not found")
	}
	return s.team, nil
}

func (s *stubTeamService) Detail(_ context.Context, team *models.Team) (*teamsvc.TeamDTO, error) {
	return &teamsvc.TeamDTO{ID: team.ID, Name: team.Name, PlanStatus: string(team.PlanStatus)}, nil
}

func (s *stubTeamService) Create(_ context.Context, name string, _ uuid.UUID) (*models.Team, error) {
	s.created = name
	s.team = &models.Team{ID: uuid.New(), Name: name, PlanStatus: enums.PlanStatusCancelled}
	return s.team, nil
}

func (s *stubTeamService) AddMember(_ context.Context, _ uuid.UUID, email string) (*models.User, error) {
	s.addedMail = email
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &models.User{ID: uuid.New(), Email: email, Username: email}, nil
}

type stubUpgrader struct {
	key   enums.PlanKey
	calls int
}

func (s *stubUpgrader) UpgradePlan(_ context.Context, _ uuid.UUID, key enums.PlanKey) (*models.Team, error) {
	s.calls++
	s.key = key
	return &models.Team{}, nil
}

type stubChecker struct {
	err error
}

func (s stubChecker) Limits(context.Context, uuid.UUID) (entitlements.Limits, error) {
	return entitlements.Limits{PlanName: "Free", MaxLeads: 10}, nil
}

func (s stubChecker) Check(context.Context, uuid.UUID, entitlements.Resource, int) error {
	return s.err
}

func withTeam(req *http.Request, team *models.Team) *http.Request {
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	if team != nil {
		ctx = middleware.WithTeam(ctx, team)
	}
	return req.WithContext(ctx)
}

func decodeTeam(t *testing.T, rec *httptest.ResponseRecorder) teamsvc.TeamDTO {
	t.Helper()
	var body struct {
		Data teamsvc.TeamDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return body.Data
}

func TestGetMyTeamRequiresTeamContext(t *testing.T) {
	rec := httptest.NewRecorder()
	GetMyTeam(&stubTeamService{}, nil)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/team/get-my-team/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestGetMyTeamReturnsDetail(t *testing.T) {
	team := &models.Team{ID: uuid.New(), Name: "Acme", PlanStatus: enums.PlanStatusActive}
	rec := httptest.NewRecorder()
	req := withTeam(httptest.NewRequest(http.MethodGet, "/api/v1/team/get-my-team/", nil), team)
	GetMyTeam(&stubTeamService{team: team}, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if dto := decodeTeam(t, rec); dto.ID != team.ID || dto.PlanStatus != "active" {
		t.Fatalf("unexpected dto %+v", dto)
	}
}

func TestCreateTeamSanitizesName(t *testing.T) {
	svc := &stubTeamService{}
	rec := httptest.NewRecorder()
	req := withTeam(httptest.NewRequest(http.MethodPost, "/api/v1/team/", strings.NewReader(`{"name":"  Acme  "}`)), nil)
	CreateTeam(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.created != "Acme" {
		t.Fatalf("expected trimmed name, got %q", svc.created)
	}
}

func TestAddMemberPropagatesConflict(t *testing.T) {
	team := &models.Team{ID: uuid.New()}
	svc := &stubTeamService{team: team, addErr: pkgerrors.New(pkgerrors.CodeConflict, "user already belongs to a team")}
	rec := httptest.NewRecorder()
	req := withTeam(httptest.NewRequest(http.MethodPost, "/api/v1/team/add-member/", strings.NewReader(`{"email":"bob@example.com"}`)), team)
	AddMember(svc, nil)(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if svc.addedMail != "bob@example.com" {
		t.Fatalf("unexpected email %q", svc.addedMail)
	}
}

func TestUpgradePlanRejectsUnknownKey(t *testing.T) {
	team := &models.Team{ID: uuid.New()}
	upgrader := &stubUpgrader{}
	rec := httptest.NewRecorder()
	req := withTeam(httptest.NewRequest(http.MethodPost, "/api/v1/team/upgrade-plan/", strings.NewReader(`{"plan":"enterprise"}`)), team)
	UpgradePlan(&stubTeamService{team: team}, upgrader, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if upgrader.calls != 0 {
		t.Fatalf("upgrade must not run for an invalid key")
	}
}

func TestUpgradePlanAssignsKey(t *testing.T) {
	team := &models.Team{ID: uuid.New(), Name: "Acme"}
	upgrader := &stubUpgrader{}
	rec := httptest.NewRecorder()
	req := withTeam(httptest.NewRequest(http.MethodPost, "/api/v1/team/upgrade-plan/", strings.NewReader(`{"plan":"bigteam"}`)), team)
	UpgradePlan(&stubTeamService{team: team}, upgrader, nil)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if upgrader.key != enums.PlanKeyBigTeam {
		t.Fatalf("expected bigteam, got %q", upgrader.key)
	}
}

func TestCheckEntitlement(t *testing.T) {
	team := &models.Team{ID: uuid.New()}
	cases := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{"allowed", "?resource=leads&count=2", nil, http.StatusOK},
		{"over limit", "?resource=leads", pkgerrors.New(pkgerrors.CodeForbidden, "plan Free allows at most 10 leads"), http.StatusForbidden},
		{"bad resource", "?resource=notes", nil, http.StatusBadRequest},
		{"bad count", "?resource=clients&count=0", nil, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := withTeam(httptest.NewRequest(http.MethodGet, "/api/v1/team/entitlements/"+tc.query, nil), team)
			CheckEntitlement(stubChecker{err: tc.err}, nil)(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}
