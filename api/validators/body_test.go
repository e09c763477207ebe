package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

type planRequest struct {
	Plan string `json:"plan" validate:"required,plankey"`
}

type memberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsPlanKey(t *testing.T) {
	var req planRequest
	if err := DecodeJSONBody(jsonRequest(`{"plan":"SmallTeam"}`), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Plan != "SmallTeam" {
		t.Fatalf("unexpected plan %q", req.Plan)
	}
}

func TestDecodeJSONBodyRejectsUnknownPlanKey(t *testing.T) {
	var req planRequest
	err := DecodeJSONBody(jsonRequest(`{"plan":"enterprise"}`), &req)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok || details["plan"] == "" {
		t.Fatalf("expected plan field detail, got %v", pkgerrors.As(err).Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFieldsAndBadEmail(t *testing.T) {
	var req memberRequest
	if err := DecodeJSONBody(jsonRequest(`{"email":"a@b.co","role":"owner"}`), &req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected unknown field rejection, got %v", err)
	}
	if err := DecodeJSONBody(jsonRequest(`{"email":"nope"}`), &req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected email rejection, got %v", err)
	}
}

func TestParseQueryIntBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?count=5", nil)
	if v, err := ParseQueryInt(req, "count", 1, 1, 10); err != nil || v != 5 {
		t.Fatalf("got %d, %v", v, err)
	}
	if v, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "count", 1, 1, 10); err != nil || v != 1 {
		t.Fatalf("expected default, got %d, %v", v, err)
	}
	if _, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?count=99", nil), "count", 1, 1, 10); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestParseQueryEnum(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?resource=Leads", nil)
	if v, err := ParseQueryEnum(req, "resource", "leads", "clients"); err != nil || v != "leads" {
		t.Fatalf("got %q, %v", v, err)
	}
	if _, err := ParseQueryEnum(httptest.NewRequest(http.MethodGet, "/?resource=deals", nil), "resource", "leads", "clients"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseQueryEnum(httptest.NewRequest(http.MethodGet, "/", nil), "resource", "leads"); err == nil {
		t.Fatal("expected missing parameter error")
	}
}

func TestSanitizeString(t *testing.T) {
	cases := map[string]struct {
		in   string
		max  int
		want string
	}{
		"trims and truncates": {in: "  Acme Corp  ", max: 4, want: "Acme"},
		"collapses spaces":    {in: "Acme \t  Corp", max: 0, want: "Acme Corp"},
		"rune safe":           {in: "Ünïcödé Team", max: 7, want: "Ünïcödé"},
		"no trailing space":   {in: "Acme Corp", max: 5, want: "Acme"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := SanitizeString(tc.in, tc.max); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
