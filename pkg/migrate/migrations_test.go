package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/angelmondragon/crm-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestTeamsMigrationCarriesEntitlementColumns(t *testing.T) {
	content := readMigration(t, "*_create_users_and_teams.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS plans",
		"CREATE TABLE IF NOT EXISTS teams",
		"remote_subscription_id text",
		"remote_cancel_pending boolean NOT NULL DEFAULT false",
		"version bigint NOT NULL DEFAULT 1",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_team_members_user ON team_members (user_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_name ON plans (name)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCheckoutSessionsMigration(t *testing.T) {
	content := readMigration(t, "*_create_checkout_sessions.sql")
	if !strings.Contains(content, "idx_checkout_sessions_remote_session_id") {
		t.Fatalf("expected unique index on remote session id")
	}
}

func TestValidateDirRejectsUnbalancedStatements(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_broken.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatalf("expected unbalanced statements to fail validation")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	if err := migrate.CreateSQLMigration(dir, "Add Team Index!"); err != nil {
		t.Fatalf("create migration: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*_add_team_index.sql"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one generated migration, got %v (%v)", matches, err)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.SanitizeName("!!!"); err == nil {
		t.Fatalf("expected empty sanitized name to fail")
	}
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"bad-name.sql":               "-- +goose Up\n-- +goose Down\n",
		"20260101000000_no_down.sql": "-- +goose Up\nSELECT 1;\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write migration: %v", err)
		}
	}
	err := migrate.ValidateDir(dir)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", got, err)
	}
}

func TestDialect(t *testing.T) {
	if got := migrate.Dialect("sqlite"); got != "sqlite3" {
		t.Fatalf("expected sqlite3, got %s", got)
	}
	if got := migrate.Dialect(""); got != "postgres" {
		t.Fatalf("expected postgres default, got %s", got)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
