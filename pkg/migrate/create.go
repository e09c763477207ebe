package migrate

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var nameSanitizeRe = regexp.MustCompile(`[^a-z0-9_]+`)

var sqlTemplate = template.Must(template.New("crm.sql").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}} (version {{.Version}})
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{.CamelName}}
-- +goose StatementEnd
`))

// SanitizeName lowercases name into the snake_case form used in migration
// filenames.
func SanitizeName(name string) (string, error) {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = nameSanitizeRe.ReplaceAllString(strings.ReplaceAll(safe, " ", "_"), "_")
	safe = strings.Trim(safe, "_")
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	return safe, nil
}

// CreateSQLMigration writes a timestamped goose SQL migration into dir.
func CreateSQLMigration(dir, name string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	safe, err := SanitizeName(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", dir, err)
	}
	goose.SetSequential(false)
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, safe, "sql"); err != nil {
		return fmt.Errorf("create migration %q: %w", safe, err)
	}
	return nil
}
