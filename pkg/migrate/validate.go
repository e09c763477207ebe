package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

var requiredAnnotations = []string{"-- +goose Up", "-- +goose Down"}

// ValidateDir checks every SQL migration in dir and reports all problems at
// once: filename shape, duplicate versions, goose annotations and balanced
// statement blocks.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	var errs error
	versions := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, ok := versions[m[1]]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
		}
		versions[m[1]] = name
		errs = multierr.Append(errs, validateFile(filepath.Join(dir, name)))
	}
	return errs
}

func validateFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %q: %w", path, err)
	}
	txt := string(b)
	name := filepath.Base(path)

	var errs error
	for _, annotation := range requiredAnnotations {
		if !strings.Contains(txt, annotation) {
			errs = multierr.Append(errs, fmt.Errorf("migration %q missing %q", name, annotation))
		}
	}
	begins := strings.Count(txt, "-- +goose StatementBegin")
	ends := strings.Count(txt, "-- +goose StatementEnd")
	if begins != ends {
		errs = multierr.Append(errs, fmt.Errorf("migration %q has %d StatementBegin but %d StatementEnd", name, begins, ends))
	}
	return errs
}
