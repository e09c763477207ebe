package validators

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
)

// ParseQueryInt reads an optional integer query parameter bounded by [lo, hi].
func ParseQueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "query parameter must be numeric", nil)
	}
	if value < lo || value > hi {
		return 0, queryError(key, "query parameter out of range", map[string]any{"min": lo, "max": hi})
	}
	return value, nil
}

// ParseQueryEnum reads a required query parameter that must be one of allowed.
func ParseQueryEnum(r *http.Request, key string, allowed ...string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" {
		return "", queryError(key, "query parameter is required", map[string]any{"allowed": allowed})
	}
	if !slices.Contains(allowed, raw) {
		return "", queryError(key, "query parameter has an unsupported value", map[string]any{"allowed": allowed})
	}
	return raw, nil
}

func queryError(key, msg string, extra map[string]any) error {
	details := map[string]any{"field": key}
	for k, v := range extra {
		details[k] = v
	}
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(details)
}
