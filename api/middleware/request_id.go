package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/crm-backend/pkg/logger"
)

const (
	requestIDHeader    = "X-Request-Id"
	maxRequestIDLength = 128
)

// RequestID echoes a caller supplied X-Request-Id when it is printable and
// short, and mints a uuid otherwise.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), reqID)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
