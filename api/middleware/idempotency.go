package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/crm-backend/api/responses"
	pkgerrors "github.com/angelmondragon/crm-backend/pkg/errors"
	"github.com/angelmondragon/crm-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/crm-backend/pkg/redis"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	idempotencyReplayHdr  = "Idempotent-Replayed"
	DefaultIdempotencyTTL = 24 * time.Hour
)

type idempotencyRecord struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type,omitempty"`
	RequestHash string `json:"request_hash"`
}

// Idempotent replays the stored response of a request carrying a previously
// seen Idempotency-Key. Requests without the header pass through. Only 2xx
// responses are stored so failed attempts can be retried with the same key.
func Idempotent(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempotencyKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.IdempotencyKey(idempotencyScope(r), idempotencyKey)

			stored, getErr := store.Get(r.Context(), key)
			if getErr != nil && !errors.Is(getErr, pkgredis.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, getErr, "check idempotency"))
				return
			}
			if stored != "" {
				var record idempotencyRecord
				if err := json.Unmarshal([]byte(stored), &record); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
					return
				}
				if record.RequestHash != requestHash {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
					return
				}
				writeStoredResponse(w, &record)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			if status < 200 || status >= 300 {
				return
			}
			payload, err := json.Marshal(idempotencyRecord{
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				ContentType: rec.Header().Get("Content-Type"),
				RequestHash: requestHash,
			})
			if err != nil {
				logError(r.Context(), logg, "marshal idempotency record", err)
				return
			}
			if _, err := store.SetNX(r.Context(), key, string(payload), ttl); err != nil {
				logError(r.Context(), logg, "persist idempotency record", err)
			}
		})
	}
}

func idempotencyScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func writeStoredResponse(w http.ResponseWriter, record *idempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(idempotencyReplayHdr, "true")
	w.WriteHeader(record.Status)
	if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(decoded)
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
