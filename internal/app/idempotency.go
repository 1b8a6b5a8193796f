package app

import (
	"errors"
	"net/http"

	"github.com/meridian-retail/meridian/internal/platform/httpx"
	"github.com/meridian-retail/meridian/internal/shared"
)

// HeaderIdempotencyKey carries the client-chosen request key.
const HeaderIdempotencyKey = "Idempotency-Key"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// IdempotencyMiddleware rejects replays of mutating requests that carry an
// Idempotency-Key header. A key is released again when the request fails, so
// clients can retry errors with the same key. Requests without the header
// pass through.
func IdempotencyMiddleware(store *shared.IdempotencyStore, module string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if err := store.CheckAndInsert(r.Context(), key, module); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					httpx.Problem(w, http.StatusConflict, "Duplicate Request", "request with this idempotency key was already processed")
					return
				}
				httpx.RespondError(w, err)
				return
			}
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= 400 {
				_ = store.Delete(r.Context(), key)
			}
		})
	}
}
