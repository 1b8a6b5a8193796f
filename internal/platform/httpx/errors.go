// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-retail/meridian/internal/platform/db"
	"github.com/meridian-retail/meridian/internal/shared"
)

// RespondError maps generic errors to HTTP responses using RFC7807.
// Domain-specific errors are mapped by each module handler before
// falling through to this default; module not-found sentinels wrap
// shared.ErrNotFound so they resolve to 404 here too.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, db.ErrSerializationConflict):
		Problem(w, http.StatusConflict, "Concurrent Update", "operation lost a concurrency race, retry the request")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
