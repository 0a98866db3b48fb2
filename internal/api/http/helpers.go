package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/learnforge/learnforge-lms/internal/lmserr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine error kinds to transport statuses.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, lmserr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, lmserr.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, lmserr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, lmserr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lmserr.ErrConflict):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	http.Error(w, err.Error(), status)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, lmserr.Validationf("invalid %s", name)
	}
	return id, nil
}
