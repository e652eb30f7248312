package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/phishvars/store"
)

// writeStoreError maps a store error onto a response. noun names the
// entity in user-facing messages; fallback is the 500 message.
func writeStoreError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, noun, fallback string) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, noun+" not found")
	case errors.Is(err, store.ErrDuplicate):
		WriteError(w, http.StatusConflict, noun+" name already in use")
	case errors.Is(err, store.ErrInUse):
		WriteError(w, http.StatusConflict, noun+" is used by a variable")
	default:
		logger.ErrorContext(r.Context(), fallback,
			"request_id", RequestIDFromContext(r.Context()).String(), "error", err)
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// requireUser returns the authenticated user id or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	uid, ok := UserIDFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Invalid API Key")
	}
	return uid, ok
}

// requireID parses the {id} path value or writes a 400.
func requireID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}
