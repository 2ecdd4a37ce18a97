package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/easybewerbung/bewerbung-api/internal/api/shared"
	"github.com/easybewerbung/bewerbung-api/internal/service/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", ErrInvalidPathParameter, paramName)
	}
	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", ErrInvalidPathParameter, paramName)
	}
	return id, nil
}

// requireUser returns the authenticated user or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := shared.UserID(r.Context())
	if !ok {
		HandleAPIError(w, r, auth.ErrMissingToken, "")
		return uuid.Nil, false
	}
	return userID, true
}

// handleUserAndPathUUIDs resolves the authenticated user and the named UUID
// path parameters, writing the error response itself on failure.
func handleUserAndPathUUIDs(
	w http.ResponseWriter,
	r *http.Request,
	paramNames ...string,
) (uuid.UUID, []uuid.UUID, bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return uuid.Nil, nil, false
	}

	ids := make([]uuid.UUID, 0, len(paramNames))
	for _, name := range paramNames {
		id, err := getPathUUID(r, name)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return uuid.Nil, nil, false
		}
		ids = append(ids, id)
	}
	return userID, ids, true
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidPathParameter, name)
	}
	return v, nil
}
