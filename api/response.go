package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/the-lightning-land/postd/gate"
	"github.com/the-lightning-land/postd/node"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (a *Api) jsonResponse(w http.ResponseWriter, v interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		a.log.Errorf("Could not respond with JSON: %v", err)
	}
}

func (a *Api) jsonError(w http.ResponseWriter, message string, code int) {
	a.jsonResponse(w, &errorResponse{Error: message}, code)
}

// coreError maps the typed core error taxonomy onto HTTP status codes.
func (a *Api) coreError(w http.ResponseWriter, err error) {
	var authErr *node.AuthError
	var connErr *node.ConnectionError
	var upstreamErr *node.UpstreamError

	switch {
	case errors.Is(err, gate.ErrMissingProof),
		errors.Is(err, gate.ErrInvoiceMismatch),
		errors.Is(err, gate.ErrAlreadyGranted),
		errors.Is(err, node.ErrInvalidAmount),
		errors.Is(err, node.ErrInvalidHash):
		a.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, gate.ErrActionNotFound):
		a.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, gate.ErrPaymentNotSettled):
		a.jsonError(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, node.ErrSessionNotFound):
		a.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, gate.ErrNodeUnavailable):
		a.jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &authErr):
		a.jsonError(w, err.Error(), http.StatusUnauthorized)
	case errors.As(err, &connErr), errors.As(err, &upstreamErr):
		a.jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		a.log.Errorf("Unexpected error: %v", err)
		a.jsonError(w, "Something went wrong", http.StatusInternalServerError)
	}
}
