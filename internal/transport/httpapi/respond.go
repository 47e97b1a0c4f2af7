package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ismartsell/fulfillment/internal/core"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondError maps the domain error taxonomy onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch core.KindOf(err) {
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindValidation, core.KindBusinessRule:
		status = http.StatusBadRequest
	case core.KindUnauthorized:
		status = http.StatusForbidden
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	respondJSON(w, status, errorBody{Error: msg})
}
