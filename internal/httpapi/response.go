package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/robdel12/orbitdock/internal/apperr"
)

// errorResponse mirrors go-opencode's ErrorResponse/ErrorDetail shape.
type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// writeAppError maps an apperr.Kind to the HTTP status spec.md §7 implies
// for each error kind and writes the response.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindInputMalformed:
		status = http.StatusBadRequest
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindSessionNotFound, apperr.KindApprovalNotFound:
		status = http.StatusNotFound
	case apperr.KindConnectorFailure:
		status = http.StatusBadGateway
	case apperr.KindPersistenceFailure:
		status = http.StatusInternalServerError
	case apperr.KindInternal:
		status = http.StatusInternalServerError
	}
	writeError(w, status, string(kind), err.Error())
}
