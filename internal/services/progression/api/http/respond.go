package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
)

type errorResponse struct {
	Error    string            `json:"error"`
	Message  string            `json:"message,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("progression api: encode response: %v", err)
	}
}

// writeError maps a domain error to its HTTP status and a structured JSON
// body. Unclassified errors become opaque 500s.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := code.HTTPStatus()

	response := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		response.Message = err.Error()
		var typed *apperrors.Error
		if errors.As(err, &typed) {
			response.Metadata = typed.Metadata
		}
	} else {
		log.Printf("progression api: internal error: %v", err)
		response.Message = "internal error"
	}

	writeJSON(w, status, response)
}
