// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/pdiddy/mdconvert/pkg/types"
)

// ErrorBody is the JSON error object returned to clients.
type ErrorBody struct {
	Error    string          `json:"error"`
	Details  string          `json:"details,omitempty"`
	Attempts []types.Attempt `json:"attempts,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message}.
func WriteError(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, ErrorBody{Error: message})
}
