package server

import (
	"encoding/json"
	"net/http"

	"github.com/dasmlab/tolk/pkg/translate"
)

// errorResponse is the body of client and routing errors.
type errorResponse struct {
	Error string `json:"error"`
}

// failureResponse is the body of every gateway failure.
type failureResponse struct {
	Error  string          `json:"error"`
	Detail string          `json:"detail,omitempty"`
	Status int             `json:"status,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

func newFailureResponse(f *translate.Failure) failureResponse {
	return failureResponse{
		Error:  f.Message,
		Detail: f.Detail,
		Status: f.Status,
		Raw:    f.Raw,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeRawJSON(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
