package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vidhub/apiserver/internal/logging"
	"github.com/vidhub/apiserver/internal/services"
)

// ApiResponse is the JSON envelope returned by every endpoint.
type ApiResponse struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, ApiResponse{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ApiResponse{StatusCode: status, Message: message})
}

// writeServiceError maps a service error to the envelope. Causes are logged,
// never returned.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.StatusCode(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "err", err)
	}
	writeError(w, status, services.Message(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(dst)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
