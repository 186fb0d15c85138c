package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody is the envelope every non-2xx response carries.
type errorBody struct {
	Status       int    `json:"status"`
	Message      string `json:"message"`
	Code         string `json:"code"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	writeJSON(w, status, errorBody{Status: status, Message: message, Code: code}, logger)
}
