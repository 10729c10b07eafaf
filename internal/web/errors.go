package web

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/ETL/internal/core"
	"github.com/JonMunkholm/ETL/internal/logging"
)

// ErrorResponse is the JSON body for API errors. Code is machine-readable;
// Message and Action come from the operator-facing error catalog.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs the technical error with request context and answers the
// client with the operator-facing summary from core.Describe.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := core.Describe(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}
