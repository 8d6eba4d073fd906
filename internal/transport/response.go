package transport

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse keeps the "detail" key the admin frontend reads.
type ErrorResponse struct {
	Detail  string            `json:"detail"`
	Details map[string]string `json:"details,omitempty"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string, details map[string]string) {
	WriteJSON(w, status, ErrorResponse{
		Detail:  message,
		Details: details,
	})
}

func WriteSuccess(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: message})
}
