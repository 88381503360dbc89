package handlers

import (
	"encoding/json"
	"net/http"
)

// SuccessResponse is the standard success envelope for API endpoints.
type SuccessResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data"`
}

// respondWithSuccess writes the success envelope with the given status.
func respondWithSuccess(w http.ResponseWriter, status int, message string, data any) {
	if data == nil {
		data = map[string]any{}
	}
	response := SuccessResponse{
		Success:    true,
		Message:    message,
		StatusCode: status,
		Data:       data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
