package helpers

import (
	"encoding/json"
	"net/http"
)

// Response: единый конверт ответа API.
type Response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
}

func JSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(Response{StatusCode: status, Message: message, Data: data})
	if err != nil {
		return
	}
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, message, nil)
}
