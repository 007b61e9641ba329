package middleware

import (
	"encoding/json"
	"net/http"

	"scanhub/pkg/apperror"
)

// errorBody — форма тела JSON-ответа об ошибке, единая для всего REST API.
type errorBody struct {
	Code    apperror.ErrorCode `json:"code"`
	Message string             `json:"message"`
}

// WriteError сериализует err в JSON с соответствующим HTTP-статусом.
func WriteError(w http.ResponseWriter, err error) {
	status, code, message := apperror.ToHTTP(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: message}) //nolint:errcheck // нечего делать с ошибкой записи тела
}

// WriteJSON сериализует v в JSON с заданным статусом.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // нечего делать с ошибкой записи тела
}
