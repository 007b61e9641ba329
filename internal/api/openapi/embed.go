// Package openapi встраивает спецификацию OpenAPI REST-поверхности Scan Hub.
package openapi

import (
	_ "embed"
	"errors"
	"net/http"
)

//go:embed api.swagger.json
var specBytes []byte

// ErrEmptySpec возвращается, если встроенная спецификация пуста.
var ErrEmptySpec = errors.New("openapi: embedded specification is empty")

// GetSpec возвращает сырые байты спецификации OpenAPI 3.
func GetSpec() ([]byte, error) {
	if len(specBytes) == 0 {
		return nil, ErrEmptySpec
	}
	return specBytes, nil
}

// MustGetSpec возвращает спецификацию или паникует при ошибке.
func MustGetSpec() []byte {
	spec, err := GetSpec()
	if err != nil {
		panic(err)
	}
	return spec
}

// Handler отдаёт встроенную спецификацию как JSON.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		spec, err := GetSpec()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(spec)
	})
}
