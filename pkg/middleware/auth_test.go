package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scanhub/pkg/passhash"
)

func TestAuth_NilManagerPassesThrough(t *testing.T) {
	handler := Auth(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scans", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuth_ExemptRoute(t *testing.T) {
	manager := passhash.NewJWTManager(&passhash.JWTConfig{SecretKey: "secret", AccessTokenExpiry: time.Minute, Issuer: "scanhub"})

	handler := Auth(manager, []string{"/healthz"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	manager := passhash.NewJWTManager(&passhash.JWTConfig{SecretKey: "secret", AccessTokenExpiry: time.Minute, Issuer: "scanhub"})

	handler := Auth(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scans", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	manager := passhash.NewJWTManager(&passhash.JWTConfig{SecretKey: "secret", AccessTokenExpiry: time.Minute, Issuer: "scanhub"})
	token, err := manager.GenerateAccessToken("user-1", "alice", "operator")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	var seenUser string
	handler := Auth(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if ok {
			seenUser = claims.Username
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/scans", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if seenUser != "alice" {
		t.Errorf("seenUser = %q, want alice", seenUser)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	manager := passhash.NewJWTManager(&passhash.JWTConfig{SecretKey: "secret", AccessTokenExpiry: time.Minute, Issuer: "scanhub"})

	handler := Auth(manager, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/scans", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
