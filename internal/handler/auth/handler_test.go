package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/dadmind/backend/internal/config"
	"github.com/zhouzirui/dadmind/backend/internal/middleware"
	authservice "github.com/zhouzirui/dadmind/backend/internal/service/auth"
)

func setupRouter() *chi.Mux {
	svc := authservice.NewService(config.AuthConfig{Secret: "test"})
	r := chi.NewRouter()
	r.Use(middleware.Identify(svc))
	New(svc).RegisterRoutes(r)
	return r
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestLoginThenMe(t *testing.T) {
	r := setupRouter()

	resp := post(r, "/auth/login", credentials{Email: "minh@example.com", Password: "pw"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var session authservice.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.Token == "" || session.User.Name != "minh" {
		t.Fatalf("unexpected session %+v", session)
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	me := httptest.NewRecorder()
	r.ServeHTTP(me, req)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", me.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	r := setupRouter()

	resp := post(r, "/auth/login", credentials{Email: "minh@example.com"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	resp = post(r, "/auth/register", credentials{Email: "minh@example.com", Password: "pw"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestMeWithoutToken(t *testing.T) {
	r := setupRouter()
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
