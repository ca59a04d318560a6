package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/config"
	"pairshot/internal/mailer"
	"pairshot/internal/provider"
	"pairshot/internal/shared/cache"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
	"pairshot/pkg/logging"
)

type stubAdapter struct{}

func (stubAdapter) Name() string { return "stub" }
func (stubAdapter) Free() bool   { return true }
func (stubAdapter) Generate(ctx context.Context, prompt string, seed int64) (*provider.Image, error) {
	return &provider.Image{Data: []byte{0x89, 0x50}, ContentType: "image/png"}, nil
}

type stubUploader struct{}

func (stubUploader) UploadImage(ctx context.Context, accountID, generationID string, index int, data []byte, contentType string) (string, error) {
	return "https://cdn.example.com/" + generationID, nil
}

// promauto 注册在全局 registry，Handler 只能创建一次
var (
	routerOnce  sync.Once
	testRouter  http.Handler
	testStore   *storage.MemStore
	testAuthCfg auth.Config
)

func router(t *testing.T) http.Handler {
	t.Helper()
	routerOnce.Do(func() {
		cfg := &config.Config{
			Auth: config.AuthConfig{
				JWTSecret:       "router-test-secret",
				AccessTokenTTL:  time.Minute,
				RefreshTokenTTL: time.Hour,
			},
			Generation: config.GenerationConfig{
				SessionCap:      20,
				AttemptBudget:   10,
				RetentionCap:    20,
				CostFull:        2,
				CostPartial:     1,
				DisplayPageSize: 10,
			},
		}
		testStore = storage.NewMemStore()
		testAuthCfg = auth.Config{
			JWTSecret:       cfg.Auth.JWTSecret,
			AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
			RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		}
		h := NewHandler(Deps{
			Store:     testStore,
			Tokens:    cache.NewMemCache(),
			Mailer:    mailer.NewNoopMailer(),
			Uploader:  stubUploader{},
			Providers: []provider.Adapter{stubAdapter{}},
			Config:    cfg,
			Logger:    logging.Default("router-test"),
		})
		testRouter = h.Router()
	})
	return testRouter
}

func TestRouter(t *testing.T) {
	r := router(t)

	t.Run("health is public", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("health: expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "ok") {
			t.Errorf("health body = %q", w.Body.String())
		}
	})

	t.Run("metrics is public", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Errorf("metrics: expected 200, got %d", w.Code)
		}
	})

	t.Run("openapi spec is public", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/openapi.yaml", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("openapi: expected 200, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "openapi: 3.0.3") {
			t.Error("spec body missing openapi version")
		}
	})

	t.Run("docs page is public", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/docs", nil))
		if w.Code != http.StatusOK {
			t.Errorf("docs: expected 200, got %d", w.Code)
		}
	})

	t.Run("protected route without token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/account", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})

	t.Run("protected route with token", func(t *testing.T) {
		testStore.Accounts["acc-r1"] = &model.Account{
			ID:        "acc-r1",
			Email:     "router@example.com",
			Role:      model.AccountRoleClient,
			Status:    model.AccountStatusActive,
			Credits:   20,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		token, err := auth.GenerateAccessToken(testAuthCfg, "acc-r1", "router@example.com", "client")
		if err != nil {
			t.Fatalf("GenerateAccessToken failed: %v", err)
		}
		req := httptest.NewRequest("GET", "/api/v1/account", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), "router@example.com") {
			t.Errorf("body missing account email: %s", w.Body.String())
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/v1/account", nil))
		if w.Code != http.StatusOK {
			t.Errorf("preflight: expected 200, got %d", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing CORS origin header")
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		token, _ := auth.GenerateAccessToken(testAuthCfg, "acc-r1", "router@example.com", "client")
		req := httptest.NewRequest("GET", "/api/v1/nope", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/admin/accounts/acc-4f2a1b9c3d/credits": "/api/v1/admin/accounts/{id}/credits",
		"/api/v1/generations":                           "/api/v1/generations",
		"/health":                                       "/health",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
