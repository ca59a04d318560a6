package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIsPublicRoute(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		// 公开路由
		{"register", "/api/v1/auth/register", true},
		{"login", "/api/v1/auth/login", true},
		{"refresh", "/api/v1/auth/refresh", true},
		{"verify", "/api/v1/auth/verify", true},
		{"health", "/health", true},
		{"metrics", "/metrics", true},
		{"docs", "/docs", true},
		{"openapi", "/api/v1/openapi.yaml", true},

		// 需要 JWT 的路由
		{"me", "/api/v1/auth/me", false},
		{"logout", "/api/v1/auth/logout", false},
		{"account", "/api/v1/account", false},
		{"generations", "/api/v1/generations", false},
		{"admin accounts", "/api/v1/admin/accounts", false},
		{"ws progress", "/ws/progress", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isPublicRoute(tt.path)
			if got != tt.expected {
				t.Errorf("isPublicRoute(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func testConfig() Config {
	return Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

// echoUser 把认证账户 ID 写回响应，便于断言中间件注入
func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetAuthUser(r.Context())
		if user == nil {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(user.ID))
	})
}

func TestMiddleware_ValidToken(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateAccessToken(cfg, "acc-1", "a@b.com", "client")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	handler := Middleware(cfg)(echoUser())
	req := httptest.NewRequest("GET", "/api/v1/account", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "acc-1" {
		t.Errorf("expected acc-1 in context, got %q", w.Body.String())
	}
}

func TestMiddleware_MissingToken(t *testing.T) {
	handler := Middleware(testConfig())(echoUser())
	req := httptest.NewRequest("GET", "/api/v1/account", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	handler := Middleware(testConfig())(echoUser())
	req := httptest.NewRequest("GET", "/api/v1/account", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_RefreshTokenRejected(t *testing.T) {
	// 刷新令牌不能当访问令牌用
	cfg := testConfig()
	token, err := GenerateRefreshToken(cfg, "acc-1", "jti-1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	handler := Middleware(cfg)(echoUser())
	req := httptest.NewRequest("GET", "/api/v1/account", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_WSQueryToken(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateAccessToken(cfg, "acc-ws", "a@b.com", "client")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	handler := Middleware(cfg)(echoUser())
	req := httptest.NewRequest("GET", "/ws/progress?token="+token, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "acc-ws" {
		t.Errorf("expected acc-ws in context, got %q", w.Body.String())
	}
}

func TestMiddleware_QueryTokenOnlyForWS(t *testing.T) {
	// REST 路由不接受 query token
	cfg := testConfig()
	token, _ := GenerateAccessToken(cfg, "acc-1", "a@b.com", "client")

	handler := Middleware(cfg)(echoUser())
	req := httptest.NewRequest("GET", "/api/v1/account?token="+token, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_DisabledPassesThrough(t *testing.T) {
	handler := Middleware(Config{})(echoUser())
	req := httptest.NewRequest("GET", "/api/v1/account", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "anonymous" {
		t.Errorf("expected anonymous, got %q", w.Body.String())
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword("s3cret-pw", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()
	token, err := GenerateAccessToken(cfg, "acc-9", "x@y.com", "master")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	claims, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "acc-9" || claims.Email != "x@y.com" || claims.Role != "master" || claims.Type != "access" {
		t.Errorf("unexpected claims: %+v", claims)
	}

	// 错误密钥必须拒绝
	bad := cfg
	bad.JWTSecret = "other-secret"
	if _, err := ParseToken(bad, token); err == nil {
		t.Error("token accepted with wrong secret")
	}
}
