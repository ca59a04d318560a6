package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"pairshot/internal/mailer"
	"pairshot/internal/shared/cache"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
)

// verificationTTL 验证码有效期
const verificationTTL = 10 * time.Minute

// Store 认证所需的存储能力
type Store interface {
	storage.AccountStore
	storage.IndustryCodeStore
}

// Handler 认证 HTTP 处理器
type Handler struct {
	store  Store
	tokens cache.Cache
	mailer mailer.Mailer
	cfg    Config
}

// NewHandler 创建认证处理器
func NewHandler(store Store, tokens cache.Cache, m mailer.Mailer, cfg Config) *Handler {
	return &Handler{store: store, tokens: tokens, mailer: m, cfg: cfg}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/verify", h.VerifyEmail)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
	mux.HandleFunc("PUT /api/v1/auth/password", h.ChangePassword)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Password     string `json:"password"`
	IndustryCode string `json:"industry_code"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type authResponse struct {
	Account      *model.Account `json:"account"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token,omitempty"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 账户注册
//
// 注册必须携带未消费的行业码，账户创建时合并行业码的
// 行业/产品/规格模板。行业码消费是条件更新：并发注册同一个码
// 只有一个会成功，落败方收到 409。
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.DisplayName == "" || req.Password == "" || req.IndustryCode == "" {
		writeError(w, http.StatusBadRequest, "email, display_name, password, industry_code are required")
		return
	}
	if !isValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	ctx := r.Context()

	// 行业码存在性预查询（条件消费在创建账户后执行）
	code, err := h.store.GetIndustryCode(ctx, req.IndustryCode)
	if err != nil {
		log.Printf("[auth.register] GetIndustryCode error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if code == nil {
		writeError(w, http.StatusBadRequest, "unknown industry code")
		return
	}
	if code.Used {
		writeError(w, http.StatusConflict, "industry code already used")
		return
	}

	if existing, err := h.store.GetAccountByEmail(ctx, req.Email); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("[auth.register] GetAccountByEmail error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth.register] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	account := &model.Account{
		ID:           generateID("acc"),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         model.AccountRoleClient,
		Status:       model.AccountStatusActive,
		IndustryCode: code.Code,
		Industry:     code.Industry,
		Products:     []string{code.Product},
		SpecTemplate: code.SpecTemplate,
		Credits:      model.DefaultCredits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("[auth.register] CreateAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	if err := h.store.ClaimIndustryCode(ctx, code.Code, account.ID, now); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// 并发注册落败：禁用刚创建的账户
			if derr := h.store.SetAccountStatus(ctx, account.ID, model.AccountStatusLocked); derr != nil {
				log.Printf("[auth.register] SetAccountStatus error: %v", derr)
			}
			writeError(w, http.StatusConflict, "industry code already used")
			return
		}
		log.Printf("[auth.register] ClaimIndustryCode error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 发送验证码，失败不阻断注册（可重发）
	vcode := NewVerificationCode()
	if err := h.tokens.SetVerificationCode(ctx, account.Email, vcode, verificationTTL); err != nil {
		log.Printf("[auth.register] SetVerificationCode error: %v", err)
	} else if err := h.mailer.SendVerificationCode(ctx, account.Email, vcode); err != nil {
		log.Printf("[auth.register] SendVerificationCode error: %v", err)
	}

	h.respondWithTokens(w, r, http.StatusCreated, account)
}

// VerifyEmail 校验邮箱验证码
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := r.Context()

	stored, err := h.tokens.GetVerificationCode(ctx, req.Email)
	if err != nil {
		log.Printf("[auth.verify] GetVerificationCode error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stored == "" || stored != req.Code {
		writeError(w, http.StatusBadRequest, "invalid or expired code")
		return
	}

	account, err := h.store.GetAccountByEmail(ctx, req.Email)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	account.EmailVerified = true
	account.UpdatedAt = time.Now()
	if err := h.store.UpdateAccount(ctx, account); err != nil {
		log.Printf("[auth.verify] UpdateAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.tokens.DeleteVerificationCode(ctx, req.Email)

	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// Login 账户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.store.GetAccountByEmail(r.Context(), req.Email)
	if err != nil || account == nil || !CheckPassword(req.Password, account.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if account.Status == model.AccountStatusLocked {
		writeError(w, http.StatusForbidden, "account is locked")
		return
	}

	h.respondWithTokens(w, r, http.StatusOK, account)
}

// Refresh 刷新访问令牌（刷新令牌轮换）
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := ParseToken(h.cfg, req.RefreshToken)
	if err != nil || claims.Type != "refresh" {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	ctx := r.Context()
	ok, err := h.tokens.ValidateRefreshToken(ctx, claims.Subject, claims.ID)
	if err != nil {
		log.Printf("[auth.refresh] ValidateRefreshToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "refresh token revoked")
		return
	}

	account, err := h.store.GetAccount(ctx, claims.Subject)
	if err != nil || account == nil {
		writeError(w, http.StatusUnauthorized, "account not found")
		return
	}
	if account.Status == model.AccountStatusLocked {
		writeError(w, http.StatusForbidden, "account is locked")
		return
	}

	h.respondWithTokens(w, r, http.StatusOK, account)
}

// Logout 登出：吊销刷新令牌
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err := h.tokens.RevokeRefreshToken(r.Context(), user.ID); err != nil {
		log.Printf("[auth.logout] RevokeRefreshToken error: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"logged_out": true})
}

// Me 当前账户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	account, err := h.store.GetAccount(r.Context(), user.ID)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ChangePassword 修改密码
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	ctx := r.Context()
	account, err := h.store.GetAccount(ctx, user.ID)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if !CheckPassword(req.OldPassword, account.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.store.UpdateAccountPassword(ctx, user.ID, hash); err != nil {
		log.Printf("[auth.password] UpdateAccountPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// 改密后吊销旧会话
	h.tokens.RevokeRefreshToken(ctx, user.ID)

	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// ============================================================================
// 内部辅助
// ============================================================================

// respondWithTokens 签发令牌对并登记刷新令牌 jti
func (h *Handler) respondWithTokens(w http.ResponseWriter, r *http.Request, status int, account *model.Account) {
	accessToken, err := GenerateAccessToken(h.cfg, account.ID, account.Email, string(account.Role))
	if err != nil {
		log.Printf("[auth] GenerateAccessToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	tokenID := generateID("jti")
	refreshToken, err := GenerateRefreshToken(h.cfg, account.ID, tokenID)
	if err != nil {
		log.Printf("[auth] GenerateRefreshToken error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.tokens.StoreRefreshToken(r.Context(), account.ID, tokenID, h.cfg.RefreshTokenTTL); err != nil {
		log.Printf("[auth] StoreRefreshToken error: %v", err)
	}

	writeJSON(w, status, authResponse{
		Account:      account,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func isValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func generateID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
