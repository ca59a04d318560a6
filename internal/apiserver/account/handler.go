// Package account 账户自助接口：资料、规格选择、点数与充值
package account

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/generation"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
)

// Handler 账户 HTTP 处理器
type Handler struct {
	store  storage.AccountStore
	ledger *generation.Ledger
}

// NewHandler 创建账户处理器
func NewHandler(store storage.AccountStore, ledger *generation.Ledger) *Handler {
	return &Handler{store: store, ledger: ledger}
}

// RegisterRoutes 注册账户相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/account", h.Get)
	mux.HandleFunc("PATCH /api/v1/account", h.Update)
	mux.HandleFunc("PUT /api/v1/account/specs", h.UpdateSpecSelections)
	mux.HandleFunc("GET /api/v1/account/credits", h.GetCredits)
	mux.HandleFunc("GET /api/v1/account/credit-packages", h.ListCreditPackages)
	mux.HandleFunc("POST /api/v1/account/topup", h.TopUp)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type updateRequest struct {
	DisplayName       *string `json:"display_name,omitempty"`
	Template          *string `json:"template,omitempty"`
	PreferredProvider *string `json:"preferred_provider,omitempty"`
}

type specsRequest struct {
	SpecSelections map[string][]string `json:"spec_selections"`
}

type topUpRequest struct {
	PackageID string `json:"package_id"`
}

type creditsResponse struct {
	Credits int `json:"credits"`
}

// ============================================================================
// Handlers
// ============================================================================

// Get 当前账户资料
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	account, err := h.store.GetAccount(r.Context(), user.ID)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Update 更新资料（部分更新，last-write-wins）
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	account, err := h.store.GetAccount(ctx, user.ID)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	if req.DisplayName != nil {
		if *req.DisplayName == "" {
			writeError(w, http.StatusBadRequest, "display_name cannot be empty")
			return
		}
		account.DisplayName = *req.DisplayName
	}
	if req.Template != nil {
		account.Template = *req.Template
	}
	if req.PreferredProvider != nil {
		account.PreferredProvider = *req.PreferredProvider
	}
	account.UpdatedAt = time.Now()

	if err := h.store.UpdateAccount(ctx, account); err != nil {
		log.Printf("[account.update] UpdateAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// UpdateSpecSelections 更新规格选择
// 选择必须落在行业码带来的规格模板内，且不超过 5 项 × 5 值
func (h *Handler) UpdateSpecSelections(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req specsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	account, err := h.store.GetAccount(ctx, user.ID)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	if err := account.ValidateSpecSelections(req.SpecSelections); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account.SpecSelections = req.SpecSelections
	account.UpdatedAt = time.Now()
	if err := h.store.UpdateAccount(ctx, account); err != nil {
		log.Printf("[account.specs] UpdateAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// GetCredits 当前余额（缺失时初始化为默认值并持久化）
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		log.Printf("[account.credits] Balance error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{Credits: balance})
}

// ListCreditPackages 充值套餐目录
func (h *Handler) ListCreditPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.CreditPackages)
}

// TopUp 充值：按套餐整体入账
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.ledger.TopUp(r.Context(), user.ID, req.PackageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ============================================================================
// 内部辅助
// ============================================================================

func requireUser(w http.ResponseWriter, r *http.Request) (*auth.AuthUser, bool) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	return user, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
