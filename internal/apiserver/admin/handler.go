// Package admin 管理端接口：账户管理、行业码签发、管理动作、跨账户视图
package admin

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
)

// Store 管理端所需的存储能力
type Store interface {
	storage.AccountStore
	storage.IndustryCodeStore
	storage.AdminActionStore
	storage.GenerationStore
}

// Handler 管理端 HTTP 处理器
type Handler struct {
	store Store
}

// NewHandler 创建管理端处理器
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册管理端路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/admin/accounts", h.ListAccounts)
	mux.HandleFunc("GET /api/v1/admin/accounts/{id}", h.GetAccount)
	mux.HandleFunc("POST /api/v1/admin/accounts/{id}/credits", h.AdjustCredits)
	mux.HandleFunc("GET /api/v1/admin/accounts/{id}/generations", h.ListAccountGenerations)

	mux.HandleFunc("POST /api/v1/admin/industry-codes", h.CreateIndustryCode)
	mux.HandleFunc("GET /api/v1/admin/industry-codes", h.ListIndustryCodes)

	mux.HandleFunc("POST /api/v1/admin/actions", h.CreateAction)
	mux.HandleFunc("GET /api/v1/admin/actions/{id}", h.GetAction)
	mux.HandleFunc("GET /api/v1/admin/accounts/{id}/actions", h.ListAccountActions)

	mux.HandleFunc("GET /api/v1/admin/generations", h.ListGenerations)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type adjustCreditsRequest struct {
	Credits int `json:"credits"` // 正数入账，负数扣减
}

type createCodeRequest struct {
	Industry     string              `json:"industry"`
	Product      string              `json:"product"`
	SpecTemplate map[string][]string `json:"spec_template"`
}

type createActionRequest struct {
	AccountID string `json:"account_id"`
	Type      string `json:"type"`
}

// ============================================================================
// 账户管理
// ============================================================================

// ListAccounts 账户列表
//
// 路由: GET /api/v1/admin/accounts?limit=50&offset=0
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}
	q := r.URL.Query()
	accounts, err := h.store.ListAccounts(r.Context(), parseIntDefault(q.Get("limit"), 50), parseIntDefault(q.Get("offset"), 0))
	if err != nil {
		log.Printf("[admin.accounts] ListAccounts error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts, "count": len(accounts)})
}

// GetAccount 账户详情
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}
	account, err := h.store.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// AdjustCredits 人工调整点数（正数入账、负数扣减）
// 扣减超过余额返回 409，余额不变
func (h *Handler) AdjustCredits(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}

	var req adjustCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Credits == 0 {
		writeError(w, http.StatusBadRequest, "credits must be non-zero")
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	var err error
	if req.Credits > 0 {
		err = h.store.AddCredits(ctx, id, model.Purchase{Credits: req.Credits, At: time.Now()})
	} else {
		err = h.store.DecrementCredits(ctx, id, -req.Credits)
	}
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "account not found")
		case errors.Is(err, storage.ErrInsufficientCredits):
			writeError(w, http.StatusConflict, "insufficient credits")
		default:
			log.Printf("[admin.credits] adjust error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to adjust credits")
		}
		return
	}

	account, err := h.store.GetAccount(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ListAccountGenerations 指定账户的生成历史
func (h *Handler) ListAccountGenerations(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	records, err := h.store.ListGenerationsByAccount(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		log.Printf("[admin.generations] ListGenerationsByAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list generations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"generations": records, "count": len(records)})
}

// ============================================================================
// 行业码
// ============================================================================

// CreateIndustryCode 签发行业码
func (h *Handler) CreateIndustryCode(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}

	var req createCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	code := &model.IndustryCode{
		Code:         newCode(),
		Industry:     req.Industry,
		Product:      req.Product,
		SpecTemplate: req.SpecTemplate,
		CreatedAt:    time.Now(),
	}
	if err := code.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateIndustryCode(r.Context(), code); err != nil {
		log.Printf("[admin.codes] CreateIndustryCode error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create industry code")
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

// ListIndustryCodes 行业码列表
func (h *Handler) ListIndustryCodes(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}
	q := r.URL.Query()
	codes, err := h.store.ListIndustryCodes(r.Context(), parseIntDefault(q.Get("limit"), 50), parseIntDefault(q.Get("offset"), 0))
	if err != nil {
		log.Printf("[admin.codes] ListIndustryCodes error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list industry codes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"codes": codes, "count": len(codes)})
}

// ============================================================================
// 管理动作
// ============================================================================

// CreateAction 创建异步管理动作（由 action-worker 消费）
func (h *Handler) CreateAction(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if !user.IsStaff() {
		writeError(w, http.StatusForbidden, "staff role required")
		return
	}

	var req createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	actionType := model.AdminActionType(req.Type)
	if !model.ValidAdminActionType(actionType) {
		writeError(w, http.StatusBadRequest, "invalid action type")
		return
	}

	ctx := r.Context()
	if target, err := h.store.GetAccount(ctx, req.AccountID); err != nil || target == nil {
		writeError(w, http.StatusNotFound, "target account not found")
		return
	}

	now := time.Now()
	action := &model.AdminAction{
		ID:          generateID("act"),
		AccountID:   req.AccountID,
		Type:        actionType,
		InitiatorID: user.ID,
		Status:      model.AdminActionStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.CreateAdminAction(ctx, action); err != nil {
		log.Printf("[admin.actions] CreateAdminAction error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create action")
		return
	}
	writeJSON(w, http.StatusAccepted, action)
}

// GetAction 动作详情（查询异步处理结果）
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}
	action, err := h.store.GetAdminAction(r.Context(), r.PathValue("id"))
	if err != nil || action == nil {
		writeError(w, http.StatusNotFound, "action not found")
		return
	}
	writeJSON(w, http.StatusOK, action)
}

// ListAccountActions 指定账户的动作历史
func (h *Handler) ListAccountActions(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}
	actions, err := h.store.ListAdminActionsByAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[admin.actions] ListAdminActionsByAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": actions, "count": len(actions)})
}

// ============================================================================
// 跨账户视图
// ============================================================================

// ListGenerations 跨账户生成记录（master 视图）
func (h *Handler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	if !requireMaster(w, r) {
		return
	}
	q := r.URL.Query()
	records, err := h.store.ListGenerations(r.Context(), parseIntDefault(q.Get("limit"), 50), parseIntDefault(q.Get("offset"), 0))
	if err != nil {
		log.Printf("[admin.generations] ListGenerations error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list generations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"generations": records, "count": len(records)})
}

// ============================================================================
// 内部辅助
// ============================================================================

// codeAlphabet 行业码字符集，去掉易混淆的 0/O/1/I
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// newCode 生成 6 位行业码
func newCode() string {
	b := make([]byte, 6)
	rand.Read(b)
	var sb strings.Builder
	for _, c := range b {
		sb.WriteByte(codeAlphabet[int(c)%len(codeAlphabet)])
	}
	return sb.String()
}

func requireMaster(w http.ResponseWriter, r *http.Request) bool {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return false
	}
	if !user.IsMaster() {
		writeError(w, http.StatusForbidden, "master role required")
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
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
