// Package generate 生成接口：发起生成级联、查询历史
package generate

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/generation"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
)

// sessionHeader 前端每次页面加载生成的新会话 ID
const sessionHeader = "X-Session-Id"

// ProgressSink 进度事件出口（WebSocket 网关实现）
type ProgressSink interface {
	Publish(accountID string, ev generation.ProgressEvent)
}

// Handler 生成 HTTP 处理器
type Handler struct {
	store      storage.AccountStore
	controller *generation.Controller
	history    *generation.History
	sessions   *generation.Sessions
	progress   ProgressSink
	pageSize   int
}

// NewHandler 创建生成处理器
// progress 可为 nil（不推送进度）
func NewHandler(store storage.AccountStore, controller *generation.Controller, history *generation.History, sessions *generation.Sessions, progress ProgressSink, pageSize int) *Handler {
	return &Handler{
		store:      store,
		controller: controller,
		history:    history,
		sessions:   sessions,
		progress:   progress,
		pageSize:   pageSize,
	}
}

// RegisterRoutes 注册生成相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/generations", h.Create)
	mux.HandleFunc("GET /api/v1/generations", h.List)
	mux.HandleFunc("GET /api/v1/generations/quota", h.GetQuota)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type createRequest struct {
	Product        string              `json:"product"`
	Templates      []string            `json:"templates"`
	SpecSelections map[string][]string `json:"spec_selections,omitempty"`
	Provider       string              `json:"provider,omitempty"` // 显式供应商偏好，覆盖账户设置
}

type createResponse struct {
	Outcome  model.GenerationOutcome `json:"outcome"`
	Record   *model.GenerationRecord `json:"record,omitempty"`
	Attempts int                     `json:"attempts"`
	Credits  int                     `json:"credits"` // 扣费后余额，-1 表示未知
	Message  string                  `json:"message"`
}

type quotaResponse struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// ============================================================================
// Handlers
// ============================================================================

// Create 发起一次生成（目标两张图像）
//
// 路由: POST /api/v1/generations
// 请求头: X-Session-Id 会话标识，用于会话级生成上限
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createRequest
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
	if account.Status == model.AccountStatusLocked {
		writeError(w, http.StatusForbidden, "account is locked")
		return
	}

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		// 无会话头时退化为按账户限流
		sessionID = account.ID
	}

	preferred := req.Provider
	if preferred == "" {
		preferred = account.PreferredProvider
	}

	var sink generation.ProgressFunc
	if h.progress != nil {
		accountID := account.ID
		sink = func(ev generation.ProgressEvent) { h.progress.Publish(accountID, ev) }
	}

	result, err := h.controller.RequestPair(ctx, generation.Request{
		Account:        account,
		Session:        h.sessions.Get(sessionID),
		Templates:      req.Templates,
		SpecSelections: req.SpecSelections,
		Product:        req.Product,
		Preferred:      preferred,
		Progress:       sink,
	})
	if err != nil {
		switch {
		case errors.Is(err, generation.ErrProductTooShort),
			errors.Is(err, generation.ErrNoTemplates):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, generation.ErrSessionCapReached):
			writeError(w, http.StatusTooManyRequests, "session generation limit reached")
		default:
			log.Printf("[generate.create] RequestPair error: %v", err)
			writeError(w, http.StatusInternalServerError, "generation failed")
		}
		return
	}

	resp := createResponse{
		Outcome:  result.Outcome,
		Record:   result.Record,
		Attempts: result.Attempts,
		Credits:  result.Balance,
	}
	switch result.Outcome {
	case model.OutcomeSuccess:
		resp.Message = "generated 2/2 images"
	case model.OutcomePartial:
		resp.Message = "generated 1/2 images, try again"
	default:
		resp.Message = "generation failed, no images produced"
	}
	if result.SaveFailed {
		resp.Message += " (error saving history)"
	}
	writeJSON(w, http.StatusOK, resp)
}

// List 生成历史，最新在前
//
// 路由: GET /api/v1/generations?limit=10
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), h.pageSize)
	records, err := h.history.List(r.Context(), user.ID, limit)
	if err != nil {
		log.Printf("[generate.list] List error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list generations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generations": records,
		"count":       len(records),
	})
}

// GetQuota 当前会话的生成额度
//
// 路由: GET /api/v1/generations/quota
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		sessionID = user.ID
	}
	c := h.sessions.Get(sessionID)
	writeJSON(w, http.StatusOK, quotaResponse{Used: c.Count(), Remaining: c.Remaining()})
}

// ============================================================================
// 内部辅助
// ============================================================================

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
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
