// Package support 工单接口：客户提交/取消，管理端处理
package support

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/mailer"
	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
)

// Store 工单所需的存储能力
type Store interface {
	storage.SupportStore
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// Handler 工单 HTTP 处理器
type Handler struct {
	store  Store
	mailer mailer.Mailer
}

// NewHandler 创建工单处理器
func NewHandler(store Store, m mailer.Mailer) *Handler {
	return &Handler{store: store, mailer: m}
}

// RegisterRoutes 注册工单相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// 客户端
	mux.HandleFunc("POST /api/v1/support", h.Create)
	mux.HandleFunc("GET /api/v1/support", h.ListMine)
	mux.HandleFunc("POST /api/v1/support/{id}/cancel", h.Cancel)

	// 管理端
	mux.HandleFunc("GET /api/v1/admin/support", h.ListAll)
	mux.HandleFunc("POST /api/v1/admin/support/{id}/resolve", h.Resolve)
	mux.HandleFunc("POST /api/v1/admin/support/{id}/reject", h.Reject)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type createRequest struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

type respondRequest struct {
	Response string `json:"response"`
}

// ============================================================================
// 客户端 Handlers
// ============================================================================

// Create 提交工单
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
	if !model.ValidSupportCategory(model.SupportCategory(req.Category)) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ticket := &model.SupportRequest{
		ID:        generateID("sup"),
		AccountID: user.ID,
		Category:  model.SupportCategory(req.Category),
		Message:   req.Message,
		Status:    model.SupportStatusPending,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateSupportRequest(r.Context(), ticket); err != nil {
		log.Printf("[support.create] CreateSupportRequest error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create support request")
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

// ListMine 当前账户的工单
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	tickets, err := h.store.ListSupportRequestsByAccount(r.Context(), user.ID)
	if err != nil {
		log.Printf("[support.list] ListSupportRequestsByAccount error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list support requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": tickets, "count": len(tickets)})
}

// Cancel 取消自己的待处理工单
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ctx := r.Context()
	ticket, err := h.store.GetSupportRequest(ctx, r.PathValue("id"))
	if err != nil || ticket == nil {
		writeError(w, http.StatusNotFound, "support request not found")
		return
	}
	if ticket.AccountID != user.ID {
		writeError(w, http.StatusForbidden, "not your support request")
		return
	}
	if ticket.Status.IsTerminal() {
		writeError(w, http.StatusConflict, "support request already closed")
		return
	}

	if err := h.store.UpdateSupportRequest(ctx, ticket.ID, model.SupportStatusCancelled, "", nil); err != nil {
		log.Printf("[support.cancel] UpdateSupportRequest error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.SupportStatusCancelled)})
}

// ============================================================================
// 管理端 Handlers
// ============================================================================

// ListAll 管理端工单列表
//
// 路由: GET /api/v1/admin/support?status=pending&limit=50&offset=0
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	if !requireStaff(w, r) {
		return
	}
	q := r.URL.Query()
	tickets, err := h.store.ListSupportRequests(r.Context(), q.Get("status"), parseIntDefault(q.Get("limit"), 50), parseIntDefault(q.Get("offset"), 0))
	if err != nil {
		log.Printf("[support.admin.list] ListSupportRequests error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list support requests")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"requests": tickets, "count": len(tickets)})
}

// Resolve 处理工单并通知客户
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, model.SupportStatusResolved)
}

// Reject 驳回工单并通知客户
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.close(w, r, model.SupportStatusRejected)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request, status model.SupportStatus) {
	if !requireStaff(w, r) {
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Response == "" {
		writeError(w, http.StatusBadRequest, "response is required")
		return
	}

	ctx := r.Context()
	ticket, err := h.store.GetSupportRequest(ctx, r.PathValue("id"))
	if err != nil || ticket == nil {
		writeError(w, http.StatusNotFound, "support request not found")
		return
	}
	if ticket.Status.IsTerminal() {
		writeError(w, http.StatusConflict, "support request already closed")
		return
	}

	now := time.Now()
	if err := h.store.UpdateSupportRequest(ctx, ticket.ID, status, req.Response, &now); err != nil {
		log.Printf("[support.close] UpdateSupportRequest error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update support request")
		return
	}

	// 邮件通知尽力而为
	if account, err := h.store.GetAccount(ctx, ticket.AccountID); err == nil && account != nil {
		if err := h.mailer.SendSupportReply(ctx, account.Email, string(ticket.Category), req.Response); err != nil {
			log.Printf("[support.close] SendSupportReply error: %v", err)
		}
	}

	ticket.Status = status
	ticket.Response = req.Response
	ticket.ResolvedAt = &now
	writeJSON(w, http.StatusOK, ticket)
}

// ============================================================================
// 内部辅助
// ============================================================================

func requireStaff(w http.ResponseWriter, r *http.Request) bool {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return false
	}
	if !user.IsStaff() {
		writeError(w, http.StatusForbidden, "staff role required")
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
