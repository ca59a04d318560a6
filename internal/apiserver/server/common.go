// Package server 路由配置与核心基础设施
//
// 文件组织：
//   - common.go: Handler 定义与通用工具函数
//   - handler.go: 路由装配
//   - metrics.go: Prometheus 指标
//   - ws.go: WebSocket 进度网关
package server

import (
	"encoding/json"
	"net/http"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/config"
	"pairshot/internal/generation"
	"pairshot/internal/mailer"
	"pairshot/internal/provider"
	"pairshot/internal/shared/cache"
	"pairshot/internal/shared/storage"
	"pairshot/pkg/logging"
)

// Handler API 处理器
//
// 所有 HTTP API 的入口，负责把请求分发到各领域独立包，
// 并持有各包共享的依赖（存储、缓存、生成级联核心、邮件）。
type Handler struct {
	store  storage.PersistentStore
	tokens cache.Cache
	mailer mailer.Mailer
	cfg    *config.Config

	// 生成核心
	controller *generation.Controller
	ledger     *generation.Ledger
	history    *generation.History
	sessions   *generation.Sessions

	// 内部组件
	gateway *ProgressGateway
	metrics *Metrics
}

// Deps Handler 的外部依赖
type Deps struct {
	Store     storage.PersistentStore
	Tokens    cache.Cache
	Mailer    mailer.Mailer
	Uploader  generation.ImageUploader
	Providers []provider.Adapter // 固定回退顺序，免费供应商在首位
	Config    *config.Config
	Logger    *logging.Logger
}

// NewHandler 创建 Handler 实例并装配生成核心
func NewHandler(deps Deps) *Handler {
	gen := deps.Config.Generation
	ledger := generation.NewLedger(deps.Store, gen.CostFull, gen.CostPartial)
	history := generation.NewHistory(deps.Store, gen.RetentionCap, deps.Logger)

	h := &Handler{
		store:    deps.Store,
		tokens:   deps.Tokens,
		mailer:   deps.Mailer,
		cfg:      deps.Config,
		ledger:   ledger,
		history:  history,
		sessions: generation.NewSessions(gen.SessionCap),
		metrics:  NewMetrics("pairshot"),
	}
	h.gateway = NewProgressGateway(h.metrics)
	h.controller = generation.NewController(deps.Providers, ledger, history, deps.Uploader, deps.Logger, gen.AttemptBudget)
	return h
}

// authConfig 从应用配置构建认证配置
func (h *Handler) authConfig() auth.Config {
	return auth.Config{
		JWTSecret:       h.cfg.Auth.JWTSecret,
		AccessTokenTTL:  h.cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: h.cfg.Auth.RefreshTokenTTL,
	}
}

// writeJSON 将数据以 JSON 格式写入 HTTP 响应
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Health 健康检查接口
//
// 路由: GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
