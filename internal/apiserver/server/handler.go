package server

import (
	"net/http"

	"pairshot/api"
	"pairshot/internal/apiserver/account"
	"pairshot/internal/apiserver/admin"
	"pairshot/internal/apiserver/auth"
	"pairshot/internal/apiserver/generate"
	"pairshot/internal/apiserver/support"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//   - GET /metrics - Prometheus 指标
//   - GET /docs - API 文档页面
//   - GET /api/v1/openapi.yaml - OpenAPI 文档
//
// 认证 (Auth):
//   - POST /api/v1/auth/register - 注册（需行业码）
//   - POST /api/v1/auth/verify   - 邮箱验证码校验
//   - POST /api/v1/auth/login    - 登录
//   - POST /api/v1/auth/refresh  - 刷新令牌
//   - POST /api/v1/auth/logout   - 登出
//   - GET  /api/v1/auth/me       - 当前账户
//   - PUT  /api/v1/auth/password - 修改密码
//
// 账户 (Account):
//   - GET   /api/v1/account                 - 资料
//   - PATCH /api/v1/account                 - 更新资料
//   - PUT   /api/v1/account/specs           - 更新规格选择
//   - GET   /api/v1/account/credits         - 余额
//   - GET   /api/v1/account/credit-packages - 充值套餐目录
//   - POST  /api/v1/account/topup           - 充值
//
// 生成 (Generation):
//   - POST /api/v1/generations       - 发起生成（目标两张）
//   - GET  /api/v1/generations       - 历史记录
//   - GET  /api/v1/generations/quota - 会话额度
//
// 工单 (Support):
//   - POST /api/v1/support             - 提交工单
//   - GET  /api/v1/support             - 我的工单
//   - POST /api/v1/support/{id}/cancel - 取消工单
//
// 管理端 (Admin/Master):
//   - GET  /api/v1/admin/accounts                      - 账户列表
//   - GET  /api/v1/admin/accounts/{id}                 - 账户详情
//   - POST /api/v1/admin/accounts/{id}/credits         - 调整点数
//   - GET  /api/v1/admin/accounts/{id}/generations     - 指定账户历史
//   - GET  /api/v1/admin/accounts/{id}/actions         - 指定账户动作
//   - POST /api/v1/admin/industry-codes                - 签发行业码
//   - GET  /api/v1/admin/industry-codes                - 行业码列表
//   - POST /api/v1/admin/actions                       - 创建管理动作
//   - GET  /api/v1/admin/actions/{id}                  - 动作详情
//   - GET  /api/v1/admin/generations                   - 跨账户生成记录
//   - GET  /api/v1/admin/support                       - 工单列表
//   - POST /api/v1/admin/support/{id}/resolve          - 处理工单
//   - POST /api/v1/admin/support/{id}/reject           - 驳回工单
//
// WebSocket:
//   - GET /ws/progress - 生成进度推送
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// API 文档
	mux.HandleFunc("GET /api/v1/openapi.yaml", serveOpenAPISpec)
	mux.HandleFunc("GET /docs", serveDocsPage)

	authCfg := h.authConfig()

	// 认证接口
	authHandler := auth.NewHandler(h.store, h.tokens, h.mailer, authCfg)
	authHandler.RegisterRoutes(mux)

	// 账户接口
	accountHandler := account.NewHandler(h.store, h.ledger)
	accountHandler.RegisterRoutes(mux)

	// 生成接口
	generateHandler := generate.NewHandler(h.store, h.controller, h.history, h.sessions, h.gateway, h.cfg.Generation.DisplayPageSize)
	generateHandler.RegisterRoutes(mux)

	// 工单接口
	supportHandler := support.NewHandler(h.store, h.mailer)
	supportHandler.RegisterRoutes(mux)

	// 管理端接口
	adminHandler := admin.NewHandler(h.store)
	adminHandler.RegisterRoutes(mux)

	// 应用指标中间件到 REST API
	apiHandler := h.metrics.MetricsMiddleware(mux)

	// 应用认证中间件
	authedHandler := auth.Middleware(authCfg)(apiHandler)

	// 应用 CORS 中间件
	corsHandler := corsMiddleware(authedHandler)

	// 顶层路由：WebSocket 绕过 metrics 中间件（避免 http.Hijacker 问题），
	// 但仍经过认证中间件（握手用 ?token=）
	topMux := http.NewServeMux()
	wsMux := http.NewServeMux()
	wsMux.HandleFunc("GET /ws/progress", h.gateway.HandleWebSocket)
	topMux.Handle("/ws/", auth.Middleware(authCfg)(wsMux))
	topMux.Handle("/", corsHandler)

	return topMux
}

// serveOpenAPISpec 返回嵌入的 OpenAPI 文档
func serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	data, err := api.OpenAPIFS.ReadFile("openapi/openapi.yaml")
	if err != nil {
		http.Error(w, "spec not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}

// serveDocsPage 返回 API 文档页面（Redoc）
func serveDocsPage(w http.ResponseWriter, r *http.Request) {
	data, err := api.DocsFS.ReadFile("docs/index.html")
	if err != nil {
		http.Error(w, "docs not available", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// corsMiddleware 添加 CORS 头支持跨域请求
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
