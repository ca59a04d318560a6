// Package server WebSocket 进度网关
//
// 生成级联是严格串行的慢路径（最坏情况为各超时之和），
// 前端通过 WebSocket 订阅进度事件而不是轮询。
package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pairshot/internal/apiserver/auth"
	"pairshot/internal/generation"
)

// upgrader WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	// sendQueueSize 每连接发送队列长度，队列满时事件丢弃
	sendQueueSize = 32

	wsWriteTimeout = 10 * time.Second
)

// wsMessage 推送消息格式
type wsMessage struct {
	Type string                   `json:"type"` // "progress" | "pong"
	Data generation.ProgressEvent `json:"data,omitempty"`
}

// wsClient 单个连接：所有写入经由 send 队列汇入 writePump，
// gorilla/websocket 不允许并发写同一连接
type wsClient struct {
	conn *websocket.Conn
	send chan wsMessage
}

// ProgressGateway 按账户索引的 WebSocket 连接管理器
//
// 一个账户可以开多个标签页，事件广播到该账户的所有连接。
type ProgressGateway struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]bool
	metrics *Metrics
}

// NewProgressGateway 创建进度网关
func NewProgressGateway(metrics *Metrics) *ProgressGateway {
	return &ProgressGateway{
		clients: make(map[string]map[*wsClient]bool),
		metrics: metrics,
	}
}

// Publish 把进度事件推送给账户的所有连接
//
// 只向每个连接的发送队列投递，实际写入在 writePump 中串行完成。
// 没有订阅者时静默丢弃；队列满（慢客户端）时丢弃该连接的事件。
func (g *ProgressGateway) Publish(accountID string, ev generation.ProgressEvent) {
	msg := wsMessage{Type: "progress", Data: ev}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for client := range g.clients[accountID] {
		select {
		case client.send <- msg:
		default:
			log.Printf("[ws] send queue full, dropping event for %s", accountID)
		}
	}
}

// HandleWebSocket 处理进度订阅连接
//
// 路由: GET /ws/progress
// 认证：中间件已注入 AuthUser（握手时通过 ?token= 传递）
//
// 客户端消息：{"type": "ping"} -> 响应 {"type": "pong"}
func (g *ProgressGateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	client := &wsClient{conn: conn, send: make(chan wsMessage, sendQueueSize)}
	g.addClient(user.ID, client)
	if g.metrics != nil {
		g.metrics.WSConnectionsActive.Inc()
		defer g.metrics.WSConnectionsActive.Dec()
	}

	done := make(chan struct{})
	go g.writePump(client, done)

	// 读循环：处理心跳，连接断开时返回。
	// pong 也走发送队列，连接上只有 writePump 一个写者。
	for {
		var msg map[string]string
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg["type"] == "ping" {
			select {
			case client.send <- wsMessage{Type: "pong"}:
			default:
			}
		}
	}

	// 先摘除订阅再关队列：removeClient 返回后不会再有 Publish 投递
	g.removeClient(user.ID, client)
	close(client.send)
	<-done
}

// writePump 串行消费发送队列写入连接，队列关闭后退出
func (g *ProgressGateway) writePump(client *wsClient, done chan<- struct{}) {
	defer close(done)
	for msg := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteJSON(msg); err != nil {
			log.Printf("[ws] write error: %v", err)
			// 写失败后继续排空队列，避免阻塞 Publish 侧
			continue
		}
		if g.metrics != nil {
			g.metrics.WSMessagesTotal.WithLabelValues("out", msg.Type).Inc()
		}
	}
}

func (g *ProgressGateway) addClient(accountID string, client *wsClient) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.clients[accountID] == nil {
		g.clients[accountID] = make(map[*wsClient]bool)
	}
	g.clients[accountID][client] = true
}

func (g *ProgressGateway) removeClient(accountID string, client *wsClient) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients[accountID], client)
	if len(g.clients[accountID]) == 0 {
		delete(g.clients, accountID)
	}
}
