package generation

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// Counter - 单会话生成计数器
// ============================================================================

// Counter 会话级生成计数器，带硬上限
//
// 上限独立于点数余额，是简单的防滥用阈值。
// 并发的生成请求可能同时走到检查处，因此检查与自增
// 合并为一次 CAS，避免并发请求把计数顶过上限。
type Counter struct {
	n   atomic.Int64
	cap int64
}

// NewCounter 创建计数器
func NewCounter(cap int) *Counter {
	return &Counter{cap: int64(cap)}
}

// Count 当前计数
func (c *Counter) Count() int {
	return int(c.n.Load())
}

// Remaining 剩余额度
func (c *Counter) Remaining() int {
	if r := c.cap - c.n.Load(); r > 0 {
		return int(r)
	}
	return 0
}

// TryAcquire 原子地占用一个生成名额
// 达到上限返回 false，计数不变
func (c *Counter) TryAcquire() bool {
	for {
		cur := c.n.Load()
		if cur >= c.cap {
			return false
		}
		if c.n.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// ============================================================================
// Sessions - 会话计数器注册表
// ============================================================================

// Sessions 按会话 ID 管理计数器
//
// 会话 ID 由前端在页面加载时生成并随请求头传递，
// 页面重载产生新 ID，旧计数器自然作废（惰性清理）。
type Sessions struct {
	mu       sync.Mutex
	counters map[string]*Counter
	cap      int
}

// NewSessions 创建注册表
func NewSessions(cap int) *Sessions {
	return &Sessions{
		counters: make(map[string]*Counter),
		cap:      cap,
	}
}

// Get 取得会话对应的计数器，不存在则创建
func (s *Sessions) Get(sessionID string) *Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[sessionID]
	if !ok {
		c = NewCounter(s.cap)
		s.counters[sessionID] = c
	}
	return c
}

// Reset 丢弃会话的计数器
func (s *Sessions) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, sessionID)
}

// Len 当前会话数（监控用）
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
