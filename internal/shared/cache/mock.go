// Package cache 缓存层抽象接口
//
// mock.go 提供用于测试的内存实现
package cache

import (
	"context"
	"sync"
	"time"
)

// MemCache 内存版 Cache，仅用于测试（忽略 TTL）
type MemCache struct {
	mu      sync.Mutex
	codes   map[string]string
	refresh map[string]string
}

// NewMemCache 创建内存缓存实例
func NewMemCache() *MemCache {
	return &MemCache{
		codes:   make(map[string]string),
		refresh: make(map[string]string),
	}
}

func (c *MemCache) SetVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[email] = code
	return nil
}

func (c *MemCache) GetVerificationCode(ctx context.Context, email string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email], nil
}

func (c *MemCache) DeleteVerificationCode(ctx context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.codes, email)
	return nil
}

func (c *MemCache) StoreRefreshToken(ctx context.Context, accountID, tokenID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh[accountID] = tokenID
	return nil
}

func (c *MemCache) ValidateRefreshToken(ctx context.Context, accountID, tokenID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refresh[accountID] == tokenID && tokenID != "", nil
}

func (c *MemCache) RevokeRefreshToken(ctx context.Context, accountID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.refresh, accountID)
	return nil
}

// Close 关闭缓存
func (c *MemCache) Close() error { return nil }

// 确保 MemCache 实现了 Cache 接口
var _ Cache = (*MemCache)(nil)
