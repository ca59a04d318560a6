// Package cache 缓存层抽象接口
//
// 提供临时状态的存取能力，当前由 Redis 实现。
// 邮箱验证码与刷新令牌都是带 TTL 的临时状态，不进持久化存储。
package cache

import (
	"context"
	"time"
)

// VerificationCodeCache 邮箱验证码缓存接口
type VerificationCodeCache interface {
	// SetVerificationCode 写入验证码，覆盖同邮箱的旧码
	SetVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error
	// GetVerificationCode 读取验证码，不存在返回 ("", nil)
	GetVerificationCode(ctx context.Context, email string) (string, error)
	// DeleteVerificationCode 验证成功后删除（一次性消费）
	DeleteVerificationCode(ctx context.Context, email string) error
}

// RefreshTokenCache 刷新令牌缓存接口
//
// 刷新令牌轮换：签发时登记 jti，刷新时校验并替换，登出/重置时吊销。
type RefreshTokenCache interface {
	StoreRefreshToken(ctx context.Context, accountID, tokenID string, ttl time.Duration) error
	// ValidateRefreshToken 校验 jti 是否为该账户当前登记的令牌
	ValidateRefreshToken(ctx context.Context, accountID, tokenID string) (bool, error)
	RevokeRefreshToken(ctx context.Context, accountID string) error
}

// Cache 缓存组合接口
type Cache interface {
	VerificationCodeCache
	RefreshTokenCache
	Close() error
}
