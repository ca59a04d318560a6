package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pairshot/internal/shared/cache"
)

// Redis 键格式
const (
	keyVerificationCode = "verify:code:%s"  // verify:code:{email}
	keyRefreshToken     = "auth:refresh:%s" // auth:refresh:{account_id}
)

// SetVerificationCode 写入验证码（覆盖旧码，带 TTL）
func (s *Store) SetVerificationCode(ctx context.Context, email, code string, ttl time.Duration) error {
	key := fmt.Sprintf(keyVerificationCode, email)
	if err := s.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return fmt.Errorf("set verification code: %w", err)
	}
	return nil
}

// GetVerificationCode 读取验证码，不存在或已过期返回 ("", nil)
func (s *Store) GetVerificationCode(ctx context.Context, email string) (string, error) {
	key := fmt.Sprintf(keyVerificationCode, email)
	code, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("get verification code: %w", err)
	}
	return code, nil
}

// DeleteVerificationCode 一次性消费后删除
func (s *Store) DeleteVerificationCode(ctx context.Context, email string) error {
	key := fmt.Sprintf(keyVerificationCode, email)
	return s.client.Del(ctx, key).Err()
}

// StoreRefreshToken 登记账户当前的刷新令牌 jti
func (s *Store) StoreRefreshToken(ctx context.Context, accountID, tokenID string, ttl time.Duration) error {
	key := fmt.Sprintf(keyRefreshToken, accountID)
	if err := s.client.Set(ctx, key, tokenID, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// ValidateRefreshToken 校验 jti 是否为该账户当前登记的令牌
func (s *Store) ValidateRefreshToken(ctx context.Context, accountID, tokenID string) (bool, error) {
	key := fmt.Sprintf(keyRefreshToken, accountID)
	current, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("validate refresh token: %w", err)
	}
	return current == tokenID, nil
}

// RevokeRefreshToken 吊销账户的刷新令牌
func (s *Store) RevokeRefreshToken(ctx context.Context, accountID string) error {
	key := fmt.Sprintf(keyRefreshToken, accountID)
	return s.client.Del(ctx, key).Err()
}

// 确保 Store 实现了 cache.Cache 接口
var _ cache.Cache = (*Store)(nil)
