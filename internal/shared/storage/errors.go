// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 驱动实现（mongostore）负责将底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrConflict 条件更新未命中（如行业码已被消费）
	ErrConflict = errors.New("conflict: condition not met")

	// ErrDuplicate 唯一键冲突（INSERT 重复 ID / 邮箱）
	ErrDuplicate = errors.New("duplicate: entity already exists")

	// ErrInsufficientCredits 点数不足，扣减被拒绝，余额不变
	ErrInsufficientCredits = errors.New("insufficient credits")
)
