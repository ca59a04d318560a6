// Package provider 定义图片生成服务适配器接口和核心数据结构
package provider

import (
	"context"
	"errors"
)

// ============================================================================
// Image - 生成结果
// ============================================================================

// Image 单次生成调用的成功结果（上传对象存储前的原始字节）
type Image struct {
	Provider    string // 适配器名称
	Data        []byte // 图片二进制数据
	ContentType string // MIME 类型，例如 image/png
}

// ============================================================================
// Adapter - 适配器接口
// ============================================================================

// Adapter 图片生成服务适配器
//
// 所有失败（超时、非 2xx、空响应体、缺少密钥）统一通过 error 返回，
// 级联控制器据此将"无图"一律视为软失败并切换下一个提供商。
type Adapter interface {
	// Name 返回适配器名称（写入生成记录的 provider 字段）
	Name() string

	// Free 是否为免费匿名服务（级联排序时免费服务始终最先尝试）
	Free() bool

	// Generate 生成一张图片
	// seed 由调用方按 seed+attempts 递增传入，用于去除重试间的相关性
	Generate(ctx context.Context, prompt string, seed int64) (*Image, error)
}

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrEmptyPayload 响应体为空
	ErrEmptyPayload = errors.New("provider: empty payload")

	// ErrMissingAPIKey API 密钥缺失或为占位值
	ErrMissingAPIKey = errors.New("provider: api key missing or placeholder")
)
