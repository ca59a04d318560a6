// Package model 定义核心数据模型
//
// generation.go 包含生成记录相关的数据模型定义：
//   - GenerationRecord：一次生成动作的持久化结果
//   - GeneratedImage：单张图像（供应商 + 定位符）
//   - GenerationOutcome：生成结果分类
package model

import "time"

// ============================================================================
// GenerationOutcome - 生成结果分类
// ============================================================================

// GenerationOutcome 一次生成请求的整体结果
//
// 状态机：Idle → BuildingPrompt → Attempting → (Success | PartialSuccess | Exhausted)
// 持久化的只有终态分类；中间态通过进度事件推送。
type GenerationOutcome string

const (
	// OutcomeSuccess 全部成功：凑满两张图像
	OutcomeSuccess GenerationOutcome = "success"

	// OutcomePartial 部分成功：只得到一张图像，记录仍然持久化
	OutcomePartial GenerationOutcome = "partial"

	// OutcomeExhausted 耗尽：尝试预算或会话上限用完且无任何图像，不持久化
	OutcomeExhausted GenerationOutcome = "exhausted"
)

// ============================================================================
// GeneratedImage - 单张图像
// ============================================================================

// GeneratedImage 一张生成的图像
//
// Locator 是对象存储中的键（可寻址引用），不是供应商的临时 URL。
type GeneratedImage struct {
	Provider string `json:"provider" bson:"provider"`
	Locator  string `json:"locator" bson:"locator"`
}

// ============================================================================
// GenerationRecord - 生成记录
// ============================================================================

// GenerationRecord 一次生成动作的持久化结果
//
// 留存策略：每账户最多保留最近 N 条（默认 20），
// 每次写入后删除更旧的记录（见 history store）。
//
// 数据库集合：generations
type GenerationRecord struct {
	ID        string `json:"id" bson:"_id"`
	AccountID string `json:"account_id" bson:"account_id"`

	// 构建提示词用到的输入快照
	Templates      []string            `json:"templates" bson:"templates"`
	Product        string              `json:"product" bson:"product"`
	SpecSelections map[string][]string `json:"spec_selections,omitempty" bson:"spec_selections,omitempty"`
	Prompt         string              `json:"prompt" bson:"prompt"` // 清洗后的最终提示词

	// 有序结果（两张或部分失败时更少）
	Images  []GeneratedImage  `json:"images" bson:"images"`
	Outcome GenerationOutcome `json:"outcome" bson:"outcome"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
