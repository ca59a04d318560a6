// Package model 定义核心数据模型
//
// industry_code.go 包含行业码相关的数据模型定义。
package model

import (
	"fmt"
	"time"
)

// IndustryCodeLength 行业码固定长度
const IndustryCodeLength = 6

// IndustryCode 一次性注册令牌
//
// 行业码携带产品名与规格模板，注册时由账户消费。
// 单次使用约束通过注册前的存在性查询 + used=false 条件更新实现，
// 并非事务性声明，两个注册者并发消费同一码的竞态仍然存在。
//
// 数据库集合：industry_codes（以 6 位码为 _id）
type IndustryCode struct {
	Code     string `json:"code" bson:"_id"`
	Industry string `json:"industry" bson:"industry"`
	Product  string `json:"product" bson:"product"`

	// 规格模板：规格名 → 允许取值（1–5 项，每项 1–5 个值）
	SpecTemplate map[string][]string `json:"spec_template" bson:"spec_template"`

	Used   bool   `json:"used" bson:"used"`
	UsedBy string `json:"used_by,omitempty" bson:"used_by,omitempty"`

	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UsedAt    *time.Time `json:"used_at,omitempty" bson:"used_at,omitempty"`
}

// Validate 校验行业码定义
func (c *IndustryCode) Validate() error {
	if len(c.Code) != IndustryCodeLength {
		return fmt.Errorf("code must be %d characters, got %d", IndustryCodeLength, len(c.Code))
	}
	if c.Industry == "" {
		return fmt.Errorf("industry is required")
	}
	if c.Product == "" {
		return fmt.Errorf("product is required")
	}
	if len(c.SpecTemplate) == 0 || len(c.SpecTemplate) > MaxSpecEntries {
		return fmt.Errorf("spec template must have 1–%d entries, got %d", MaxSpecEntries, len(c.SpecTemplate))
	}
	for name, values := range c.SpecTemplate {
		if len(values) == 0 || len(values) > MaxSpecValues {
			return fmt.Errorf("specification %q must have 1–%d values, got %d", name, MaxSpecValues, len(values))
		}
	}
	return nil
}
