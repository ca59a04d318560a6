// Package model 定义核心数据模型
//
// support.go 包含客服工单相关的数据模型定义。
package model

import "time"

// SupportCategory 工单类别
type SupportCategory string

const (
	SupportCategoryTechnical SupportCategory = "technical"
	SupportCategoryProduct   SupportCategory = "product"
	SupportCategoryTemplate  SupportCategory = "template"
	SupportCategorySecurity  SupportCategory = "security"
	SupportCategoryOther     SupportCategory = "other"
)

// ValidSupportCategory 判断类别是否合法
func ValidSupportCategory(c SupportCategory) bool {
	switch c {
	case SupportCategoryTechnical, SupportCategoryProduct, SupportCategoryTemplate,
		SupportCategorySecurity, SupportCategoryOther:
		return true
	default:
		return false
	}
}

// SupportStatus 工单状态
type SupportStatus string

const (
	SupportStatusPending   SupportStatus = "pending"
	SupportStatusResolved  SupportStatus = "resolved"
	SupportStatusRejected  SupportStatus = "rejected"
	SupportStatusCancelled SupportStatus = "cancelled"
)

// IsTerminal 判断状态是否为终态
func (s SupportStatus) IsTerminal() bool {
	switch s {
	case SupportStatusResolved, SupportStatusRejected, SupportStatusCancelled:
		return true
	default:
		return false
	}
}

// SupportRequest 客服工单
//
// 数据库集合：support_requests
type SupportRequest struct {
	ID        string          `json:"id" bson:"_id"`
	AccountID string          `json:"account_id" bson:"account_id"`
	Category  SupportCategory `json:"category" bson:"category"`
	Message   string          `json:"message" bson:"message"`
	Status    SupportStatus   `json:"status" bson:"status"`
	Response  string          `json:"response,omitempty" bson:"response,omitempty"`

	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}
