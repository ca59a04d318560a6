// Package model 定义核心数据模型
//
// admin_action.go 包含管理动作相关的数据模型定义。
//
// AdminAction 是一条持久化的异步命令：由 API Server 的特权端点创建，
// 由独立进程 action-worker 消费。不在请求内同步执行的原因：
//  1. 启用/停用、密码重置需要调用身份提供方，凭据只存在于 worker 进程
//  2. 通过 status 字段实现幂等（pending → done|failed），重复提交无副作用
package model

import "time"

// ============================================================================
// AdminActionType - 动作类型
// ============================================================================

// AdminActionType 管理动作类型
type AdminActionType string

const (
	AdminActionActivate      AdminActionType = "activate"
	AdminActionDeactivate    AdminActionType = "deactivate"
	AdminActionResetPassword AdminActionType = "reset_password"
)

// ValidAdminActionType 判断动作类型是否合法
func ValidAdminActionType(t AdminActionType) bool {
	switch t {
	case AdminActionActivate, AdminActionDeactivate, AdminActionResetPassword:
		return true
	default:
		return false
	}
}

// ============================================================================
// AdminActionStatus - 动作状态
// ============================================================================

// AdminActionStatus 管理动作状态
//
// 状态机：pending → done | failed
type AdminActionStatus string

const (
	AdminActionStatusPending AdminActionStatus = "pending"
	AdminActionStatusDone    AdminActionStatus = "done"
	AdminActionStatusFailed  AdminActionStatus = "failed"
)

// IsTerminal 判断状态是否为终态
func (s AdminActionStatus) IsTerminal() bool {
	return s == AdminActionStatusDone || s == AdminActionStatusFailed
}

// ============================================================================
// AdminAction - 管理动作
// ============================================================================

// AdminAction 一条异步处理的管理命令
//
// 数据库集合：admin_actions
type AdminAction struct {
	ID          string            `json:"id" bson:"_id"`
	AccountID   string            `json:"account_id" bson:"account_id"` // 目标账户
	Type        AdminActionType   `json:"type" bson:"type"`
	InitiatorID string            `json:"initiator_id" bson:"initiator_id"`
	Status      AdminActionStatus `json:"status" bson:"status"`
	Error       string            `json:"error,omitempty" bson:"error,omitempty"` // 失败详情

	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}
