// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：mongostore/
//   - 初始化时通过依赖注入传入实现
//
// 并发模型：账户文档与生成记录集合是仅有的共享可变资源，
// 普通写入为 last-write-wins；点数扣减与行业码消费例外，
// 使用条件更新做单调的"检查并写入"。
package storage

import (
	"context"
	"time"

	"pairshot/internal/shared/model"
)

// ============================================================================
// 按领域拆分的存储接口
// ============================================================================

// AccountStore 账户存储接口
type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	// UpdateAccount 全量覆盖（last-write-wins）
	UpdateAccount(ctx context.Context, account *model.Account) error
	UpdateAccountPassword(ctx context.Context, id, passwordHash string) error
	SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) error
	ListAccounts(ctx context.Context, limit, offset int) ([]*model.Account, error)

	// DecrementCredits 条件扣减：仅当余额 ≥ amount 时执行，
	// 否则返回 ErrInsufficientCredits 且余额不变。
	DecrementCredits(ctx context.Context, id string, amount int) error

	// AddCredits 充值入账：余额 += pkg.Credits，并追加充值记录
	AddCredits(ctx context.Context, id string, purchase model.Purchase) error

	// EnsureCredits 首次读取时初始化缺失的点数字段为默认值（初始化本身持久化），
	// 返回当前余额。
	EnsureCredits(ctx context.Context, id string, def int) (int, error)
}

// IndustryCodeStore 行业码存储接口
type IndustryCodeStore interface {
	CreateIndustryCode(ctx context.Context, code *model.IndustryCode) error
	GetIndustryCode(ctx context.Context, code string) (*model.IndustryCode, error)
	ListIndustryCodes(ctx context.Context, limit, offset int) ([]*model.IndustryCode, error)

	// ClaimIndustryCode 条件消费：仅当 used=false 时标记 used=true/usedBy，
	// 已被消费返回 ErrConflict。注册前仍需存在性预查询（见 auth）。
	ClaimIndustryCode(ctx context.Context, code, accountID string, at time.Time) error
}

// GenerationStore 生成记录存储接口
type GenerationStore interface {
	CreateGeneration(ctx context.Context, rec *model.GenerationRecord) error
	// ListGenerationsByAccount 按创建时间倒序，最多 limit 条
	ListGenerationsByAccount(ctx context.Context, accountID string, limit int) ([]*model.GenerationRecord, error)
	// PruneGenerations 删除该账户第 keep 条之后（更旧）的所有记录，返回删除数量
	PruneGenerations(ctx context.Context, accountID string, keep int) (int, error)
	// ListGenerations 跨账户列表（master 视图）
	ListGenerations(ctx context.Context, limit, offset int) ([]*model.GenerationRecord, error)
}

// SupportStore 工单存储接口
type SupportStore interface {
	CreateSupportRequest(ctx context.Context, req *model.SupportRequest) error
	GetSupportRequest(ctx context.Context, id string) (*model.SupportRequest, error)
	ListSupportRequestsByAccount(ctx context.Context, accountID string) ([]*model.SupportRequest, error)
	ListSupportRequests(ctx context.Context, status string, limit, offset int) ([]*model.SupportRequest, error)
	UpdateSupportRequest(ctx context.Context, id string, status model.SupportStatus, response string, resolvedAt *time.Time) error
}

// AdminActionStore 管理动作存储接口
type AdminActionStore interface {
	CreateAdminAction(ctx context.Context, action *model.AdminAction) error
	GetAdminAction(ctx context.Context, id string) (*model.AdminAction, error)
	ListAdminActionsByAccount(ctx context.Context, accountID string) ([]*model.AdminAction, error)
	// ListPendingAdminActions 按创建时间升序返回待处理动作
	ListPendingAdminActions(ctx context.Context, limit int) ([]*model.AdminAction, error)
	// FinishAdminAction 写入终态与错误详情（幂等消费的落点）
	FinishAdminAction(ctx context.Context, id string, status model.AdminActionStatus, errDetail string) error
}

// ============================================================================
// 组合接口
// ============================================================================

// PersistentStore 持久化存储组合接口
type PersistentStore interface {
	AccountStore
	IndustryCodeStore
	GenerationStore
	SupportStore
	AdminActionStore
	Close() error
}
