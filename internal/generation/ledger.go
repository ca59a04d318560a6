package generation

import (
	"context"
	"fmt"
	"time"

	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
)

// Ledger 点数账本
//
// 余额规则：
//   - 初次读取时缺失余额按默认值初始化并持久化
//   - 扣减是条件更新，余额不足时拒绝且余额不变
//   - 充值按固定套餐整体入账，无部分入账或退款
type Ledger struct {
	accounts    storage.AccountStore
	defCredits  int
	costFull    int
	costPartial int
}

// NewLedger 创建账本
func NewLedger(accounts storage.AccountStore, costFull, costPartial int) *Ledger {
	return &Ledger{
		accounts:    accounts,
		defCredits:  model.DefaultCredits,
		costFull:    costFull,
		costPartial: costPartial,
	}
}

// Balance 当前余额，缺失时初始化为默认值
func (l *Ledger) Balance(ctx context.Context, accountID string) (int, error) {
	return l.accounts.EnsureCredits(ctx, accountID, l.defCredits)
}

// Charge 按结果分类扣减点数
// 耗尽结果不扣费；余额不足返回 storage.ErrInsufficientCredits
func (l *Ledger) Charge(ctx context.Context, accountID string, outcome model.GenerationOutcome) error {
	var cost int
	switch outcome {
	case model.OutcomeSuccess:
		cost = l.costFull
	case model.OutcomePartial:
		cost = l.costPartial
	default:
		return nil
	}
	return l.accounts.DecrementCredits(ctx, accountID, cost)
}

// TopUp 充值：按套餐 ID 查目录并整体入账
func (l *Ledger) TopUp(ctx context.Context, accountID, packageID string) (*model.Account, error) {
	pkg := model.FindCreditPackage(packageID)
	if pkg == nil {
		return nil, fmt.Errorf("ledger: unknown credit package %q", packageID)
	}

	purchase := model.Purchase{
		Credits: pkg.Credits,
		Price:   pkg.Price,
		At:      time.Now(),
	}
	if err := l.accounts.AddCredits(ctx, accountID, purchase); err != nil {
		return nil, err
	}
	return l.accounts.GetAccount(ctx, accountID)
}
