// Package actionworker 管理动作异步处理进程
//
// API Server 的特权端点把管理动作写成 pending 文档，
// worker 轮询消费：校验发起人白名单、执行动作、写终态。
// 幂等性来自状态机 pending → done|failed：终态动作不再被拉取，
// worker 崩溃后重启最多重放一次未完成的动作（动作本身幂等）。
package actionworker

import (
	"context"
	"errors"
	"time"

	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
	"pairshot/pkg/logging"
)

// Store worker 所需的存储能力
type Store interface {
	storage.AdminActionStore
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) error
	UpdateAccountPassword(ctx context.Context, id, passwordHash string) error
}

// PasswordResetter 密码重置回调
// 生成临时密码哈希并通知账户，由装配方注入（凭据只在 worker 进程）
type PasswordResetter func(ctx context.Context, account *model.Account) error

// Config worker 配置
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// AllowedInitiators 允许发起动作的账户 ID 白名单，空表示放行所有 staff 动作
	AllowedInitiators []string
}

// Worker 管理动作消费者
type Worker struct {
	store     Store
	cfg       Config
	logger    *logging.Logger
	resetPass PasswordResetter
	allowed   map[string]bool
}

// New 创建 worker
func New(store Store, cfg Config, resetPass PasswordResetter, logger *logging.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	allowed := make(map[string]bool, len(cfg.AllowedInitiators))
	for _, id := range cfg.AllowedInitiators {
		allowed[id] = true
	}
	return &Worker{
		store:     store,
		cfg:       cfg,
		logger:    logger,
		resetPass: resetPass,
		allowed:   allowed,
	}
}

// Start 启动轮询循环，ctx 取消后返回
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain 处理一批待处理动作
func (w *Worker) drain(ctx context.Context) {
	actions, err := w.store.ListPendingAdminActions(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Error("list pending actions failed")
		return
	}
	for _, action := range actions {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, action)
	}
}

// process 执行单个动作并写终态
func (w *Worker) process(ctx context.Context, action *model.AdminAction) {
	log := w.logger.With("action_id", action.ID, "type", string(action.Type), "target", action.AccountID)

	// 终态动作不重复执行（排队期间可能已被其他实例处理）
	if action.Status.IsTerminal() {
		return
	}

	if len(w.allowed) > 0 && !w.allowed[action.InitiatorID] {
		log.Warn("initiator not in allow-list, rejecting", "initiator", action.InitiatorID)
		w.finish(ctx, action.ID, model.AdminActionStatusFailed, "initiator not allowed")
		return
	}

	if err := w.execute(ctx, action); err != nil {
		log.WithError(err).Error("action failed")
		w.finish(ctx, action.ID, model.AdminActionStatusFailed, err.Error())
		return
	}

	log.Info("action done")
	w.finish(ctx, action.ID, model.AdminActionStatusDone, "")
}

// execute 按类型执行动作
func (w *Worker) execute(ctx context.Context, action *model.AdminAction) error {
	switch action.Type {
	case model.AdminActionActivate:
		return w.store.SetAccountStatus(ctx, action.AccountID, model.AccountStatusActive)

	case model.AdminActionDeactivate:
		return w.store.SetAccountStatus(ctx, action.AccountID, model.AccountStatusLocked)

	case model.AdminActionResetPassword:
		account, err := w.store.GetAccount(ctx, action.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return storage.ErrNotFound
		}
		if w.resetPass == nil {
			return errUnsupported
		}
		return w.resetPass(ctx, account)

	default:
		return errUnsupported
	}
}

func (w *Worker) finish(ctx context.Context, id string, status model.AdminActionStatus, errDetail string) {
	if err := w.store.FinishAdminAction(ctx, id, status, errDetail); err != nil {
		w.logger.WithError(err).Error("finish action failed", "action_id", id)
	}
}

var errUnsupported = errors.New("actionworker: unsupported action type")
