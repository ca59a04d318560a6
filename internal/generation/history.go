package generation

import (
	"context"
	"time"

	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"
	"pairshot/pkg/logging"
)

// History 生成历史，带留存上限
//
// 每次写入后裁剪：按创建时间倒序保留最近 keep 条，
// 更旧的记录删除。读取是一次性的全新查询，无游标。
type History struct {
	store  storage.GenerationStore
	keep   int
	logger *logging.Logger
}

// NewHistory 创建历史存储
func NewHistory(store storage.GenerationStore, keep int, logger *logging.Logger) *History {
	return &History{store: store, keep: keep, logger: logger}
}

// Append 写入一条记录并裁剪旧记录
//
// 时间戳由服务端在此处赋值，调用方传入的 CreatedAt 被覆盖。
// 裁剪失败不影响写入结果，返回裁剪删除的条数
func (h *History) Append(ctx context.Context, rec *model.GenerationRecord) (int, error) {
	rec.CreatedAt = time.Now()
	if err := h.store.CreateGeneration(ctx, rec); err != nil {
		return 0, err
	}
	pruned, err := h.store.PruneGenerations(ctx, rec.AccountID, h.keep)
	if err != nil {
		// 写入已成功，裁剪留给下一次写入补偿
		h.logger.WithAccountID(rec.AccountID).WithError(err).Warn("history prune failed")
		return 0, nil
	}
	return pruned, nil
}

// List 按创建时间倒序返回最近的记录
func (h *History) List(ctx context.Context, accountID string, limit int) ([]*model.GenerationRecord, error) {
	if limit <= 0 || limit > h.keep {
		limit = h.keep
	}
	return h.store.ListGenerationsByAccount(ctx, accountID, limit)
}
