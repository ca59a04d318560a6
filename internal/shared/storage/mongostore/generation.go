package mongostore

import (
	"context"

	"pairshot/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// GenerationStore
// ============================================================================

func (s *Store) CreateGeneration(ctx context.Context, rec *model.GenerationRecord) error {
	return insertOne(ctx, s.col(ColGenerations), rec)
}

func (s *Store) ListGenerationsByAccount(ctx context.Context, accountID string, limit int) ([]*model.GenerationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findMany[model.GenerationRecord](ctx, s.col(ColGenerations),
		bson.D{{Key: "account_id", Value: accountID}}, opts)
}

// PruneGenerations 删除该账户第 keep 条之后的所有记录（按创建时间倒序）。
// 先查出要保留的 ID，再按 $nin 删除其余，两步非事务，
// 最坏情况是并发写入时多保留一条，下一次裁剪会纠正。
func (s *Store) PruneGenerations(ctx context.Context, accountID string, keep int) (int, error) {
	if keep <= 0 {
		keep = 1
	}

	recent, err := s.ListGenerationsByAccount(ctx, accountID, keep)
	if err != nil {
		return 0, err
	}
	if len(recent) < keep {
		return 0, nil
	}

	keepIDs := make([]string, 0, len(recent))
	for _, rec := range recent {
		keepIDs = append(keepIDs, rec.ID)
	}

	res, err := s.col(ColGenerations).DeleteMany(ctx, bson.D{
		{Key: "account_id", Value: accountID},
		{Key: "_id", Value: bson.D{{Key: "$nin", Value: keepIDs}}},
	})
	if err != nil {
		return 0, wrapError(err)
	}
	return int(res.DeletedCount), nil
}

func (s *Store) ListGenerations(ctx context.Context, limit, offset int) ([]*model.GenerationRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return findMany[model.GenerationRecord](ctx, s.col(ColGenerations), bson.D{}, opts)
}
