package mongostore

import (
	"context"
	"time"

	"pairshot/internal/shared/model"
	"pairshot/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// IndustryCodeStore
// ============================================================================

func (s *Store) CreateIndustryCode(ctx context.Context, code *model.IndustryCode) error {
	return insertOne(ctx, s.col(ColIndustryCodes), code)
}

func (s *Store) GetIndustryCode(ctx context.Context, code string) (*model.IndustryCode, error) {
	return findOne[model.IndustryCode](ctx, s.col(ColIndustryCodes), bson.D{{Key: "_id", Value: code}})
}

func (s *Store) ListIndustryCodes(ctx context.Context, limit, offset int) ([]*model.IndustryCode, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return findMany[model.IndustryCode](ctx, s.col(ColIndustryCodes), bson.D{}, opts)
}

// ClaimIndustryCode 条件消费：仅当 used=false 时写入 used/usedBy/usedAt。
// 已被消费（或并发中被抢先）返回 ErrConflict。
func (s *Store) ClaimIndustryCode(ctx context.Context, code, accountID string, at time.Time) error {
	res, err := s.col(ColIndustryCodes).UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: code},
			{Key: "used", Value: false},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "used", Value: true},
			{Key: "used_by", Value: accountID},
			{Key: "used_at", Value: at},
		}}},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		existing, gerr := s.GetIndustryCode(ctx, code)
		if gerr != nil {
			return gerr
		}
		if existing == nil {
			return storage.ErrNotFound
		}
		return storage.ErrConflict
	}
	return nil
}
