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
// AccountStore
// ============================================================================

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return insertOne(ctx, s.col(ColUsers), account)
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColUsers), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return findOne[model.Account](ctx, s.col(ColUsers), bson.D{{Key: "email", Value: email}})
}

func (s *Store) UpdateAccount(ctx context.Context, account *model.Account) error {
	account.UpdatedAt = time.Now()
	return replaceByID(ctx, s.col(ColUsers), account.ID, account)
}

func (s *Store) UpdateAccountPassword(ctx context.Context, id, passwordHash string) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "password_hash", Value: passwordHash},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) SetAccountStatus(ctx context.Context, id string, status model.AccountStatus) error {
	return updateFields(ctx, s.col(ColUsers), id, bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: time.Now()},
	})
}

func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]*model.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return findMany[model.Account](ctx, s.col(ColUsers), bson.D{}, opts)
}

// DecrementCredits 条件扣减：filter 带 credits ≥ amount，未命中即余额不足。
// 单次 $inc 更新，余额不会出现负值。
func (s *Store) DecrementCredits(ctx context.Context, id string, amount int) error {
	res, err := s.col(ColUsers).UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: id},
			{Key: "credits", Value: bson.D{{Key: "$gte", Value: amount}}},
		},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "credits", Value: -amount}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
		},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		// 区分账户不存在与余额不足
		account, gerr := s.GetAccount(ctx, id)
		if gerr != nil {
			return gerr
		}
		if account == nil {
			return storage.ErrNotFound
		}
		return storage.ErrInsufficientCredits
	}
	return nil
}

func (s *Store) AddCredits(ctx context.Context, id string, purchase model.Purchase) error {
	res, err := s.col(ColUsers).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{
			{Key: "$inc", Value: bson.D{{Key: "credits", Value: purchase.Credits}}},
			{Key: "$push", Value: bson.D{{Key: "purchases", Value: purchase}}},
			{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
		},
	)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// EnsureCredits 点数字段缺失时初始化为默认值并持久化，返回当前余额
func (s *Store) EnsureCredits(ctx context.Context, id string, def int) (int, error) {
	_, err := s.col(ColUsers).UpdateOne(ctx,
		bson.D{
			{Key: "_id", Value: id},
			{Key: "credits", Value: bson.D{{Key: "$exists", Value: false}}},
		},
		bson.D{{Key: "$set", Value: bson.D{{Key: "credits", Value: def}}}},
	)
	if err != nil {
		return 0, wrapError(err)
	}
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, storage.ErrNotFound
	}
	return account.Credits, nil
}
