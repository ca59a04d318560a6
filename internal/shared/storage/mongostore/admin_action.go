package mongostore

import (
	"context"
	"time"

	"pairshot/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// AdminActionStore
// ============================================================================

func (s *Store) CreateAdminAction(ctx context.Context, action *model.AdminAction) error {
	return insertOne(ctx, s.col(ColAdminActions), action)
}

func (s *Store) GetAdminAction(ctx context.Context, id string) (*model.AdminAction, error) {
	return findOne[model.AdminAction](ctx, s.col(ColAdminActions), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListAdminActionsByAccount(ctx context.Context, accountID string) ([]*model.AdminAction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.AdminAction](ctx, s.col(ColAdminActions),
		bson.D{{Key: "account_id", Value: accountID}}, opts)
}

func (s *Store) ListPendingAdminActions(ctx context.Context, limit int) ([]*model.AdminAction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findMany[model.AdminAction](ctx, s.col(ColAdminActions),
		bson.D{{Key: "status", Value: model.AdminActionStatusPending}}, opts)
}

func (s *Store) FinishAdminAction(ctx context.Context, id string, status model.AdminActionStatus, errDetail string) error {
	now := time.Now()
	update := bson.D{
		{Key: "status", Value: status},
		{Key: "updated_at", Value: now},
		{Key: "finished_at", Value: now},
	}
	if errDetail != "" {
		update = append(update, bson.E{Key: "error", Value: errDetail})
	}
	return updateFields(ctx, s.col(ColAdminActions), id, update)
}
