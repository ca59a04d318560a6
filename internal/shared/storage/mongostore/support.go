package mongostore

import (
	"context"
	"time"

	"pairshot/internal/shared/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// SupportStore
// ============================================================================

func (s *Store) CreateSupportRequest(ctx context.Context, req *model.SupportRequest) error {
	return insertOne(ctx, s.col(ColSupportRequests), req)
}

func (s *Store) GetSupportRequest(ctx context.Context, id string) (*model.SupportRequest, error) {
	return findOne[model.SupportRequest](ctx, s.col(ColSupportRequests), bson.D{{Key: "_id", Value: id}})
}

func (s *Store) ListSupportRequestsByAccount(ctx context.Context, accountID string) ([]*model.SupportRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return findMany[model.SupportRequest](ctx, s.col(ColSupportRequests),
		bson.D{{Key: "account_id", Value: accountID}}, opts)
}

func (s *Store) ListSupportRequests(ctx context.Context, status string, limit, offset int) ([]*model.SupportRequest, error) {
	filter := bson.D{}
	if status != "" {
		filter = append(filter, bson.E{Key: "status", Value: status})
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	return findMany[model.SupportRequest](ctx, s.col(ColSupportRequests), filter, opts)
}

func (s *Store) UpdateSupportRequest(ctx context.Context, id string, status model.SupportStatus, response string, resolvedAt *time.Time) error {
	update := bson.D{
		{Key: "status", Value: status},
	}
	if response != "" {
		update = append(update, bson.E{Key: "response", Value: response})
	}
	if resolvedAt != nil {
		update = append(update, bson.E{Key: "resolved_at", Value: *resolvedAt})
	}
	return updateFields(ctx, s.col(ColSupportRequests), id, update)
}
