package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ActivityCollection = "activity"

// ActivityStore keeps an expiring audit trail of registry writes in MongoDB.
type ActivityStore struct {
	coll *mongo.Collection
	ttl  time.Duration
}

func NewActivityStore(db *mongo.Database, ttl time.Duration) *ActivityStore {
	return &ActivityStore{coll: db.Collection(ActivityCollection), ttl: ttl}
}

func (s *ActivityStore) Record(ctx context.Context, a models.Activity) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.ExpiresAt = a.CreatedAt.Add(s.ttl)

	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// Recent returns the newest entries, optionally limited to one actor.
func (s *ActivityStore) Recent(ctx context.Context, actor string, limit int64) ([]models.Activity, error) {
	filter := bson.M{}
	if actor != "" {
		filter["actor"] = actor
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Activity{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}
	return out, nil
}
