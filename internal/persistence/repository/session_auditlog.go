package repository

import (
	"context"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditLogRetention = 30 * 24 * time.Hour

type sessionAuditLogRepository struct {
	collection *mongo.Collection
}

func NewSessionAuditLogRepository(database *mongo.Database) domain.SessionAuditRepository {
	return &sessionAuditLogRepository{
		collection: database.Collection(db.SessionAuditLogsCollection),
	}
}

func (r *sessionAuditLogRepository) Log(ctx context.Context, log *domain.SessionAuditLog) error {
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

func (r *sessionAuditLogRepository) GetByUserID(ctx context.Context, userID string, limit int) ([]domain.SessionAuditLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return r.find(ctx, bson.M{"user_id": userID}, opts)
}

func (r *sessionAuditLogRepository) GetByEventType(ctx context.Context, eventType domain.SessionEventType, from, to time.Time) ([]domain.SessionAuditLog, error) {
	filter := bson.M{
		"event_type": eventType,
		"timestamp": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}

	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}))
}

func (r *sessionAuditLogRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.SessionAuditLog, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.SessionAuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *sessionAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{
		"timestamp": bson.M{"$lt": before},
	})
	return err
}

func (r *sessionAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditLogRetention.Seconds())),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
