package repository

import (
	"context"
	"fmt"
	"time"

	"catalogsync-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBAuditRepository implements AuditRepository for MongoDB.
type MongoDBAuditRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBAuditRepository connects to MongoDB and ensures the occurred_at index.
func NewMongoDBAuditRepository(uri, dbName, collectionName string) (*MongoDBAuditRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(dbName).Collection(collectionName)

	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "occurred_at", Value: -1}},
	})
	if err != nil {
		logger().Warn("failed to create audit index", "error", err)
	}

	logger().Info("audit store connected", "store", "mongodb", "database", dbName, "collection", collectionName)
	return &MongoDBAuditRepository{
		client:     client,
		collection: collection,
	}, nil
}

// InsertAuditEvent inserts one audit document.
func (r *MongoDBAuditRepository) InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error {
	auditOccurredAt(ev)
	if _, err := r.collection.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// InsertAuditEvents inserts events with a single InsertMany.
func (r *MongoDBAuditRepository) InsertAuditEvents(ctx context.Context, events []model.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, len(events))
	for i := range events {
		auditOccurredAt(&events[i])
		docs[i] = events[i]
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert audit events: %w", err)
	}
	return nil
}

// ListAuditEvents returns audit events with pagination, newest first.
func (r *MongoDBAuditRepository) ListAuditEvents(ctx context.Context, perPage, page int) (*model.AuditLogPage, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	findOptions.SetLimit(int64(perPage))
	findOptions.SetSkip(int64((page - 1) * perPage))

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var items []model.AuditEvent
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}

	// Ensure not nil slice for JSON
	if items == nil {
		items = []model.AuditEvent{}
	}

	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count audit events: %w", err)
	}

	totalPages := model.TotalPages(total, perPage)
	return &model.AuditLogPage{
		Items:           items,
		CurrentPage:     page,
		TotalPages:      totalPages,
		PerPage:         perPage,
		Total:           total,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBAuditRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

// Ensure MongoDBAuditRepository implements AuditRepository
var _ AuditRepository = (*MongoDBAuditRepository)(nil)
