package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "makerdesk/internal/availability/errors"
	"makerdesk/pkg/config"
	mongotx "makerdesk/pkg/db/mongo"
	"makerdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Availability_blocks"
)

type mongoBlockRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

// BlockRepository is the persistence contract of the availability index.
// Overlap queries ride the compound (equipment_id, start_time, end_time)
// index, so a lookup touches only one equipment item's calendar.
type BlockRepository interface {
	Insert(ctx context.Context, block *model.AvailabilityBlock) error
	RemoveByRef(ctx context.Context, kind, refID string) error
	FindOverlapping(ctx context.Context, equipmentID string, interval model.Interval, limit int) ([]*model.AvailabilityBlock, error)
	FindInRange(ctx context.Context, equipmentID string, start, end time.Time) ([]*model.AvailabilityBlock, error)
	FindCovering(ctx context.Context, equipmentID string, at time.Time) ([]*model.AvailabilityBlock, error)
	HasBlocksAfter(ctx context.Context, equipmentID string, after time.Time) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBlockRepository(cfg *config.Config) BlockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBlockRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// Inside a transaction the context is the session context and must pass
// through untouched.
func (r *mongoBlockRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBlockRepository) Insert(ctx context.Context, block *model.AvailabilityBlock) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	block.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, block)
	if err != nil {
		return fmt.Errorf("failed to insert availability block: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		block.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBlockRepository) RemoveByRef(ctx context.Context, kind, refID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"kind": kind, "ref_id": refID})
	if err != nil {
		return fmt.Errorf("failed to remove availability block: %w", err)
	}
	if result.DeletedCount == 0 {
		return availabilityerrors.ErrNotFound
	}
	return nil
}

func (r *mongoBlockRepository) FindOverlapping(ctx context.Context, equipmentID string, interval model.Interval, limit int) ([]*model.AvailabilityBlock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	// half-open semantics: blocks sharing only a boundary do not match
	filter := bson.M{
		"equipment_id": equipmentID,
		"start_time":   bson.M{"$lt": interval.End},
		"end_time":     bson.M{"$gt": interval.Start},
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit))

	return r.findBlocks(ctx, filter, opts)
}

func (r *mongoBlockRepository) FindInRange(ctx context.Context, equipmentID string, start, end time.Time) ([]*model.AvailabilityBlock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"equipment_id": equipmentID,
		"start_time":   bson.M{"$lt": end},
		"end_time":     bson.M{"$gt": start},
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	return r.findBlocks(ctx, filter, opts)
}

func (r *mongoBlockRepository) FindCovering(ctx context.Context, equipmentID string, at time.Time) ([]*model.AvailabilityBlock, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"equipment_id": equipmentID,
		"start_time":   bson.M{"$lte": at},
		"end_time":     bson.M{"$gt": at},
	}

	return r.findBlocks(ctx, filter, options.Find())
}

func (r *mongoBlockRepository) HasBlocksAfter(ctx context.Context, equipmentID string, after time.Time) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"equipment_id": equipmentID,
		"end_time":     bson.M{"$gt": after},
	}

	err := r.collection.FindOne(ctx, filter).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check future availability blocks: %w", err)
	}
	return true, nil
}

func (r *mongoBlockRepository) findBlocks(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.AvailabilityBlock, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find availability blocks: %w", err)
	}
	defer cursor.Close(ctx)

	var blocks []*model.AvailabilityBlock
	if err = cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode availability blocks: %w", err)
	}

	return blocks, nil
}

func (r *mongoBlockRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
