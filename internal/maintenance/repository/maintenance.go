package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	maintenanceerrors "makerdesk/internal/maintenance/errors"
	"makerdesk/pkg/config"
	mongotx "makerdesk/pkg/db/mongo"
	"makerdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Maintenance_logs"
)

type mongoMaintenanceRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type MaintenanceRepository interface {
	Create(ctx context.Context, log *model.MaintenanceLog) error
	FindByID(ctx context.Context, makerspaceID, id string) (*model.MaintenanceLog, error)
	FindByEquipment(ctx context.Context, makerspaceID, equipmentID string, limit int, offset int64) ([]*model.MaintenanceLog, error)
	Complete(ctx context.Context, id string, endTime time.Time, costCents int64, partsUsed []string, notes string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoMaintenanceRepository(cfg *config.Config) MaintenanceRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoMaintenanceRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoMaintenanceRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoMaintenanceRepository) Create(ctx context.Context, log *model.MaintenanceLog) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	log.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to insert maintenance log: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		log.ID = oid.Hex()
	}
	return nil
}

func (r *mongoMaintenanceRepository) FindByID(ctx context.Context, makerspaceID, id string) (*model.MaintenanceLog, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, maintenanceerrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var log model.MaintenanceLog
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID, "makerspace_id": makerspaceID}).Decode(&log)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, maintenanceerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find maintenance log: %w", err)
	}

	return &log, nil
}

func (r *mongoMaintenanceRepository) FindByEquipment(ctx context.Context, makerspaceID, equipmentID string, limit int, offset int64) ([]*model.MaintenanceLog, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	findOptions := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: -1}}).
		SetSkip(offset)
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{
		"makerspace_id": makerspaceID,
		"equipment_id":  equipmentID,
	}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance logs: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	logs := []*model.MaintenanceLog{}
	for cursor.Next(ctx) {
		var log model.MaintenanceLog
		if err := cursor.Decode(&log); err != nil {
			return nil, fmt.Errorf("failed to decode maintenance log: %w", err)
		}
		logs = append(logs, &log)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return logs, nil
}

// Complete finalizes a scheduled log. The status guard makes completion
// idempotent-safe: a second call matches nothing.
func (r *mongoMaintenanceRepository) Complete(ctx context.Context, id string, endTime time.Time, costCents int64, partsUsed []string, notes string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return maintenanceerrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{
		"status":   model.MaintenanceCompleted,
		"end_time": endTime,
	}
	if costCents > 0 {
		set["cost_cents"] = costCents
	}
	if len(partsUsed) > 0 {
		set["parts_used"] = partsUsed
	}
	if notes != "" {
		set["notes"] = notes
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": model.MaintenanceScheduled},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to complete maintenance log: %w", err)
	}
	if result.MatchedCount == 0 {
		return maintenanceerrors.ErrNotFound
	}
	return nil
}

func (r *mongoMaintenanceRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
