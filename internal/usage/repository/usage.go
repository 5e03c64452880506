package repository

import (
	"context"
	"fmt"
	"time"

	usageerrors "makerdesk/internal/usage/errors"
	"makerdesk/pkg/config"
	mongotx "makerdesk/pkg/db/mongo"
	"makerdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	TotalsCollectionName          = "Usage_totals"
	ProcessedEventsCollectionName = "Processed_events"
)

// processedEvent marks one applied reservation event. The deterministic _id
// turns at-least-once delivery into exactly-once application: a redelivery
// hits the duplicate key and is skipped.
type processedEvent struct {
	ID          string    `bson:"_id"`
	ProcessedAt time.Time `bson:"processed_at"`
}

type mongoUsageRepository struct {
	cfg       *config.Config
	totals    *mongo.Collection
	processed *mongo.Collection
	txManager mongotx.TransactionManager
}

type UsageRepository interface {
	MarkProcessed(ctx context.Context, eventKey string) error
	ApplyCompleted(ctx context.Context, event *model.ReservationEvent) error
	ApplyCancelled(ctx context.Context, event *model.ReservationEvent) error
	GetTotals(ctx context.Context, makerspaceID, equipmentID string) (*model.UsageTotals, error)
	Summarize(ctx context.Context, makerspaceID, groupBy string) ([]*model.UsageSummaryRow, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoUsageRepository(cfg *config.Config) UsageRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUsageRepository{
		cfg:       cfg,
		totals:    db.Collection(TotalsCollectionName),
		processed: db.Collection(ProcessedEventsCollectionName),
		txManager: mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoUsageRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoUsageRepository) MarkProcessed(ctx context.Context, eventKey string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.processed.InsertOne(ctx, processedEvent{
		ID:          eventKey,
		ProcessedAt: time.Now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return usageerrors.ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (r *mongoUsageRepository) ApplyCompleted(ctx context.Context, event *model.ReservationEvent) error {
	return r.apply(ctx, event, bson.M{
		"usage_minutes":     event.Minutes(),
		"reservation_count": 1,
	})
}

func (r *mongoUsageRepository) ApplyCancelled(ctx context.Context, event *model.ReservationEvent) error {
	return r.apply(ctx, event, bson.M{
		"cancelled_count": 1,
	})
}

func (r *mongoUsageRepository) apply(ctx context.Context, event *model.ReservationEvent, inc bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.totals.UpdateOne(ctx,
		bson.M{"_id": event.EquipmentID},
		bson.M{
			"$inc": inc,
			"$set": bson.M{
				"makerspace_id": event.MakerspaceID,
				"category":      event.Category,
				"updated_at":    time.Now().UTC(),
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to apply usage update: %w", err)
	}
	return nil
}

func (r *mongoUsageRepository) GetTotals(ctx context.Context, makerspaceID, equipmentID string) (*model.UsageTotals, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var totals model.UsageTotals
	err := r.totals.FindOne(ctx, bson.M{
		"_id":           equipmentID,
		"makerspace_id": makerspaceID,
	}).Decode(&totals)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, usageerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find usage totals: %w", err)
	}

	return &totals, nil
}

func (r *mongoUsageRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

// Summarize groups totals per category or per equipment item within one
// tenant.
func (r *mongoUsageRepository) Summarize(ctx context.Context, makerspaceID, groupBy string) ([]*model.UsageSummaryRow, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	groupKey := "$category"
	if groupBy == "equipment" {
		groupKey = "$_id"
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"makerspace_id": makerspaceID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":               groupKey,
			"usage_minutes":     bson.M{"$sum": "$usage_minutes"},
			"reservation_count": bson.M{"$sum": "$reservation_count"},
			"cancelled_count":   bson.M{"$sum": "$cancelled_count"},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"usage_minutes": -1}}},
	}

	cursor, err := r.totals.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage totals: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	rows := []*model.UsageSummaryRow{}
	for cursor.Next(ctx) {
		var row model.UsageSummaryRow
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode summary row: %w", err)
		}
		rows = append(rows, &row)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return rows, nil
}
