package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	equipmenterrors "makerdesk/internal/equipment/errors"
	"makerdesk/pkg/config"
	mongotx "makerdesk/pkg/db/mongo"
	"makerdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Equipment"
)

type mongoEquipmentRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

// EquipmentRepository scopes every read and write by makerspace. A lookup
// outside the caller's tenant behaves exactly like a missing document.
type EquipmentRepository interface {
	Create(ctx context.Context, equipment *model.Equipment) error
	FindByID(ctx context.Context, makerspaceID, id string) (*model.Equipment, error)
	FindAll(ctx context.Context, makerspaceID string, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, error)
	Count(ctx context.Context, makerspaceID string, filter model.EquipmentFilter) (int64, error)
	Update(ctx context.Context, makerspaceID, id string, equipment *model.Equipment) (*mongo.UpdateResult, error)
	Delete(ctx context.Context, makerspaceID, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoEquipmentRepository(cfg *config.Config) EquipmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoEquipmentRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoEquipmentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoEquipmentRepository) Create(ctx context.Context, equipment *model.Equipment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	equipment.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, equipment)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		equipment.ID = oid.Hex()
	}
	return nil
}

func (r *mongoEquipmentRepository) FindByID(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", equipmenterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "makerspace_id": makerspaceID}

	var equipment model.Equipment
	err = r.collection.FindOne(ctx, filter).Decode(&equipment)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, equipmenterrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find equipment: %w", err)
	}

	return &equipment, nil
}

func (r *mongoEquipmentRepository) FindAll(ctx context.Context, makerspaceID string, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, r.buildFilter(makerspaceID, filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find equipment: %w", err)
	}
	defer cursor.Close(ctx)

	var items []*model.Equipment
	if err = cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode equipment: %w", err)
	}

	return items, nil
}

func (r *mongoEquipmentRepository) Count(ctx context.Context, makerspaceID string, filter model.EquipmentFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildFilter(makerspaceID, filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count equipment: %w", err)
	}
	return count, nil
}

func (r *mongoEquipmentRepository) buildFilter(makerspaceID string, filter model.EquipmentFilter) bson.M {
	query := bson.M{"makerspace_id": makerspaceID}

	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Location != "" {
		query["location"] = filter.Location
	}
	if filter.Certification != "" {
		query["required_certifications"] = filter.Certification
	}

	return query
}

func (r *mongoEquipmentRepository) Update(ctx context.Context, makerspaceID, id string, equipment *model.Equipment) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", equipmenterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "makerspace_id": makerspaceID}
	update := bson.M{
		"$set": bson.M{
			"name":                    equipment.Name,
			"category":                equipment.Category,
			"location":                equipment.Location,
			"required_certifications": equipment.RequiredCertifications,
			"hourly_rate_cents":       equipment.HourlyRateCents,
			"deposit_cents":           equipment.DepositCents,
			"offline":                 equipment.Offline,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update equipment: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, equipmenterrors.ErrNotFound
	}

	return result, nil
}

func (r *mongoEquipmentRepository) Delete(ctx context.Context, makerspaceID, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", equipmenterrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "makerspace_id": makerspaceID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete equipment: %w", err)
	}

	if result.DeletedCount == 0 {
		return equipmenterrors.ErrNotFound
	}

	return nil
}

func (r *mongoEquipmentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
