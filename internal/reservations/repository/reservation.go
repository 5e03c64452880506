package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationerrors "makerdesk/internal/reservations/errors"
	"makerdesk/pkg/config"
	mongotx "makerdesk/pkg/db/mongo"
	"makerdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

// StatusUpdate is a conditional state transition. The update applies only
// while the stored status still matches FromStatuses, so two concurrent
// transitions cannot both win.
type StatusUpdate struct {
	FromStatuses []string
	ToStatus     string
	Set          bson.M
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByIDScoped(ctx context.Context, makerspaceID, id string) (*model.Reservation, error)
	FindAll(ctx context.Context, makerspaceID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context, makerspaceID string, filter model.ReservationFilter) (int64, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
	FindLapsed(ctx context.Context, before time.Time, limit int) ([]*model.Reservation, error)
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// Inside a transaction the context is the session context and must pass
// through untouched.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	reservation.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, reservation)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, reservationerrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindByIDScoped(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, reservationerrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID, "makerspace_id": makerspaceID}).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context, makerspaceID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	findOptions := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetSkip(offset)
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, r.buildFilter(makerspaceID, filter), findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	return decodeReservations(ctx, cursor)
}

func (r *mongoReservationRepository) Count(ctx context.Context, makerspaceID string, filter model.ReservationFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, r.buildFilter(makerspaceID, filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func (r *mongoReservationRepository) buildFilter(makerspaceID string, filter model.ReservationFilter) bson.M {
	query := bson.M{"makerspace_id": makerspaceID}
	if filter.EquipmentID != "" {
		query["equipment_id"] = filter.EquipmentID
	}
	if filter.UserID != "" {
		query["user_id"] = filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.From != nil {
		query["end_time"] = bson.M{"$gt": *filter.From}
	}
	if filter.To != nil {
		query["start_time"] = bson.M{"$lt": *filter.To}
	}
	return query
}

func (r *mongoReservationRepository) UpdateStatus(ctx context.Context, id string, update StatusUpdate) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return reservationerrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set := bson.M{"status": update.ToStatus}
	for k, v := range update.Set {
		set[k] = v
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":    objectID,
			"status": bson.M{"$in": update.FromStatuses},
		},
		bson.M{"$set": set},
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationerrors.ErrStaleStatus
	}
	return nil
}

// FindLapsed returns approved reservations whose interval has ended but whose
// stored status was never finalized. The sweep archives them.
func (r *mongoReservationRepository) FindLapsed(ctx context.Context, before time.Time, limit int) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	query := bson.M{
		"status":   model.ReservationApproved,
		"end_time": bson.M{"$lte": before},
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "end_time", Value: 1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query lapsed reservations: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	return decodeReservations(ctx, cursor)
}

func (r *mongoReservationRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	return r.UpdateStatus(ctx, id, StatusUpdate{
		FromStatuses: []string{model.ReservationApproved},
		ToStatus:     model.ReservationCompleted,
		Set:          bson.M{"completed_at": completedAt},
	})
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func decodeReservations(ctx context.Context, cursor *mongo.Cursor) ([]*model.Reservation, error) {
	reservations := []*model.Reservation{}
	for cursor.Next(ctx) {
		var reservation model.Reservation
		if err := cursor.Decode(&reservation); err != nil {
			return nil, fmt.Errorf("failed to decode reservation: %w", err)
		}
		reservations = append(reservations, &reservation)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return reservations, nil
}
