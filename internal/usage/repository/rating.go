package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	usageerrors "makerdesk/internal/usage/errors"
	"makerdesk/pkg/config"
	"makerdesk/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	RatingsCollectionName = "Ratings"
)

type mongoRatingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// RatingRepository persists ratings. Uniqueness per (reservation_id, user_id)
// rides the collection's unique index, not application checks.
type RatingRepository interface {
	Insert(ctx context.Context, rating *model.Rating) error
	FindByID(ctx context.Context, makerspaceID, id string) (*model.Rating, error)
	FindByEquipment(ctx context.Context, makerspaceID, equipmentID string, limit int, offset int64) ([]*model.Rating, error)
	UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error
}

func NewMongoRatingRepository(cfg *config.Config) RatingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRatingRepository{
		cfg:        cfg,
		collection: db.Collection(RatingsCollectionName),
	}
}

func (r *mongoRatingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoRatingRepository) Insert(ctx context.Context, rating *model.Rating) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	rating.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, rating)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return usageerrors.ErrDuplicateRating
		}
		return fmt.Errorf("failed to insert rating: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		rating.ID = oid.Hex()
	}
	return nil
}

func (r *mongoRatingRepository) FindByID(ctx context.Context, makerspaceID, id string) (*model.Rating, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, usageerrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var rating model.Rating
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID, "makerspace_id": makerspaceID}).Decode(&rating)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, usageerrors.ErrRatingNotFound
		}
		return nil, fmt.Errorf("failed to find rating: %w", err)
	}

	return &rating, nil
}

func (r *mongoRatingRepository) FindByEquipment(ctx context.Context, makerspaceID, equipmentID string, limit int, offset int64) ([]*model.Rating, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(offset)
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{
		"makerspace_id": makerspaceID,
		"equipment_id":  equipmentID,
		"status":        model.RatingApproved,
	}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	ratings := []*model.Rating{}
	for cursor.Next(ctx) {
		var rating model.Rating
		if err := cursor.Decode(&rating); err != nil {
			return nil, fmt.Errorf("failed to decode rating: %w", err)
		}
		ratings = append(ratings, &rating)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ratings, nil
}

func (r *mongoRatingRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return usageerrors.ErrInvalidID
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": fromStatus},
		bson.M{"$set": bson.M{"status": toStatus}},
	)
	if err != nil {
		return fmt.Errorf("failed to update rating status: %w", err)
	}
	if result.MatchedCount == 0 {
		return usageerrors.ErrRatingNotFound
	}
	return nil
}
