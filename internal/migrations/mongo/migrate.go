package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"makerdesk/internal/migrations/mongo/validators"
)

var (
	EquipmentIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "makerspace_id", Value: 1}, {Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "makerspace_id", Value: 1}, {Key: "location", Value: 1}}},
	}

	// The compound index keeps overlap checks on one equipment item's
	// calendar instead of a collection scan.
	AvailabilityBlockIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "equipment_id", Value: 1},
			{Key: "start_time", Value: 1},
			{Key: "end_time", Value: 1},
		}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "ref_id", Value: 1}}},
	}

	ReservationIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "makerspace_id", Value: 1},
			{Key: "equipment_id", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{{Key: "makerspace_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "start_time", Value: 1}}},
		// The sweep scans lapsed approvals through this one.
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_time", Value: 1}}},
	}

	MaintenanceLogIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "makerspace_id", Value: 1},
			{Key: "equipment_id", Value: 1},
			{Key: "start_time", Value: -1},
		}},
	}

	// One rating per reservation and user, enforced by the database rather
	// than application checks.
	RatingIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "reservation_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "makerspace_id", Value: 1}, {Key: "equipment_id", Value: 1}, {Key: "status", Value: 1}}},
	}

	UsageTotalsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "makerspace_id", Value: 1}, {Key: "category", Value: 1}}},
	}
)

func RunMigration(ctx context.Context, client *mongo.Client, dbName string) error {
	db := client.Database(dbName)
	fmt.Printf("🚀 Running Makerdesk Mongo migrations on database: %s\n", dbName)

	collections := map[string]struct {
		Indexes   []mongo.IndexModel
		Validator bson.M
	}{
		"Equipment": {
			Indexes:   EquipmentIndexes,
			Validator: validators.EquipmentValidator,
		},
		"Availability_blocks": {
			Indexes:   AvailabilityBlockIndexes,
			Validator: validators.AvailabilityBlockValidator,
		},
		"Reservations": {
			Indexes:   ReservationIndexes,
			Validator: validators.ReservationValidator,
		},
		"Maintenance_logs": {
			Indexes:   MaintenanceLogIndexes,
			Validator: validators.MaintenanceLogValidator,
		},
		"Ratings": {
			Indexes:   RatingIndexes,
			Validator: validators.RatingValidator,
		},
		"Usage_totals": {
			Indexes: UsageTotalsIndexes,
		},
		"Processed_events": {},
	}

	for name, def := range collections {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if len(def.Indexes) == 0 {
			continue
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts = opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}

	fmt.Printf("ℹ️ Collection %s already exists — updating validator if needed\n", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
	}

	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	coll := db.Collection(name)
	_, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}
