package main

import (
	healthhandler "makerdesk/internal/health/handler"
	reservationrepo "makerdesk/internal/reservations/repository"
	"makerdesk/internal/usage/consumer"
	usagehandler "makerdesk/internal/usage/handler"
	usagerepo "makerdesk/internal/usage/repository"
	usageservice "makerdesk/internal/usage/service"
	usagevalidator "makerdesk/internal/usage/validator"
	"makerdesk/pkg/app"
	"makerdesk/pkg/config"
	kafka_config "makerdesk/pkg/kafka/config"
)

const ServiceName = "usage"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Usage service")

	usageRepo := usagerepo.NewMongoUsageRepository(cfg)
	ratingRepo := usagerepo.NewMongoRatingRepository(cfg)
	reservationRepo := reservationrepo.NewMongoReservationRepository(cfg)

	aggregator := usageservice.NewAggregatorService(usageRepo, cfg)
	usageService := usageservice.NewUsageService(usageRepo, cfg)
	ratingService := usageservice.NewRatingService(
		ratingRepo,
		reservationRepo,
		usagevalidator.NewRatingValidator(cfg.Log),
		cfg,
	)

	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	eventConsumer, err := consumer.NewEventConsumer(kafkaCfg, aggregator, cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to create event consumer", "error", err)
	}
	defer eventConsumer.Close()

	cfg.Log.Info("Usage service initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		healthhandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		usagehandler.NewUsageHandler(usageService, ratingService, cfg.Log),
	)
	serverApp.AddBackground(eventConsumer.Run)
	serverApp.Run()
}
