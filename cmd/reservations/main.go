package main

import (
	"makerdesk/internal/availability"
	availabilityhandler "makerdesk/internal/availability/handler"
	availabilityrepo "makerdesk/internal/availability/repository"
	availabilityservice "makerdesk/internal/availability/service"
	"makerdesk/internal/events"
	equipmenthandler "makerdesk/internal/equipment/handler"
	equipmentrepo "makerdesk/internal/equipment/repository"
	equipmentservice "makerdesk/internal/equipment/service"
	equipmentvalidator "makerdesk/internal/equipment/validator"
	healthhandler "makerdesk/internal/health/handler"
	maintenancehandler "makerdesk/internal/maintenance/handler"
	maintenancerepo "makerdesk/internal/maintenance/repository"
	maintenanceservice "makerdesk/internal/maintenance/service"
	maintenancevalidator "makerdesk/internal/maintenance/validator"
	reservationhandler "makerdesk/internal/reservations/handler"
	reservationrepo "makerdesk/internal/reservations/repository"
	reservationservice "makerdesk/internal/reservations/service"
	"makerdesk/internal/reservations/sweep"
	reservationvalidator "makerdesk/internal/reservations/validator"
	usagehandler "makerdesk/internal/usage/handler"
	usagerepo "makerdesk/internal/usage/repository"
	usageservice "makerdesk/internal/usage/service"
	usagevalidator "makerdesk/internal/usage/validator"
	"makerdesk/pkg/app"
	"makerdesk/pkg/config"
	"makerdesk/pkg/kafka"
	kafka_config "makerdesk/pkg/kafka/config"
	kafka_middleware "makerdesk/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Reservations service")

	publisher := initPublisher(cfg)
	defer publisher.Close()

	blockRepo := availabilityrepo.NewMongoBlockRepository(cfg)
	index := availability.NewIndex(blockRepo, availability.NewLocker(), cfg.MaxOverlapFetch)

	equipmentRepo := equipmentrepo.NewMongoEquipmentRepository(cfg)
	reservationRepo := reservationrepo.NewMongoReservationRepository(cfg)
	maintenanceRepo := maintenancerepo.NewMongoMaintenanceRepository(cfg)
	ratingRepo := usagerepo.NewMongoRatingRepository(cfg)

	equipmentService := equipmentservice.NewEquipmentService(
		equipmentRepo,
		blockRepo,
		index,
		reservationRepo,
		equipmentvalidator.NewEquipmentValidator(cfg.Log),
		cfg,
	)
	reservationService := reservationservice.NewReservationService(
		reservationRepo,
		equipmentRepo,
		index,
		reservationvalidator.NewReservationValidator(cfg.Log),
		publisher,
		cfg,
	)
	maintenanceService := maintenanceservice.NewMaintenanceService(
		maintenanceRepo,
		reservationRepo,
		equipmentRepo,
		index,
		maintenancevalidator.NewMaintenanceValidator(cfg.Log),
		publisher,
		cfg,
	)
	calendarService := availabilityservice.NewCalendarService(index, equipmentRepo, cfg)
	ratingService := usageservice.NewRatingService(
		ratingRepo,
		reservationRepo,
		usagevalidator.NewRatingValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Reservations service initialized", "database", cfg.MongoDatabaseName)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		healthhandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		equipmenthandler.NewEquipmentHandler(equipmentService, cfg.Log),
		reservationhandler.NewReservationHandler(reservationService, cfg.Log),
		maintenancehandler.NewMaintenanceHandler(maintenanceService, cfg.Log),
		availabilityhandler.NewCalendarHandler(calendarService, cfg.Log),
		usagehandler.NewRatingHandler(ratingService, cfg.Log),
	)
	serverApp.AddBackground(sweep.NewSweeper(reservationService, cfg).Run)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) events.Publisher {
	kafkaCfg := kafka_config.Load()
	if err := kafkaCfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, cfg.EventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware())

	return events.NewKafkaPublisher(producer, cfg.Log)
}
