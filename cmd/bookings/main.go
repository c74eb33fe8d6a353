package main

import (
	"classbook/internal/bookings/events"
	"classbook/internal/bookings/handler"
	"classbook/internal/bookings/repository"
	"classbook/internal/bookings/service"
	"classbook/internal/bookings/validator"
	classroomsrepo "classbook/internal/classrooms/repository"
	"classbook/pkg/app"
	"classbook/pkg/config"
	"classbook/pkg/kafka"
	kafka_config "classbook/pkg/kafka/config"
	kafka_middleware "classbook/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")

	publisher := initPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	}()

	bookingService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.BookingService {
	bookingValidator := validator.NewBookingValidator(cfg.MaxUserBookingHours, cfg.Log)
	bookingRepo := repository.NewMongoBookingRepository(cfg)
	lockRepo := repository.NewClassroomLockRepository(cfg)
	classroomRepo := classroomsrepo.NewMongoClassroomRepository(cfg)

	bookingService := service.NewBookingService(
		bookingRepo,
		lockRepo,
		classroomRepo,
		bookingValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)
	return bookingService
}

func initPublisher(cfg *config.Config) events.Publisher {
	if !cfg.BookingEventsEnabled {
		cfg.Log.Info("Booking event stream disabled")
		return events.NoopPublisher{}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}

	cfg.Log.Info("Booking event stream enabled",
		"topic", cfg.BookingEventsTopic,
		"dlq_topic", cfg.BookingEventsDLQTopic,
	)
	return events.NewKafkaPublisher(producer, ServiceName, cfg.Log)
}
