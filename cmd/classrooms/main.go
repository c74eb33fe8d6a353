package main

import (
	bookingsrepo "classbook/internal/bookings/repository"
	"classbook/internal/classrooms/handler"
	"classbook/internal/classrooms/repository"
	"classbook/internal/classrooms/service"
	"classbook/internal/classrooms/validator"
	"classbook/pkg/app"
	"classbook/pkg/config"
)

const ServiceName = "classrooms"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Classrooms service")
	classroomService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewClassroomHandler(classroomService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ClassroomService {
	classroomValidator := validator.NewClassroomValidator(cfg.Log)
	classroomRepo := repository.NewMongoClassroomRepository(cfg)
	bookingRepo := bookingsrepo.NewMongoBookingRepository(cfg)

	classroomService := service.NewClassroomService(
		classroomRepo,
		bookingRepo,
		classroomValidator,
		cfg,
	)

	cfg.Log.Info("Classroom service initialized", "database", cfg.MongoDatabaseName)
	return classroomService
}
