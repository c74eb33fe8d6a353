package service

import (
	"context"
	"errors"
	"sync"

	bookingsrepo "classbook/internal/bookings/repository"
	classroomserrors "classbook/internal/classrooms/errors"
	"classbook/internal/classrooms/ledger"
	"classbook/internal/classrooms/repository"
	"classbook/internal/classrooms/validator"
	"classbook/pkg/auth"
	"classbook/pkg/config"
	apperrors "classbook/pkg/errors"
	"classbook/pkg/model"
	"classbook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/mongo"
)

type ClassroomService interface {
	Create(ctx context.Context, identity auth.Identity, classroom *model.Classroom) error
	GetByID(ctx context.Context, id string) (*model.Classroom, error)
	GetAll(ctx context.Context, onlyAvailable bool, limit int, offset int64) ([]*model.Classroom, int64, error)
	Update(ctx context.Context, identity auth.Identity, id string, updates *model.ClassroomUpdate) (*model.Classroom, error)
	Delete(ctx context.Context, identity auth.Identity, id string) error
}

type classroomService struct {
	repo        repository.ClassroomRepository
	bookingRepo bookingsrepo.BookingRepository
	validator   *validator.ClassroomValidator
	cfg         *config.Config
}

func NewClassroomService(
	repo repository.ClassroomRepository,
	bookingRepo bookingsrepo.BookingRepository,
	classroomValidator *validator.ClassroomValidator,
	cfg *config.Config,
) ClassroomService {
	return &classroomService{
		repo:        repo,
		bookingRepo: bookingRepo,
		validator:   classroomValidator,
		cfg:         cfg,
	}
}

func (s *classroomService) Create(ctx context.Context, identity auth.Identity, classroom *model.Classroom) error {
	if err := requireStaff(identity); err != nil {
		return err
	}

	s.sanitize(classroom)
	ledger.Initialize(classroom)

	if err := s.validate(classroom); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, classroom); err != nil {
		if errors.Is(err, classroomserrors.ErrDuplicateRoomNumber) {
			return apperrors.Conflict("A classroom with this room number already exists")
		}
		s.cfg.Log.Error("Failed to create classroom", "room_number", classroom.RoomNumber, "error", err)
		return apperrors.Internal("Failed to create classroom", err)
	}

	s.cfg.Log.Info("Classroom created successfully",
		"id", classroom.ID,
		"room_number", classroom.RoomNumber,
		"total_hours", classroom.TotalHours,
	)
	return nil
}

func (s *classroomService) GetByID(ctx context.Context, id string) (*model.Classroom, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Classroom ID cannot be empty")
	}

	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapClassroomLookupError(err, id)
	}

	return classroom, nil
}

func (s *classroomService) GetAll(ctx context.Context, onlyAvailable bool, limit int, offset int64) ([]*model.Classroom, int64, error) {
	var count int64
	var classrooms []*model.Classroom
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, onlyAvailable)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count classrooms", "error", errCount)
			errCount = apperrors.Internal("Failed to count classrooms", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		classrooms, errFind = s.repo.FindAll(ctx, onlyAvailable, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list classrooms", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve classrooms", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return classrooms, count, nil
}

func (s *classroomService) Update(ctx context.Context, identity auth.Identity, id string, updates *model.ClassroomUpdate) (*model.Classroom, error) {
	if err := requireStaff(identity); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperrors.InvalidInput("Classroom ID cannot be empty")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Classroom update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	var merged *model.Classroom
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		existing, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return mapClassroomLookupError(err, id)
		}

		merged = s.mergeClassroomUpdates(existing, updates)

		// Budget changes go through the ledger so committed booking
		// hours stay accounted for.
		if updates.TotalHours != nil {
			if err := ledger.ReconcileTotalHours(merged, *updates.TotalHours); err != nil {
				return err
			}
		}

		if err := s.validate(merged); err != nil {
			return err
		}

		if _, err := s.repo.Update(sessCtx, id, merged); err != nil {
			if errors.Is(err, classroomserrors.ErrDuplicateRoomNumber) {
				return apperrors.Conflict("A classroom with this room number already exists")
			}
			return apperrors.Internal("Failed to update classroom", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Classroom update refused or failed", "id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Classroom updated successfully", "id", id)
	return merged, nil
}

// Delete removes a classroom and cascades to all of its bookings.
func (s *classroomService) Delete(ctx context.Context, identity auth.Identity, id string) error {
	if err := requireStaff(identity); err != nil {
		return err
	}
	if id == "" {
		return apperrors.InvalidInput("Classroom ID cannot be empty")
	}

	var removedBookings int64
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Delete(sessCtx, id); err != nil {
			return mapClassroomLookupError(err, id)
		}

		deleted, err := s.bookingRepo.DeleteByClassroom(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to delete classroom bookings", err)
		}
		removedBookings = deleted

		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete classroom", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Classroom deleted successfully", "id", id, "cascaded_bookings", removedBookings)
	return nil
}

// --- Helpers ---

func (s *classroomService) sanitize(c *model.Classroom) {
	c.RoomNumber = sanitizer.NormalizeRoomNumber(c.RoomNumber)
	c.Name = sanitizer.NormalizeName(c.Name)
}

func (s *classroomService) mergeClassroomUpdates(existing *model.Classroom, updates *model.ClassroomUpdate) *model.Classroom {
	merged := *existing

	if updates.RoomNumber != "" {
		merged.RoomNumber = sanitizer.NormalizeRoomNumber(updates.RoomNumber)
	}
	if updates.Name != "" {
		merged.Name = sanitizer.NormalizeName(updates.Name)
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}

	return &merged
}

func (s *classroomService) validate(classroom *model.Classroom) error {
	if err := s.validator.Validate(classroom); err != nil {
		s.cfg.Log.Warn("Classroom validation failed", "error", err)
		return apperrors.Validation("Classroom validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func mapClassroomLookupError(err error, id string) error {
	if errors.Is(err, classroomserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Classroom", id)
	}
	if errors.Is(err, classroomserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid classroom ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to retrieve classroom", err)
}

func requireStaff(identity auth.Identity) error {
	if identity.IsStaff {
		return nil
	}
	return apperrors.Forbidden("Staff privileges required")
}
