package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	bookingserrors "classbook/internal/bookings/errors"
	"classbook/internal/bookings/events"
	"classbook/internal/bookings/repository"
	"classbook/internal/bookings/validator"
	classroomserrors "classbook/internal/classrooms/errors"
	"classbook/internal/classrooms/ledger"
	classroomsrepo "classbook/internal/classrooms/repository"
	"classbook/pkg/auth"
	"classbook/pkg/config"
	apperrors "classbook/pkg/errors"
	"classbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// Overlap checks fetch at most this many bookings around the requested
// window. A single classroom cannot hold more concurrent candidates.
const maxOverlapCheck = 30

// calendarFetchLimit caps how many bookings one calendar request renders.
const calendarFetchLimit = 500

var calendarPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728",
	"#9467bd", "#8c564b", "#e377c2", "#17becf",
}

type BookingService interface {
	Create(ctx context.Context, identity auth.Identity, candidate *model.BookingCandidate) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error)
	GetByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	SearchByClassroom(ctx context.Context, classroomID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error)
	Edit(ctx context.Context, identity auth.Identity, id string, updates *model.BookingUpdate) (*model.Booking, error)
	Cancel(ctx context.Context, identity auth.Identity, id string) error
	Calendar(ctx context.Context, startTime, endTime *time.Time) ([]*model.CalendarEvent, error)
}

type bookingService struct {
	repo          repository.BookingRepository
	lockRepo      repository.ClassroomLockRepository
	classroomRepo classroomsrepo.ClassroomRepository
	validator     *validator.BookingValidator
	events        events.Publisher
	cfg           *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.ClassroomLockRepository,
	classroomRepo classroomsrepo.ClassroomRepository,
	bookingValidator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:          repo,
		lockRepo:      lockRepo,
		classroomRepo: classroomRepo,
		validator:     bookingValidator,
		events:        publisher,
		cfg:           cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, identity auth.Identity, candidate *model.BookingCandidate) (*model.Booking, error) {
	booking := &model.Booking{
		ClassroomID: candidate.ClassroomID,
		UserID:      identity.UserID,
		StartTime:   candidate.StartTime.UTC(),
		EndTime:     candidate.EndTime.UTC(),
	}

	if err := s.validate(booking); err != nil {
		return nil, err
	}

	// Serialize all budget mutations per classroom
	lockID, err := s.acquireClassroomLock(ctx, booking.ClassroomID)
	if err != nil {
		return nil, err
	}
	defer s.releaseClassroomLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		candidateCtx, classroom, err := s.buildCandidate(sessCtx, identity, booking, "")
		if err != nil {
			return err
		}

		if rejection := s.validator.CheckCandidate(candidateCtx); rejection != nil {
			return rejectionToError(rejection)
		}

		if err := s.repo.Create(sessCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		ledger.Deduct(classroom, booking.DurationHours(), identity.UserID)
		if _, err := s.classroomRepo.Update(sessCtx, classroom.ID, classroom); err != nil {
			return apperrors.Consistency("Failed to persist classroom hour budget", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Booking creation refused or failed",
			"classroom_id", booking.ClassroomID,
			"user_id", identity.UserID,
			"error", err,
		)
		return nil, err
	}

	s.events.BookingCreated(ctx, booking)
	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"classroom_id", booking.ClassroomID,
		"user_id", booking.UserID,
		"start_time", booking.StartTime,
	)
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapBookingLookupError(err, id)
	}

	return booking, nil
}

func (s *bookingService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.listParallel(ctx,
		func() (int64, error) { return s.repo.Count(ctx) },
		func() ([]*model.Booking, error) { return s.repo.FindAll(ctx, limit, offset) },
	)
}

func (s *bookingService) GetByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}

	return s.listParallel(ctx,
		func() (int64, error) { return s.repo.CountByUser(ctx, userID) },
		func() ([]*model.Booking, error) { return s.repo.FindByUser(ctx, userID, limit, offset) },
	)
}

func (s *bookingService) SearchByClassroom(ctx context.Context, classroomID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, int64, error) {
	if classroomID == "" {
		return nil, 0, apperrors.InvalidInput("Classroom ID is required")
	}

	return s.listParallel(ctx,
		func() (int64, error) { return s.repo.CountByClassroom(ctx, classroomID, startTime, endTime) },
		func() ([]*model.Booking, error) {
			return s.repo.FindByClassroom(ctx, classroomID, startTime, endTime, limit, offset)
		},
	)
}

func (s *bookingService) Edit(ctx context.Context, identity auth.Identity, id string, updates *model.BookingUpdate) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapBookingLookupError(err, id)
	}
	if err := requireOwnership(identity, existing); err != nil {
		return nil, err
	}

	lockID, err := s.acquireClassroomLock(ctx, existing.ClassroomID)
	if err != nil {
		return nil, err
	}
	defer s.releaseClassroomLock(ctx, lockID)

	var merged *model.Booking
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// Reload under the transaction so the restore math uses the
		// committed time range.
		current, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return mapBookingLookupError(err, id)
		}

		merged = mergeBookingUpdates(current, updates)

		candidateCtx, classroom, err := s.buildCandidate(sessCtx, auth.Identity{UserID: current.UserID, IsStaff: identity.IsStaff}, merged, id)
		if err != nil {
			return err
		}
		if classroom == nil {
			return rejectionToError(s.validator.CheckCandidate(candidateCtx))
		}

		// Give back the old duration before judging the new one. The
		// transaction discards this on any rejection below.
		ledger.Restore(classroom, current.DurationHours())

		if rejection := s.validator.CheckCandidate(candidateCtx); rejection != nil {
			return rejectionToError(rejection)
		}

		ledger.Deduct(classroom, merged.DurationHours(), current.UserID)

		if _, err := s.repo.Update(sessCtx, id, merged); err != nil {
			return apperrors.Internal("Failed to update booking", err)
		}
		if _, err := s.classroomRepo.Update(sessCtx, classroom.ID, classroom); err != nil {
			return apperrors.Consistency("Failed to persist classroom hour budget", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Booking edit refused or failed", "id", id, "error", err)
		return nil, err
	}

	s.events.BookingUpdated(ctx, merged)
	s.cfg.Log.Info("Booking updated successfully", "id", id)
	return merged, nil
}

func (s *bookingService) Cancel(ctx context.Context, identity auth.Identity, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapBookingLookupError(err, id)
	}
	if err := requireOwnership(identity, existing); err != nil {
		return err
	}

	lockID, err := s.acquireClassroomLock(ctx, existing.ClassroomID)
	if err != nil {
		return err
	}
	defer s.releaseClassroomLock(ctx, lockID)

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return mapBookingLookupError(err, id)
		}

		if err := s.repo.Delete(sessCtx, id); err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", id)
			}
			return apperrors.Internal("Failed to delete booking", err)
		}

		classroom, err := s.loadClassroom(sessCtx, current.ClassroomID)
		if err != nil {
			return err
		}
		if classroom == nil {
			// Classroom already deleted; nothing to refund.
			return nil
		}

		ledger.Restore(classroom, current.DurationHours())
		if _, err := s.classroomRepo.Update(sessCtx, classroom.ID, classroom); err != nil {
			return apperrors.Consistency("Failed to persist classroom hour budget", err)
		}

		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Booking cancellation failed", "id", id, "error", err)
		return err
	}

	s.events.BookingCancelled(ctx, existing)
	s.cfg.Log.Info("Booking cancelled successfully", "id", id, "classroom_id", existing.ClassroomID)
	return nil
}

func (s *bookingService) Calendar(ctx context.Context, startTime, endTime *time.Time) ([]*model.CalendarEvent, error) {
	bookings, err := s.repo.FindInRange(ctx, startTime, endTime, calendarFetchLimit, 0)
	if err != nil {
		s.cfg.Log.Error("Failed to load bookings for calendar", "error", err)
		return nil, apperrors.Internal("Failed to load calendar", err)
	}

	classrooms := map[string]*model.Classroom{}
	calendarEvents := make([]*model.CalendarEvent, 0, len(bookings))

	for _, b := range bookings {
		classroom, ok := classrooms[b.ClassroomID]
		if !ok {
			classroom, err = s.loadClassroom(ctx, b.ClassroomID)
			if err != nil {
				return nil, err
			}
			classrooms[b.ClassroomID] = classroom
		}

		title := b.UserID
		if classroom != nil {
			title = fmt.Sprintf("%s (%s) - %s", classroom.Name, classroom.RoomNumber, b.UserID)
		}

		calendarEvents = append(calendarEvents, &model.CalendarEvent{
			BookingID: b.ID,
			Title:     title,
			Start:     b.StartTime.Format(time.RFC3339),
			End:       b.EndTime.Format(time.RFC3339),
			Color:     colorForUser(b.UserID),
		})
	}

	return calendarEvents, nil
}

// --- Helpers ---

// buildCandidate loads everything the rule chain needs under the given
// context. The returned classroom is non-nil exactly when no error is
// returned and the candidate's Classroom field is non-nil.
func (s *bookingService) buildCandidate(ctx context.Context, identity auth.Identity, booking *model.Booking, excludeID string) (validator.Candidate, *model.Classroom, error) {
	candidate := validator.Candidate{
		UserID:           booking.UserID,
		StartTime:        booking.StartTime,
		EndTime:          booking.EndTime,
		IsStaff:          identity.IsStaff,
		ExcludeBookingID: excludeID,
		Now:              time.Now().UTC(),
	}

	classroom, err := s.loadClassroom(ctx, booking.ClassroomID)
	if err != nil {
		return candidate, nil, err
	}
	candidate.Classroom = classroom
	if classroom == nil {
		return candidate, nil, nil
	}

	existing, err := s.repo.FindByClassroom(ctx, booking.ClassroomID, &booking.StartTime, &booking.EndTime, maxOverlapCheck, 0)
	if err != nil {
		return candidate, nil, apperrors.Internal("Failed to check existing bookings", err)
	}
	candidate.ExistingBookings = existing

	if !identity.IsStaff {
		active, err := s.repo.FindActiveByUserAndClassroom(ctx, booking.UserID, booking.ClassroomID, excludeID)
		if err != nil && !errors.Is(err, bookingserrors.ErrNotFound) {
			return candidate, nil, apperrors.Internal("Failed to check user bookings", err)
		}
		candidate.HasOtherBookingInClassroom = active != nil
	}

	return candidate, classroom, nil
}

// loadClassroom returns (nil, nil) when the classroom does not exist so
// the rule chain can report it as a rejection rather than a lookup error.
func (s *bookingService) loadClassroom(ctx context.Context, classroomID string) (*model.Classroom, error) {
	classroom, err := s.classroomRepo.FindByID(ctx, classroomID)
	if err != nil {
		if errors.Is(err, classroomserrors.ErrNotFound) || errors.Is(err, classroomserrors.ErrInvalidID) {
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to load classroom", err)
	}
	return classroom, nil
}

func (s *bookingService) listParallel(
	ctx context.Context,
	countFn func() (int64, error),
	findFn func() ([]*model.Booking, error),
) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = countFn()
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = findFn()
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func mergeBookingUpdates(existing *model.Booking, updates *model.BookingUpdate) *model.Booking {
	merged := *existing

	if updates.StartTime != nil {
		merged.StartTime = updates.StartTime.UTC()
	}
	if updates.EndTime != nil {
		merged.EndTime = updates.EndTime.UTC()
	}

	return &merged
}

func mapBookingLookupError(err error, id string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", id)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func rejectionToError(rejection *validator.Rejection) error {
	details := map[string]any{"reason": string(rejection.Reason)}

	if rejection.Reason == validator.ReasonOverlapConflict {
		return apperrors.Conflict(rejection.Message).WithDetails(details)
	}

	return apperrors.Validation(rejection.Message, details)
}

func requireOwnership(identity auth.Identity, booking *model.Booking) error {
	if identity.IsStaff || identity.UserID == booking.UserID {
		return nil
	}
	return apperrors.Forbidden("You can only manage your own bookings")
}

// acquireClassroomLock creates an advisory lock serializing budget
// mutations for one classroom. Returns conflict if another request holds it.
func (s *bookingService) acquireClassroomLock(ctx context.Context, classroomID string) (string, error) {
	lockID := fmt.Sprintf("classroom_lock_%s", classroomID)

	lock := &model.ClassroomLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.ClassroomLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This classroom is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire classroom lock", err)
	}

	return lockID, nil
}

func (s *bookingService) releaseClassroomLock(ctx context.Context, lockID string) {
	if err := s.lockRepo.Delete(ctx, lockID); err != nil {
		s.cfg.Log.Warn("Failed to release classroom lock", "lock_id", lockID, "error", err)
	}
}

func colorForUser(userID string) string {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return calendarPalette[h.Sum32()%uint32(len(calendarPalette))]
}
