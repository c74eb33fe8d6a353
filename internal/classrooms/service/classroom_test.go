package service

import (
	"context"
	"testing"
	"time"

	classroomserrors "classbook/internal/classrooms/errors"
	"classbook/internal/classrooms/validator"
	"classbook/pkg/auth"
	"classbook/pkg/config"
	mongotx "classbook/pkg/db/mongo"
	apperrors "classbook/pkg/errors"
	"classbook/pkg/logger"
	"classbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

// Mock repositories for testing

type mockClassroomRepository struct {
	createFunc   func(ctx context.Context, classroom *model.Classroom) error
	findByIDFunc func(ctx context.Context, id string) (*model.Classroom, error)
	deleteFunc   func(ctx context.Context, id string) error

	created []*model.Classroom
	updated []*model.Classroom
	deleted []string
}

func (m *mockClassroomRepository) Create(ctx context.Context, classroom *model.Classroom) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, classroom)
	}
	classroom.ID = "65f000000000000000000001"
	m.created = append(m.created, classroom)
	return nil
}

func (m *mockClassroomRepository) FindByID(ctx context.Context, id string) (*model.Classroom, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, classroomserrors.ErrNotFound
}

func (m *mockClassroomRepository) FindByRoomNumber(ctx context.Context, roomNumber string) (*model.Classroom, error) {
	return nil, classroomserrors.ErrNotFound
}

func (m *mockClassroomRepository) FindAll(ctx context.Context, onlyAvailable bool, limit int, offset int64) ([]*model.Classroom, error) {
	return []*model.Classroom{}, nil
}

func (m *mockClassroomRepository) Update(ctx context.Context, id string, classroom *model.Classroom) (*mongo.UpdateResult, error) {
	snapshot := *classroom
	m.updated = append(m.updated, &snapshot)
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *mockClassroomRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockClassroomRepository) Count(ctx context.Context, onlyAvailable bool) (int64, error) {
	return 0, nil
}

func (m *mockClassroomRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockBookingRepositoryStub struct {
	deletedByClassroom []string
	cascadeCount       int64
}

func (m *mockBookingRepositoryStub) Create(ctx context.Context, booking *model.Booking) error {
	return nil
}

func (m *mockBookingRepositoryStub) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepositoryStub) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepositoryStub) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepositoryStub) FindByClassroom(ctx context.Context, classroomID string, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepositoryStub) FindActiveByUserAndClassroom(ctx context.Context, userID, classroomID, excludeBookingID string) (*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepositoryStub) FindInRange(ctx context.Context, startTime, endTime *time.Time, limit int, offset int64) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepositoryStub) Update(ctx context.Context, id string, booking *model.Booking) (*mongo.UpdateResult, error) {
	return nil, nil
}

func (m *mockBookingRepositoryStub) Delete(ctx context.Context, id string) error { return nil }

func (m *mockBookingRepositoryStub) DeleteByClassroom(ctx context.Context, classroomID string) (int64, error) {
	m.deletedByClassroom = append(m.deletedByClassroom, classroomID)
	return m.cascadeCount, nil
}

func (m *mockBookingRepositoryStub) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockBookingRepositoryStub) CountByUser(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepositoryStub) CountByClassroom(ctx context.Context, classroomID string, startTime, endTime *time.Time) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepositoryStub) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

// Test fixtures

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:     "error",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
	}
}

func newService(repo *mockClassroomRepository, bookingRepo *mockBookingRepositoryStub) *classroomService {
	cfg := testConfig()
	return &classroomService{
		repo:        repo,
		bookingRepo: bookingRepo,
		validator:   validator.NewClassroomValidator(cfg.Log),
		cfg:         cfg,
	}
}

var (
	staff   = auth.Identity{UserID: "staff-1", IsStaff: true}
	student = auth.Identity{UserID: "user-1"}
)

// Tests

func TestCreate_InitializesBudget(t *testing.T) {
	repo := &mockClassroomRepository{}
	svc := newService(repo, &mockBookingRepositoryStub{})

	classroom := &model.Classroom{
		RoomNumber: " b204 ",
		Name:       "  Physics   Lab ",
		Capacity:   30,
		TotalHours: 12,
		HoursLeft:  3, // Client-supplied value must be overwritten
	}

	if err := svc.Create(context.Background(), staff, classroom); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if classroom.HoursLeft != 12 {
		t.Errorf("HoursLeft = %v, want 12", classroom.HoursLeft)
	}
	if !classroom.IsAvailable {
		t.Error("IsAvailable = false, want true")
	}
	if classroom.RoomNumber != "B204" {
		t.Errorf("RoomNumber = %q, want %q", classroom.RoomNumber, "B204")
	}
	if classroom.Name != "Physics Lab" {
		t.Errorf("Name = %q, want %q", classroom.Name, "Physics Lab")
	}
}

func TestCreate_RequiresStaff(t *testing.T) {
	repo := &mockClassroomRepository{}
	svc := newService(repo, &mockBookingRepositoryStub{})

	err := svc.Create(context.Background(), student, &model.Classroom{
		RoomNumber: "B204",
		Name:       "Physics Lab",
		Capacity:   30,
		TotalHours: 12,
	})
	if apperrors.AsAppError(err).Code != apperrors.CodeForbidden {
		t.Errorf("error code = %s, want %s", apperrors.AsAppError(err).Code, apperrors.CodeForbidden)
	}
	if len(repo.created) != 0 {
		t.Error("classroom created by non-staff user")
	}
}

func TestCreate_DuplicateRoomNumber(t *testing.T) {
	repo := &mockClassroomRepository{
		createFunc: func(ctx context.Context, classroom *model.Classroom) error {
			return classroomserrors.ErrDuplicateRoomNumber
		},
	}
	svc := newService(repo, &mockBookingRepositoryStub{})

	err := svc.Create(context.Background(), staff, &model.Classroom{
		RoomNumber: "B204",
		Name:       "Physics Lab",
		Capacity:   30,
		TotalHours: 12,
	})
	if apperrors.AsAppError(err).Code != apperrors.CodeConflict {
		t.Errorf("error code = %s, want %s", apperrors.AsAppError(err).Code, apperrors.CodeConflict)
	}
}

func TestUpdate_ReconcilesBudget(t *testing.T) {
	existing := &model.Classroom{
		ID:          "65f000000000000000000001",
		RoomNumber:  "B204",
		Name:        "Physics Lab",
		Capacity:    30,
		TotalHours:  10,
		HoursLeft:   4, // 6 hours committed
		IsAvailable: true,
	}

	t.Run("raising the ceiling grants hours", func(t *testing.T) {
		repo := &mockClassroomRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.Classroom, error) {
				copied := *existing
				return &copied, nil
			},
		}
		svc := newService(repo, &mockBookingRepositoryStub{})

		newTotal := 15.0
		updated, err := svc.Update(context.Background(), staff, existing.ID, &model.ClassroomUpdate{TotalHours: &newTotal})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.TotalHours != 15 || updated.HoursLeft != 9 {
			t.Errorf("got total=%v left=%v, want total=15 left=9", updated.TotalHours, updated.HoursLeft)
		}
	})

	t.Run("lowering below committed hours is refused and aborts the update", func(t *testing.T) {
		repo := &mockClassroomRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.Classroom, error) {
				copied := *existing
				return &copied, nil
			},
		}
		svc := newService(repo, &mockBookingRepositoryStub{})

		newTotal := 5.0 // Only 6 hours committed, so at most 5 < 6 fails
		_, err := svc.Update(context.Background(), staff, existing.ID, &model.ClassroomUpdate{TotalHours: &newTotal})
		if apperrors.AsAppError(err).Code != apperrors.CodeInvalidConfiguration {
			t.Errorf("error code = %s, want %s", apperrors.AsAppError(err).Code, apperrors.CodeInvalidConfiguration)
		}
		if len(repo.updated) != 0 {
			t.Error("classroom persisted despite refused reconcile")
		}
	})

	t.Run("non-budget fields pass through the merge", func(t *testing.T) {
		repo := &mockClassroomRepository{
			findByIDFunc: func(ctx context.Context, id string) (*model.Classroom, error) {
				copied := *existing
				return &copied, nil
			},
		}
		svc := newService(repo, &mockBookingRepositoryStub{})

		capacity := 45
		updated, err := svc.Update(context.Background(), staff, existing.ID, &model.ClassroomUpdate{
			Name:     "Chemistry Lab",
			Capacity: &capacity,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.Name != "Chemistry Lab" || updated.Capacity != 45 {
			t.Errorf("got name=%q capacity=%d", updated.Name, updated.Capacity)
		}
		if updated.TotalHours != 10 || updated.HoursLeft != 4 {
			t.Errorf("budget changed without a total_hours update: total=%v left=%v", updated.TotalHours, updated.HoursLeft)
		}
	})
}

func TestUpdate_RequiresStaff(t *testing.T) {
	svc := newService(&mockClassroomRepository{}, &mockBookingRepositoryStub{})

	name := "New Name"
	_, err := svc.Update(context.Background(), student, "65f000000000000000000001", &model.ClassroomUpdate{Name: name})
	if apperrors.AsAppError(err).Code != apperrors.CodeForbidden {
		t.Errorf("error code = %s, want %s", apperrors.AsAppError(err).Code, apperrors.CodeForbidden)
	}
}

func TestDelete_CascadesToBookings(t *testing.T) {
	repo := &mockClassroomRepository{}
	bookingRepo := &mockBookingRepositoryStub{cascadeCount: 3}
	svc := newService(repo, bookingRepo)

	id := "65f000000000000000000001"
	if err := svc.Delete(context.Background(), staff, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.deleted) != 1 || repo.deleted[0] != id {
		t.Errorf("classroom deletions = %v, want [%s]", repo.deleted, id)
	}
	if len(bookingRepo.deletedByClassroom) != 1 || bookingRepo.deletedByClassroom[0] != id {
		t.Errorf("booking cascade = %v, want [%s]", bookingRepo.deletedByClassroom, id)
	}
}

func TestDelete_MissingClassroom(t *testing.T) {
	repo := &mockClassroomRepository{
		deleteFunc: func(ctx context.Context, id string) error {
			return classroomserrors.ErrNotFound
		},
	}
	bookingRepo := &mockBookingRepositoryStub{}
	svc := newService(repo, bookingRepo)

	err := svc.Delete(context.Background(), staff, "65f000000000000000000001")
	if apperrors.AsAppError(err).Code != apperrors.CodeNotFound {
		t.Errorf("error code = %s, want %s", apperrors.AsAppError(err).Code, apperrors.CodeNotFound)
	}
	if len(bookingRepo.deletedByClassroom) != 0 {
		t.Error("bookings cascaded for a missing classroom")
	}
}
