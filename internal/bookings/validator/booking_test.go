package validator

import (
	"strings"
	"testing"
	"time"

	"classbook/pkg/logger"
	"classbook/pkg/model"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
}

func testClassroom(hoursLeft float64) *model.Classroom {
	return &model.Classroom{
		ID:          "65f000000000000000000001",
		RoomNumber:  "B204",
		Name:        "Physics Lab",
		Capacity:    30,
		TotalHours:  10,
		HoursLeft:   hoursLeft,
		IsAvailable: hoursLeft > 0,
	}
}

func baseCandidate(now time.Time, hoursLeft float64) Candidate {
	return Candidate{
		Classroom: testClassroom(hoursLeft),
		UserID:    "user-1",
		StartTime: now.Add(1 * time.Hour),
		EndTime:   now.Add(2 * time.Hour),
		Now:       now,
	}
}

func TestCheckCandidate_RuleOrder(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	v := NewBookingValidator(1.0, testLogger())

	tests := []struct {
		name       string
		mutate     func(c *Candidate)
		wantReason RejectionReason
	}{
		{
			name:       "missing classroom wins over everything",
			mutate:     func(c *Candidate) { c.Classroom = nil; c.StartTime = now.Add(-time.Hour) },
			wantReason: ReasonMissingClassroom,
		},
		{
			name:       "past booking",
			mutate:     func(c *Candidate) { c.StartTime = now.Add(-time.Minute) },
			wantReason: ReasonPastBooking,
		},
		{
			name: "past booking wins over non-positive duration",
			mutate: func(c *Candidate) {
				c.StartTime = now.Add(-time.Hour)
				c.EndTime = now.Add(-2 * time.Hour)
			},
			wantReason: ReasonPastBooking,
		},
		{
			name:       "non-positive duration",
			mutate:     func(c *Candidate) { c.EndTime = c.StartTime },
			wantReason: ReasonNonPositiveDuration,
		},
		{
			name:       "insufficient hours",
			mutate:     func(c *Candidate) { c.Classroom.HoursLeft = 0.5 },
			wantReason: ReasonInsufficientHours,
		},
		{
			name: "overlap conflict",
			mutate: func(c *Candidate) {
				c.ExistingBookings = []*model.Booking{{
					ID:        "65f000000000000000000099",
					StartTime: c.StartTime.Add(30 * time.Minute),
					EndTime:   c.EndTime.Add(30 * time.Minute),
				}}
			},
			wantReason: ReasonOverlapConflict,
		},
		{
			name:       "duration limit for regular users",
			mutate:     func(c *Candidate) { c.EndTime = c.StartTime.Add(90 * time.Minute); c.Classroom.HoursLeft = 5 },
			wantReason: ReasonDurationLimitExceeded,
		},
		{
			name:       "duplicate booking for regular users",
			mutate:     func(c *Candidate) { c.HasOtherBookingInClassroom = true },
			wantReason: ReasonDuplicateBooking,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCandidate(now, 10)
			tt.mutate(&c)

			rejection := v.CheckCandidate(c)
			if rejection == nil {
				t.Fatal("expected rejection, got nil")
			}
			if rejection.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", rejection.Reason, tt.wantReason)
			}
		})
	}
}

func TestCheckCandidate_OverlapMessageNamesClassroom(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	v := NewBookingValidator(1.0, testLogger())

	c := baseCandidate(now, 10)
	c.ExistingBookings = []*model.Booking{{
		ID:        "65f000000000000000000099",
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
	}}

	rejection := v.CheckCandidate(c)
	if rejection == nil || rejection.Reason != ReasonOverlapConflict {
		t.Fatalf("rejection = %v, want overlap_conflict", rejection)
	}
	if !strings.Contains(rejection.Message, c.Classroom.Name) {
		t.Errorf("message %q does not name the classroom %q", rejection.Message, c.Classroom.Name)
	}
	if !strings.Contains(rejection.Message, "already booked during the selected time") {
		t.Errorf("message %q missing the booked-time phrasing", rejection.Message)
	}
}

func TestCheckCandidate_Acceptance(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	v := NewBookingValidator(1.0, testLogger())

	t.Run("valid request passes", func(t *testing.T) {
		c := baseCandidate(now, 10)
		if rejection := v.CheckCandidate(c); rejection != nil {
			t.Errorf("unexpected rejection: %v", rejection)
		}
	})

	t.Run("back to back bookings do not overlap", func(t *testing.T) {
		c := baseCandidate(now, 10)
		c.ExistingBookings = []*model.Booking{{
			ID:        "65f000000000000000000099",
			StartTime: c.EndTime,
			EndTime:   c.EndTime.Add(time.Hour),
		}}
		if rejection := v.CheckCandidate(c); rejection != nil {
			t.Errorf("unexpected rejection: %v", rejection)
		}
	})

	t.Run("excluded booking is skipped in overlap check", func(t *testing.T) {
		c := baseCandidate(now, 10)
		c.ExcludeBookingID = "65f000000000000000000099"
		c.ExistingBookings = []*model.Booking{{
			ID:        "65f000000000000000000099",
			StartTime: c.StartTime,
			EndTime:   c.EndTime,
		}}
		if rejection := v.CheckCandidate(c); rejection != nil {
			t.Errorf("unexpected rejection: %v", rejection)
		}
	})

	t.Run("staff bypass duration limit", func(t *testing.T) {
		c := baseCandidate(now, 10)
		c.IsStaff = true
		c.EndTime = c.StartTime.Add(3 * time.Hour)
		if rejection := v.CheckCandidate(c); rejection != nil {
			t.Errorf("unexpected rejection: %v", rejection)
		}
	})

	t.Run("staff bypass duplicate booking rule", func(t *testing.T) {
		c := baseCandidate(now, 10)
		c.IsStaff = true
		c.HasOtherBookingInClassroom = true
		if rejection := v.CheckCandidate(c); rejection != nil {
			t.Errorf("unexpected rejection: %v", rejection)
		}
	})

	t.Run("staff still bound by classroom budget", func(t *testing.T) {
		c := baseCandidate(now, 0.5)
		c.IsStaff = true
		rejection := v.CheckCandidate(c)
		if rejection == nil || rejection.Reason != ReasonInsufficientHours {
			t.Errorf("rejection = %v, want insufficient_hours", rejection)
		}
	})

	t.Run("exact budget fit is accepted", func(t *testing.T) {
		c := baseCandidate(now, 1)
		if rejection := v.CheckCandidate(c); rejection != nil {
			t.Errorf("unexpected rejection: %v", rejection)
		}
	})
}

func TestValidateUpdate(t *testing.T) {
	v := NewBookingValidator(1.0, testLogger())
	start := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	tests := []struct {
		name    string
		update  *model.BookingUpdate
		wantErr bool
	}{
		{"both fields valid", &model.BookingUpdate{StartTime: &start, EndTime: &end}, false},
		{"only start", &model.BookingUpdate{StartTime: &start}, false},
		{"only end", &model.BookingUpdate{EndTime: &end}, false},
		{"empty update", &model.BookingUpdate{}, true},
		{"inverted range", &model.BookingUpdate{StartTime: &end, EndTime: &start}, true},
		{"zero duration", &model.BookingUpdate{StartTime: &start, EndTime: &start}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUpdate(tt.update)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUpdate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
