package model

import (
	"time"
)

// Booking reserves a half-open time interval [StartTime, EndTime) on one
// classroom for one user. Classroom and user references are immutable
// after creation; only the time range changes through the edit flow.
type Booking struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ClassroomID string    `json:"classroom_id" bson:"classroom_id" validate:"required,mongodb"`
	UserID      string    `json:"user_id" bson:"user_id" validate:"required,min=1,max=100"`
	StartTime   time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// DurationHours derives the booked duration in hours.
func (b *Booking) DurationHours() float64 {
	return b.EndTime.Sub(b.StartTime).Hours()
}

// Overlaps reports whether the booking shares any instant with
// [start, end), using half-open interval semantics.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// BookingCandidate carries the user-submitted fields of a new booking.
// The acting user comes from the authenticated identity, never the payload.
type BookingCandidate struct {
	ClassroomID string    `json:"classroom_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// BookingUpdate carries editable booking fields. The classroom is pinned
// to the existing booking; only the time range may change.
type BookingUpdate struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// CalendarEvent is a render-ready entry for the bookings overview calendar.
type CalendarEvent struct {
	BookingID string `json:"booking_id"`
	Title     string `json:"title"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Color     string `json:"color"`
}
