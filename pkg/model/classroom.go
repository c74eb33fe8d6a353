package model

import (
	"time"
)

// Classroom is shared state referenced by many bookings. Its hour budget
// (TotalHours/HoursLeft) must only be mutated through the ledger package,
// never by assigning fields directly.
type Classroom struct {
	ID         string  `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RoomNumber string  `json:"room_number" bson:"room_number" validate:"required,min=1,max=20"`
	Name       string  `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Capacity   int     `json:"capacity" bson:"capacity" validate:"required,min=1,max=500"`
	TotalHours float64 `json:"total_hours" bson:"total_hours" validate:"gte=0"`
	HoursLeft  float64 `json:"hours_left" bson:"hours_left" validate:"gte=0"`

	// IsAvailable is derived display state: true iff HoursLeft > 0.
	IsAvailable bool `json:"is_available" bson:"is_available"`

	// BookedBy records the most recent booker for display only. It is a
	// weak reference and never authoritative.
	BookedBy  string    `json:"booked_by,omitempty" bson:"booked_by,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

type ClassroomUpdate struct {
	RoomNumber string   `json:"room_number,omitempty" validate:"omitempty,min=1,max=20"`
	Name       string   `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Capacity   *int     `json:"capacity,omitempty" validate:"omitempty,min=1,max=500"`
	TotalHours *float64 `json:"total_hours,omitempty" validate:"omitempty,gte=0"`
}
