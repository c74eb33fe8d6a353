package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"classbook/pkg/logger"
	"classbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

// RejectionReason tags why a booking request was refused. Reasons are
// stable strings surfaced in API error details.
type RejectionReason string

const (
	ReasonMissingClassroom      RejectionReason = "missing_classroom"
	ReasonPastBooking           RejectionReason = "past_booking"
	ReasonNonPositiveDuration   RejectionReason = "non_positive_duration"
	ReasonInsufficientHours     RejectionReason = "insufficient_hours"
	ReasonOverlapConflict       RejectionReason = "overlap_conflict"
	ReasonDurationLimitExceeded RejectionReason = "duration_limit_exceeded"
	ReasonDuplicateBooking      RejectionReason = "duplicate_booking"
)

// Rejection is a refused booking request with its first failing rule.
type Rejection struct {
	Reason  RejectionReason
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Candidate bundles everything the rule chain needs to judge one booking
// request. The service assembles it inside the booking transaction so
// the data is consistent with what gets committed.
type Candidate struct {
	// Classroom is nil when the referenced classroom does not exist.
	Classroom *model.Classroom

	UserID    string
	StartTime time.Time
	EndTime   time.Time

	// IsStaff exempts the user from the per-user duration limit and the
	// one-booking-per-classroom rule.
	IsStaff bool

	// ExcludeBookingID skips the booking being edited in overlap and
	// duplicate checks.
	ExcludeBookingID string

	// ExistingBookings are the classroom's bookings intersecting the
	// requested window.
	ExistingBookings []*model.Booking

	// HasOtherBookingInClassroom is true when the user already holds a
	// different active booking on this classroom.
	HasOtherBookingInClassroom bool

	Now time.Time
}

type BookingValidator struct {
	validate     *validator.Validate
	maxUserHours float64
	logger       *logger.Logger
}

func NewBookingValidator(maxUserHours float64, log *logger.Logger) *BookingValidator {
	log.Info("Booking validator initialized successfully", "max_user_hours", maxUserHours)
	return &BookingValidator{
		validate:     validator.New(),
		maxUserHours: maxUserHours,
		logger:       log,
	}
}

// CheckCandidate runs the booking rules in order and returns the first
// rejection, or nil when the request is acceptable. Rule order is part
// of the API contract: callers rely on which reason wins when several
// rules fail at once.
func (v *BookingValidator) CheckCandidate(c Candidate) *Rejection {
	if c.Classroom == nil {
		return &Rejection{
			Reason:  ReasonMissingClassroom,
			Message: "classroom does not exist",
		}
	}

	if c.StartTime.Before(c.Now) {
		return &Rejection{
			Reason:  ReasonPastBooking,
			Message: "start_time cannot be in the past",
		}
	}

	if !c.EndTime.After(c.StartTime) {
		return &Rejection{
			Reason:  ReasonNonPositiveDuration,
			Message: "end_time must be after start_time",
		}
	}

	duration := c.EndTime.Sub(c.StartTime).Hours()
	if duration > c.Classroom.HoursLeft {
		return &Rejection{
			Reason: ReasonInsufficientHours,
			Message: fmt.Sprintf(
				"classroom has %.2f hours left, requested %.2f",
				c.Classroom.HoursLeft, duration,
			),
		}
	}

	for _, existing := range c.ExistingBookings {
		if existing.ID == c.ExcludeBookingID {
			continue
		}
		if existing.Overlaps(c.StartTime, c.EndTime) {
			return &Rejection{
				Reason: ReasonOverlapConflict,
				Message: fmt.Sprintf(
					"%s is already booked during the selected time (%s - %s)",
					c.Classroom.Name,
					existing.StartTime.Format(time.RFC3339),
					existing.EndTime.Format(time.RFC3339),
				),
			}
		}
	}

	if !c.IsStaff {
		if duration > v.maxUserHours {
			return &Rejection{
				Reason: ReasonDurationLimitExceeded,
				Message: fmt.Sprintf(
					"booking duration %.2f hours exceeds the per-user limit of %.2f",
					duration, v.maxUserHours,
				),
			}
		}

		if c.HasOtherBookingInClassroom {
			return &Rejection{
				Reason:  ReasonDuplicateBooking,
				Message: "user already has an active booking on this classroom",
			}
		}
	}

	return nil
}

// Validate checks the structural shape of a booking document.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := v.validate.Struct(booking); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return nil
}

// ValidateUpdate checks an edit payload. At least one field must be set
// and an explicit range must stay positive.
func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	if update.StartTime == nil && update.EndTime == nil {
		return ValidationErrors{
			ValidationError{
				Field:   "StartTime",
				Message: "at least one of start_time or end_time is required",
			},
		}
	}

	if update.StartTime != nil && update.EndTime != nil {
		if !update.EndTime.After(*update.StartTime) {
			return ValidationErrors{
				ValidationError{
					Field:   "EndTime",
					Message: "end_time must be after start_time",
				},
			}
		}
	}

	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
