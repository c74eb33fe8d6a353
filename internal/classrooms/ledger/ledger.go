// Package ledger is the only place allowed to mutate a classroom's hour
// budget. Callers load the classroom, apply ledger operations in memory,
// and persist the result inside the same transaction.
package ledger

import (
	"fmt"

	apperrors "classbook/pkg/errors"
	"classbook/pkg/model"
)

// Deduct charges hours for a new booking and records the booker.
// HoursLeft never goes below zero.
func Deduct(c *model.Classroom, hours float64, bookedBy string) {
	c.HoursLeft -= hours
	if c.HoursLeft < 0 {
		c.HoursLeft = 0
	}
	c.BookedBy = bookedBy
	refreshAvailability(c)
}

// Restore returns hours from a cancelled or shortened booking.
// HoursLeft never exceeds TotalHours.
func Restore(c *model.Classroom, hours float64) {
	c.HoursLeft += hours
	if c.HoursLeft > c.TotalHours {
		c.HoursLeft = c.TotalHours
	}
	refreshAvailability(c)
}

// ReconcileTotalHours moves the budget ceiling while keeping committed
// hours intact. Raising the ceiling grants the extra hours to HoursLeft;
// lowering it takes them back. The change is refused when committed
// bookings would exceed the new ceiling.
func ReconcileTotalHours(c *model.Classroom, newTotal float64) error {
	delta := newTotal - c.TotalHours
	newLeft := c.HoursLeft + delta

	if newLeft < 0 {
		return apperrors.InvalidConfiguration(fmt.Sprintf(
			"cannot reduce total hours to %.2f: %.2f hours are already committed to bookings",
			newTotal, c.TotalHours-c.HoursLeft,
		))
	}

	if newLeft > newTotal {
		newLeft = newTotal
	}

	c.TotalHours = newTotal
	c.HoursLeft = newLeft
	refreshAvailability(c)
	return nil
}

// Initialize sets the budget of a newly created classroom: the full
// allotment is available.
func Initialize(c *model.Classroom) {
	c.HoursLeft = c.TotalHours
	refreshAvailability(c)
}

func refreshAvailability(c *model.Classroom) {
	c.IsAvailable = c.HoursLeft > 0
}
