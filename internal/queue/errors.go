package queue

import (
	"errors"
)

var (
	// ErrNoSlotAvailable is returned when the slot finder exhausts its search
	// horizon. It is a normal outcome, not a failure: the sweeper records it
	// as "skipped" and slot listings translate it into an empty result.
	ErrNoSlotAvailable = errors.New("no slot available within search horizon")

	// ErrNotFound is returned when a referenced doctor or appointment does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized is returned when the acting user may not perform the
	// requested lifecycle transition.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrInvalidTransition is returned when an appointment's current status
	// does not permit the requested transition.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSlotTaken is returned when a requested time slot is already booked.
	// Concurrent bookings racing for the same slot are resolved by the
	// uniqueness constraint on (doctor, date, time_slot); the loser surfaces
	// this error and may retry with a freshly computed slot.
	ErrSlotTaken = errors.New("time slot already booked")
)
