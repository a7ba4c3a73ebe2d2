package queue

import (
	"time"
)

// Clock supplies the engine's notion of wall-clock time and the clinic-local
// calendar date. It exists so ETA and sweep-horizon logic can be tested with
// a fixed time.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

type systemClock struct {
	loc *time.Location
}

// NewClock returns a Clock reading the system time in the given location.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c systemClock) Today() time.Time {
	return DateOf(c.Now())
}

// DateOf returns the calendar date of t as midnight UTC. All appointment and
// queue-status dates are stored in this form so equality and ordering work
// regardless of the time component.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
