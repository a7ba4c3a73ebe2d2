package queue

import (
	"fmt"
	"math"
	"strings"
	"time"

	"clinic-queue-server/internal/models"
)

// SlotFinder searches forward in a doctor's calendar for the next open,
// unbooked appointment slot. It is read-only: candidate slots are generated
// from availability windows and filtered against existing bookings, and any
// race with a concurrent booking is resolved by the slot uniqueness
// constraint at persistence time.
type SlotFinder struct {
	store          Store
	defaultMinutes int
	minMinutes     int
	horizonDays    int
}

// NewSlotFinder builds a SlotFinder with the given tuning values. Zero or
// negative values fall back to the engine defaults (10-minute slots, 5-minute
// floor, 30-day horizon).
func NewSlotFinder(store Store, defaultMinutes, minMinutes, horizonDays int) *SlotFinder {
	if defaultMinutes <= 0 {
		defaultMinutes = 10
	}
	if minMinutes <= 0 {
		minMinutes = 5
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &SlotFinder{
		store:          store,
		defaultMinutes: defaultMinutes,
		minMinutes:     minMinutes,
		horizonDays:    horizonDays,
	}
}

// SlotMinutes resolves the slot duration for a doctor: the stored average
// rounded to whole minutes, floored at the minimum, defaulting when unset.
func (f *SlotFinder) SlotMinutes(doctor *models.Doctor) int {
	if doctor == nil || doctor.AverageTimePerPatient <= 0 {
		return f.defaultMinutes
	}
	minutes := int(math.Round(doctor.AverageTimePerPatient))
	if minutes < f.minMinutes {
		minutes = f.minMinutes
	}
	return minutes
}

// FindNext returns the first free (date, "HH:MM") slot for the doctor at or
// after start, scanning at most the configured horizon. ErrNoSlotAvailable
// means the horizon was exhausted.
func (f *SlotFinder) FindNext(doctor *models.Doctor, start time.Time) (time.Time, string, error) {
	startDate := DateOf(start)

	for offset := 0; offset < f.horizonDays; offset++ {
		date := startDate.AddDate(0, 0, offset)

		candidates, err := f.DaySlots(doctor, date)
		if err != nil {
			return time.Time{}, "", err
		}
		if len(candidates) == 0 {
			continue
		}

		booked, err := f.store.BookedSlots(doctor.ID, date)
		if err != nil {
			return time.Time{}, "", err
		}

		for _, slot := range candidates {
			if !booked[slot] {
				return date, slot, nil
			}
		}
	}

	return time.Time{}, "", ErrNoSlotAvailable
}

// DaySlots generates the candidate start times for a doctor on one date from
// that weekday's availability window, at slot-duration increments, capped at
// the window's appointment limit. An empty result means the day is closed.
func (f *SlotFinder) DaySlots(doctor *models.Doctor, date time.Time) ([]string, error) {
	weekday := Weekday(date)
	window, err := f.store.WindowFor(doctor.ID, weekday)
	if err != nil {
		return nil, err
	}
	if window == nil || !window.IsAvailable {
		return nil, nil
	}

	startMin, err := parseClock(window.StartTime)
	if err != nil {
		return nil, fmt.Errorf("availability window %s has bad start time: %w", window.ID, err)
	}
	endMin, err := parseClock(window.EndTime)
	if err != nil {
		return nil, fmt.Errorf("availability window %s has bad end time: %w", window.ID, err)
	}

	duration := f.SlotMinutes(doctor)
	limit := window.MaxAppointments

	var slots []string
	for t := startMin; t+duration <= endMin; t += duration {
		if limit > 0 && len(slots) >= limit {
			break
		}
		slots = append(slots, formatClock(t))
	}
	return slots, nil
}

// OpenSlots returns the candidate slots for a doctor-date minus the ones
// already booked, in chronological order. Used by the available-slots
// listing; an empty result is a normal outcome.
func (f *SlotFinder) OpenSlots(doctor *models.Doctor, date time.Time) ([]string, error) {
	candidates, err := f.DaySlots(doctor, date)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	booked, err := f.store.BookedSlots(doctor.ID, date)
	if err != nil {
		return nil, err
	}

	var open []string
	for _, slot := range candidates {
		if !booked[slot] {
			open = append(open, slot)
		}
	}
	return open, nil
}

// Weekday returns the lowercase weekday name used by availability windows.
func Weekday(date time.Time) string {
	return strings.ToLower(date.Weekday().String())
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// formatClock converts minutes since midnight into "HH:MM".
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
