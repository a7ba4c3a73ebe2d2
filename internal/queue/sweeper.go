package queue

import (
	"errors"
	"fmt"
	"log"
	"time"

	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/notify"
)

// SweepMove records one relocated appointment.
type SweepMove struct {
	AppointmentID string `json:"appointmentId"`
	OldDate       string `json:"oldDate"`
	OldTime       string `json:"oldTime"`
	NewDate       string `json:"newDate"`
	NewTime       string `json:"newTime"`
}

// SweepSkip records an appointment the sweep could not place.
type SweepSkip struct {
	AppointmentID string `json:"appointmentId"`
	Reason        string `json:"reason"`
}

// SweepError records an appointment whose relocation failed.
type SweepError struct {
	AppointmentID string `json:"appointmentId"`
	Error         string `json:"error"`
}

// SweepResult is the sweep's complete contract with its caller.
type SweepResult struct {
	Moved   []SweepMove  `json:"moved"`
	Skipped []SweepSkip  `json:"skipped"`
	Errors  []SweepError `json:"errors"`
}

// Sweeper relocates stale appointments: anything dated before today that is
// not completed, cancelled, or no-show gets moved forward to the doctor's
// next free slot. Each appointment is processed in its own transaction so
// one failure never aborts the rest of the sweep.
type Sweeper struct {
	store    Store
	finder   *SlotFinder
	recalc   *Recalculator
	notifier notify.Notifier
	clock    Clock
}

// NewSweeper builds a Sweeper from the engine pieces it coordinates.
func NewSweeper(store Store, finder *SlotFinder, recalc *Recalculator, notifier notify.Notifier, clock Clock) *Sweeper {
	return &Sweeper{
		store:    store,
		finder:   finder,
		recalc:   recalc,
		notifier: notifier,
		clock:    clock,
	}
}

// Sweep processes every stale appointment, oldest and most advanced in queue
// first. Appointments with no free slot inside the search horizon are
// skipped with reason "no_slot_found" and left untouched for manual
// intervention. The returned error covers only the initial selection; all
// per-appointment failures land in the result's Errors list.
func (s *Sweeper) Sweep() (SweepResult, error) {
	result := SweepResult{
		Moved:   []SweepMove{},
		Skipped: []SweepSkip{},
		Errors:  []SweepError{},
	}

	today := s.clock.Today()
	stale, err := s.store.StaleAppointments(today)
	if err != nil {
		return result, fmt.Errorf("select stale appointments: %w", err)
	}

	for i := range stale {
		appt := &stale[i]

		move, skip, err := s.relocate(appt, today)
		switch {
		case err != nil:
			log.Printf("sweep: appointment %s: %v", appt.ID, err)
			result.Errors = append(result.Errors, SweepError{AppointmentID: appt.ID, Error: err.Error()})
		case skip != nil:
			result.Skipped = append(result.Skipped, *skip)
		default:
			result.Moved = append(result.Moved, *move)
		}
	}

	return result, nil
}

// relocate moves one appointment to the doctor's next free slot at or after
// today. The slot search never looks into the past, so a moved appointment
// always lands on today or later.
func (s *Sweeper) relocate(appt *models.Appointment, today time.Time) (*SweepMove, *SweepSkip, error) {
	doctor, err := s.store.DoctorByID(appt.DoctorID)
	if err != nil {
		return nil, nil, fmt.Errorf("load doctor %s: %w", appt.DoctorID, err)
	}

	newDate, newSlot, err := s.finder.FindNext(doctor, today)
	if errors.Is(err, ErrNoSlotAvailable) {
		return nil, &SweepSkip{AppointmentID: appt.ID, Reason: "no_slot_found"}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find slot: %w", err)
	}

	oldDate := appt.AppointmentDate
	oldSlot := appt.TimeSlot

	err = s.store.InTx(func(tx Store) error {
		seq, err := tx.NextTokenSeq(appt.DoctorID, newDate)
		if err != nil {
			return err
		}

		appt.TokenNumber = FormatToken(seq)
		appt.AppointmentDate = newDate
		appt.TimeSlot = newSlot
		appt.Status = models.StatusScheduled
		appt.EstimatedWaitMinutes = 0
		appt.EstimatedTime = nil
		return tx.SaveAppointment(appt)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("relocate: %w", err)
	}

	// Notification and recalculation run after the relocation committed;
	// their failures are logged but never undo the move.
	move := &SweepMove{
		AppointmentID: appt.ID,
		OldDate:       oldDate.Format("2006-01-02"),
		OldTime:       oldSlot,
		NewDate:       newDate.Format("2006-01-02"),
		NewTime:       newSlot,
	}

	message := fmt.Sprintf("Your appointment with %s has been moved from %s at %s to %s at %s.",
		doctor.User.FullName(), move.OldDate, move.OldTime, move.NewDate, move.NewTime)
	if err := s.notifier.Notify(appt.PatientID, "Appointment rescheduled", message,
		models.CategoryAppointment, appt.ID, map[string]interface{}{
			"old_date": move.OldDate,
			"old_time": move.OldTime,
			"new_date": move.NewDate,
			"new_time": move.NewTime,
		}); err != nil {
		log.Printf("sweep: notify patient %s: %v", appt.PatientID, err)
	}

	for _, date := range []time.Time{oldDate, newDate} {
		if err := s.recalc.Recalculate(appt.DoctorID, date); err != nil {
			log.Printf("sweep: recalculate %s %s: %v", appt.DoctorID, date.Format("2006-01-02"), err)
		}
	}

	return move, nil, nil
}
