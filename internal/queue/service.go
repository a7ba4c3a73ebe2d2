package queue

import (
	"errors"
	"fmt"
	"log"
	"time"

	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/notify"
)

// ErrInvalidInput marks client errors rejected before any mutation: bad
// dates, unknown status values, missing fields.
var ErrInvalidInput = errors.New("invalid input")

// FormatToken renders a queue token from its per-doctor-date sequence number.
func FormatToken(seq int) string {
	return fmt.Sprintf("T-%03d", seq)
}

// Actor identifies who is invoking a lifecycle operation. Authorization for
// each transition is enforced here, at the entry to the state machine.
type Actor struct {
	UserID string
	Role   models.Role
}

// Service is the booking/lifecycle orchestrator. Every mutation runs in one
// transaction, then triggers queue recalculation for the affected
// doctor-date(s) and a patient notification. Notification failures are
// logged and never roll anything back.
type Service struct {
	store    Store
	finder   *SlotFinder
	recalc   *Recalculator
	notifier notify.Notifier
	clock    Clock
}

// NewService wires the orchestrator from the engine pieces it coordinates.
func NewService(store Store, finder *SlotFinder, recalc *Recalculator, notifier notify.Notifier, clock Clock) *Service {
	return &Service{
		store:    store,
		finder:   finder,
		recalc:   recalc,
		notifier: notifier,
		clock:    clock,
	}
}

// BookingRequest describes a new appointment. Leaving Date/TimeSlot empty
// books the doctor's next available slot.
type BookingRequest struct {
	PatientID  string
	DoctorID   string
	Department string
	Reason     string
	Date       time.Time
	TimeSlot   string
}

// Book creates a scheduled appointment with a fresh token and recomputes the
// doctor-date queue. A requested slot that is already booked surfaces
// ErrSlotTaken via the slot uniqueness constraint; callers may retry with a
// freshly computed slot.
func (s *Service) Book(req BookingRequest) (*models.Appointment, error) {
	doctor, err := s.store.DoctorByID(req.DoctorID)
	if err != nil {
		return nil, err
	}

	date := DateOf(req.Date)
	slot := req.TimeSlot
	switch {
	case req.Date.IsZero() && slot == "":
		date, slot, err = s.finder.FindNext(doctor, s.clock.Today())
		if err != nil {
			return nil, err
		}
	case slot == "":
		// Date without a slot: honor the requested day, take its first
		// open slot.
		if date.Before(s.clock.Today()) {
			return nil, fmt.Errorf("%w: appointment date must not be in the past", ErrInvalidInput)
		}
		open, err := s.finder.OpenSlots(doctor, date)
		if err != nil {
			return nil, err
		}
		if len(open) == 0 {
			return nil, ErrNoSlotAvailable
		}
		slot = open[0]
	default:
		if _, err := parseClock(slot); err != nil {
			return nil, fmt.Errorf("%w: time slot must be HH:MM", ErrInvalidInput)
		}
		if date.Before(s.clock.Today()) {
			return nil, fmt.Errorf("%w: appointment date must not be in the past", ErrInvalidInput)
		}
	}

	appt := &models.Appointment{
		PatientID:       req.PatientID,
		DoctorID:        req.DoctorID,
		Department:      req.Department,
		Reason:          req.Reason,
		AppointmentDate: date,
		TimeSlot:        slot,
		Status:          models.StatusScheduled,
	}

	err = s.store.InTx(func(tx Store) error {
		seq, err := tx.NextTokenSeq(req.DoctorID, date)
		if err != nil {
			return err
		}
		appt.TokenNumber = FormatToken(seq)
		return tx.CreateAppointment(appt)
	})
	if err != nil {
		return nil, err
	}

	s.recalculate(req.DoctorID, date)
	s.notifyPatient(appt, "Appointment booked",
		fmt.Sprintf("Your appointment with %s is booked for %s at %s. Your token is %s.",
			doctor.User.FullName(), date.Format("2006-01-02"), slot, appt.TokenNumber),
		models.CategoryAppointment, nil)

	return appt, nil
}

// StartConsultation moves a waiting appointment to in_progress and stamps the
// start time. Only the assigned doctor may start a consultation.
func (s *Service) StartConsultation(actor Actor, appointmentID string) (*models.Appointment, error) {
	appt, err := s.store.AppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDoctor(actor, appt); err != nil {
		return nil, err
	}
	if !appt.Status.IsWaiting() {
		return nil, fmt.Errorf("%w: cannot start consultation from %s", ErrInvalidTransition, appt.Status)
	}

	now := s.clock.Now()
	appt.Status = models.StatusInProgress
	appt.ConsultationStartedAt = &now

	if err := s.store.InTx(func(tx Store) error { return tx.SaveAppointment(appt) }); err != nil {
		return nil, err
	}

	s.recalculate(appt.DoctorID, appt.AppointmentDate)
	s.notifyPatient(appt, "Consultation started",
		fmt.Sprintf("Your consultation (token %s) has started.", appt.TokenNumber),
		models.CategoryConsultation, nil)

	return appt, nil
}

// MedicalRecordInput is the optional structured payload forwarded to the
// medical-record store when a consultation ends.
type MedicalRecordInput struct {
	RecordType string `json:"recordType"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Details    string `json:"details"`
}

// EndConsultationRequest closes an in-progress consultation. NoShow marks the
// patient as absent instead of completing the visit.
type EndConsultationRequest struct {
	NoShow        bool
	Notes         string
	Prescription  string
	MedicalRecord *MedicalRecordInput
}

// EndConsultation transitions in_progress to completed (stamping the end
// time) or to no_show, records optional notes/prescription, and forwards an
// optional medical-record payload. Only the assigned doctor may end a
// consultation.
func (s *Service) EndConsultation(actor Actor, appointmentID string, req EndConsultationRequest) (*models.Appointment, error) {
	appt, err := s.store.AppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDoctor(actor, appt); err != nil {
		return nil, err
	}
	if appt.Status != models.StatusInProgress {
		return nil, fmt.Errorf("%w: cannot end consultation from %s", ErrInvalidTransition, appt.Status)
	}

	if req.NoShow {
		appt.Status = models.StatusNoShow
	} else {
		now := s.clock.Now()
		appt.Status = models.StatusCompleted
		appt.ConsultationEndedAt = &now
	}
	if req.Notes != "" {
		appt.Notes = req.Notes
	}
	if req.Prescription != "" {
		appt.Prescription = req.Prescription
	}

	err = s.store.InTx(func(tx Store) error {
		if err := tx.SaveAppointment(appt); err != nil {
			return err
		}
		if req.MedicalRecord != nil {
			record := &models.MedicalRecord{
				PatientID:     appt.PatientID,
				DoctorID:      appt.DoctorID,
				AppointmentID: &appt.ID,
				RecordDate:    s.clock.Now(),
				Title:         req.MedicalRecord.Title,
				Department:    appt.Department,
				Summary:       req.MedicalRecord.Summary,
				Details:       req.MedicalRecord.Details,
			}
			if req.MedicalRecord.RecordType != "" {
				record.RecordType = models.MedicalRecordType(req.MedicalRecord.RecordType)
			}
			return tx.CreateMedicalRecord(record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recalculate(appt.DoctorID, appt.AppointmentDate)
	if req.NoShow {
		s.notifyPatient(appt, "Appointment marked as no-show",
			fmt.Sprintf("Your appointment (token %s) was marked as a no-show.", appt.TokenNumber),
			models.CategoryConsultation, nil)
	} else {
		s.notifyPatient(appt, "Consultation complete",
			fmt.Sprintf("Your consultation (token %s) is complete.", appt.TokenNumber),
			models.CategoryConsultation, nil)
	}

	return appt, nil
}

// Cancel moves any non-terminal appointment to cancelled, which frees its
// slot. The patient, the assigned doctor, or an admin may cancel.
func (s *Service) Cancel(actor Actor, appointmentID string) (*models.Appointment, error) {
	appt, err := s.store.AppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(actor, appt); err != nil {
		return nil, err
	}
	if appt.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, appt.Status)
	}

	appt.Status = models.StatusCancelled
	if err := s.store.InTx(func(tx Store) error { return tx.SaveAppointment(appt) }); err != nil {
		return nil, err
	}

	s.recalculate(appt.DoctorID, appt.AppointmentDate)
	s.notifyPatient(appt, "Appointment cancelled",
		fmt.Sprintf("Your appointment on %s at %s has been cancelled.",
			appt.AppointmentDate.Format("2006-01-02"), appt.TimeSlot),
		models.CategoryAppointment, nil)

	return appt, nil
}

// RescheduleRequest overrides parts of an appointment's slot; zero values
// keep the current doctor/date/time/department. Leaving both Date and
// TimeSlot empty picks the target doctor's next available slot.
type RescheduleRequest struct {
	DoctorID   string
	Department string
	Date       time.Time
	TimeSlot   string
}

// Reschedule re-enters a non-terminal appointment as a freshly scheduled
// slot, reassigning its token, and recomputes the queues of both the old and
// the new doctor-date. The patient, the assigned doctor, or an admin may
// reschedule.
func (s *Service) Reschedule(actor Actor, appointmentID string, req RescheduleRequest) (*models.Appointment, error) {
	appt, err := s.store.AppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(actor, appt); err != nil {
		return nil, err
	}
	if appt.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, appt.Status)
	}

	oldDoctorID := appt.DoctorID
	oldDate := appt.AppointmentDate

	targetDoctorID := appt.DoctorID
	if req.DoctorID != "" {
		targetDoctorID = req.DoctorID
	}
	doctor, err := s.store.DoctorByID(targetDoctorID)
	if err != nil {
		return nil, err
	}

	date := DateOf(req.Date)
	slot := req.TimeSlot
	if req.Date.IsZero() && slot == "" {
		date, slot, err = s.finder.FindNext(doctor, s.clock.Today())
		if err != nil {
			return nil, err
		}
	} else {
		if req.Date.IsZero() {
			date = oldDate
		}
		if slot == "" {
			slot = appt.TimeSlot
		}
		if _, err := parseClock(slot); err != nil {
			return nil, fmt.Errorf("%w: time slot must be HH:MM", ErrInvalidInput)
		}
		if date.Before(s.clock.Today()) {
			return nil, fmt.Errorf("%w: appointment date must not be in the past", ErrInvalidInput)
		}
	}

	appt.DoctorID = targetDoctorID
	if req.Department != "" {
		appt.Department = req.Department
	}
	appt.AppointmentDate = date
	appt.TimeSlot = slot
	appt.Status = models.StatusScheduled
	appt.EstimatedWaitMinutes = 0
	appt.EstimatedTime = nil

	err = s.store.InTx(func(tx Store) error {
		seq, err := tx.NextTokenSeq(targetDoctorID, date)
		if err != nil {
			return err
		}
		appt.TokenNumber = FormatToken(seq)
		return tx.SaveAppointment(appt)
	})
	if err != nil {
		return nil, err
	}

	s.recalculate(oldDoctorID, oldDate)
	if targetDoctorID != oldDoctorID || !date.Equal(oldDate) {
		s.recalculate(targetDoctorID, date)
	}
	s.notifyPatient(appt, "Appointment rescheduled",
		fmt.Sprintf("Your appointment has been rescheduled to %s at %s with %s. Your new token is %s.",
			date.Format("2006-01-02"), slot, doctor.User.FullName(), appt.TokenNumber),
		models.CategoryAppointment, map[string]interface{}{
			"new_date": date.Format("2006-01-02"),
			"new_time": slot,
		})

	return appt, nil
}

// SetStatus applies an explicit status override. Unrecognized values are
// rejected before any mutation; only the assigned doctor or an admin may
// override.
func (s *Service) SetStatus(actor Actor, appointmentID, status string) (*models.Appointment, error) {
	parsed, err := models.ParseAppointmentStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	appt, err := s.store.AppointmentByID(appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireDoctorOrAdmin(actor, appt); err != nil {
		return nil, err
	}

	appt.Status = parsed
	if err := s.store.InTx(func(tx Store) error { return tx.SaveAppointment(appt) }); err != nil {
		return nil, err
	}

	s.recalculate(appt.DoctorID, appt.AppointmentDate)
	return appt, nil
}

// Delete removes an appointment entirely and recomputes the vacated
// doctor-date. The owning patient or an admin may delete.
func (s *Service) Delete(actor Actor, appointmentID string) error {
	appt, err := s.store.AppointmentByID(appointmentID)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && !(actor.Role == models.RolePatient && actor.UserID == appt.PatientID) {
		return ErrNotAuthorized
	}

	if err := s.store.InTx(func(tx Store) error { return tx.DeleteAppointment(appt.ID) }); err != nil {
		return err
	}

	s.recalculate(appt.DoctorID, appt.AppointmentDate)
	s.notifyPatient(appt, "Appointment removed",
		fmt.Sprintf("Your appointment on %s at %s has been removed.",
			appt.AppointmentDate.Format("2006-01-02"), appt.TimeSlot),
		models.CategoryAppointment, nil)

	return nil
}

// requireAssignedDoctor permits only the doctor the appointment is booked
// with.
func (s *Service) requireAssignedDoctor(actor Actor, appt *models.Appointment) error {
	if actor.Role != models.RoleDoctor {
		return ErrNotAuthorized
	}
	doctor, err := s.store.DoctorByUserID(actor.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotAuthorized
		}
		return err
	}
	if doctor.ID != appt.DoctorID {
		return ErrNotAuthorized
	}
	return nil
}

// requireParticipant permits the owning patient, the assigned doctor, or an
// admin.
func (s *Service) requireParticipant(actor Actor, appt *models.Appointment) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RolePatient:
		if actor.UserID == appt.PatientID {
			return nil
		}
		return ErrNotAuthorized
	case models.RoleDoctor:
		return s.requireAssignedDoctor(actor, appt)
	}
	return ErrNotAuthorized
}

// requireDoctorOrAdmin permits the assigned doctor or an admin.
func (s *Service) requireDoctorOrAdmin(actor Actor, appt *models.Appointment) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	return s.requireAssignedDoctor(actor, appt)
}

func (s *Service) recalculate(doctorID string, date time.Time) {
	if err := s.recalc.Recalculate(doctorID, date); err != nil {
		log.Printf("queue: recalculate %s %s: %v", doctorID, date.Format("2006-01-02"), err)
	}
}

func (s *Service) notifyPatient(appt *models.Appointment, title, message string, category models.NotificationCategory, data map[string]interface{}) {
	if err := s.notifier.Notify(appt.PatientID, title, message, category, appt.ID, data); err != nil {
		log.Printf("queue: notify patient %s: %v", appt.PatientID, err)
	}
}
