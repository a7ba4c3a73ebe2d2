package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusWaiting    AppointmentStatus = "waiting"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

// ParseAppointmentStatus converts a string into a declared status value.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch AppointmentStatus(s) {
	case StatusScheduled, StatusConfirmed, StatusWaiting, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return AppointmentStatus(s), nil
	}
	return "", fmt.Errorf("unrecognized appointment status %q", s)
}

// IsTerminal reports whether no further lifecycle transitions are allowed.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// IsWaiting reports whether the appointment is still in line for the doctor.
func (s AppointmentStatus) IsWaiting() bool {
	return s == StatusScheduled || s == StatusConfirmed || s == StatusWaiting
}

// HoldsSlot reports whether the appointment still occupies its time slot.
// Cancelled and no-show appointments free the slot for rebooking.
func (s AppointmentStatus) HoldsSlot() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Appointment represents a booked slot in a doctor's daily queue.
type Appointment struct {
	BaseModel
	PatientID  string `gorm:"size:36;index" json:"patientId"`
	DoctorID   string `gorm:"size:36;index:idx_appt_doctor_date" json:"doctorId"`
	Department string `gorm:"size:100" json:"department"`

	AppointmentDate time.Time         `gorm:"type:date;index:idx_appt_doctor_date" json:"appointmentDate"`
	TimeSlot        string            `gorm:"size:5" json:"timeSlot"` // "HH:MM"
	Status          AppointmentStatus `gorm:"size:20;default:'scheduled'" json:"status"`

	// SlotKey backs the uniqueness constraint on (doctor, date, time_slot)
	// excluding cancelled/no_show: it is NULL whenever the slot is freed, and
	// MySQL permits any number of NULLs under a unique index.
	SlotKey *string `gorm:"size:64;uniqueIndex" json:"-"`

	// QueuePosition is the 1-based rank within the doctor-date, recomputed on
	// every queue change. TokenNumber is the stable human-facing identifier,
	// assigned once at booking or relocation.
	QueuePosition int    `gorm:"default:0" json:"queuePosition"`
	TokenNumber   string `gorm:"size:20" json:"tokenNumber"`

	Reason       string `gorm:"size:255" json:"reason"`
	Notes        string `gorm:"type:text" json:"notes"`
	Prescription string `gorm:"type:text" json:"prescription"`

	EstimatedWaitMinutes int        `gorm:"default:0" json:"estimatedWaitMinutes"`
	EstimatedTime        *time.Time `json:"estimatedTime,omitempty"`

	ConsultationStartedAt *time.Time `json:"consultationStartedAt,omitempty"`
	ConsultationEndedAt   *time.Time `json:"consultationEndedAt,omitempty"`

	// Relations
	Patient User   `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  Doctor `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// BeforeSave keeps SlotKey in sync with the booked slot and status.
func (a *Appointment) BeforeSave(tx *gorm.DB) error {
	if a.Status.HoldsSlot() {
		key := fmt.Sprintf("%s|%s|%s", a.DoctorID, a.AppointmentDate.Format("2006-01-02"), a.TimeSlot)
		a.SlotKey = &key
	} else {
		a.SlotKey = nil
	}
	return nil
}
