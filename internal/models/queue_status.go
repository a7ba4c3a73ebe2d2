package models

import (
	"time"
)

// QueueStatus is the denormalized per-doctor-date queue summary. It is a
// derived cache: the queue recalculator is its sole writer and always
// overwrites the whole row.
type QueueStatus struct {
	BaseModel
	DoctorID        string    `gorm:"size:36;uniqueIndex:idx_queue_doctor_date" json:"doctorId"`
	AppointmentDate time.Time `gorm:"type:date;uniqueIndex:idx_queue_doctor_date" json:"appointmentDate"`

	CurrentToken    string `gorm:"size:20" json:"currentToken"`
	TotalTokens     int    `gorm:"default:0" json:"totalTokens"`
	CompletedTokens int    `gorm:"default:0" json:"completedTokens"`

	// AverageMinutesPerPatient is the consultation duration used for the ETA
	// math of this doctor-date, in minutes.
	AverageMinutesPerPatient float64 `gorm:"default:0" json:"averageMinutesPerPatient"`

	LastUpdated time.Time `json:"lastUpdated"`

	Doctor Doctor `gorm:"foreignKey:DoctorID" json:"-"`
}
