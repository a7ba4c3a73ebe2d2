package models

import (
	"time"
)

// MedicalRecordType represents the type of medical record
type MedicalRecordType string

const (
	RecordTypeConsultation MedicalRecordType = "ConsultationNote"
	RecordTypeLabResult    MedicalRecordType = "LabResult"
	RecordTypePrescription MedicalRecordType = "Prescription"
)

// MedicalRecord represents a patient's medical record. The scheduling engine
// only writes these when a consultation ends with a record payload attached;
// everything else about record storage lives behind the HTTP surface.
type MedicalRecord struct {
	BaseModel
	PatientID     string            `gorm:"size:36;index" json:"patientId"`
	DoctorID      string            `gorm:"size:36;index" json:"doctorId"`
	AppointmentID *string           `gorm:"size:36;index" json:"appointmentId,omitempty"`
	RecordType    MedicalRecordType `gorm:"size:50;default:'ConsultationNote'" json:"recordType"`
	RecordDate    time.Time         `json:"date"`
	Title         string            `gorm:"size:255;not null" json:"title"`
	Department    string            `gorm:"size:100" json:"department"`
	Summary       string            `gorm:"type:text" json:"summary"`
	Details       string            `gorm:"type:text" json:"details"`

	// Relations
	Patient User   `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  Doctor `gorm:"foreignKey:DoctorID" json:"-"`
}
