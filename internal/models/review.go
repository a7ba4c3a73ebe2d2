package models

// DoctorReview is patient feedback for a doctor, optionally linked to the
// completed appointment it refers to.
type DoctorReview struct {
	BaseModel
	DoctorID      string  `gorm:"size:36;index" json:"doctorId"`
	PatientID     string  `gorm:"size:36;index" json:"patientId"`
	AppointmentID *string `gorm:"size:36" json:"appointmentId,omitempty"`
	Rating        int     `gorm:"not null" json:"rating"`
	Comment       string  `gorm:"type:text" json:"comment"`

	// Relations
	Doctor  Doctor `gorm:"foreignKey:DoctorID" json:"-"`
	Patient User   `gorm:"foreignKey:PatientID" json:"-"`
}
