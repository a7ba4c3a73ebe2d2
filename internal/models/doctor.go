package models

// Doctor represents a doctor's clinical profile. The scheduling engine treats
// one doctor as one serial queue per calendar date.
type Doctor struct {
	BaseModel
	UserID         string `gorm:"size:36;uniqueIndex" json:"userId"`
	Specialization string `gorm:"size:100" json:"specialization"`
	Department     string `gorm:"size:100" json:"department"`

	// AverageTimePerPatient is a running average in minutes. It is updated in
	// exactly one place: the queue recalculation, from completed consultation
	// durations.
	AverageTimePerPatient float64 `gorm:"default:0" json:"averageTimePerPatient"`

	IsVerified  bool `gorm:"default:false" json:"isVerified"`
	IsAvailable bool `gorm:"default:true" json:"isAvailable"`

	// Relations
	User         User                 `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Availability []AvailabilityWindow `gorm:"foreignKey:DoctorID" json:"availability,omitempty"`
}

// AvailabilityWindow describes a doctor's open hours for one weekday.
// At most one window per (doctor, weekday) is consulted; if duplicates exist
// the first by start_time wins.
type AvailabilityWindow struct {
	BaseModel
	DoctorID        string `gorm:"size:36;index:idx_doctor_weekday" json:"doctorId"`
	DayOfWeek       string `gorm:"size:9;index:idx_doctor_weekday" json:"dayOfWeek"` // lowercase weekday name, e.g. "monday"
	StartTime       string `gorm:"size:5" json:"startTime"`                          // "HH:MM"
	EndTime         string `gorm:"size:5" json:"endTime"`                            // "HH:MM"
	MaxAppointments int    `gorm:"default:20" json:"maxAppointments"`
	IsAvailable     bool   `gorm:"default:true" json:"isAvailable"`

	Doctor Doctor `gorm:"foreignKey:DoctorID" json:"-"`
}
