package models

import (
	"time"
)

// NotificationCategory groups notifications for client-side filtering.
type NotificationCategory string

const (
	CategoryAppointment  NotificationCategory = "appointment"
	CategoryConsultation NotificationCategory = "consultation"
	CategorySystem       NotificationCategory = "system"
)

// Notification represents a message delivered to a user. Delivery is
// fire-and-forget: a failed notification never rolls back the operation
// that produced it.
type Notification struct {
	BaseModel
	UserID        string               `gorm:"size:36;index" json:"userId"`
	AppointmentID *string              `gorm:"size:36;index" json:"appointmentId,omitempty"`
	Title         string               `gorm:"size:255" json:"title"`
	Message       string               `gorm:"type:text" json:"message"`
	Category      NotificationCategory `gorm:"size:30;default:'system'" json:"category"`
	Data          string               `gorm:"type:text" json:"data,omitempty"` // JSON payload
	ReadAt        *time.Time           `json:"readAt,omitempty"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}
