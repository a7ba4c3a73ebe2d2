package notify

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"clinic-queue-server/internal/models"
)

// Notifier delivers a message to a user. Delivery is fire-and-forget: callers
// log failures and never roll back the operation that triggered the message.
type Notifier interface {
	Notify(userID, title, message string, category models.NotificationCategory, appointmentID string, data map[string]interface{}) error
}

// StoreNotifier persists notifications as rows the client polls over HTTP.
type StoreNotifier struct {
	db *gorm.DB
}

// NewStoreNotifier creates a Notifier backed by the notifications table.
func NewStoreNotifier(db *gorm.DB) *StoreNotifier {
	return &StoreNotifier{db: db}
}

func (n *StoreNotifier) Notify(userID, title, message string, category models.NotificationCategory, appointmentID string, data map[string]interface{}) error {
	notification := models.Notification{
		UserID:   userID,
		Title:    title,
		Message:  message,
		Category: category,
	}
	if appointmentID != "" {
		notification.AppointmentID = &appointmentID
	}
	if len(data) > 0 {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal notification data: %w", err)
		}
		notification.Data = string(payload)
	}
	return n.db.Create(&notification).Error
}
