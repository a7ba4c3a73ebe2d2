package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/queue"
	"clinic-queue-server/internal/utils"
)

// QueueHandler serves the live queue board and the per-doctor-date queue
// summaries, and exposes the stale-appointment sweep to admins.
type QueueHandler struct {
	DB      *gorm.DB
	Sweeper *queue.Sweeper
	Clock   queue.Clock
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(db *gorm.DB, sweeper *queue.Sweeper, clock queue.Clock) *QueueHandler {
	return &QueueHandler{DB: db, Sweeper: sweeper, Clock: clock}
}

// PendingToken is one waiting patient on the live board.
type PendingToken struct {
	TokenNumber string `json:"tokenNumber"`
	PatientName string `json:"patientName"`
	EtaMinutes  int    `json:"etaMinutes"`
}

// LiveQueue returns today's queue snapshot across all doctors: the token
// currently in consultation and every waiting token with its ETA.
func (h *QueueHandler) LiveQueue(c *gin.Context) {
	today := h.Clock.Today()

	// Queue position, not token text: "T-1000" sorts before "T-999"
	// lexicographically once a doctor-day outgrows the token padding.
	query := h.DB.Preload("Patient").
		Where("appointment_date = ?", today).
		Order("queue_position asc")
	if doctorID := c.Query("doctor"); doctorID != "" {
		query = query.Where("doctor_id = ?", doctorID)
	}

	var appts []models.Appointment
	if err := query.Find(&appts).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch queue: "+err.Error())
		return
	}

	current := ""
	pending := []PendingToken{}
	for _, a := range appts {
		switch {
		case a.Status == models.StatusInProgress:
			current = a.TokenNumber
		case a.Status.IsWaiting():
			pending = append(pending, PendingToken{
				TokenNumber: a.TokenNumber,
				PatientName: a.Patient.FullName(),
				EtaMinutes:  a.EstimatedWaitMinutes,
			})
		}
	}

	utils.Success(c, "Live queue fetched", gin.H{
		"currentToken":  current,
		"pendingTokens": pending,
		"total":         len(appts),
	})
}

// QueueStatusByDate lists the queue summaries for a date (today by default),
// optionally filtered to one doctor.
func (h *QueueHandler) QueueStatusByDate(c *gin.Context) {
	date := h.Clock.Today()
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			utils.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		date = queue.DateOf(parsed)
	}

	query := h.DB.Where("appointment_date = ?", date)
	if doctorID := c.Query("doctor"); doctorID != "" {
		query = query.Where("doctor_id = ?", doctorID)
	}

	var statuses []models.QueueStatus
	if err := query.Find(&statuses).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch queue status: "+err.Error())
		return
	}
	utils.Success(c, "Queue status fetched", statuses)
}

// RunSweep relocates all stale appointments to their doctors' next free
// slots and returns the aggregate result for operational monitoring.
func (h *QueueHandler) RunSweep(c *gin.Context) {
	result, err := h.Sweeper.Sweep()
	if err != nil {
		utils.InternalServerError(c, "Sweep failed: "+err.Error())
		return
	}
	utils.Success(c, "Sweep complete", result)
}
