package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-queue-server/internal/middleware"
	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/queue"
	"clinic-queue-server/internal/utils"
)

// AppointmentHandler exposes the booking/lifecycle operations over HTTP. All
// scheduling decisions live in the queue service; the handler binds requests,
// resolves the acting user, and maps engine errors to status codes.
type AppointmentHandler struct {
	DB      *gorm.DB
	Service *queue.Service
	Finder  *queue.SlotFinder
	Clock   queue.Clock
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, service *queue.Service, finder *queue.SlotFinder, clock queue.Clock) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Service: service, Finder: finder, Clock: clock}
}

func actorFromContext(c *gin.Context) (queue.Actor, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return queue.Actor{}, false
	}
	role, ok := middleware.GetUserRoleFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User role not found in token")
		return queue.Actor{}, false
	}
	return queue.Actor{UserID: userID, Role: role}, true
}

// respondEngineError maps scheduling-engine errors onto the response
// envelope.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		utils.NotFound(c, "Not found")
	case errors.Is(err, queue.ErrNotAuthorized):
		utils.Forbidden(c, "You are not authorized to perform this action")
	case errors.Is(err, queue.ErrInvalidInput), errors.Is(err, queue.ErrInvalidTransition):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, queue.ErrSlotTaken):
		utils.Conflict(c, "That time slot has just been booked; please pick another")
	case errors.Is(err, queue.ErrNoSlotAvailable):
		utils.Conflict(c, "No free slot within the booking horizon")
	default:
		utils.InternalServerError(c, err.Error())
	}
}

// CreateAppointmentRequest represents the request body for booking.
// Date/timeSlot may be omitted to book the doctor's next available slot.
type CreateAppointmentRequest struct {
	DoctorID   string `json:"doctorId" binding:"required,uuid"`
	PatientID  string `json:"patientId" binding:"omitempty,uuid"`
	Date       string `json:"date"`     // "YYYY-MM-DD"
	TimeSlot   string `json:"timeSlot"` // "HH:MM"
	Department string `json:"department"`
	Reason     string `json:"reason"`
}

// CreateAppointment books a new appointment. Patients book for themselves;
// admins may book on a patient's behalf by passing patientId.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	patientID := actor.UserID
	if req.PatientID != "" && req.PatientID != actor.UserID {
		if actor.Role != models.RoleAdmin {
			utils.Forbidden(c, "Patients can only book appointments for themselves.")
			return
		}
		patientID = req.PatientID
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			utils.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	appt, err := h.Service.Book(queue.BookingRequest{
		PatientID:  patientID,
		DoctorID:   req.DoctorID,
		Department: req.Department,
		Reason:     req.Reason,
		Date:       date,
		TimeSlot:   req.TimeSlot,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	utils.Created(c, "Appointment booked successfully", appt)
}

// GetAppointmentsForUser fetches appointments for the logged-in user.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	query := h.DB.Preload("Patient").Preload("Doctor").
		Order("appointment_date asc, queue_position asc")

	var appointments []models.Appointment
	var err error
	switch actor.Role {
	case models.RolePatient:
		err = query.Where("patient_id = ?", actor.UserID).Find(&appointments).Error
	case models.RoleDoctor:
		var doctor models.Doctor
		if err := h.DB.First(&doctor, "user_id = ?", actor.UserID).Error; err != nil {
			utils.NotFound(c, "Doctor profile not found")
			return
		}
		err = query.Where("doctor_id = ?", doctor.ID).Find(&appointments).Error
	case models.RoleAdmin:
		err = query.Find(&appointments).Error
	default:
		utils.Forbidden(c, "User role not permitted to view appointments")
		return
	}

	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID fetches a single appointment, visible to the involved
// patient, the assigned doctor, or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var appointment models.Appointment
	if err := h.DB.Preload("Patient").Preload("Doctor").First(&appointment, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	allowed := actor.Role == models.RoleAdmin || actor.UserID == appointment.PatientID
	if !allowed && actor.Role == models.RoleDoctor {
		var doctor models.Doctor
		if err := h.DB.First(&doctor, "user_id = ?", actor.UserID).Error; err == nil {
			allowed = doctor.ID == appointment.DoctorID
		}
	}
	if !allowed {
		utils.Forbidden(c, "You are not authorized to view this appointment")
		return
	}

	utils.Success(c, "Appointment fetched successfully", appointment)
}

// StartConsultation moves an appointment to in_progress.
func (h *AppointmentHandler) StartConsultation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	appt, err := h.Service.StartConsultation(actor, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.Success(c, "Consultation started", appt)
}

// EndConsultationRequest represents the request body for ending a
// consultation.
type EndConsultationRequest struct {
	NoShow        bool                      `json:"noShow"`
	Notes         string                    `json:"notes"`
	Prescription  string                    `json:"prescription"`
	MedicalRecord *queue.MedicalRecordInput `json:"medicalRecord"`
}

// EndConsultation completes an in-progress consultation, or marks it no-show.
func (h *AppointmentHandler) EndConsultation(c *gin.Context) {
	var req EndConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	appt, err := h.Service.EndConsultation(actor, c.Param("id"), queue.EndConsultationRequest{
		NoShow:        req.NoShow,
		Notes:         req.Notes,
		Prescription:  req.Prescription,
		MedicalRecord: req.MedicalRecord,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.Success(c, "Consultation ended", appt)
}

// CancelAppointment cancels a non-terminal appointment.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	appt, err := h.Service.Cancel(actor, c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled", appt)
}

// RescheduleAppointmentRequest overrides parts of the booked slot; omitted
// fields keep their current values, and omitting both date and timeSlot books
// the next available slot.
type RescheduleAppointmentRequest struct {
	DoctorID   string `json:"doctorId" binding:"omitempty,uuid"`
	Department string `json:"department"`
	Date       string `json:"date"`
	TimeSlot   string `json:"timeSlot"`
}

// RescheduleAppointment re-enters an appointment as a new scheduled slot.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			utils.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	appt, err := h.Service.Reschedule(actor, c.Param("id"), queue.RescheduleRequest{
		DoctorID:   req.DoctorID,
		Department: req.Department,
		Date:       date,
		TimeSlot:   req.TimeSlot,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.Success(c, "Appointment rescheduled successfully", appt)
}

// UpdateAppointmentStatusRequest represents an explicit status override.
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAppointmentStatus applies an explicit status override.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	appt, err := h.Service.SetStatus(actor, c.Param("id"), req.Status)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appt)
}

// DeleteAppointment removes an appointment entirely.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if err := h.Service.Delete(actor, c.Param("id")); err != nil {
		respondEngineError(c, err)
		return
	}
	utils.Success(c, "Appointment deleted", nil)
}

// slotDisplay renders an "HH:MM" slot as a 12-hour clock label. A value
// that does not parse is returned unchanged rather than as a zero time.
func slotDisplay(slot string) string {
	t, err := time.Parse("15:04", slot)
	if err != nil {
		return slot
	}
	return t.Format("03:04 PM")
}

// AvailableSlotEntry is one bookable slot in the listing.
type AvailableSlotEntry struct {
	Value    string `json:"value"`
	Display  string `json:"display"`
	Duration string `json:"duration"`
}

// AvailableSlots lists the open slots for a doctor on a date. Slot
// granularity follows the doctor's average consultation time, the same
// duration every other slot computation uses.
func (h *AppointmentHandler) AvailableSlots(c *gin.Context) {
	doctorID := c.Query("doctor_id")
	dateStr := c.Query("date")
	if doctorID == "" || dateStr == "" {
		utils.BadRequest(c, "doctor_id and date are required")
		return
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		utils.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
		return
	}

	var doctor models.Doctor
	if err := h.DB.First(&doctor, "id = ?", doctorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	open, err := h.Finder.OpenSlots(&doctor, queue.DateOf(date))
	if err != nil {
		utils.InternalServerError(c, "Failed to compute slots: "+err.Error())
		return
	}

	duration := h.Finder.SlotMinutes(&doctor)
	slots := make([]AvailableSlotEntry, 0, len(open))
	for _, slot := range open {
		slots = append(slots, AvailableSlotEntry{
			Value:    slot,
			Display:  slotDisplay(slot),
			Duration: strconv.Itoa(duration) + " minutes",
		})
	}

	utils.Success(c, "Available slots fetched", gin.H{
		"doctorId":       doctorID,
		"date":           dateStr,
		"availableSlots": slots,
		"total":          len(slots),
	})
}
