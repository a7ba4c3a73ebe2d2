package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-queue-server/internal/middleware"
	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/queue"
	"clinic-queue-server/internal/utils"
)

// DoctorHandler manages doctor profiles, availability windows, and reviews.
type DoctorHandler struct {
	DB    *gorm.DB
	Clock queue.Clock
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(db *gorm.DB, clock queue.Clock) *DoctorHandler {
	return &DoctorHandler{DB: db, Clock: clock}
}

// doctorForUser resolves the Doctor profile of the authenticated user.
func (h *DoctorHandler) doctorForUser(c *gin.Context) (*models.Doctor, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}
	var doctor models.Doctor
	if err := h.DB.First(&doctor, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor profile not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &doctor, true
}

// GetDoctors lists doctors. Patients see only verified, available doctors;
// admins see everyone.
func (h *DoctorHandler) GetDoctors(c *gin.Context) {
	role, _ := middleware.GetUserRoleFromContext(c)

	query := h.DB.Preload("User").Preload("Availability")
	if role != models.RoleAdmin {
		query = query.Where("is_verified = ? AND is_available = ?", true, true)
	}

	var doctors []models.Doctor
	if err := query.Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

// CreateDoctorRequest represents the request body for creating a doctor
// profile (admin).
type CreateDoctorRequest struct {
	UserID                string  `json:"userId" binding:"required,uuid"`
	Specialization        string  `json:"specialization"`
	Department            string  `json:"department"`
	AverageTimePerPatient float64 `json:"averageTimePerPatient"`
}

// CreateDoctor creates a doctor profile for an existing user with the doctor
// role.
func (h *DoctorHandler) CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ? AND role = ?", req.UserID, models.RoleDoctor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found or user is not a doctor")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	doctor := models.Doctor{
		UserID:                req.UserID,
		Specialization:        req.Specialization,
		Department:            req.Department,
		AverageTimePerPatient: req.AverageTimePerPatient,
	}
	if err := h.DB.Create(&doctor).Error; err != nil {
		utils.InternalServerError(c, "Failed to create doctor profile: "+err.Error())
		return
	}
	utils.Created(c, "Doctor profile created", doctor)
}

// VerifyDoctor marks a doctor as verified (admin).
func (h *DoctorHandler) VerifyDoctor(c *gin.Context) {
	var doctor models.Doctor
	if err := h.DB.First(&doctor, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	doctor.IsVerified = true
	if err := h.DB.Save(&doctor).Error; err != nil {
		utils.InternalServerError(c, "Failed to verify doctor: "+err.Error())
		return
	}
	utils.Success(c, "Doctor verified", doctor)
}

// GetMyAvailability lists the authenticated doctor's availability windows.
func (h *DoctorHandler) GetMyAvailability(c *gin.Context) {
	doctor, ok := h.doctorForUser(c)
	if !ok {
		return
	}

	var windows []models.AvailabilityWindow
	if err := h.DB.Where("doctor_id = ?", doctor.ID).Order("day_of_week asc, start_time asc").Find(&windows).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch availability: "+err.Error())
		return
	}
	utils.Success(c, "Availability fetched", windows)
}

// AvailabilityRequest represents one weekday's open window.
type AvailabilityRequest struct {
	DayOfWeek       string `json:"dayOfWeek" binding:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime       string `json:"startTime" binding:"required"`
	EndTime         string `json:"endTime" binding:"required"`
	MaxAppointments int    `json:"maxAppointments"`
	IsAvailable     *bool  `json:"isAvailable"`
}

// SetAvailability creates or replaces the authenticated doctor's window for
// one weekday. One effective window per weekday is the invariant the slot
// finder relies on.
func (h *DoctorHandler) SetAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if _, err := time.Parse("15:04", req.StartTime); err != nil {
		utils.BadRequest(c, "startTime must be HH:MM")
		return
	}
	if _, err := time.Parse("15:04", req.EndTime); err != nil {
		utils.BadRequest(c, "endTime must be HH:MM")
		return
	}
	if req.EndTime <= req.StartTime {
		utils.BadRequest(c, "endTime must be after startTime")
		return
	}

	doctor, ok := h.doctorForUser(c)
	if !ok {
		return
	}

	window := models.AvailabilityWindow{
		DoctorID:        doctor.ID,
		DayOfWeek:       req.DayOfWeek,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxAppointments: req.MaxAppointments,
	}
	if window.MaxAppointments <= 0 {
		window.MaxAppointments = 20
	}
	if req.IsAvailable != nil {
		window.IsAvailable = *req.IsAvailable
	} else {
		window.IsAvailable = true
	}

	var existing models.AvailabilityWindow
	err := h.DB.First(&existing, "doctor_id = ? AND day_of_week = ?", doctor.ID, req.DayOfWeek).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = h.DB.Create(&window).Error
	case err == nil:
		window.ID = existing.ID
		window.CreatedAt = existing.CreatedAt
		err = h.DB.Save(&window).Error
	}
	if err != nil {
		utils.InternalServerError(c, "Failed to save availability: "+err.Error())
		return
	}
	utils.Created(c, "Availability saved", window)
}

// GetMyAppointments lists the authenticated doctor's appointments for a date
// (today by default), in queue order.
func (h *DoctorHandler) GetMyAppointments(c *gin.Context) {
	doctor, ok := h.doctorForUser(c)
	if !ok {
		return
	}

	date := h.Clock.Today()
	if dateStr := c.Query("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			utils.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		date = queue.DateOf(parsed)
	}

	var appts []models.Appointment
	err := h.DB.Preload("Patient").
		Where("doctor_id = ? AND appointment_date = ?", doctor.ID, date).
		Order("queue_position asc").
		Find(&appts).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// AddReviewRequest represents the request body for reviewing a doctor.
type AddReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// AddReview records a patient's review of a doctor, linked to their most
// recent completed appointment when one exists.
func (h *DoctorHandler) AddReview(c *gin.Context) {
	var req AddReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var doctor models.Doctor
	if err := h.DB.First(&doctor, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	review := models.DoctorReview{
		DoctorID:  doctor.ID,
		PatientID: userID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	var appt models.Appointment
	err := h.DB.Where("patient_id = ? AND doctor_id = ? AND status = ?", userID, doctor.ID, models.StatusCompleted).
		Order("appointment_date desc").
		First(&appt).Error
	if err == nil {
		review.AppointmentID = &appt.ID
	}

	if err := h.DB.Create(&review).Error; err != nil {
		utils.InternalServerError(c, "Failed to save review: "+err.Error())
		return
	}
	utils.Created(c, "Review added", review)
}

// GetReviews lists a doctor's reviews, newest first.
func (h *DoctorHandler) GetReviews(c *gin.Context) {
	var doctor models.Doctor
	if err := h.DB.First(&doctor, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	var reviews []models.DoctorReview
	if err := h.DB.Where("doctor_id = ?", doctor.ID).Order("created_at desc").Find(&reviews).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch reviews: "+err.Error())
		return
	}
	utils.Success(c, "Reviews fetched", reviews)
}
