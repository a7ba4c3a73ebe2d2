package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"clinic-queue-server/internal/middleware"
	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/utils"
)

// MedicalRecordHandler serves the record store the consultation flow writes
// into. Records are mostly created as a side effect of ending a
// consultation; doctors may also file them directly.
type MedicalRecordHandler struct {
	DB *gorm.DB
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(db *gorm.DB) *MedicalRecordHandler {
	return &MedicalRecordHandler{DB: db}
}

// CreateMedicalRecordRequest represents the request body for filing a record
// directly.
type CreateMedicalRecordRequest struct {
	PatientID  string `json:"patientId" binding:"required,uuid"`
	RecordType string `json:"recordType"`
	Title      string `json:"title" binding:"required"`
	Department string `json:"department"`
	Summary    string `json:"summary"`
	Details    string `json:"details"`
}

// CreateMedicalRecord files a medical record for a patient (doctor only).
func (h *MedicalRecordHandler) CreateMedicalRecord(c *gin.Context) {
	var req CreateMedicalRecordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var doctor models.Doctor
	if err := h.DB.First(&doctor, "user_id = ?", userID).Error; err != nil {
		utils.NotFound(c, "Doctor profile not found")
		return
	}

	record := models.MedicalRecord{
		PatientID:  req.PatientID,
		DoctorID:   doctor.ID,
		RecordDate: time.Now(),
		Title:      req.Title,
		Department: req.Department,
		Summary:    req.Summary,
		Details:    req.Details,
	}
	if req.RecordType != "" {
		record.RecordType = models.MedicalRecordType(req.RecordType)
	}

	if err := h.DB.Create(&record).Error; err != nil {
		utils.InternalServerError(c, "Failed to create medical record: "+err.Error())
		return
	}
	utils.Created(c, "Medical record created", record)
}

// GetMedicalRecords lists records visible to the caller: patients see their
// own, doctors see the ones they authored, admins see all.
func (h *MedicalRecordHandler) GetMedicalRecords(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	role, _ := middleware.GetUserRoleFromContext(c)

	query := h.DB.Order("record_date desc")
	switch role {
	case models.RolePatient:
		query = query.Where("patient_id = ?", userID)
	case models.RoleDoctor:
		var doctor models.Doctor
		if err := h.DB.First(&doctor, "user_id = ?", userID).Error; err != nil {
			utils.NotFound(c, "Doctor profile not found")
			return
		}
		query = query.Where("doctor_id = ?", doctor.ID)
	case models.RoleAdmin:
		// no filter
	default:
		utils.Forbidden(c, "User role not permitted to view medical records")
		return
	}

	var records []models.MedicalRecord
	if err := query.Find(&records).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch medical records: "+err.Error())
		return
	}
	utils.Success(c, "Medical records fetched", records)
}

// GetMedicalRecordByID fetches one record, visible to its patient, its
// authoring doctor, or an admin.
func (h *MedicalRecordHandler) GetMedicalRecordByID(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}
	role, _ := middleware.GetUserRoleFromContext(c)

	var record models.MedicalRecord
	if err := h.DB.First(&record, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical record not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	allowed := role == models.RoleAdmin || record.PatientID == userID
	if !allowed && role == models.RoleDoctor {
		var doctor models.Doctor
		if err := h.DB.First(&doctor, "user_id = ?", userID).Error; err == nil {
			allowed = doctor.ID == record.DoctorID
		}
	}
	if !allowed {
		utils.Forbidden(c, "You are not authorized to view this medical record")
		return
	}

	utils.Success(c, "Medical record fetched", record)
}
