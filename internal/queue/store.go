package queue

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"clinic-queue-server/internal/models"
)

// QueueUpdate carries the recomputed queue fields for one appointment.
// Only appointments whose fields actually changed get an update row.
type QueueUpdate struct {
	AppointmentID        string
	QueuePosition        int
	EstimatedWaitMinutes int
	EstimatedTime        *time.Time
}

// Store is the persistence surface the scheduling engine depends on. The
// production implementation wraps gorm; tests substitute an in-memory fake.
type Store interface {
	DoctorByID(id string) (*models.Doctor, error)
	DoctorByUserID(userID string) (*models.Doctor, error)
	WindowFor(doctorID, weekday string) (*models.AvailabilityWindow, error)

	AppointmentByID(id string) (*models.Appointment, error)
	AppointmentsForDay(doctorID string, date time.Time) ([]models.Appointment, error)
	BookedSlots(doctorID string, date time.Time) (map[string]bool, error)
	CompletedDurations(doctorID string) ([]time.Duration, error)
	StaleAppointments(today time.Time) ([]models.Appointment, error)
	NextTokenSeq(doctorID string, date time.Time) (int, error)

	CreateAppointment(a *models.Appointment) error
	SaveAppointment(a *models.Appointment) error
	DeleteAppointment(id string) error
	UpdateQueueFields(updates []QueueUpdate) error
	UpsertQueueStatus(qs *models.QueueStatus) error
	UpdateDoctorAverage(doctorID string, minutes float64) error
	CreateMedicalRecord(r *models.MedicalRecord) error

	// InTx runs fn against a transactional view of the store. A returned
	// error rolls back everything fn did.
	InTx(fn func(Store) error) error
}

// GormStore is the gorm-backed Store used in production.
type GormStore struct {
	db *gorm.DB
}

// NewStore wraps a gorm connection in the engine's Store interface.
func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DoctorByID(id string) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := s.db.Preload("User").First(&doctor, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doctor, nil
}

func (s *GormStore) DoctorByUserID(userID string) (*models.Doctor, error) {
	var doctor models.Doctor
	if err := s.db.First(&doctor, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doctor, nil
}

// WindowFor returns the effective availability window for a weekday, or nil
// when the doctor has none. If duplicate windows exist the first by
// start_time wins.
func (s *GormStore) WindowFor(doctorID, weekday string) (*models.AvailabilityWindow, error) {
	var window models.AvailabilityWindow
	err := s.db.
		Where("doctor_id = ? AND day_of_week = ?", doctorID, weekday).
		Order("start_time asc").
		First(&window).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &window, nil
}

func (s *GormStore) AppointmentByID(id string) (*models.Appointment, error) {
	var appt models.Appointment
	if err := s.db.First(&appt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &appt, nil
}

// AppointmentsForDay loads every appointment of a doctor-date in queue order,
// with time_slot and creation time as the stable fallback for untouched
// positions.
func (s *GormStore) AppointmentsForDay(doctorID string, date time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.
		Where("doctor_id = ? AND appointment_date = ?", doctorID, date).
		Order("queue_position asc, time_slot asc, created_at asc").
		Find(&appts).Error
	return appts, err
}

// BookedSlots returns the time slots still held by appointments on the given
// doctor-date (everything except cancelled/no_show).
func (s *GormStore) BookedSlots(doctorID string, date time.Time) (map[string]bool, error) {
	var slots []string
	err := s.db.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND status NOT IN ?",
			doctorID, date, []models.AppointmentStatus{models.StatusCancelled, models.StatusNoShow}).
		Pluck("time_slot", &slots).Error
	if err != nil {
		return nil, err
	}
	booked := make(map[string]bool, len(slots))
	for _, slot := range slots {
		booked[slot] = true
	}
	return booked, nil
}

// CompletedDurations returns the consultation durations of every completed
// appointment of the doctor that carries both timestamps, all-time.
func (s *GormStore) CompletedDurations(doctorID string) ([]time.Duration, error) {
	var appts []models.Appointment
	err := s.db.
		Select("consultation_started_at", "consultation_ended_at").
		Where("doctor_id = ? AND status = ? AND consultation_started_at IS NOT NULL AND consultation_ended_at IS NOT NULL",
			doctorID, models.StatusCompleted).
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	durations := make([]time.Duration, 0, len(appts))
	for _, a := range appts {
		d := a.ConsultationEndedAt.Sub(*a.ConsultationStartedAt)
		if d > 0 {
			durations = append(durations, d)
		}
	}
	return durations, nil
}

// StaleAppointments returns unresolved appointments dated before today,
// oldest and most advanced in queue first.
func (s *GormStore) StaleAppointments(today time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := s.db.
		Where("appointment_date < ? AND status NOT IN ?", today,
			[]models.AppointmentStatus{models.StatusCompleted, models.StatusCancelled, models.StatusNoShow}).
		Order("appointment_date asc, queue_position asc, created_at asc").
		Find(&appts).Error
	return appts, err
}

// NextTokenSeq returns the next free token sequence number for a doctor-date.
// Tokens are formatted "T-<seq>", so the max is recovered from the suffix.
func (s *GormStore) NextTokenSeq(doctorID string, date time.Time) (int, error) {
	var maxSeq int
	err := s.db.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ?", doctorID, date).
		Select("COALESCE(MAX(CAST(SUBSTRING(token_number, 3) AS UNSIGNED)), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

func (s *GormStore) CreateAppointment(a *models.Appointment) error {
	err := s.db.Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSlotTaken
	}
	return err
}

func (s *GormStore) SaveAppointment(a *models.Appointment) error {
	err := s.db.Save(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrSlotTaken
	}
	return err
}

func (s *GormStore) DeleteAppointment(id string) error {
	result := s.db.Delete(&models.Appointment{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateQueueFields writes the recomputed position/ETA fields for the given
// appointments. Only the three queue fields are touched.
func (s *GormStore) UpdateQueueFields(updates []QueueUpdate) error {
	for _, u := range updates {
		err := s.db.Model(&models.Appointment{}).
			Where("id = ?", u.AppointmentID).
			Updates(map[string]interface{}{
				"queue_position":         u.QueuePosition,
				"estimated_wait_minutes": u.EstimatedWaitMinutes,
				"estimated_time":         u.EstimatedTime,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// UpsertQueueStatus fully overwrites the doctor-date summary row, creating it
// on first use.
func (s *GormStore) UpsertQueueStatus(qs *models.QueueStatus) error {
	var existing models.QueueStatus
	err := s.db.First(&existing, "doctor_id = ? AND appointment_date = ?", qs.DoctorID, qs.AppointmentDate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(qs).Error
	}
	if err != nil {
		return err
	}

	existing.CurrentToken = qs.CurrentToken
	existing.TotalTokens = qs.TotalTokens
	existing.CompletedTokens = qs.CompletedTokens
	existing.AverageMinutesPerPatient = qs.AverageMinutesPerPatient
	existing.LastUpdated = qs.LastUpdated
	return s.db.Save(&existing).Error
}

func (s *GormStore) UpdateDoctorAverage(doctorID string, minutes float64) error {
	return s.db.Model(&models.Doctor{}).
		Where("id = ?", doctorID).
		Update("average_time_per_patient", minutes).Error
}

func (s *GormStore) CreateMedicalRecord(r *models.MedicalRecord) error {
	return s.db.Create(r).Error
}

func (s *GormStore) InTx(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
