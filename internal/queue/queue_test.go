package queue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"clinic-queue-server/internal/models"
)

// fixedClock pins the engine to one instant so ETA math is deterministic.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time   { return c.now }
func (c fixedClock) Today() time.Time { return DateOf(c.now) }

// fakeNotifier records every delivery instead of writing rows.
type sentNotification struct {
	UserID        string
	Title         string
	Message       string
	Category      models.NotificationCategory
	AppointmentID string
	Data          map[string]interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *fakeNotifier) Notify(userID, title, message string, category models.NotificationCategory, appointmentID string, data map[string]interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotification{
		UserID:        userID,
		Title:         title,
		Message:       message,
		Category:      category,
		AppointmentID: appointmentID,
		Data:          data,
	})
	return nil
}

// fakeStore is an in-memory Store with the same observable semantics as the
// gorm implementation: slot uniqueness for slot-holding appointments, queue
// ordering, token sequencing.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int
	doctors map[string]*models.Doctor
	windows []*models.AvailabilityWindow
	appts   map[string]*models.Appointment
	status  map[string]*models.QueueStatus
	records []*models.MedicalRecord

	queueWrites int              // appointment rows touched by UpdateQueueFields
	failSave    map[string]error // appointment ID -> forced SaveAppointment error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		doctors:  make(map[string]*models.Doctor),
		appts:    make(map[string]*models.Appointment),
		status:   make(map[string]*models.QueueStatus),
		failSave: make(map[string]error),
	}
}

func (s *fakeStore) addDoctor(id, userID string, average float64) *models.Doctor {
	doctor := &models.Doctor{
		UserID:                userID,
		AverageTimePerPatient: average,
		IsVerified:            true,
		IsAvailable:           true,
		User:                  models.User{FirstName: "Asha", LastName: "Rao", Role: models.RoleDoctor},
	}
	doctor.ID = id
	s.doctors[id] = doctor
	return doctor
}

func (s *fakeStore) addWindow(doctorID, weekday, start, end string, maxAppointments int) *models.AvailabilityWindow {
	window := &models.AvailabilityWindow{
		DoctorID:        doctorID,
		DayOfWeek:       weekday,
		StartTime:       start,
		EndTime:         end,
		MaxAppointments: maxAppointments,
		IsAvailable:     true,
	}
	window.ID = fmt.Sprintf("win-%s-%s", doctorID, weekday)
	s.windows = append(s.windows, window)
	return window
}

func (s *fakeStore) addAppointment(a models.Appointment) *models.Appointment {
	if a.ID == "" {
		s.nextID++
		a.ID = fmt.Sprintf("appt-%d", s.nextID)
	}
	if a.CreatedAt.IsZero() {
		s.nextID++
		a.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * time.Second)
	}
	stored := a
	s.appts[a.ID] = &stored
	return &stored
}

func (s *fakeStore) DoctorByID(id string) (*models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doctor, ok := s.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *doctor
	return &copied, nil
}

func (s *fakeStore) DoctorByUserID(userID string) (*models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doctor := range s.doctors {
		if doctor.UserID == userID {
			copied := *doctor
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) WindowFor(doctorID, weekday string) (*models.AvailabilityWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.AvailabilityWindow
	for _, w := range s.windows {
		if w.DoctorID != doctorID || w.DayOfWeek != weekday {
			continue
		}
		if best == nil || w.StartTime < best.StartTime {
			best = w
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (s *fakeStore) AppointmentByID(id string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *appt
	return &copied, nil
}

func (s *fakeStore) AppointmentsForDay(doctorID string, date time.Time) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appts {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(date) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QueuePosition != out[j].QueuePosition {
			return out[i].QueuePosition < out[j].QueuePosition
		}
		if out[i].TimeSlot != out[j].TimeSlot {
			return out[i].TimeSlot < out[j].TimeSlot
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *fakeStore) BookedSlots(doctorID string, date time.Time) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	booked := make(map[string]bool)
	for _, a := range s.appts {
		if a.DoctorID == doctorID && a.AppointmentDate.Equal(date) && a.Status.HoldsSlot() {
			booked[a.TimeSlot] = true
		}
	}
	return booked, nil
}

func (s *fakeStore) CompletedDurations(doctorID string) ([]time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, a := range s.appts {
		if a.DoctorID != doctorID || a.Status != models.StatusCompleted {
			continue
		}
		if a.ConsultationStartedAt == nil || a.ConsultationEndedAt == nil {
			continue
		}
		if d := a.ConsultationEndedAt.Sub(*a.ConsultationStartedAt); d > 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) StaleAppointments(today time.Time) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Appointment
	for _, a := range s.appts {
		if a.AppointmentDate.Before(today) && !a.Status.IsTerminal() {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppointmentDate.Equal(out[j].AppointmentDate) {
			return out[i].AppointmentDate.Before(out[j].AppointmentDate)
		}
		if out[i].QueuePosition != out[j].QueuePosition {
			return out[i].QueuePosition < out[j].QueuePosition
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *fakeStore) NextTokenSeq(doctorID string, date time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxSeq := 0
	for _, a := range s.appts {
		if a.DoctorID != doctorID || !a.AppointmentDate.Equal(date) {
			continue
		}
		if seq, err := strconv.Atoi(strings.TrimPrefix(a.TokenNumber, "T-")); err == nil && seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

func (s *fakeStore) slotConflict(a *models.Appointment) bool {
	if !a.Status.HoldsSlot() {
		return false
	}
	for _, other := range s.appts {
		if other.ID == a.ID || !other.Status.HoldsSlot() {
			continue
		}
		if other.DoctorID == a.DoctorID && other.AppointmentDate.Equal(a.AppointmentDate) && other.TimeSlot == a.TimeSlot {
			return true
		}
	}
	return false
}

func (s *fakeStore) CreateAppointment(a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slotConflict(a) {
		return ErrSlotTaken
	}
	if a.ID == "" {
		s.nextID++
		a.ID = fmt.Sprintf("appt-%d", s.nextID)
	}
	if a.CreatedAt.IsZero() {
		s.nextID++
		a.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * time.Second)
	}
	stored := *a
	s.appts[a.ID] = &stored
	return nil
}

func (s *fakeStore) SaveAppointment(a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failSave[a.ID]; err != nil {
		return err
	}
	if s.slotConflict(a) {
		return ErrSlotTaken
	}
	stored := *a
	s.appts[a.ID] = &stored
	return nil
}

func (s *fakeStore) DeleteAppointment(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appts[id]; !ok {
		return ErrNotFound
	}
	delete(s.appts, id)
	return nil
}

func (s *fakeStore) UpdateQueueFields(updates []QueueUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		appt, ok := s.appts[u.AppointmentID]
		if !ok {
			return ErrNotFound
		}
		appt.QueuePosition = u.QueuePosition
		appt.EstimatedWaitMinutes = u.EstimatedWaitMinutes
		appt.EstimatedTime = u.EstimatedTime
		s.queueWrites++
	}
	return nil
}

func statusKey(doctorID string, date time.Time) string {
	return doctorID + "|" + date.Format("2006-01-02")
}

func (s *fakeStore) UpsertQueueStatus(qs *models.QueueStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *qs
	s.status[statusKey(qs.DoctorID, qs.AppointmentDate)] = &stored
	return nil
}

func (s *fakeStore) UpdateDoctorAverage(doctorID string, minutes float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doctor, ok := s.doctors[doctorID]
	if !ok {
		return ErrNotFound
	}
	doctor.AverageTimePerPatient = minutes
	return nil
}

func (s *fakeStore) CreateMedicalRecord(r *models.MedicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *r
	s.records = append(s.records, &stored)
	return nil
}

func (s *fakeStore) InTx(fn func(Store) error) error {
	return fn(s)
}

// date builds the canonical midnight-UTC form used throughout the engine.
func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
