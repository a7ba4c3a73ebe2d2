package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-queue-server/internal/models"
)

func newTestRecalculator(store *fakeStore, now time.Time) *Recalculator {
	return &Recalculator{
		store:          store,
		clock:          fixedClock{now: now},
		locks:          newDoctorDateLocker(),
		defaultMinutes: 10,
		minMinutes:     5,
	}
}

func TestRecalculateEtaChain(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)
	store := newFakeStore()
	store.addDoctor("doc-1", "user-doc-1", 10)

	a := store.addAppointment(models.Appointment{
		DoctorID: "doc-1", AppointmentDate: monday, TimeSlot: "09:00",
		Status: models.StatusInProgress, TokenNumber: "T-001",
	})
	b := store.addAppointment(models.Appointment{
		DoctorID: "doc-1", AppointmentDate: monday, TimeSlot: "09:10",
		Status: models.StatusScheduled, TokenNumber: "T-002",
	})
	c := store.addAppointment(models.Appointment{
		DoctorID: "doc-1", AppointmentDate: monday, TimeSlot: "09:20",
		Status: models.StatusWaiting, TokenNumber: "T-003",
	})

	recalc := newTestRecalculator(store, now)
	require.NoError(t, recalc.Recalculate("doc-1", monday))

	gotA, _ := store.AppointmentByID(a.ID)
	gotB, _ := store.AppointmentByID(b.ID)
	gotC, _ := store.AppointmentByID(c.ID)

	assert.Equal(t, 1, gotA.QueuePosition)
	assert.Equal(t, 0, gotA.EstimatedWaitMinutes, "the in-progress patient waits zero")
	require.NotNil(t, gotA.EstimatedTime)
	assert.True(t, gotA.EstimatedTime.Equal(now))

	assert.Equal(t, 2, gotB.QueuePosition)
	assert.Equal(t, 10, gotB.EstimatedWaitMinutes, "next in line waits one consultation")
	require.NotNil(t, gotB.EstimatedTime)
	assert.True(t, gotB.EstimatedTime.Equal(now.Add(10*time.Minute)))

	assert.Equal(t, 3, gotC.QueuePosition)
	assert.Equal(t, 20, gotC.EstimatedWaitMinutes)

	status := store.status[statusKey("doc-1", monday)]
	require.NotNil(t, status)
	assert.Equal(t, "T-001", status.CurrentToken)
	assert.Equal(t, 3, status.TotalTokens)
	assert.Equal(t, 0, status.CompletedTokens)
	assert.Equal(t, float64(10), status.AverageMinutesPerPatient)
}

func TestRecalculateRanksAreContiguous(t *testing.T) {
	now := time.Date(2026, time.March, 2, 11, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addDoctor("doc-1", "user-doc-1", 10)

	// A mix of every status, with stale positions left over from earlier runs.
	statuses := []models.AppointmentStatus{
		models.StatusCompleted, models.StatusInProgress, models.StatusScheduled,
		models.StatusCancelled, models.StatusConfirmed, models.StatusNoShow, models.StatusWaiting,
	}
	for i, status := range statuses {
		store.addAppointment(models.Appointment{
			DoctorID:        "doc-1",
			AppointmentDate: monday,
			TimeSlot:        formatClock(9*60 + i*10),
			Status:          status,
			TokenNumber:     FormatToken(i + 1),
			QueuePosition:   99, // stale
		})
	}

	recalc := newTestRecalculator(store, now)
	require.NoError(t, recalc.Recalculate("doc-1", monday))

	appts, err := store.AppointmentsForDay("doc-1", monday)
	require.NoError(t, err)
	require.Len(t, appts, len(statuses))
	for i, appt := range appts {
		assert.Equal(t, i+1, appt.QueuePosition, "rank %d", i+1)
	}

	status := store.status[statusKey("doc-1", monday)]
	require.NotNil(t, status)
	assert.Equal(t, 5, status.TotalTokens, "cancelled and no-show do not hold tokens")
	assert.Equal(t, 1, status.CompletedTokens)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addDoctor("doc-1", "user-doc-1", 10)
	for i := 0; i < 4; i++ {
		store.addAppointment(models.Appointment{
			DoctorID:        "doc-1",
			AppointmentDate: monday,
			TimeSlot:        formatClock(9*60 + i*10),
			Status:          models.StatusScheduled,
			TokenNumber:     FormatToken(i + 1),
		})
	}

	recalc := newTestRecalculator(store, now)
	require.NoError(t, recalc.Recalculate("doc-1", monday))
	firstWrites := store.queueWrites
	assert.Equal(t, 4, firstWrites)

	// Same appointments, same instant: nothing should be rewritten.
	require.NoError(t, recalc.Recalculate("doc-1", monday))
	assert.Equal(t, firstWrites, store.queueWrites)
}

func TestRecalculateFeedsCompletedDurationsIntoAverage(t *testing.T) {
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addDoctor("doc-1", "user-doc-1", 10)

	// Two completed consultations: 10 and 15 minutes.
	for _, minutes := range []int{10, 15} {
		started := now.Add(-2 * time.Hour)
		ended := started.Add(time.Duration(minutes) * time.Minute)
		store.addAppointment(models.Appointment{
			DoctorID:              "doc-1",
			AppointmentDate:       monday.AddDate(0, 0, -7),
			Status:                models.StatusCompleted,
			ConsultationStartedAt: &started,
			ConsultationEndedAt:   &ended,
		})
	}
	waiting := store.addAppointment(models.Appointment{
		DoctorID: "doc-1", AppointmentDate: monday, TimeSlot: "09:00",
		Status: models.StatusScheduled, TokenNumber: "T-001",
	})

	recalc := newTestRecalculator(store, now)
	require.NoError(t, recalc.Recalculate("doc-1", monday))

	doctor, err := store.DoctorByID("doc-1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, doctor.AverageTimePerPatient)

	// ETA math uses the rounded whole-minute value.
	status := store.status[statusKey("doc-1", monday)]
	require.NotNil(t, status)
	assert.Equal(t, float64(13), status.AverageMinutesPerPatient)

	got, _ := store.AppointmentByID(waiting.ID)
	assert.Equal(t, 0, got.EstimatedWaitMinutes, "first waiting patient with nobody in progress waits zero")
}

func TestRecalculateFlooredAverageOnlyAffectsEta(t *testing.T) {
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addDoctor("doc-1", "user-doc-1", 0)

	started := now.Add(-time.Hour)
	ended := started.Add(2 * time.Minute)
	store.addAppointment(models.Appointment{
		DoctorID:              "doc-1",
		AppointmentDate:       monday.AddDate(0, 0, -7),
		Status:                models.StatusCompleted,
		ConsultationStartedAt: &started,
		ConsultationEndedAt:   &ended,
	})

	recalc := newTestRecalculator(store, now)
	require.NoError(t, recalc.Recalculate("doc-1", monday))

	doctor, err := store.DoctorByID("doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, doctor.AverageTimePerPatient, "stored average keeps the real value")

	status := store.status[statusKey("doc-1", monday)]
	require.NotNil(t, status)
	assert.Equal(t, float64(5), status.AverageMinutesPerPatient, "ETA math applies the floor")
}

func TestRecalculateNoHistoryUsesStoredAverage(t *testing.T) {
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addDoctor("doc-1", "user-doc-1", 20)

	recalc := newTestRecalculator(store, now)
	require.NoError(t, recalc.Recalculate("doc-1", monday))

	doctor, err := store.DoctorByID("doc-1")
	require.NoError(t, err)
	assert.Equal(t, 20.0, doctor.AverageTimePerPatient, "no history leaves the stored average alone")

	status := store.status[statusKey("doc-1", monday)]
	require.NotNil(t, status)
	assert.Equal(t, float64(20), status.AverageMinutesPerPatient)
}

func TestRecalculateCurrentTokenFallsBackToNextWaiting(t *testing.T) {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addDoctor("doc-1", "user-doc-1", 10)

	store.addAppointment(models.Appointment{
		DoctorID: "doc-1", AppointmentDate: monday, TimeSlot: "09:00",
		Status: models.StatusCompleted, TokenNumber: "T-001",
	})
	store.addAppointment(models.Appointment{
		DoctorID: "doc-1", AppointmentDate: monday, TimeSlot: "09:10",
		Status: models.StatusScheduled, TokenNumber: "T-002",
	})

	recalc := newTestRecalculator(store, now)
	require.NoError(t, recalc.Recalculate("doc-1", monday))

	status := store.status[statusKey("doc-1", monday)]
	require.NotNil(t, status)
	assert.Equal(t, "T-002", status.CurrentToken, "with nobody in progress the next waiting token leads")
}

func TestHistoricalAverageRounding(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      float64
		wantOK    bool
	}{
		{name: "empty", durations: nil, want: 0, wantOK: false},
		{name: "single", durations: []time.Duration{10 * time.Minute}, want: 10, wantOK: true},
		{
			name:      "rounded to one decimal",
			durations: []time.Duration{10 * time.Minute, 11 * time.Minute, 11 * time.Minute},
			want:      10.7,
			wantOK:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := historicalAverage(tt.durations)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
