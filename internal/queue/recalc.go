package queue

import (
	"math"
	"time"

	"clinic-queue-server/internal/models"
)

// Recalculator fully regenerates the derived queue state for one doctor-date:
// 1-based queue positions, per-appointment wait estimates, and the
// denormalized QueueStatus summary. It is idempotent: given the same
// appointment set and the same wall-clock instant it produces identical
// output and writes no appointment rows the second time.
type Recalculator struct {
	store          Store
	clock          Clock
	locks          *doctorDateLocker
	defaultMinutes int
	minMinutes     int
}

// NewRecalculator builds a Recalculator. defaultMinutes and minMinutes govern
// the per-patient duration used in ETA math when a doctor has no usable
// average (defaults 10 and 5).
func NewRecalculator(store Store, clock Clock, defaultMinutes, minMinutes int) *Recalculator {
	if defaultMinutes <= 0 {
		defaultMinutes = 10
	}
	if minMinutes <= 0 {
		minMinutes = 5
	}
	return &Recalculator{
		store:          store,
		clock:          clock,
		locks:          newDoctorDateLocker(),
		defaultMinutes: defaultMinutes,
		minMinutes:     minMinutes,
	}
}

// Recalculate recomputes the queue for (doctorID, date). Recalculations for
// the same doctor-date are serialized on an advisory lock so concurrent runs
// cannot interleave position writes; the whole pass runs in one transaction.
//
// This is also the only place the doctor's stored average-time-per-patient
// is updated: when completed consultations with both timestamps exist, their
// mean (rounded to one decimal minute) is persisted back onto the profile so
// recent consultation speed feeds future ETA predictions. The 5-minute floor
// applies only to the ETA math, never to the stored value.
func (r *Recalculator) Recalculate(doctorID string, date time.Time) error {
	date = DateOf(date)

	unlock := r.locks.Lock(doctorID, date)
	defer unlock()

	now := r.clock.Now()

	return r.store.InTx(func(tx Store) error {
		doctor, err := tx.DoctorByID(doctorID)
		if err != nil {
			return err
		}

		durations, err := tx.CompletedDurations(doctorID)
		if err != nil {
			return err
		}

		average, hasHistory := historicalAverage(durations)
		if hasHistory {
			if err := tx.UpdateDoctorAverage(doctorID, average); err != nil {
				return err
			}
		} else {
			average = doctor.AverageTimePerPatient
		}
		perPatient := r.etaMinutes(average)

		appts, err := tx.AppointmentsForDay(doctorID, date)
		if err != nil {
			return err
		}

		plan := buildQueue(appts, perPatient, now)

		if len(plan.updates) > 0 {
			if err := tx.UpdateQueueFields(plan.updates); err != nil {
				return err
			}
		}

		return tx.UpsertQueueStatus(&models.QueueStatus{
			DoctorID:                 doctorID,
			AppointmentDate:          date,
			CurrentToken:             plan.currentToken,
			TotalTokens:              plan.totalTokens,
			CompletedTokens:          plan.completedTokens,
			AverageMinutesPerPatient: float64(perPatient),
			LastUpdated:              now,
		})
	})
}

// historicalAverage returns the mean completed-consultation duration in
// minutes, rounded to one decimal, and whether any qualifying history exists.
func historicalAverage(durations []time.Duration) (float64, bool) {
	if len(durations) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	mean := total.Minutes() / float64(len(durations))
	return math.Round(mean*10) / 10, true
}

// etaMinutes converts an average into the whole-minute per-patient value used
// for ETA math: rounded, floored at the minimum, defaulting when unset.
func (r *Recalculator) etaMinutes(average float64) int {
	if average <= 0 {
		return r.defaultMinutes
	}
	minutes := int(math.Round(average))
	if minutes < r.minMinutes {
		minutes = r.minMinutes
	}
	return minutes
}

type queuePlan struct {
	updates         []QueueUpdate
	currentToken    string
	totalTokens     int
	completedTokens int
}

// buildQueue walks the ordered appointment list once, assigning contiguous
// 1-based ranks and a running wait offset: the in-progress patient waits
// zero and charges one consultation length to whoever is next; each waiting
// patient after that waits one more slot than the previous. Terminal and
// unknown statuses get rank but no wait and consume no offset.
func buildQueue(appts []models.Appointment, perPatient int, now time.Time) queuePlan {
	var plan queuePlan
	var nextToken string

	offset := 0
	for i := range appts {
		a := &appts[i]
		rank := i + 1

		if a.Status.HoldsSlot() {
			plan.totalTokens++
		}
		if a.Status == models.StatusCompleted {
			plan.completedTokens++
		}

		wait := 0
		var eta *time.Time
		switch {
		case a.Status == models.StatusInProgress:
			offset = perPatient
			t := now
			eta = &t
			if plan.currentToken == "" {
				plan.currentToken = a.TokenNumber
			}
		case a.Status.IsWaiting():
			wait = offset
			offset += perPatient
			t := now.Add(time.Duration(wait) * time.Minute)
			eta = &t
			if nextToken == "" {
				nextToken = a.TokenNumber
			}
		}

		if rank != a.QueuePosition || wait != a.EstimatedWaitMinutes || !sameTime(eta, a.EstimatedTime) {
			plan.updates = append(plan.updates, QueueUpdate{
				AppointmentID:        a.ID,
				QueuePosition:        rank,
				EstimatedWaitMinutes: wait,
				EstimatedTime:        eta,
			})
		}
	}

	if plan.currentToken == "" {
		plan.currentToken = nextToken
	}
	return plan
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
