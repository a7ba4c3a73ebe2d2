package queue

import (
	"sync"
	"time"
)

// doctorDateLocker serializes queue recalculation per (doctor, date) key.
// Concurrent recalculations for the same doctor-date would interleave their
// position writes and leave ranks non-contiguous; everything else may proceed
// in parallel.
type doctorDateLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newDoctorDateLocker() *doctorDateLocker {
	return &doctorDateLocker{locks: make(map[string]*lockEntry)}
}

func lockKey(doctorID string, date time.Time) string {
	return doctorID + "|" + date.Format("2006-01-02")
}

// Lock acquires the lock for the given doctor-date and returns the unlock
// function. The unlock runs on every exit path of the caller via defer.
func (l *doctorDateLocker) Lock(doctorID string, date time.Time) func() {
	key := lockKey(doctorID, date)

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
