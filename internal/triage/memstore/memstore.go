// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/lifelink/internal/alert"
	"github.com/linnemanlabs/lifelink/internal/triage"
)

// Store holds alerts in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	alerts map[int64]*alert.Alert
	last   time.Time // latest creation timestamp handed out
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts: make(map[int64]*alert.Alert),
	}
}

// Insert stores a copy of a and returns its new id. A zero CreatedAt is
// filled with the current time; creation timestamps never go backwards.
func (s *Store) Insert(_ context.Context, a *alert.Alert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	cp := clone(a)
	cp.ID = s.nextID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	if cp.CreatedAt.Before(s.last) {
		cp.CreatedAt = s.last
	}
	s.last = cp.CreatedAt
	if cp.Status == "" {
		cp.Status = alert.StatusPending
	}
	if cp.Priority == "" {
		cp.Priority = alert.DefaultPriority
	}
	s.alerts[cp.ID] = cp
	return cp.ID, nil
}

// Get retrieves an alert by id. Returns a copy.
func (s *Store) Get(_ context.Context, id int64) (*alert.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, false, nil
	}
	return clone(a), true, nil
}

// List returns copies of all alerts, newest first.
func (s *Store) List(_ context.Context) ([]alert.Alert, error) {
	s.mu.RLock()
	out := make([]alert.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *clone(a))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateStatus sets the status and applies the solved-timestamp rule while
// holding the write lock, so concurrent solves on one id see each other.
func (s *Store) UpdateStatus(_ context.Context, id int64, status alert.Status, now time.Time) (*triage.StatusChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, triage.ErrNotFound
	}

	prev := a.Status
	next, setNow := triage.NextSolvedAt(a.SolvedAt, status, now)
	a.Status = status
	a.SolvedAt = next

	return &triage.StatusChange{
		ID:        id,
		Previous:  prev,
		Current:   status,
		CreatedAt: a.CreatedAt,
		SolvedAt:  copyTime(next),
		SolvedNow: setNow,
	}, nil
}

// UpdatePriority overwrites the priority.
func (s *Store) UpdatePriority(_ context.Context, id int64, priority alert.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return triage.ErrNotFound
	}
	a.Priority = priority
	return nil
}

// UpdateNotes overwrites the notes.
func (s *Store) UpdateNotes(_ context.Context, id int64, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return triage.ErrNotFound
	}
	a.Notes = notes
	return nil
}

// clone deep-copies the pointer fields so callers never share state with the store.
func clone(a *alert.Alert) *alert.Alert {
	cp := *a
	if a.Age != nil {
		v := *a.Age
		cp.Age = &v
	}
	if a.PhoneBattery != nil {
		v := *a.PhoneBattery
		cp.PhoneBattery = &v
	}
	cp.SolvedAt = copyTime(a.SolvedAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
