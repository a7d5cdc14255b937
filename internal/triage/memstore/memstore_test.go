package memstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/linnemanlabs/lifelink/internal/alert"
	"github.com/linnemanlabs/lifelink/internal/triage"
)

var _ triage.Store = (*Store)(nil)

func newAlert(name string) *alert.Alert {
	return &alert.Alert{
		Name:      name,
		Latitude:  10,
		Longitude: 20,
		Status:    alert.StatusPending,
		Priority:  alert.PriorityMedium,
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	id, err := s.Insert(ctx, newAlert("X"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	got, ok, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected alert to be found")
	}
	if got.Name != "X" {
		t.Errorf("Name = %q, want %q", got.Name, "X")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
	if got.SolvedAt != nil {
		t.Errorf("SolvedAt = %v, want nil", got.SolvedAt)
	}
}

func TestStore_InsertDefaults(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	id, _ := s.Insert(ctx, &alert.Alert{Name: "bare"})
	got, _, _ := s.Get(ctx, id)
	if got.Status != alert.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, alert.StatusPending)
	}
	if got.Priority != alert.PriorityMedium {
		t.Errorf("Priority = %q, want %q", got.Priority, alert.PriorityMedium)
	}
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing id")
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	id, _ := s.Insert(ctx, newAlert("X"))

	got, _, _ := s.Get(ctx, id)
	got.Notes = "mutated"

	again, _, _ := s.Get(ctx, id)
	if again.Notes != "" {
		t.Errorf("Notes = %q, store state leaked through returned copy", again.Notes)
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c"} {
		a := newAlert(name)
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.Insert(ctx, a); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i].Name, want[i])
		}
	}
}

func TestStore_CreationTimeMonotonic(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	later := newAlert("later")
	later.CreatedAt = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	earlier := newAlert("earlier")
	earlier.CreatedAt = later.CreatedAt.Add(-time.Hour)

	_, _ = s.Insert(ctx, later)
	id, _ := s.Insert(ctx, earlier)

	got, _, _ := s.Get(ctx, id)
	if got.CreatedAt.Before(later.CreatedAt) {
		t.Errorf("CreatedAt = %v went backwards past %v", got.CreatedAt, later.CreatedAt)
	}

	list, _ := s.List(ctx)
	if list[0].ID != id {
		t.Errorf("List[0].ID = %d, want most recent insert %d", list[0].ID, id)
	}
}

func TestStore_UpdateStatus_SolvedTimestampWriteOnce(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	id, _ := s.Insert(ctx, newAlert("X"))

	t1 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	ch, err := s.UpdateStatus(ctx, id, alert.StatusProcessing, t1)
	if err != nil {
		t.Fatalf("UpdateStatus processing: %v", err)
	}
	if ch.SolvedAt != nil || ch.SolvedNow {
		t.Fatalf("processing set solved timestamp: %+v", ch)
	}

	ch, err = s.UpdateStatus(ctx, id, alert.StatusSolved, t2)
	if err != nil {
		t.Fatalf("UpdateStatus solved: %v", err)
	}
	if !ch.SolvedNow || ch.SolvedAt == nil || !ch.SolvedAt.Equal(t2) {
		t.Fatalf("first solve = %+v, want SolvedNow at %v", ch, t2)
	}
	if ch.Previous != alert.StatusProcessing {
		t.Errorf("Previous = %q, want %q", ch.Previous, alert.StatusProcessing)
	}

	ch, _ = s.UpdateStatus(ctx, id, alert.StatusSolved, t3)
	if ch.SolvedNow || !ch.SolvedAt.Equal(t2) {
		t.Errorf("solved->solved = %+v, want timestamp kept at %v", ch, t2)
	}

	ch, _ = s.UpdateStatus(ctx, id, alert.StatusPending, t3)
	if ch.SolvedNow || ch.SolvedAt == nil || !ch.SolvedAt.Equal(t2) {
		t.Errorf("reopen = %+v, want timestamp kept at %v", ch, t2)
	}

	got, _, _ := s.Get(ctx, id)
	if got.Status != alert.StatusPending {
		t.Errorf("Status = %q, want %q", got.Status, alert.StatusPending)
	}
	if got.SolvedAt == nil || !got.SolvedAt.Equal(t2) {
		t.Errorf("SolvedAt = %v, want %v", got.SolvedAt, t2)
	}
}

func TestStore_UpdateStatus_ConcurrentSolves(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	id, _ := s.Insert(ctx, newAlert("race"))

	const n = 64
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		winAt   atomic.Pointer[time.Time]
	)
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			now := base.Add(time.Duration(i) * time.Second)
			ch, err := s.UpdateStatus(ctx, id, alert.StatusSolved, now)
			if err != nil {
				t.Errorf("UpdateStatus: %v", err)
				return
			}
			if ch.Current != alert.StatusSolved {
				t.Errorf("Current = %q, want %q", ch.Current, alert.StatusSolved)
			}
			if ch.SolvedNow {
				winners.Add(1)
				winAt.Store(&now)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("winners = %d, want exactly 1", got)
	}
	got, _, _ := s.Get(ctx, id)
	if got.SolvedAt == nil || !got.SolvedAt.Equal(*winAt.Load()) {
		t.Errorf("SolvedAt = %v, want winner's time %v", got.SolvedAt, *winAt.Load())
	}
}

func TestStore_UpdatesOnMissingID(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if _, err := s.UpdateStatus(ctx, 99, alert.StatusSolved, time.Now()); !errors.Is(err, triage.ErrNotFound) {
		t.Errorf("UpdateStatus err = %v, want ErrNotFound", err)
	}
	if err := s.UpdatePriority(ctx, 99, alert.PriorityLow); !errors.Is(err, triage.ErrNotFound) {
		t.Errorf("UpdatePriority err = %v, want ErrNotFound", err)
	}
	if err := s.UpdateNotes(ctx, 99, "n"); !errors.Is(err, triage.ErrNotFound) {
		t.Errorf("UpdateNotes err = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdatePriorityAndNotes(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	id, _ := s.Insert(ctx, newAlert("X"))

	if err := s.UpdatePriority(ctx, id, alert.PriorityCritical); err != nil {
		t.Fatalf("UpdatePriority: %v", err)
	}
	if err := s.UpdateNotes(ctx, id, "ambulance dispatched"); err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}
	if err := s.UpdateNotes(ctx, id, "patient picked up"); err != nil {
		t.Fatalf("UpdateNotes: %v", err)
	}

	got, _, _ := s.Get(ctx, id)
	if got.Priority != alert.PriorityCritical {
		t.Errorf("Priority = %q, want %q", got.Priority, alert.PriorityCritical)
	}
	if got.Notes != "patient picked up" {
		t.Errorf("Notes = %q, want last write", got.Notes)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	for range n {
		go func() {
			defer wg.Done()
			id, _ := s.Insert(ctx, newAlert("c"))
			_ = s.UpdateNotes(ctx, id, "n")
		}()

		go func() {
			defer wg.Done()
			_, _ = s.List(ctx)
		}()
	}

	wg.Wait()

	list, _ := s.List(ctx)
	if len(list) != n {
		t.Errorf("len = %d, want %d", len(list), n)
	}
}
