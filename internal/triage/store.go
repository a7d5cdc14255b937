package triage

import (
	"context"
	"time"

	"github.com/linnemanlabs/lifelink/internal/alert"
)

// Store is the persistence interface for alerts.
//
// Insert assigns increasing ids and creation timestamps that never go
// backwards in id order, clamping a CreatedAt older than the newest record.
// UpdateStatus must apply the solved-timestamp rule (see NextSolvedAt) as one
// atomic step per record. UpdatePriority and UpdateNotes are last-writer-wins
// overwrites. All update methods return ErrNotFound for an unknown id.
type Store interface {
	Insert(ctx context.Context, a *alert.Alert) (int64, error)
	Get(ctx context.Context, id int64) (*alert.Alert, bool, error)
	List(ctx context.Context) ([]alert.Alert, error)
	UpdateStatus(ctx context.Context, id int64, status alert.Status, now time.Time) (*StatusChange, error)
	UpdatePriority(ctx context.Context, id int64, priority alert.Priority) error
	UpdateNotes(ctx context.Context, id int64, notes string) error
}
