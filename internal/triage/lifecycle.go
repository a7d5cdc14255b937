package triage

import (
	"time"

	"github.com/linnemanlabs/lifelink/internal/alert"
)

// StatusChange is the outcome of one status update.
type StatusChange struct {
	ID        int64
	Previous  alert.Status
	Current   alert.Status
	CreatedAt time.Time
	SolvedAt  *time.Time

	// SolvedNow is true only for the update that first moved the alert into
	// StatusSolved and wrote SolvedAt.
	SolvedNow bool
}

// NextSolvedAt applies the write-once rule for the solved timestamp.
//
// The timestamp is set to now only when the target is StatusSolved and it is
// not yet set. It is never overwritten and never cleared, so any other
// combination returns current unchanged.
func NextSolvedAt(current *time.Time, target alert.Status, now time.Time) (next *time.Time, setNow bool) {
	if target != alert.StatusSolved || current != nil {
		return current, false
	}
	t := now
	return &t, true
}
