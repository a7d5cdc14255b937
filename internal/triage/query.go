package triage

import "github.com/linnemanlabs/lifelink/internal/alert"

// Counts is the per-status tally shown on the dashboard.
type Counts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Solved     int `json:"solved"`
}

// ResponseTimes summarises seconds between creation and first solve.
type ResponseTimes struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FilterByStatus returns the alerts whose status is exactly status, in input order.
func FilterByStatus(alerts []alert.Alert, status alert.Status) []alert.Alert {
	out := make([]alert.Alert, 0, len(alerts))
	for i := range alerts {
		if alerts[i].Status == status {
			out = append(out, alerts[i])
		}
	}
	return out
}

// CountsByStatus tallies alerts. Total counts every alert, the other fields
// count exact matches, so Pending is not derived from Total.
func CountsByStatus(alerts []alert.Alert) Counts {
	c := Counts{Total: len(alerts)}
	for i := range alerts {
		switch alerts[i].Status {
		case alert.StatusPending:
			c.Pending++
		case alert.StatusProcessing:
			c.Processing++
		case alert.StatusSolved:
			c.Solved++
		}
	}
	return c
}

// Locations projects every alert to its coordinates. No dedup, no filtering.
func Locations(alerts []alert.Alert) []alert.Location {
	out := make([]alert.Location, 0, len(alerts))
	for i := range alerts {
		out = append(out, alerts[i].Location())
	}
	return out
}

// ResponseTimeStats computes avg/min/max seconds over solved alerts that have
// a solved timestamp. With no such alerts it returns all zeros.
func ResponseTimeStats(alerts []alert.Alert) ResponseTimes {
	var (
		rt    ResponseTimes
		sum   float64
		count int
	)
	for i := range alerts {
		a := &alerts[i]
		if a.Status != alert.StatusSolved || a.SolvedAt == nil {
			continue
		}
		d := a.SolvedAt.Sub(a.CreatedAt).Seconds()
		if count == 0 || d < rt.Min {
			rt.Min = d
		}
		if count == 0 || d > rt.Max {
			rt.Max = d
		}
		sum += d
		count++
	}
	if count == 0 {
		return ResponseTimes{}
	}
	rt.Avg = sum / float64(count)
	return rt
}

// PendingIncreased reports whether a newer snapshot has more pending alerts
// than the previous one. Pollers use it to decide when to raise an alarm.
func PendingIncreased(prev, cur Counts) bool {
	return cur.Pending > prev.Pending
}
