// Package alert defines the emergency alert submitted by field devices and the
// request schema used to accept new alerts.
package alert

import (
	"encoding/json"
	"time"
)

// Status tracks where an alert is in operator triage.
type Status string

const (
	// StatusPending means received, nobody has picked it up yet
	StatusPending Status = "Pending"

	// StatusProcessing means an operator is handling it
	StatusProcessing Status = "Processing"

	// StatusSolved means the emergency has been resolved
	StatusSolved Status = "Solved"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSolved:
		return true
	}
	return false
}

// Priority is the operator-assigned urgency of an alert.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// DefaultPriority is assigned when a submission does not name one.
const DefaultPriority = PriorityMedium

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Location is a single geolocation pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Alert is one emergency report and its triage state.
//
// Intake fields are fixed at ingestion. Status, Priority, Notes and SolvedAt
// are the triage fields operators change afterwards. SolvedAt is written once,
// on the first transition into StatusSolved.
type Alert struct {
	ID                  int64
	Name                string
	Age                 *int
	Phone               string
	BloodGroup          string
	PhoneBattery        *int
	Latitude            float64
	Longitude           float64
	Message             string
	CurrentMedicalIssue string
	CreatedAt           time.Time

	Status   Status
	Priority Priority
	Notes    string
	SolvedAt *time.Time
}

// Location returns the alert's coordinates.
func (a *Alert) Location() Location {
	return Location{Latitude: a.Latitude, Longitude: a.Longitude}
}

// wireAlert is the JSON shape the dashboard consumes. Field names follow the
// dashboard, coordinates are repeated under a nested location object.
type wireAlert struct {
	ID                  int64      `json:"_id"`
	Name                string     `json:"name"`
	Age                 *int       `json:"age"`
	Phone               string     `json:"phone"`
	BloodGroup          string     `json:"bloodGroup"`
	PhoneBattery        *int       `json:"phoneBattery"`
	Latitude            float64    `json:"latitude"`
	Longitude           float64    `json:"longitude"`
	Message             string     `json:"message"`
	Status              Status     `json:"status"`
	Timestamp           time.Time  `json:"timestamp"`
	CurrentMedicalIssue string     `json:"currentmedicalissue"`
	Priority            Priority   `json:"priority"`
	Notes               string     `json:"notes"`
	SolvedTimestamp     *time.Time `json:"solvedTimestamp"`
	Location            Location   `json:"location"`
}

// MarshalJSON implements json.Marshaler.
func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAlert{
		ID:                  a.ID,
		Name:                a.Name,
		Age:                 a.Age,
		Phone:               a.Phone,
		BloodGroup:          a.BloodGroup,
		PhoneBattery:        a.PhoneBattery,
		Latitude:            a.Latitude,
		Longitude:           a.Longitude,
		Message:             a.Message,
		Status:              a.Status,
		Timestamp:           a.CreatedAt,
		CurrentMedicalIssue: a.CurrentMedicalIssue,
		Priority:            a.Priority,
		Notes:               a.Notes,
		SolvedTimestamp:     a.SolvedAt,
		Location:            a.Location(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Alert) UnmarshalJSON(b []byte) error {
	var w wireAlert
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = Alert{
		ID:                  w.ID,
		Name:                w.Name,
		Age:                 w.Age,
		Phone:               w.Phone,
		BloodGroup:          w.BloodGroup,
		PhoneBattery:        w.PhoneBattery,
		Latitude:            w.Latitude,
		Longitude:           w.Longitude,
		Message:             w.Message,
		CurrentMedicalIssue: w.CurrentMedicalIssue,
		CreatedAt:           w.Timestamp,
		Status:              w.Status,
		Priority:            w.Priority,
		Notes:               w.Notes,
		SolvedAt:            w.SolvedTimestamp,
	}
	return nil
}
