package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/lifelink/internal/alert"
)

// Notifier is told about every newly ingested alert.
type Notifier interface {
	Send(ctx context.Context, a *alert.Alert) error
}

// Service is the business boundary for alert ingestion and triage.
type Service struct {
	store    Store
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
}

// NewService creates a new triage service. metrics and notifier may be nil.
func NewService(store Store, logger log.Logger, metrics *Metrics, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		now:      time.Now,
	}
}

// Ingest validates a device submission and persists it as a new Pending alert.
// Invalid submissions return *alert.ValidationError and are not stored.
func (s *Service) Ingest(ctx context.Context, sub *alert.Submission) (int64, error) {
	a, err := sub.Validate()
	if err != nil {
		s.metrics.ingest("invalid")
		return 0, err
	}
	a.CreatedAt = s.now()

	id, err := s.store.Insert(ctx, a)
	if err != nil {
		s.metrics.ingest("error")
		return 0, wrapStoreErr("insert alert", err)
	}
	a.ID = id
	s.metrics.ingest("accepted")

	s.logger.Info(ctx, "alert ingested", ingestLogFields(a)...)

	if s.notifier != nil {
		// detached from the request so the notification survives the response
		go s.notify(context.WithoutCancel(ctx), a)
	}

	return id, nil
}

// ingestLogFields leaves battery out when the device did not report it.
func ingestLogFields(a *alert.Alert) []any {
	kv := []any{"alert_id", a.ID, "priority", string(a.Priority)}
	if a.PhoneBattery != nil {
		kv = append(kv, "battery", *a.PhoneBattery)
	}
	return kv
}

// List returns all alerts newest first. A non-empty status filters by exact match.
func (s *Service) List(ctx context.Context, status alert.Status) ([]alert.Alert, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list alerts", err)
	}
	if status != "" {
		alerts = FilterByStatus(alerts, status)
	}
	return alerts, nil
}

// Get retrieves one alert by id.
func (s *Service) Get(ctx context.Context, id int64) (*alert.Alert, bool, error) {
	a, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, false, wrapStoreErr("get alert", err)
	}
	return a, ok, nil
}

// UpdateStatus moves an alert to status. Any transition between known
// statuses is allowed, including reopening a solved alert; the solved
// timestamp is kept from the first solve.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status alert.Status) (*StatusChange, error) {
	if !status.Valid() {
		s.metrics.update("status", "invalid")
		return nil, &alert.ValidationError{Fields: []alert.FieldError{
			{Field: "status", Reason: fmt.Sprintf("unknown status %q", string(status))},
		}}
	}

	ch, err := s.store.UpdateStatus(ctx, id, status, s.now())
	if err != nil {
		s.metrics.updateErr("status", err)
		return nil, wrapStoreErr("update status", err)
	}
	s.metrics.update("status", "ok")
	s.metrics.transition(ch)

	s.logger.Info(ctx, "alert status updated",
		"alert_id", id,
		"from", ch.Previous,
		"to", ch.Current,
		"solved_now", ch.SolvedNow,
	)
	return ch, nil
}

// UpdatePriority overwrites the alert's priority.
func (s *Service) UpdatePriority(ctx context.Context, id int64, priority alert.Priority) error {
	if !priority.Valid() {
		s.metrics.update("priority", "invalid")
		return &alert.ValidationError{Fields: []alert.FieldError{
			{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", string(priority))},
		}}
	}
	if err := s.store.UpdatePriority(ctx, id, priority); err != nil {
		s.metrics.updateErr("priority", err)
		return wrapStoreErr("update priority", err)
	}
	s.metrics.update("priority", "ok")
	return nil
}

// UpdateNotes overwrites the alert's operator notes.
func (s *Service) UpdateNotes(ctx context.Context, id int64, notes string) error {
	if err := s.store.UpdateNotes(ctx, id, notes); err != nil {
		s.metrics.updateErr("notes", err)
		return wrapStoreErr("update notes", err)
	}
	s.metrics.update("notes", "ok")
	return nil
}

// Summary returns per-status counts over all alerts.
func (s *Service) Summary(ctx context.Context) (Counts, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return Counts{}, wrapStoreErr("list alerts", err)
	}
	return CountsByStatus(alerts), nil
}

// Locations returns the coordinates of every alert.
func (s *Service) Locations(ctx context.Context) ([]alert.Location, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list alerts", err)
	}
	return Locations(alerts), nil
}

// ResponseTimes returns response-time statistics over solved alerts.
func (s *Service) ResponseTimes(ctx context.Context) (ResponseTimes, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return ResponseTimes{}, wrapStoreErr("list alerts", err)
	}
	return ResponseTimeStats(alerts), nil
}

func (s *Service) notify(ctx context.Context, a *alert.Alert) {
	if err := s.notifier.Send(ctx, a); err != nil {
		s.logger.Error(ctx, err, "failed to send alert notification", "alert_id", a.ID)
		s.metrics.notify("error")
		return
	}
	s.metrics.notify("sent")
}
