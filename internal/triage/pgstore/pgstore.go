// Package pgstore provides a PostgreSQL implementation of triage.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/lifelink/internal/alert"
	"github.com/linnemanlabs/lifelink/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/lifelink/internal/triage/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on an existing pool and returns a ready Store.
// The pool stays owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const alertColumns = `id, name, age, phone, blood_group, phone_battery, latitude, longitude,
	message, current_medical_issue, status, priority, notes, created_at, solved_at`

func startSpan(ctx context.Context, name, op string, id int64) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	}
	if id != 0 {
		attrs = append(attrs, attribute.Int64("lifelink.alert.id", id))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// insertLockKey serializes inserts so id order and created_at order agree.
const insertLockKey = 0x4c4c_0001

// Insert adds a new alert and returns its id. A zero CreatedAt falls back to
// the database clock. created_at is clamped to the newest existing row, and
// inserts hold a transaction-scoped advisory lock, so creation timestamps
// never go backwards in id order.
func (s *Store) Insert(ctx context.Context, a *alert.Alert) (int64, error) {
	ctx, span := startSpan(ctx, "pgstore.Insert", "INSERT", 0)
	defer span.End()

	var createdAt *time.Time
	if !a.CreatedAt.IsZero() {
		createdAt = &a.CreatedAt
	}
	status := a.Status
	if status == "" {
		status = alert.StatusPending
	}
	priority := a.Priority
	if priority == "" {
		priority = alert.DefaultPriority
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fail(span, fmt.Errorf("begin insert: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(insertLockKey)); err != nil {
		return 0, fail(span, fmt.Errorf("lock inserts: %w", err))
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO alerts (
			name, age, phone, blood_group, phone_battery, latitude, longitude,
			message, current_medical_issue, status, priority, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,
			GREATEST(COALESCE($12, clock_timestamp()), (SELECT max(created_at) FROM alerts)))
		RETURNING id`,
		a.Name, a.Age, a.Phone, a.BloodGroup, a.PhoneBattery, a.Latitude, a.Longitude,
		a.Message, a.CurrentMedicalIssue, string(status), string(priority), createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fail(span, fmt.Errorf("insert alert: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fail(span, fmt.Errorf("commit insert: %w", err))
	}
	span.SetAttributes(attribute.Int64("lifelink.alert.id", id))
	return id, nil
}

// Get retrieves an alert by id.
func (s *Store) Get(ctx context.Context, id int64) (*alert.Alert, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT", id)
	defer span.End()

	a, err := scanAlert(s.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, err)
	}
	return a, true, nil
}

// List returns every alert, newest first.
func (s *Store) List(ctx context.Context) ([]alert.Alert, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT", 0)
	defer span.End()

	rows, err := s.pool.Query(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query alerts: %w", err))
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate alerts: %w", err))
	}
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

// UpdateStatus sets the status and applies the solved-timestamp rule inside
// one transaction. The row is locked with FOR UPDATE, so of several
// concurrent solves only the first sees a null solved_at.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status alert.Status, now time.Time) (*triage.StatusChange, error) {
	ctx, span := startSpan(ctx, "pgstore.UpdateStatus", "UPDATE", id)
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	var (
		prev      string
		createdAt time.Time
		solvedAt  *time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT status, created_at, solved_at FROM alerts WHERE id = $1 FOR UPDATE`, id,
	).Scan(&prev, &createdAt, &solvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, triage.ErrNotFound
		}
		return nil, fail(span, fmt.Errorf("lock alert: %w", err))
	}

	next, setNow := triage.NextSolvedAt(solvedAt, status, now)
	if _, err := tx.Exec(ctx,
		`UPDATE alerts SET status = $2, solved_at = $3 WHERE id = $1`,
		id, string(status), next,
	); err != nil {
		return nil, fail(span, fmt.Errorf("update status: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, fmt.Errorf("commit: %w", err))
	}

	span.SetAttributes(
		attribute.String("lifelink.alert.status", string(status)),
		attribute.Bool("lifelink.alert.solved_now", setNow),
	)
	return &triage.StatusChange{
		ID:        id,
		Previous:  alert.Status(prev),
		Current:   status,
		CreatedAt: createdAt,
		SolvedAt:  next,
		SolvedNow: setNow,
	}, nil
}

// UpdatePriority overwrites the priority.
func (s *Store) UpdatePriority(ctx context.Context, id int64, priority alert.Priority) error {
	ctx, span := startSpan(ctx, "pgstore.UpdatePriority", "UPDATE", id)
	defer span.End()
	return s.overwrite(ctx, span, `UPDATE alerts SET priority = $2 WHERE id = $1`, id, string(priority))
}

// UpdateNotes overwrites the notes.
func (s *Store) UpdateNotes(ctx context.Context, id int64, notes string) error {
	ctx, span := startSpan(ctx, "pgstore.UpdateNotes", "UPDATE", id)
	defer span.End()
	return s.overwrite(ctx, span, `UPDATE alerts SET notes = $2 WHERE id = $1`, id, notes)
}

// overwrite runs a single-row update and maps zero affected rows to ErrNotFound.
func (s *Store) overwrite(ctx context.Context, span trace.Span, query string, id int64, value string) error {
	tag, err := s.pool.Exec(ctx, query, id, value)
	if err != nil {
		return fail(span, fmt.Errorf("update alert %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return triage.ErrNotFound
	}
	return nil
}

// scanAlert scans one row selected with alertColumns.
func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		a        alert.Alert
		status   string
		priority string
	)
	err := row.Scan(
		&a.ID, &a.Name, &a.Age, &a.Phone, &a.BloodGroup, &a.PhoneBattery, &a.Latitude, &a.Longitude,
		&a.Message, &a.CurrentMedicalIssue, &status, &priority, &a.Notes, &a.CreatedAt, &a.SolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	a.Status = alert.Status(status)
	a.Priority = alert.Priority(priority)
	return &a, nil
}
