// Package pgstore provides a PostgreSQL implementation of timeline.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/careops/internal/timeline"
)

var tracer = otel.Tracer("github.com/linnemanlabs/careops/internal/timeline/pgstore")

//go:embed schema.sql
var schema string

// Store persists timeline entries in PostgreSQL. Entries are insert-only;
// there is no UPDATE or DELETE path.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply timeline schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const entryColumns = `id, subject_id, event_type, ts, actor_id, ref_id, payload`

// Append commits one entry, enforcing per-subject timestamp order.
func (s *Store) Append(ctx context.Context, e *timeline.Entry) error {
	ctx, span := tracer.Start(ctx, "pgstore.Append", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	if err := timeline.Validate(e); err != nil {
		return err
	}

	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Ordering check and insert in one statement: the insert only proceeds
	// when no later entry exists for the subject.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO timeline_entries (`+entryColumns+`)
		 SELECT $1, $2, $3, $4, $5, $6, $7
		 WHERE NOT EXISTS (
		     SELECT 1 FROM timeline_entries WHERE subject_id = $2 AND ts > $4
		 )`,
		e.ID, e.SubjectID, string(e.EventType), e.Timestamp, e.ActorID, e.RefID, payloadJSON,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert timeline entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return timeline.ErrDataIntegrityViolation
	}
	return nil
}

// List returns entries for a subject, most recent first, resuming from
// cursor (the ID of the last entry of the previous page).
func (s *Store) List(ctx context.Context, subjectID string, f timeline.Filter, cursor string, limit int) (*timeline.Page, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + entryColumns + ` FROM timeline_entries WHERE subject_id = $1`
	args := []any{subjectID}

	if cursor != "" {
		args = append(args, cursor)
		query += fmt.Sprintf(" AND id < $%d", len(args))
	}
	if len(f.EventTypes) > 0 {
		types := make([]string, len(f.EventTypes))
		for i, t := range f.EventTypes {
			types[i] = string(t)
		}
		args = append(args, types)
		query += fmt.Sprintf(" AND event_type = ANY($%d)", len(args))
	}
	if f.RefID != "" {
		args = append(args, f.RefID)
		query += fmt.Sprintf(" AND ref_id = $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	page := &timeline.Page{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		page.Entries = append(page.Entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}

	if len(page.Entries) == limit {
		page.Next = page.Entries[limit-1].ID
	}
	return page, nil
}

// LastByRef returns the most recent entry referencing the given entity.
func (s *Store) LastByRef(ctx context.Context, refID string) (*timeline.Entry, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.LastByRef", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	row := s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM timeline_entries WHERE ref_id = $1 ORDER BY id DESC LIMIT 1`,
		refID,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return e, true, nil
}

func scanEntry(row pgx.Row) (*timeline.Entry, error) {
	var (
		e           timeline.Entry
		eventType   string
		ts          time.Time
		payloadJSON []byte
	)
	if err := row.Scan(&e.ID, &e.SubjectID, &eventType, &ts, &e.ActorID, &e.RefID, &payloadJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan timeline entry: %w", err)
	}
	e.EventType = timeline.EventType(eventType)
	e.Timestamp = ts
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &e, nil
}
