// Package pgstore provides a PostgreSQL implementation of queue.Store.
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

	"github.com/linnemanlabs/careops/internal/queue"
)

var tracer = otel.Tracer("github.com/linnemanlabs/careops/internal/queue/pgstore")

//go:embed schema.sql
var schema string

// Store persists queue items and tasks in PostgreSQL. The version check on
// Update happens inside a single conditional UPDATE so two concurrent
// transitions cannot both win.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store on the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const itemColumns = `id, subject_id, kind, category, severity, title, due_at, estimated_minutes,
	assigned_to, status, escalation_count, version, subject_risk, task_id, plan_id, created_at, updated_at`

// Insert adds a new item.
func (s *Store) Insert(ctx context.Context, it *queue.Item) error {
	ctx, span := tracer.Start(ctx, "pgstore.Insert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	query := `INSERT INTO queue_items (` + itemColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err := s.pool.Exec(ctx, query,
		it.ID, it.SubjectID, string(it.Kind), it.Category, string(it.Severity), it.Title,
		nullableTime(it.DueAt), it.EstimatedMinutes, it.AssignedTo, string(it.Status),
		it.EscalationCount, it.Version, string(it.SubjectRisk), it.TaskID, it.PlanID,
		it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// Get retrieves an item by id.
func (s *Store) Get(ctx context.Context, id string) (*queue.Item, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE id = $1`
	it, err := scanItem(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return it, nil
}

// Update replaces the item iff the stored version equals expected. The
// conditional UPDATE bumps the version; zero rows affected means either a
// lost race or a missing row, disambiguated by a re-read.
func (s *Store) Update(ctx context.Context, it *queue.Item, expected int) (*queue.Item, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Update", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	query := `UPDATE queue_items SET
		severity = $1, title = $2, due_at = $3, estimated_minutes = $4, assigned_to = $5,
		status = $6, escalation_count = $7, version = version + 1, subject_risk = $8, updated_at = $9
		WHERE id = $10 AND version = $11`
	tag, err := s.pool.Exec(ctx, query,
		string(it.Severity), it.Title, nullableTime(it.DueAt), it.EstimatedMinutes, it.AssignedTo,
		string(it.Status), it.EscalationCount, string(it.SubjectRisk), it.UpdatedAt,
		it.ID, expected,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		cur, err := s.Get(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		return cur, queue.ErrConcurrentModification
	}

	out := *it
	out.Version = expected + 1
	return &out, nil
}

// List returns all items for a subject, or everything when subjectID is empty.
func (s *Store) List(ctx context.Context, subjectID string) ([]queue.Item, error) {
	ctx, span := tracer.Start(ctx, "pgstore.List", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := []any{}
	if subjectID != "" {
		query += ` WHERE subject_id = $1`
		args = append(args, subjectID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []queue.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

// InsertTask adds a task record.
func (s *Store) InsertTask(ctx context.Context, t *queue.Task) error {
	ctx, span := tracer.Start(ctx, "pgstore.InsertTask", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	checklistJSON, err := json.Marshal(t.Checklist)
	if err != nil {
		return fmt.Errorf("marshal checklist: %w", err)
	}
	if t.Checklist == nil {
		checklistJSON = []byte("[]")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO queue_tasks (id, parent_id, subject_id, title, details, category, priority, due_at, estimated_minutes, checklist, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.ParentID, t.SubjectID, t.Title, t.Details, t.Category, string(t.Priority),
		nullableTime(t.DueAt), t.EstimatedMinutes, checklistJSON, t.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*queue.Task, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetTask", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		t             queue.Task
		priority      string
		dueAt         *time.Time
		checklistJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, parent_id, subject_id, title, details, category, priority, due_at, estimated_minutes, checklist, created_at
		 FROM queue_tasks WHERE id = $1`, id,
	).Scan(&t.ID, &t.ParentID, &t.SubjectID, &t.Title, &t.Details, &t.Category, &priority, &dueAt, &t.EstimatedMinutes, &checklistJSON, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, queue.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan task: %w", err)
	}

	t.Priority = queue.Severity(priority)
	if dueAt != nil {
		t.DueAt = *dueAt
	}
	if err := json.Unmarshal(checklistJSON, &t.Checklist); err != nil {
		return nil, fmt.Errorf("unmarshal checklist: %w", err)
	}
	return &t, nil
}

func scanItem(row pgx.Row) (*queue.Item, error) {
	var (
		it          queue.Item
		kind        string
		severity    string
		status      string
		subjectRisk string
		dueAt       *time.Time
	)
	err := row.Scan(
		&it.ID, &it.SubjectID, &kind, &it.Category, &severity, &it.Title, &dueAt, &it.EstimatedMinutes,
		&it.AssignedTo, &status, &it.EscalationCount, &it.Version, &subjectRisk, &it.TaskID, &it.PlanID,
		&it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	it.Kind = queue.Kind(kind)
	it.Severity = queue.Severity(severity)
	it.Status = queue.Status(status)
	it.SubjectRisk = queue.RiskLevel(subjectRisk)
	if dueAt != nil {
		it.DueAt = *dueAt
	}
	return &it, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
