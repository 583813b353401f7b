// Package pgstore provides a PostgreSQL implementation of protocol.Store.
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

	"github.com/linnemanlabs/careops/internal/protocol"
	"github.com/linnemanlabs/careops/internal/queue"
)

var tracer = otel.Tracer("github.com/linnemanlabs/careops/internal/protocol/pgstore")

//go:embed schema.sql
var schema string

// Store persists alerts and plan records in PostgreSQL.
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

// PutAlert inserts or replaces an alert.
func (s *Store) PutAlert(ctx context.Context, a *protocol.Alert) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	concernsJSON, err := json.Marshal(a.Concerns)
	if err != nil {
		return fmt.Errorf("marshal concerns: %w", err)
	}
	if a.Concerns == nil {
		concernsJSON = []byte("[]")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO alerts (id, subject_id, severity, alert_type, concerns, confidence, status, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status`,
		a.ID, a.SubjectID, string(a.Severity), a.Type, concernsJSON, a.Confidence, string(a.Status), a.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (*protocol.Alert, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetAlert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		a            protocol.Alert
		severity     string
		status       string
		concernsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, subject_id, severity, alert_type, concerns, confidence, status, created_at
		 FROM alerts WHERE id = $1`, id,
	).Scan(&a.ID, &a.SubjectID, &severity, &a.Type, &concernsJSON, &a.Confidence, &status, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, protocol.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	a.Severity = queue.Severity(severity)
	a.Status = protocol.AlertStatus(status)
	if err := json.Unmarshal(concernsJSON, &a.Concerns); err != nil {
		return nil, fmt.Errorf("unmarshal concerns: %w", err)
	}
	return &a, nil
}

// PutPlan inserts or replaces a plan record.
func (s *Store) PutPlan(ctx context.Context, p *protocol.Plan) error {
	ctx, span := tracer.Start(ctx, "pgstore.PutPlan", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	responsesJSON, err := json.Marshal(p.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	if p.Responses == nil {
		responsesJSON = []byte("{}")
	}
	var actionJSON []byte
	if p.Action != nil {
		actionJSON, err = json.Marshal(p.Action)
		if err != nil {
			return fmt.Errorf("marshal action: %w", err)
		}
	}
	var completedAt *time.Time
	if !p.CompletedAt.IsZero() {
		completedAt = &p.CompletedAt
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO plans (id, alert_id, subject_id, plan_type, state, responses, action, started_at, completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (id) DO UPDATE SET
			state        = EXCLUDED.state,
			responses    = EXCLUDED.responses,
			action       = EXCLUDED.action,
			completed_at = EXCLUDED.completed_at`,
		p.ID, p.AlertID, p.SubjectID, string(p.Type), string(p.State), responsesJSON, actionJSON,
		p.StartedAt, completedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by id.
func (s *Store) GetPlan(ctx context.Context, id string) (*protocol.Plan, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetPlan", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var (
		p             protocol.Plan
		planType      string
		state         string
		responsesJSON []byte
		actionJSON    []byte
		completedAt   *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, alert_id, subject_id, plan_type, state, responses, action, started_at, completed_at
		 FROM plans WHERE id = $1`, id,
	).Scan(&p.ID, &p.AlertID, &p.SubjectID, &planType, &state, &responsesJSON, &actionJSON, &p.StartedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, protocol.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	p.Type = protocol.Type(planType)
	p.State = protocol.State(state)
	if err := json.Unmarshal(responsesJSON, &p.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	if len(actionJSON) > 0 {
		p.Action = &protocol.ActionPlan{}
		if err := json.Unmarshal(actionJSON, p.Action); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
	}
	if completedAt != nil {
		p.CompletedAt = *completedAt
	}
	return &p, nil
}
