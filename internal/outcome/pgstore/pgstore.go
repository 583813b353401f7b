// Package pgstore provides a PostgreSQL implementation of outcome.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/careops/internal/outcome"
)

var tracer = otel.Tracer("github.com/linnemanlabs/careops/internal/outcome/pgstore")

//go:embed schema.sql
var schema string

// Store persists outcome records in PostgreSQL. The UNIQUE constraint on
// item_id enforces the write-once contract.
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

// Put commits an outcome record.
func (s *Store) Put(ctx context.Context, o *outcome.Outcome) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	evidenceJSON, err := json.Marshal(o.Evidence)
	if err != nil {
		return fmt.Errorf("marshal evidence: %w", err)
	}
	if o.Evidence == nil {
		evidenceJSON = []byte("[]")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO outcomes (id, item_id, subject_id, template, result, action_taken, notes, evidence, recorded_by, recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.ItemID, o.SubjectID, string(o.Template), string(o.Result),
		o.ActionTaken, o.Notes, evidenceJSON, o.RecordedBy, o.RecordedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return outcome.ErrAlreadyCaptured
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// Get retrieves an outcome by id.
func (s *Store) Get(ctx context.Context, id string) (*outcome.Outcome, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	return s.scanOne(ctx, span,
		`SELECT id, item_id, subject_id, template, result, action_taken, notes, evidence, recorded_by, recorded_at
		 FROM outcomes WHERE id = $1`, id)
}

// GetByItem retrieves the outcome recorded for a queue item.
func (s *Store) GetByItem(ctx context.Context, itemID string) (*outcome.Outcome, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetByItem", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	return s.scanOne(ctx, span,
		`SELECT id, item_id, subject_id, template, result, action_taken, notes, evidence, recorded_by, recorded_at
		 FROM outcomes WHERE item_id = $1`, itemID)
}

func (s *Store) scanOne(ctx context.Context, span trace.Span, query, arg string) (*outcome.Outcome, error) {
	var (
		o            outcome.Outcome
		template     string
		result       string
		evidenceJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&o.ID, &o.ItemID, &o.SubjectID, &template, &result,
		&o.ActionTaken, &o.Notes, &evidenceJSON, &o.RecordedBy, &o.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, outcome.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("select outcome: %w", err)
	}
	o.Template = outcome.Type(template)
	o.Result = outcome.Result(result)
	if err := json.Unmarshal(evidenceJSON, &o.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	return &o, nil
}
