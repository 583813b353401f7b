// Package pgstore provides a PostgreSQL implementation of directory.Store.
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
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/careops/internal/directory"
)

var tracer = otel.Tracer("github.com/linnemanlabs/careops/internal/directory/pgstore")

//go:embed schema.sql
var schema string

// Store persists care circle membership in PostgreSQL.
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

const personColumns = `id, subject_id, name, role, skills, proximity_minutes, availability,
	relationship_priority, performance_score, contact, active, created_at`

// Put inserts or replaces a person record.
func (s *Store) Put(ctx context.Context, p *directory.Person) error {
	ctx, span := tracer.Start(ctx, "pgstore.Put", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	skillsJSON, err := json.Marshal(p.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}
	availJSON, err := json.Marshal(p.Availability)
	if err != nil {
		return fmt.Errorf("marshal availability: %w", err)
	}
	if p.Skills == nil {
		skillsJSON = []byte("[]")
	}
	if p.Availability == nil {
		availJSON = []byte("[]")
	}

	query := `INSERT INTO care_circle (` + personColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			subject_id            = EXCLUDED.subject_id,
			name                  = EXCLUDED.name,
			role                  = EXCLUDED.role,
			skills                = EXCLUDED.skills,
			proximity_minutes     = EXCLUDED.proximity_minutes,
			availability          = EXCLUDED.availability,
			relationship_priority = EXCLUDED.relationship_priority,
			performance_score     = EXCLUDED.performance_score,
			contact               = EXCLUDED.contact,
			active                = EXCLUDED.active`

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.SubjectID, p.Name, string(p.Role), skillsJSON, p.ProximityMinutes, availJSON,
		p.RelationshipPriority, p.PerformanceScore, p.Contact, p.Active, p.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert person: %w", err)
	}
	return nil
}

// Get retrieves a person by id.
func (s *Store) Get(ctx context.Context, id string) (*directory.Person, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + personColumns + ` FROM care_circle WHERE id = $1`
	p, err := scanPerson(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return p, nil
}

// ListForSubject returns every person in the subject's circle.
func (s *Store) ListForSubject(ctx context.Context, subjectID string) ([]directory.Person, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListForSubject", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + personColumns + ` FROM care_circle WHERE subject_id = $1 ORDER BY relationship_priority, id`
	rows, err := s.pool.Query(ctx, query, subjectID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query circle: %w", err)
	}
	defer rows.Close()

	var out []directory.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate circle: %w", err)
	}
	return out, nil
}

func scanPerson(row pgx.Row) (*directory.Person, error) {
	var (
		p          directory.Person
		role       string
		skillsJSON []byte
		availJSON  []byte
	)
	err := row.Scan(
		&p.ID, &p.SubjectID, &p.Name, &role, &skillsJSON, &p.ProximityMinutes, &availJSON,
		&p.RelationshipPriority, &p.PerformanceScore, &p.Contact, &p.Active, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan person: %w", err)
	}
	p.Role = directory.Role(role)
	if err := json.Unmarshal(skillsJSON, &p.Skills); err != nil {
		return nil, fmt.Errorf("unmarshal skills: %w", err)
	}
	if err := json.Unmarshal(availJSON, &p.Availability); err != nil {
		return nil, fmt.Errorf("unmarshal availability: %w", err)
	}
	return &p, nil
}
