package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/careops/internal/queue"
	"github.com/linnemanlabs/careops/internal/timeline"
)

// Service is the business boundary for care circle operations. Deactivation
// runs through here so the person's open work is returned to the queue in
// the same operation.
type Service struct {
	store  Store
	queue  *queue.Service
	tl     timeline.Store
	logger log.Logger
	now    func() time.Time
}

// NewService creates a new directory service.
func NewService(store Store, q *queue.Service, tl timeline.Store, logger log.Logger) *Service {
	return &Service{
		store:  store,
		queue:  q,
		tl:     tl,
		logger: logger,
		now:    time.Now,
	}
}

// AddPerson registers a person in a subject's care circle.
func (s *Service) AddPerson(ctx context.Context, p *Person) (*Person, error) {
	if p.SubjectID == "" || p.Name == "" {
		return nil, fmt.Errorf("directory: add person: missing subject id or name")
	}
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	p.Active = true
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "person added", "person_id", p.ID, "subject_id", p.SubjectID, "role", p.Role)
	return p, nil
}

// Get returns the person by id.
func (s *Service) Get(ctx context.Context, id string) (*Person, error) {
	return s.store.Get(ctx, id)
}

// IsAdmin reports whether the person exists, is active, and holds the
// admin role. Unknown ids are not an error; they are simply not admins.
func (s *Service) IsAdmin(ctx context.Context, personID string) (bool, error) {
	p, err := s.store.Get(ctx, personID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Active && p.Role == RoleAdmin, nil
}

// CareCircle returns the active members of a subject's care circle.
func (s *Service) CareCircle(ctx context.Context, subjectID string) ([]Person, error) {
	people, err := s.store.ListForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := people[:0]
	for _, p := range people {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

// Deactivate marks a person inactive and returns their claimed items to the
// queue so nobody's work silently stalls on a departed assignee.
func (s *Service) Deactivate(ctx context.Context, personID, actorID string) error {
	p, err := s.store.Get(ctx, personID)
	if err != nil {
		return err
	}
	p.Active = false
	if err := s.store.Put(ctx, p); err != nil {
		return err
	}

	if err := s.tl.Append(ctx, &timeline.Entry{
		ID:        ulid.Make().String(),
		SubjectID: p.SubjectID,
		EventType: timeline.EventPersonDeactivated,
		Timestamp: s.now(),
		ActorID:   actorID,
		RefID:     p.ID,
		Payload:   map[string]any{"name": p.Name, "role": string(p.Role)},
	}); err != nil {
		return err
	}

	items, err := s.queue.List(ctx, queue.Filter{
		AssignedTo: personID,
		Statuses:   []queue.Status{queue.StatusInProgress, queue.StatusEscalated},
	})
	if err != nil {
		return err
	}
	for i := range items {
		if _, err := s.queue.Requeue(ctx, items[i].ID, actorID); err != nil {
			s.logger.Error(ctx, err, "failed to requeue item of deactivated person",
				"item_id", items[i].ID, "person_id", personID)
		}
	}

	s.logger.Warn(ctx, "person deactivated", "person_id", personID, "requeued", len(items))
	return nil
}
