package directory

import (
	"context"
	"sync"
	"time"
)

// CachedStore wraps a Store with a read-through TTL cache. Care circles are
// read on every assignment scoring pass but change rarely; the TTL bounds
// staleness after an out-of-band edit. Put invalidates eagerly.
type CachedStore struct {
	inner Store
	ttl   time.Duration

	mu      sync.Mutex
	people  map[string]cached[*Person]
	circles map[string]cached[[]Person]
	now     func() time.Time
}

type cached[T any] struct {
	val T
	exp time.Time
}

// NewCachedStore wraps inner with the given TTL.
func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner:   inner,
		ttl:     ttl,
		people:  make(map[string]cached[*Person]),
		circles: make(map[string]cached[[]Person]),
		now:     time.Now,
	}
}

// Put writes through and drops cache entries touched by the change.
func (c *CachedStore) Put(ctx context.Context, p *Person) error {
	if err := c.inner.Put(ctx, p); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.people, p.ID)
	delete(c.circles, p.SubjectID)
	c.mu.Unlock()
	return nil
}

// Get returns the cached person or reads through.
func (c *CachedStore) Get(ctx context.Context, id string) (*Person, error) {
	c.mu.Lock()
	if e, ok := c.people[id]; ok && c.now().Before(e.exp) {
		cp := *e.val
		c.mu.Unlock()
		return &cp, nil
	}
	c.mu.Unlock()

	p, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *p
	c.mu.Lock()
	c.people[id] = cached[*Person]{val: &cp, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return p, nil
}

// ListForSubject returns the cached circle or reads through.
func (c *CachedStore) ListForSubject(ctx context.Context, subjectID string) ([]Person, error) {
	c.mu.Lock()
	if e, ok := c.circles[subjectID]; ok && c.now().Before(e.exp) {
		out := make([]Person, len(e.val))
		copy(out, e.val)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	people, err := c.inner.ListForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	held := make([]Person, len(people))
	copy(held, people)
	c.mu.Lock()
	c.circles[subjectID] = cached[[]Person]{val: held, exp: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return people, nil
}
