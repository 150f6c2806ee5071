// Package memdocs is an in-memory docstore.Store. Each plan document has
// its own lock, so mutations of one plan are serialized the same way the
// MongoDB adapter serializes them, while different plans proceed in
// parallel. It backs tests and the "memory" store backend.
package memdocs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type document struct {
	mu        sync.Mutex
	plan      models.Plan
	deleted   bool
	listeners map[*docstore.Sink]struct{}
}

// Store holds plan documents in memory.
type Store struct {
	mu   sync.RWMutex
	docs map[primitive.ObjectID]*document
	now  func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		docs: make(map[primitive.ObjectID]*document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) lookup(id primitive.ObjectID) (*document, error) {
	s.mu.RLock()
	d, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return d, nil
}

// mutate runs fn with the document locked, bumps the version and notifies
// listeners when fn reports a change.
func (s *Store) mutate(ctx context.Context, id primitive.ObjectID, fn func(p *models.Plan) (bool, error)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	d, err := s.lookup(id)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleted {
		return false, docstore.ErrNotFound
	}
	changed, err := fn(&d.plan)
	if err != nil || !changed {
		return false, err
	}
	d.plan.Version++
	d.plan.UpdatedAt = s.now()
	d.notifyLocked()
	return true, nil
}

func (d *document) notifyLocked() {
	for sink := range d.listeners {
		sink.Push(clonePlan(d.plan))
	}
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return models.Plan{}, err
	}
	d, err := s.lookup(id)
	if err != nil {
		return models.Plan{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleted {
		return models.Plan{}, docstore.ErrNotFound
	}
	return clonePlan(d.plan), nil
}

func (s *Store) Create(ctx context.Context, p models.Plan) (models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return models.Plan{}, err
	}
	now := s.now()
	p = clonePlan(p)
	p.ID = primitive.NewObjectID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Version = 1
	if p.Participants == nil {
		p.Participants = []models.UserSnapshot{}
	}
	if p.Messages == nil {
		p.Messages = []models.GroupMessage{}
	}

	s.mu.Lock()
	s.docs[p.ID] = &document{plan: p, listeners: make(map[*docstore.Sink]struct{})}
	s.mu.Unlock()
	return clonePlan(p), nil
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, patch models.PlanPatch) error {
	_, err := s.mutate(ctx, id, func(p *models.Plan) (bool, error) {
		if patch.IsEmpty() {
			return false, nil
		}
		patch.Apply(p)
		return true, nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	d, ok := s.docs[id]
	if ok {
		delete(s.docs, id)
	}
	s.mu.Unlock()
	if !ok {
		return docstore.ErrNotFound
	}

	d.mu.Lock()
	d.deleted = true
	listeners := d.listeners
	d.listeners = nil
	d.mu.Unlock()

	for sink := range listeners {
		sink.Fail(docstore.ErrNotFound)
	}
	return nil
}

func (s *Store) ArrayUnion(ctx context.Context, id primitive.ObjectID, field docstore.Field, elem docstore.Element) (bool, error) {
	if !field.Valid() {
		return false, fmt.Errorf("memdocs: unknown array field %q", field)
	}
	return s.mutate(ctx, id, func(p *models.Plan) (bool, error) {
		key := elem.ElementID()
		switch field {
		case docstore.Participants:
			u, ok := elem.(models.UserSnapshot)
			if !ok {
				return false, fmt.Errorf("memdocs: %T cannot be stored in %s", elem, field)
			}
			if p.HasParticipant(key) {
				return false, nil
			}
			p.Participants = append(p.Participants, u)
		case docstore.Messages:
			m, ok := elem.(models.GroupMessage)
			if !ok {
				return false, fmt.Errorf("memdocs: %T cannot be stored in %s", elem, field)
			}
			for _, existing := range p.Messages {
				if existing.ID == key {
					return false, nil
				}
			}
			p.Messages = append(p.Messages, m)
		}
		return true, nil
	})
}

func (s *Store) ArrayRemove(ctx context.Context, id primitive.ObjectID, field docstore.Field, key string) (bool, error) {
	if !field.Valid() {
		return false, fmt.Errorf("memdocs: unknown array field %q", field)
	}
	return s.mutate(ctx, id, func(p *models.Plan) (bool, error) {
		switch field {
		case docstore.Participants:
			kept := p.Participants[:0:0]
			for _, u := range p.Participants {
				if u.ID != key {
					kept = append(kept, u)
				}
			}
			if len(kept) == len(p.Participants) {
				return false, nil
			}
			p.Participants = kept
		case docstore.Messages:
			kept := p.Messages[:0:0]
			for _, m := range p.Messages {
				if m.ID != key {
					kept = append(kept, m)
				}
			}
			if len(kept) == len(p.Messages) {
				return false, nil
			}
			p.Messages = kept
		}
		return true, nil
	})
}

func (s *Store) ArrayClear(ctx context.Context, id primitive.ObjectID, field docstore.Field) error {
	if !field.Valid() {
		return fmt.Errorf("memdocs: unknown array field %q", field)
	}
	_, err := s.mutate(ctx, id, func(p *models.Plan) (bool, error) {
		switch field {
		case docstore.Participants:
			if len(p.Participants) == 0 {
				return false, nil
			}
			p.Participants = []models.UserSnapshot{}
		case docstore.Messages:
			if len(p.Messages) == 0 {
				return false, nil
			}
			p.Messages = []models.GroupMessage{}
		}
		return true, nil
	})
	return err
}

func (s *Store) ListForUser(ctx context.Context, userID string) ([]models.Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	docs := make([]*document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	var out []models.Plan
	for _, d := range docs {
		d.mu.Lock()
		if !d.deleted && (d.plan.IsCreator(userID) || d.plan.HasParticipant(userID)) {
			out = append(out, clonePlan(d.plan))
		}
		d.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, id primitive.ObjectID) (docstore.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	var sink *docstore.Sink
	sink = docstore.NewSink(func() {
		d.mu.Lock()
		delete(d.listeners, sink)
		d.mu.Unlock()
	})

	d.mu.Lock()
	if d.deleted {
		d.mu.Unlock()
		return nil, docstore.ErrNotFound
	}
	d.listeners[sink] = struct{}{}
	sink.Push(clonePlan(d.plan))
	d.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sink.Close()
		case <-sink.Done():
		}
	}()
	return sink, nil
}

// Listeners returns the number of open subscriptions on a plan.
func (s *Store) Listeners(id primitive.ObjectID) int {
	d, err := s.lookup(id)
	if err != nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

func clonePlan(p models.Plan) models.Plan {
	out := p
	if p.Tags != nil {
		out.Tags = append(make([]string, 0, len(p.Tags)), p.Tags...)
	}
	if p.Participants != nil {
		out.Participants = append(make([]models.UserSnapshot, 0, len(p.Participants)), p.Participants...)
	}
	if p.Messages != nil {
		out.Messages = append(make([]models.GroupMessage, 0, len(p.Messages)), p.Messages...)
	}
	if p.Schedule.Date != nil {
		d := *p.Schedule.Date
		out.Schedule.Date = &d
	}
	return out
}

var _ docstore.Store = (*Store)(nil)
