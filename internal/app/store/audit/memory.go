// internal/app/store/audit/memory.go
package audit

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps audit events in process, for the memory backend and tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Log(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, prepare(event))
	return nil
}

func (m *Memory) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	var out []Event
	for _, e := range m.events {
		if matches(e, filter) {
			out = append(out, e)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	limit := int(filter.Limit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(e Event, f QueryFilter) bool {
	switch {
	case f.PlanID != nil && (e.PlanID == nil || *e.PlanID != *f.PlanID):
		return false
	case f.ActorID != "" && e.ActorID != f.ActorID:
		return false
	case f.Category != "" && e.Category != f.Category:
		return false
	case f.EventType != "" && e.EventType != f.EventType:
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	}
	return true
}
