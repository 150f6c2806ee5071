// Package opstate tracks loading and error state per (plan, operation), so
// a failed join on one plan never shows up as a failure on another, and a
// send in flight does not look like a delete in flight.
package opstate

import (
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
)

// Op names a tracked operation.
type Op string

const (
	OpJoin          Op = "join"
	OpLeave         Op = "leave"
	OpDelete        Op = "delete"
	OpDeleteMessage Op = "delete_message"
	OpSend          Op = "send"
	OpClear         Op = "clear"
	OpLoad          Op = "load"
	OpSave          Op = "save"
)

// Status is the lifecycle of one operation.
type Status int

const (
	Idle Status = iota
	Loading
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Key identifies an operation on a plan. PlanID may be empty for
// operations that are not tied to one plan. Target narrows the key to one
// message or draft, so two different sends on a plan are tracked apart.
type Key struct {
	PlanID string
	Op     Op
	Target string
}

// State is the current state of a key.
type State struct {
	Status    Status
	Kind      apperr.Kind
	Message   string
	UpdatedAt time.Time
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	states map[Key]State
	now    func() time.Time
}

func New() *Tracker {
	return &Tracker{states: make(map[Key]State), now: time.Now}
}

// Begin marks k as loading. It returns false if k is already loading, so
// callers can drop a double click.
func (t *Tracker) Begin(k Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[k].Status == Loading {
		return false
	}
	t.states[k] = State{Status: Loading, UpdatedAt: t.now()}
	return true
}

// End records the outcome of k. A nil err returns k to idle.
func (t *Tracker) End(k Key, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.states, k)
		return
	}
	t.states[k] = State{
		Status:    Failed,
		Kind:      apperr.KindOf(err),
		Message:   apperr.MessageOf(err),
		UpdatedAt: t.now(),
	}
}

// Do runs fn between Begin and End. If k is already loading fn is not run
// and Do returns false.
func (t *Tracker) Do(k Key, fn func() error) (ran bool, err error) {
	if !t.Begin(k) {
		return false, nil
	}
	err = fn()
	t.End(k, err)
	return true, err
}

// Get returns the state of k; unknown keys are idle.
func (t *Tracker) Get(k Key) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[k]
}

// Dismiss clears a failure so the UI stops showing it.
func (t *Tracker) Dismiss(k Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[k].Status == Failed {
		delete(t.states, k)
	}
}

// Busy reports whether any operation on planID is loading.
func (t *Tracker) Busy(planID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, s := range t.states {
		if k.PlanID == planID && s.Status == Loading {
			return true
		}
	}
	return false
}

// Failures returns failed keys, oldest first.
func (t *Tracker) Failures() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Key
	for k, s := range t.states {
		if s.Status == Failed {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := t.states[out[i]].UpdatedAt, t.states[out[j]].UpdatedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		if out[i].PlanID != out[j].PlanID {
			return out[i].PlanID < out[j].PlanID
		}
		if out[i].Op != out[j].Op {
			return out[i].Op < out[j].Op
		}
		return out[i].Target < out[j].Target
	})
	return out
}
