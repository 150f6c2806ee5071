// Package docstore defines the document store contract the plan and chat
// components are built on: keyed plan documents with partial updates,
// atomic id-keyed array operations and full-snapshot subscriptions.
//
// Implementations: store/plans (MongoDB) and store/memdocs (in-memory).
package docstore

import (
	"context"
	"errors"

	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned when the plan document does not exist.
var ErrNotFound = errors.New("document not found")

// Field names an embedded array of the plan document.
type Field string

const (
	Participants Field = "participants"
	Messages     Field = "messages"
)

// Valid reports whether f is a known array field.
func (f Field) Valid() bool { return f == Participants || f == Messages }

// Element is an array entry with a stable identity. Union and removal are
// keyed by ElementID, never by full value equality.
type Element interface {
	ElementID() string
}

// Store is the document store adapter.
//
// Array mutations are atomic per document; the store serializes concurrent
// mutations of the same plan, so callers need no lock of their own.
type Store interface {
	Get(ctx context.Context, id primitive.ObjectID) (models.Plan, error)
	Create(ctx context.Context, p models.Plan) (models.Plan, error)
	Update(ctx context.Context, id primitive.ObjectID, patch models.PlanPatch) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	// ArrayUnion appends elem unless an entry with the same ElementID is
	// already present. added is false when it was.
	ArrayUnion(ctx context.Context, id primitive.ObjectID, field Field, elem Element) (added bool, err error)
	// ArrayRemove removes every entry whose ElementID equals key.
	ArrayRemove(ctx context.Context, id primitive.ObjectID, field Field, key string) (removed bool, err error)
	// ArrayClear empties the array.
	ArrayClear(ctx context.Context, id primitive.ObjectID, field Field) error

	// ListForUser returns plans the user created or joined, newest first.
	ListForUser(ctx context.Context, userID string) ([]models.Plan, error)

	// Subscribe delivers the full document now and after every change.
	// It fails with ErrNotFound when the plan does not exist.
	Subscribe(ctx context.Context, id primitive.ObjectID) (Subscription, error)
}

// Subscription is a cancellable stream of full plan snapshots.
type Subscription interface {
	// Updates yields snapshots; it is closed when the subscription ends.
	Updates() <-chan models.Plan
	// Done is closed when the subscription ends.
	Done() <-chan struct{}
	// Err reports why the subscription ended: ErrNotFound when the plan was
	// deleted, a store error, or nil after Close.
	Err() error
	// Close releases the underlying listener. After Close returns no more
	// snapshots are delivered. Safe to call more than once.
	Close()
}
