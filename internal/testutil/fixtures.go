package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/planhub/internal/app/store/memdocs"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewMemStore returns an empty in-memory document store.
func NewMemStore(t *testing.T) *memdocs.Store {
	t.Helper()
	return memdocs.New()
}

// Fixtures provides helper methods for creating test data in any
// docstore.Store.
type Fixtures struct {
	store docstore.Store
	t     *testing.T
}

// NewFixtures creates a new Fixtures instance for the given store.
func NewFixtures(t *testing.T, store docstore.Store) *Fixtures {
	t.Helper()
	return &Fixtures{store: store, t: t}
}

// Store returns the underlying store for direct access in tests.
func (f *Fixtures) Store() docstore.Store {
	return f.store
}

// User returns a user snapshot with a fresh id.
func User(name string) models.UserSnapshot {
	return models.UserSnapshot{
		ID:       primitive.NewObjectID().Hex(),
		Name:     name,
		PhotoURL: "https://example.test/" + name + ".png",
		Age:      30,
		Gender:   models.GenderAny,
	}
}

// CreatePlan creates a complete plan owned by creator.
func (f *Fixtures) CreatePlan(ctx context.Context, title string, creator models.UserSnapshot) models.Plan {
	f.t.Helper()

	date := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Millisecond)
	p := models.Plan{
		Title:       title,
		TitleCI:     text.Fold(title),
		Description: "A test plan",
		ImageURL:    "/images/test",
		Location:    models.Location{Name: "Central Park", Address: "New York, NY", Lat: 40.7812, Lng: -73.9665},
		Schedule:    models.Schedule{Date: &date, TimeLabel: "18:00"},
		Tags:        []string{"outdoors"},
		Creator:     creator,
	}

	created, err := f.store.Create(ctx, p)
	if err != nil {
		f.t.Fatalf("failed to create test plan: %v", err)
	}
	return created
}

// AddParticipant appends u to the plan's participants.
func (f *Fixtures) AddParticipant(ctx context.Context, planID primitive.ObjectID, u models.UserSnapshot) {
	f.t.Helper()
	if _, err := f.store.ArrayUnion(ctx, planID, docstore.Participants, u); err != nil {
		f.t.Fatalf("failed to add participant: %v", err)
	}
}

// AddMessage appends a message with the given id and timestamp.
func (f *Fixtures) AddMessage(ctx context.Context, planID primitive.ObjectID, author models.UserSnapshot, id, body string, sentAt time.Time) models.GroupMessage {
	f.t.Helper()
	m := models.GroupMessage{
		ID:             id,
		AuthorID:       author.ID,
		AuthorName:     author.Name,
		AuthorPhotoURL: author.PhotoURL,
		Body:           body,
		SentAt:         sentAt.UTC(),
	}
	if _, err := f.store.ArrayUnion(ctx, planID, docstore.Messages, m); err != nil {
		f.t.Fatalf("failed to add message: %v", err)
	}
	return m
}
