package memdocs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/planhub/internal/app/store/memdocs"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newPlan(t *testing.T, s *memdocs.Store) models.Plan {
	t.Helper()
	p, err := s.Create(context.Background(), models.Plan{
		Title:   "Picnic",
		Creator: models.UserSnapshot{ID: "creator", Name: "Cora"},
	})
	require.NoError(t, err)
	return p
}

func TestCreate_AssignsIDAndVersion(t *testing.T) {
	s := memdocs.New()
	p := newPlan(t, s)

	assert.NotEqual(t, primitive.NilObjectID, p.ID)
	assert.Equal(t, int64(1), p.Version)
	assert.False(t, p.CreatedAt.IsZero())
	assert.NotNil(t, p.Participants)
	assert.NotNil(t, p.Messages)
}

func TestGet_NotFound(t *testing.T) {
	s := memdocs.New()
	_, err := s.Get(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestArrayUnion_KeyedByID(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	p := newPlan(t, s)

	added, err := s.ArrayUnion(ctx, p.ID, docstore.Participants, models.UserSnapshot{ID: "u1", Name: "Ann"})
	require.NoError(t, err)
	assert.True(t, added)

	// Same id with a changed snapshot must not produce a second entry.
	added, err = s.ArrayUnion(ctx, p.ID, docstore.Participants, models.UserSnapshot{ID: "u1", Name: "Ann B.", PhotoURL: "x"})
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	assert.Equal(t, "Ann", got.Participants[0].Name)
	assert.Equal(t, int64(2), got.Version)
}

func TestArrayUnion_WrongElementType(t *testing.T) {
	s := memdocs.New()
	p := newPlan(t, s)

	_, err := s.ArrayUnion(context.Background(), p.ID, docstore.Messages, models.UserSnapshot{ID: "u1"})
	assert.Error(t, err)
}

func TestArrayRemove_ByKey(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	p := newPlan(t, s)

	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := s.ArrayUnion(ctx, p.ID, docstore.Messages, models.GroupMessage{ID: id, Body: id})
		require.NoError(t, err)
	}

	removed, err := s.ArrayRemove(ctx, p.ID, docstore.Messages, "m2")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.ArrayRemove(ctx, p.ID, docstore.Messages, "m2")
	require.NoError(t, err)
	assert.False(t, removed)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	ids := []string{}
	for _, m := range got.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m1", "m3"}, ids)
}

func TestArrayClear(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	p := newPlan(t, s)

	_, err := s.ArrayUnion(ctx, p.ID, docstore.Messages, models.GroupMessage{ID: "m1"})
	require.NoError(t, err)
	require.NoError(t, s.ArrayClear(ctx, p.ID, docstore.Messages))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestUpdate_AppliesOnlyPatchedFields(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	p := newPlan(t, s)

	var patch models.PlanPatch
	patch.SetDescription("Bring snacks")
	require.NoError(t, s.Update(ctx, p.ID, patch))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Picnic", got.Title)
	assert.Equal(t, "Bring snacks", got.Description)
}

func TestConcurrentUnion_NoDuplicates(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	p := newPlan(t, s)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "a"
			if i%2 == 1 {
				id = "b"
			}
			_, err := s.ArrayUnion(ctx, p.ID, docstore.Participants, models.UserSnapshot{ID: id})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, got.ParticipantIDs())
}

func TestSubscribe_InitialAndChanges(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	p := newPlan(t, s)

	sub, err := s.Subscribe(ctx, p.ID)
	require.NoError(t, err)
	defer sub.Close()

	first := <-sub.Updates()
	assert.Equal(t, int64(1), first.Version)

	_, err = s.ArrayUnion(ctx, p.ID, docstore.Participants, models.UserSnapshot{ID: "u1"})
	require.NoError(t, err)

	select {
	case next := <-sub.Updates():
		assert.Equal(t, []string{"u1"}, next.ParticipantIDs())
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot after mutation")
	}
}

func TestSubscribe_CloseReleasesListener(t *testing.T) {
	s := memdocs.New()
	p := newPlan(t, s)

	sub, err := s.Subscribe(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Listeners(p.ID))

	sub.Close()
	assert.Equal(t, 0, s.Listeners(p.ID))
	assert.NoError(t, sub.Err())
}

func TestSubscribe_ContextCancelReleasesListener(t *testing.T) {
	s := memdocs.New()
	p := newPlan(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := s.Subscribe(ctx, p.ID)
	require.NoError(t, err)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("expected subscription to end after cancel")
	}
	assert.Equal(t, 0, s.Listeners(p.ID))
}

func TestSubscribe_DeleteEndsWithNotFound(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	p := newPlan(t, s)

	sub, err := s.Subscribe(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, p.ID))

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("expected subscription to end after delete")
	}
	assert.ErrorIs(t, sub.Err(), docstore.ErrNotFound)
}

func TestListForUser(t *testing.T) {
	s := memdocs.New()
	ctx := context.Background()
	created := newPlan(t, s)
	other, err := s.Create(ctx, models.Plan{Title: "Hike", Creator: models.UserSnapshot{ID: "someone"}})
	require.NoError(t, err)
	_, err = s.Create(ctx, models.Plan{Title: "Unrelated", Creator: models.UserSnapshot{ID: "someone"}})
	require.NoError(t, err)

	_, err = s.ArrayUnion(ctx, other.ID, docstore.Participants, models.UserSnapshot{ID: "creator"})
	require.NoError(t, err)

	plans, err := s.ListForUser(ctx, "creator")
	require.NoError(t, err)
	ids := []primitive.ObjectID{}
	for _, p := range plans {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{created.ID, other.ID}, ids)
}
