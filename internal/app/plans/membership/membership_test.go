package membership_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/planhub/internal/app/plans/membership"
	"github.com/dalemusser/planhub/internal/app/store/memdocs"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/dalemusser/planhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func draft() models.Plan {
	return models.Plan{
		Title:       "Sunset hike",
		Description: "Easy loop, bring water",
		Location:    models.Location{Name: "Runyon Canyon"},
		Tags:        []string{"outdoors"},
	}
}

func setup(t *testing.T, opts ...membership.Option) (*membership.Manager, *memdocs.Store, models.UserSnapshot, models.Plan) {
	t.Helper()
	store := testutil.NewMemStore(t)
	m := membership.New(store, zap.NewNop(), opts...)
	creator := testutil.User("ana")
	p, err := m.CreatePlan(context.Background(), creator, draft())
	require.NoError(t, err)
	return m, store, creator, p
}

func TestCreatePlan(t *testing.T) {
	m, _, creator, p := setup(t)

	assert.False(t, p.ID.IsZero())
	assert.Equal(t, creator, p.Creator)
	assert.Empty(t, p.Participants)
	assert.Empty(t, p.Messages)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, "sunset hike", p.TitleCI)

	got, err := m.GetPlan(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sunset hike", got.Title)
}

func TestCreatePlan_Validation(t *testing.T) {
	store := testutil.NewMemStore(t)
	m := membership.New(store, zap.NewNop())
	actor := testutil.User("ana")

	tests := []struct {
		name   string
		mutate func(p *models.Plan)
		msg    string
	}{
		{"blank title", func(p *models.Plan) { p.Title = "   " }, "title is required"},
		{"markup-only title", func(p *models.Plan) { p.Title = "<b></b>" }, "title is required"},
		{"blank description", func(p *models.Plan) { p.Description = "" }, "description is required"},
		{"blank location", func(p *models.Plan) { p.Location.Name = "" }, "location name is required"},
		{"inverted ages", func(p *models.Plan) { p.AgeRange = models.AgeRange{Min: 40, Max: 20} }, "minimum age is above maximum age"},
		{"unknown gender", func(p *models.Plan) { p.GenderFilter = "robots" }, `unknown gender filter "robots"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := draft()
			tt.mutate(&d)
			_, err := m.CreatePlan(context.Background(), actor, d)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidationFailed), "kind: %s", apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.MessageOf(err))
		})
	}
}

func TestCreatePlan_RequiresActor(t *testing.T) {
	m := membership.New(testutil.NewMemStore(t), zap.NewNop())
	_, err := m.CreatePlan(context.Background(), models.UserSnapshot{}, draft())
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestCreatePlan_SanitizesAndDedupesTags(t *testing.T) {
	m := membership.New(testutil.NewMemStore(t), zap.NewNop())
	d := draft()
	d.Title = "<script>x</script>Picnic"
	d.Tags = []string{"Food", "food", "<i>music</i>", ""}

	p, err := m.CreatePlan(context.Background(), testutil.User("ana"), d)
	require.NoError(t, err)
	assert.Equal(t, "Picnic", p.Title)
	assert.Equal(t, []string{"Food", "music"}, p.Tags)
}

func TestJoin_Idempotent(t *testing.T) {
	m, _, _, p := setup(t)
	ctx := context.Background()
	bob := testutil.User("bob")

	require.NoError(t, m.Join(ctx, bob, p.ID))
	require.NoError(t, m.Join(ctx, bob, p.ID))

	got, err := m.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.ID}, got.ParticipantIDs())
}

func TestJoin_ChangedSnapshotDoesNotDuplicate(t *testing.T) {
	m, _, _, p := setup(t)
	ctx := context.Background()
	bob := testutil.User("bob")

	require.NoError(t, m.Join(ctx, bob, p.ID))
	bob.PhotoURL = "https://example.test/new-photo.png"
	require.NoError(t, m.Join(ctx, bob, p.ID))

	got, _ := m.GetPlan(ctx, p.ID)
	assert.Len(t, got.Participants, 1)
}

func TestJoin_CreatorIsSoftSuccess(t *testing.T) {
	m, _, creator, p := setup(t)

	require.NoError(t, m.Join(context.Background(), creator, p.ID))

	got, _ := m.GetPlan(context.Background(), p.ID)
	assert.Empty(t, got.Participants)
}

func TestJoin_NotFound(t *testing.T) {
	m, _, _, _ := setup(t)
	err := m.Join(context.Background(), testutil.User("bob"), primitive.NewObjectID())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, "plan not found", apperr.MessageOf(err))
}

func TestJoin_ConcurrentUsers(t *testing.T) {
	m, _, _, p := setup(t)
	ctx := context.Background()
	a := testutil.User("a")
	b := testutil.User("b")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, u := range []models.UserSnapshot{a, b} {
			wg.Add(1)
			go func(u models.UserSnapshot) {
				defer wg.Done()
				assert.NoError(t, m.Join(ctx, u, p.ID))
			}(u)
		}
	}
	wg.Wait()

	got, _ := m.GetPlan(ctx, p.ID)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, got.ParticipantIDs())
}

func TestJoinLeave_RandomSequenceKeepsIDsUnique(t *testing.T) {
	m, _, _, p := setup(t)
	ctx := context.Background()
	users := []models.UserSnapshot{testutil.User("a"), testutil.User("b"), testutil.User("c")}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := users[i%len(users)]
			if i%4 == 3 {
				assert.NoError(t, m.Leave(ctx, u, p.ID))
				return
			}
			assert.NoError(t, m.Join(ctx, u, p.ID))
		}(i)
	}
	wg.Wait()

	got, _ := m.GetPlan(ctx, p.ID)
	seen := map[string]bool{}
	for _, id := range got.ParticipantIDs() {
		assert.False(t, seen[id], "duplicate participant %s", id)
		seen[id] = true
	}
}

func TestLeave(t *testing.T) {
	m, _, _, p := setup(t)
	ctx := context.Background()
	bob := testutil.User("bob")
	cid := testutil.User("cid")

	require.NoError(t, m.Join(ctx, bob, p.ID))
	require.NoError(t, m.Join(ctx, cid, p.ID))
	require.NoError(t, m.Leave(ctx, bob, p.ID))

	got, _ := m.GetPlan(ctx, p.ID)
	assert.Equal(t, []string{cid.ID}, got.ParticipantIDs())
}

func TestLeave_NotAMemberIsSoftSuccess(t *testing.T) {
	m, _, _, p := setup(t)
	ctx := context.Background()
	bob := testutil.User("bob")
	require.NoError(t, m.Join(ctx, bob, p.ID))

	before, _ := m.GetPlan(ctx, p.ID)
	require.NoError(t, m.Leave(ctx, testutil.User("stranger"), p.ID))
	after, _ := m.GetPlan(ctx, p.ID)

	assert.Equal(t, before.Participants, after.Participants)
}

func TestLeave_CreatorRejected(t *testing.T) {
	m, _, creator, p := setup(t)

	err := m.Leave(context.Background(), creator, p.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestEligibility_AdvisoryByDefault(t *testing.T) {
	store := testutil.NewMemStore(t)
	m := membership.New(store, zap.NewNop())
	d := draft()
	d.AgeRange = models.AgeRange{Min: 30, Max: 40}
	p, err := m.CreatePlan(context.Background(), testutil.User("ana"), d)
	require.NoError(t, err)

	young := testutil.User("kid")
	young.Age = 19
	assert.NoError(t, m.Join(context.Background(), young, p.ID))
}

func TestEligibility_Enforced(t *testing.T) {
	store := testutil.NewMemStore(t)
	m := membership.New(store, zap.NewNop(), membership.WithEligibilityEnforced(true))
	d := draft()
	d.GenderFilter = models.GenderFemale
	p, err := m.CreatePlan(context.Background(), testutil.User("ana"), d)
	require.NoError(t, err)

	bob := testutil.User("bob")
	bob.Gender = models.GenderMale
	err = m.Join(context.Background(), bob, p.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Contains(t, apperr.MessageOf(err), "not eligible")

	eve := testutil.User("eve")
	eve.Gender = models.GenderFemale
	assert.NoError(t, m.Join(context.Background(), eve, p.ID))
}

func TestUpdatePlanFields(t *testing.T) {
	m, _, creator, p := setup(t)
	ctx := context.Background()

	var patch models.PlanPatch
	patch.SetTitle("Moonrise hike")
	patch.SetTags([]string{"night", "Night"})
	require.NoError(t, m.UpdatePlanFields(ctx, creator, p.ID, patch))

	got, _ := m.GetPlan(ctx, p.ID)
	assert.Equal(t, "Moonrise hike", got.Title)
	assert.Equal(t, "moonrise hike", got.TitleCI)
	assert.Equal(t, []string{"night"}, got.Tags)
	assert.Equal(t, p.Description, got.Description, "untouched field must be kept")
	assert.Equal(t, p.Location, got.Location)
}

func TestUpdatePlanFields_EmptyPatchIsNoop(t *testing.T) {
	m, store, creator, p := setup(t)

	require.NoError(t, m.UpdatePlanFields(context.Background(), creator, p.ID, models.PlanPatch{}))

	got, _ := store.Get(context.Background(), p.ID)
	assert.Equal(t, p.Version, got.Version)
}

func TestUpdatePlanFields_NonCreatorRejected(t *testing.T) {
	m, _, _, p := setup(t)
	var patch models.PlanPatch
	patch.SetTitle("Mine now")

	err := m.UpdatePlanFields(context.Background(), testutil.User("bob"), p.ID, patch)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}

func TestUpdatePlanFields_ValidationBeforeStore(t *testing.T) {
	m, _, creator, _ := setup(t)
	var patch models.PlanPatch
	patch.SetTitle("  ")

	// Unknown plan id: validation must fail first.
	err := m.UpdatePlanFields(context.Background(), creator, primitive.NewObjectID(), patch)
	assert.True(t, apperr.Is(err, apperr.KindValidationFailed))
}

func TestDeletePlan(t *testing.T) {
	m, _, creator, p := setup(t)
	ctx := context.Background()

	err := m.DeletePlan(ctx, testutil.User("bob"), p.ID)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	require.NoError(t, m.DeletePlan(ctx, creator, p.ID))
	_, err = m.GetPlan(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListForUser(t *testing.T) {
	m, _, creator, p := setup(t)
	ctx := context.Background()
	bob := testutil.User("bob")

	other, err := m.CreatePlan(ctx, bob, draft())
	require.NoError(t, err)
	require.NoError(t, m.Join(ctx, creator, other.ID))

	plans, err := m.ListForUser(ctx, creator.ID)
	require.NoError(t, err)
	ids := []primitive.ObjectID{}
	for _, pl := range plans {
		ids = append(ids, pl.ID)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{p.ID, other.ID}, ids)

	plans, err = m.ListForUser(ctx, testutil.User("nobody").ID)
	require.NoError(t, err)
	assert.NotNil(t, plans)
	assert.Empty(t, plans)
}

// failingStore fails every read with err.
type failingStore struct {
	docstore.Store
	err error
}

func (f failingStore) Get(context.Context, primitive.ObjectID) (models.Plan, error) {
	return models.Plan{}, f.err
}

func TestStoreFailuresAreTyped(t *testing.T) {
	tests := []struct {
		err  error
		kind apperr.Kind
	}{
		{errors.New("connection reset"), apperr.KindStoreUnavailable},
		{context.DeadlineExceeded, apperr.KindStoreUnavailable},
		{fmt.Errorf("wrapped: %w", docstore.ErrNotFound), apperr.KindNotFound},
	}
	for _, tt := range tests {
		m := membership.New(failingStore{Store: memdocs.New(), err: tt.err}, zap.NewNop())
		err := m.Join(context.Background(), testutil.User("bob"), primitive.NewObjectID())
		assert.True(t, apperr.Is(err, tt.kind), "%v: got kind %s", tt.err, apperr.KindOf(err))
		assert.NotEmpty(t, apperr.MessageOf(err))
	}
}

func TestCreatePlan_UsesClock(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m := membership.New(testutil.NewMemStore(t), zap.NewNop(), membership.WithClock(func() time.Time { return fixed }))

	p, err := m.CreatePlan(context.Background(), testutil.User("ana"), draft())
	require.NoError(t, err)
	assert.Equal(t, fixed, p.CreatedAt)
}
