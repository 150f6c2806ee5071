package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/planhub/internal/app/plans/membership"
	"github.com/dalemusser/planhub/internal/app/plans/wizard"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/dalemusser/planhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// gateUploader blocks until release is closed.
type gateUploader struct {
	release chan struct{}
	url     string
	err     error
}

func newGateUploader(url string) *gateUploader {
	return &gateUploader{release: make(chan struct{}), url: url}
}

func (u *gateUploader) Upload(ctx context.Context, _, _ string, _ []byte) (string, error) {
	select {
	case <-u.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return u.url, u.err
}

type instantUploader string

func (u instantUploader) Upload(context.Context, string, string, []byte) (string, error) {
	return string(u), nil
}

// fakeCommitter records calls.
type fakeCommitter struct {
	mu      sync.Mutex
	creates []models.Plan
	patches []models.PlanPatch
	err     error
}

func (c *fakeCommitter) CreatePlan(_ context.Context, p models.Plan) (models.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return models.Plan{}, c.err
	}
	c.creates = append(c.creates, p)
	p.ID = primitive.NewObjectID()
	return p, nil
}

func (c *fakeCommitter) UpdatePlanFields(_ context.Context, _ primitive.ObjectID, patch models.PlanPatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.patches = append(c.patches, patch)
	return nil
}

func fillStepZero(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	w.SetTitle("Board games")
	w.SetDescription("Bring snacks")
	w.StartImageUpload(context.Background(), instantUploader("/images/abc"), "a.png", "image/png", []byte("png"))
	require.NoError(t, w.WaitUpload(context.Background()))
}

// completeToVerify walks a new wizard to the verify step.
func completeToVerify(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	fillStepZero(t, w)
	require.NoError(t, w.Next())
	w.ToggleTag("games")
	require.NoError(t, w.Next())
	w.SetDate(time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC))
	w.SetTimeLabel("19:00")
	require.NoError(t, w.Next())
	w.SetLocation(models.Location{Name: "Dice Cafe", Address: "1 Main St"})
	require.NoError(t, w.Next())
	require.Equal(t, wizard.StepVerify, w.Step())
}

func TestNext_BlankTitleRejected(t *testing.T) {
	w := wizard.New()

	err := w.Next()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidationFailed))
	assert.Equal(t, "title is required", apperr.MessageOf(err))
	assert.Equal(t, wizard.StepDescribe, w.Step())
	assert.Equal(t, err, w.LastError())
}

func TestNext_StepZeroAdvancesAfterUpload(t *testing.T) {
	w := wizard.New()
	fillStepZero(t, w)

	require.NoError(t, w.Next())
	assert.Equal(t, wizard.StepFilters, w.Step())
	assert.NoError(t, w.LastError())
}

func TestNext_RequiresImage(t *testing.T) {
	w := wizard.New()
	w.SetTitle("t")
	w.SetDescription("d")

	err := w.Next()
	assert.Equal(t, "an image is required", apperr.MessageOf(err))
}

func TestUpload_InProgressBlocksNextNotTyping(t *testing.T) {
	w := wizard.New()
	up := newGateUploader("/images/slow")
	w.SetTitle("t")
	w.StartImageUpload(context.Background(), up, "a.png", "image/png", nil)

	// Typing continues while the upload is in flight.
	w.SetDescription("typed during upload")
	assert.Equal(t, "typed during upload", w.Draft().Description)
	assert.True(t, w.Draft().Uploading)

	err := w.Next()
	assert.Equal(t, "image upload in progress", apperr.MessageOf(err))
	assert.Equal(t, wizard.StepDescribe, w.Step())

	close(up.release)
	require.NoError(t, w.WaitUpload(context.Background()))
	assert.Equal(t, "/images/slow", w.Draft().ImageURL)
	require.NoError(t, w.Next())
}

func TestUpload_Failure(t *testing.T) {
	w := wizard.New()
	up := newGateUploader("")
	up.err = errors.New("storage offline")
	close(up.release)
	w.SetTitle("t")
	w.SetDescription("d")
	w.StartImageUpload(context.Background(), up, "a.png", "image/png", nil)

	assert.Error(t, w.WaitUpload(context.Background()))
	d := w.Draft()
	assert.False(t, d.Uploading)
	assert.Equal(t, "storage offline", d.UploadError)
	assert.Equal(t, "image upload failed: storage offline", apperr.MessageOf(w.Next()))
}

func TestUpload_NewerUploadWins(t *testing.T) {
	w := wizard.New()
	slow := newGateUploader("/images/old")
	w.StartImageUpload(context.Background(), slow, "old.png", "image/png", nil)
	w.StartImageUpload(context.Background(), instantUploader("/images/new"), "new.png", "image/png", nil)
	require.NoError(t, w.WaitUpload(context.Background()))

	close(slow.release)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, "/images/new", w.Draft().ImageURL)
}

func TestWaitUpload_NoUpload(t *testing.T) {
	w := wizard.New()
	assert.ErrorIs(t, w.WaitUpload(context.Background()), wizard.ErrNoUpload)
}

func TestGuards(t *testing.T) {
	w := wizard.New()
	fillStepZero(t, w)
	require.NoError(t, w.Next())

	assert.Equal(t, "pick at least one tag", apperr.MessageOf(w.Next()))
	w.ToggleTag("music")
	require.NoError(t, w.Next())

	assert.Equal(t, "date is required", apperr.MessageOf(w.Next()))
	w.SetDate(time.Now())
	assert.Equal(t, "time is required", apperr.MessageOf(w.Next()))
	w.SetTimeLabel("8pm")
	require.NoError(t, w.Next())

	assert.Equal(t, "location name is required", apperr.MessageOf(w.Next()))
	w.SetLocation(models.Location{Name: "Park"})
	require.NoError(t, w.Next())

	err := w.Next()
	assert.True(t, apperr.Is(err, apperr.KindValidationFailed))
	assert.Equal(t, wizard.StepVerify, w.Step())
}

func TestPreviousAndGoTo_Unguarded(t *testing.T) {
	w := wizard.New()
	completeToVerify(t, w)

	// Clearing the title does not stop moving backwards.
	w.SetTitle("")
	require.NoError(t, w.GoTo(wizard.StepFilters))
	require.NoError(t, w.Previous())
	assert.Equal(t, wizard.StepDescribe, w.Step())

	assert.Error(t, w.Previous())
	assert.Equal(t, wizard.StepDescribe, w.Step())

	assert.Error(t, w.GoTo(wizard.Step(7)))
	assert.Error(t, w.GoTo(wizard.Step(-1)))
	assert.Equal(t, wizard.StepDescribe, w.Step())
}

func TestToggleTag(t *testing.T) {
	w := wizard.New()
	w.ToggleTag("Music")
	w.ToggleTag("food")
	w.ToggleTag("music")
	w.ToggleTag("  ")
	assert.Equal(t, []string{"food"}, w.Draft().Tags)

	w.SetTags([]string{"a", "A", " b "})
	assert.Equal(t, []string{"a", "b"}, w.Draft().Tags)
}

func TestDraft_IsACopy(t *testing.T) {
	w := wizard.New()
	w.SetTags([]string{"a"})
	d := w.Draft()
	d.Tags[0] = "changed"
	assert.Equal(t, []string{"a"}, w.Draft().Tags)
}

func TestFinish_OnlyOnVerify(t *testing.T) {
	w := wizard.New()
	c := &fakeCommitter{}
	_, err := w.Finish(context.Background(), c)
	assert.True(t, apperr.Is(err, apperr.KindValidationFailed))
	assert.Empty(t, c.creates)
}

func TestFinish_RechecksAllSteps(t *testing.T) {
	w := wizard.New()
	completeToVerify(t, w)
	w.SetTitle("")

	c := &fakeCommitter{}
	_, err := w.Finish(context.Background(), c)
	assert.Equal(t, "describe: title is required", apperr.MessageOf(err))
	assert.Empty(t, c.creates)
}

func TestFinish_CreateMode(t *testing.T) {
	w := wizard.New()
	completeToVerify(t, w)
	c := &fakeCommitter{}

	p, err := w.Finish(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, c.creates, 1)
	assert.Empty(t, c.patches)
	assert.Equal(t, "Board games", c.creates[0].Title)
	assert.Equal(t, []string{"games"}, c.creates[0].Tags)
	assert.Equal(t, "19:00", c.creates[0].Schedule.TimeLabel)
	assert.False(t, p.ID.IsZero())
	assert.True(t, w.Committed())

	// Committed is terminal.
	_, err = w.Finish(context.Background(), c)
	assert.Error(t, err)
	assert.Error(t, w.Next())
	assert.Len(t, c.creates, 1)
}

func TestFinish_StoreFailureKeepsDraft(t *testing.T) {
	w := wizard.New()
	completeToVerify(t, w)
	boom := apperr.E("membership.CreatePlan", apperr.KindStoreUnavailable, "the store is unavailable")
	c := &fakeCommitter{err: boom}

	_, err := w.Finish(context.Background(), c)
	assert.Equal(t, boom, err)
	assert.False(t, w.Committed())
	assert.Equal(t, wizard.StepVerify, w.Step())
	assert.Equal(t, "Board games", w.Draft().Title)

	// Manual retry.
	c.err = nil
	_, err = w.Finish(context.Background(), c)
	assert.NoError(t, err)
}

func existingPlan() models.Plan {
	date := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	return models.Plan{
		ID:          primitive.NewObjectID(),
		Title:       "Board games",
		Description: "Bring snacks",
		ImageURL:    "/images/abc",
		Location:    models.Location{Name: "Dice Cafe"},
		Schedule:    models.Schedule{Date: &date, TimeLabel: "19:00"},
		Tags:        []string{"games"},
		AgeRange:    models.AgeRange{Min: 18},
	}
}

func TestFinish_EditModeSendsOnlyChangedFields(t *testing.T) {
	base := existingPlan()
	w := wizard.NewForEdit(base)
	assert.True(t, w.Draft().EditMode)

	w.SetTitle("Board games night")
	w.SetTimeLabel("20:00")
	require.NoError(t, w.GoTo(wizard.StepVerify))

	c := &fakeCommitter{}
	saved, err := w.Finish(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, c.patches, 1)
	assert.Empty(t, c.creates)

	patch := c.patches[0]
	assert.ElementsMatch(t, []models.PlanField{models.FieldTitle, models.FieldTimeLabel}, patch.Fields())
	assert.Equal(t, "Board games night", saved.Title)
	assert.Equal(t, base.Description, saved.Description)
}

func TestFinish_EditModeNoChanges(t *testing.T) {
	w := wizard.NewForEdit(existingPlan())
	require.NoError(t, w.GoTo(wizard.StepVerify))

	c := &fakeCommitter{}
	_, err := w.Finish(context.Background(), c)
	require.NoError(t, err)
	assert.Empty(t, c.patches)
	assert.True(t, w.Committed())
}

func TestBuildPatch(t *testing.T) {
	base := existingPlan()

	t.Run("blank fields are skipped", func(t *testing.T) {
		p := wizard.BuildPatch(base, wizard.Draft{AgeRange: base.AgeRange})
		assert.True(t, p.IsEmpty(), "fields: %v", p.Fields())
	})

	t.Run("age range can be cleared", func(t *testing.T) {
		d := wizard.NewForEdit(base).Draft()
		d.AgeRange = models.AgeRange{}
		p := wizard.BuildPatch(base, d)
		assert.Equal(t, []models.PlanField{models.FieldAgeRange}, p.Fields())
	})

	t.Run("date change", func(t *testing.T) {
		d := wizard.NewForEdit(base).Draft()
		later := base.Schedule.Date.Add(24 * time.Hour)
		d.Date = &later
		p := wizard.BuildPatch(base, d)
		assert.Equal(t, []models.PlanField{models.FieldScheduleDate}, p.Fields())
	})

	t.Run("tag reorder counts as change", func(t *testing.T) {
		b := base
		b.Tags = []string{"a", "b"}
		d := wizard.NewForEdit(b).Draft()
		d.Tags = []string{"b", "a"}
		p := wizard.BuildPatch(b, d)
		assert.Equal(t, []models.PlanField{models.FieldTags}, p.Fields())
	})
}

func TestCancel(t *testing.T) {
	w := wizard.New()
	fillStepZero(t, w)
	require.NoError(t, w.Next())
	w.Cancel()

	d := w.Draft()
	assert.Equal(t, wizard.StepDescribe, d.Step)
	assert.Empty(t, d.Title)
	assert.Empty(t, d.ImageURL)
	assert.ErrorIs(t, w.WaitUpload(context.Background()), wizard.ErrNoUpload)
}

func TestCancel_AbandonsUpload(t *testing.T) {
	w := wizard.New()
	up := newGateUploader("/images/late")
	w.StartImageUpload(context.Background(), up, "a.png", "image/png", nil)
	w.Cancel()
	close(up.release)
	time.Sleep(10 * time.Millisecond)

	d := w.Draft()
	assert.Empty(t, d.ImageURL)
	assert.False(t, d.Uploading)
}

func TestCancel_EditModeRestoresBaseline(t *testing.T) {
	base := existingPlan()
	w := wizard.NewForEdit(base)
	w.SetTitle("scratch")
	w.Cancel()
	assert.Equal(t, base.Title, w.Draft().Title)
	assert.True(t, w.Draft().EditMode)
}

// managerCommitter commits through a membership.Manager as actor.
type managerCommitter struct {
	m     *membership.Manager
	actor models.UserSnapshot
}

func (c managerCommitter) CreatePlan(ctx context.Context, draft models.Plan) (models.Plan, error) {
	return c.m.CreatePlan(ctx, c.actor, draft)
}

func (c managerCommitter) UpdatePlanFields(ctx context.Context, planID primitive.ObjectID, patch models.PlanPatch) error {
	return c.m.UpdatePlanFields(ctx, c.actor, planID, patch)
}

func TestFinish_ThroughManager(t *testing.T) {
	store := testutil.NewMemStore(t)
	m := membership.New(store, zap.NewNop())
	ana := testutil.User("ana")
	c := managerCommitter{m: m, actor: ana}

	w := wizard.New()
	completeToVerify(t, w)
	created, err := w.Finish(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, ana, created.Creator)

	edit := wizard.NewForEdit(created)
	edit.SetDescription("Bring snacks and a friend")
	require.NoError(t, edit.GoTo(wizard.StepVerify))
	_, err = edit.Finish(context.Background(), c)
	require.NoError(t, err)

	got, err := m.GetPlan(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bring snacks and a friend", got.Description)
	assert.Equal(t, created.Title, got.Title)
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "describe", wizard.StepDescribe.String())
	assert.Equal(t, "verify", wizard.StepVerify.String())
	assert.Equal(t, "step(9)", wizard.Step(9).String())
	assert.Equal(t, 5, wizard.StepCount)
}
