// Package wizard is the five-step plan creation and edit flow. It keeps a
// private draft, guards forward moves with per-step checks and commits the
// draft in one write at the end: a create, or in edit mode a patch holding
// only the fields that changed.
package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Step is a wizard page.
type Step int

const (
	StepDescribe Step = iota // title, description, image
	StepFilters              // tags, age range, gender
	StepSchedule             // date and time
	StepLocation             // place
	StepVerify               // review and finish
)

// StepCount is the number of steps.
const StepCount = int(StepVerify) + 1

var stepNames = [...]string{"describe", "filters", "schedule", "location", "verify"}

func (s Step) String() string {
	if s < StepDescribe || s > StepVerify {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Valid reports whether s is a real step.
func (s Step) Valid() bool { return s >= StepDescribe && s <= StepVerify }

// Draft is the wizard's working copy of a plan.
type Draft struct {
	PlanID       primitive.ObjectID
	Title        string
	Description  string
	ImageURL     string
	Tags         []string
	AgeRange     models.AgeRange
	GenderFilter string
	Date         *time.Time
	TimeLabel    string
	Location     models.Location

	Step     Step
	EditMode bool

	// Uploading is true while an image upload is in flight.
	Uploading bool
	// UploadError holds the last failed upload's message.
	UploadError string
}

func (d Draft) clone() Draft {
	out := d
	out.Tags = append([]string(nil), d.Tags...)
	if d.Date != nil {
		t := *d.Date
		out.Date = &t
	}
	return out
}

// Plan converts the draft to a plan value for CreatePlan.
func (d Draft) Plan() models.Plan {
	p := models.Plan{
		ID:           d.PlanID,
		Title:        d.Title,
		Description:  d.Description,
		ImageURL:     d.ImageURL,
		Location:     d.Location,
		Schedule:     models.Schedule{TimeLabel: d.TimeLabel},
		Tags:         append([]string(nil), d.Tags...),
		AgeRange:     d.AgeRange,
		GenderFilter: d.GenderFilter,
	}
	if d.Date != nil {
		t := *d.Date
		p.Schedule.Date = &t
	}
	return p
}

func draftFromPlan(p models.Plan) Draft {
	d := Draft{
		PlanID:       p.ID,
		Title:        p.Title,
		Description:  p.Description,
		ImageURL:     p.ImageURL,
		Tags:         append([]string(nil), p.Tags...),
		AgeRange:     p.AgeRange,
		GenderFilter: p.GenderFilter,
		TimeLabel:    p.Schedule.TimeLabel,
		Location:     p.Location,
		EditMode:     true,
	}
	if p.Schedule.Date != nil {
		t := *p.Schedule.Date
		d.Date = &t
	}
	return d
}

// Committer persists a finished draft on behalf of the signed-in user.
type Committer interface {
	CreatePlan(ctx context.Context, draft models.Plan) (models.Plan, error)
	UpdatePlanFields(ctx context.Context, planID primitive.ObjectID, patch models.PlanPatch) error
}

// Wizard is one user's pass through the flow. Only the async image upload
// touches it from another goroutine; the mutex exists for that.
type Wizard struct {
	mu        sync.Mutex
	draft     Draft
	baseline  models.Plan
	committed bool
	finishing bool
	lastErr   error

	upload *upload
}

// New starts a wizard for a new plan.
func New() *Wizard {
	return &Wizard{}
}

// NewForEdit starts a wizard over an existing plan. Finish writes only
// fields that differ from p.
func NewForEdit(p models.Plan) *Wizard {
	return &Wizard{draft: draftFromPlan(p), baseline: p}
}

// Draft returns a copy of the current draft.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.clone()
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft.Step
}

// Committed reports whether Finish succeeded.
func (w *Wizard) Committed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committed
}

// LastError returns the error of the most recent rejected transition or
// failed Finish, or nil once a later transition succeeds.
func (w *Wizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Next advances one step if the current step is complete. On failure the
// step is unchanged and a ValidationFailed error says what is missing.
func (w *Wizard) Next() error {
	const op = "wizard.Next"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(op); err != nil {
		return err
	}
	if w.draft.Step == StepVerify {
		return w.fail(apperr.Validation(op, "this is the last step; finish to save"))
	}
	if msg := guard(w.draft, w.draft.Step); msg != "" {
		return w.fail(apperr.Validation(op, msg))
	}
	w.draft.Step++
	w.lastErr = nil
	return nil
}

// Previous moves back one step. It is not guarded.
func (w *Wizard) Previous() error {
	const op = "wizard.Previous"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(op); err != nil {
		return err
	}
	if w.draft.Step == StepDescribe {
		return w.fail(apperr.Validation(op, "already on the first step"))
	}
	w.draft.Step--
	w.lastErr = nil
	return nil
}

// GoTo jumps to any step, as the verify page's edit links do. It is not
// guarded.
func (w *Wizard) GoTo(s Step) error {
	const op = "wizard.GoTo"
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(op); err != nil {
		return err
	}
	if !s.Valid() {
		return w.fail(apperr.Validation(op, fmt.Sprintf("no such step %d", int(s))))
	}
	w.draft.Step = s
	w.lastErr = nil
	return nil
}

// Finish commits the draft from the verify step. In create mode it makes
// one CreatePlan call; in edit mode one UpdatePlanFields call carrying the
// changed fields (none at all when nothing changed).
func (w *Wizard) Finish(ctx context.Context, c Committer) (models.Plan, error) {
	const op = "wizard.Finish"
	w.mu.Lock()
	if err := w.checkOpen(op); err != nil {
		w.mu.Unlock()
		return models.Plan{}, err
	}
	if w.finishing {
		w.mu.Unlock()
		return models.Plan{}, apperr.Validation(op, "already saving")
	}
	if w.draft.Step != StepVerify {
		err := w.fail(apperr.Validation(op, "finish is only available on the verify step"))
		w.mu.Unlock()
		return models.Plan{}, err
	}
	for s := StepDescribe; s < StepVerify; s++ {
		if msg := guard(w.draft, s); msg != "" {
			err := w.fail(apperr.Validation(op, fmt.Sprintf("%s: %s", s, msg)))
			w.mu.Unlock()
			return models.Plan{}, err
		}
	}
	draft := w.draft.clone()
	baseline := w.baseline
	w.finishing = true
	w.mu.Unlock()

	var (
		saved models.Plan
		err   error
	)
	if draft.EditMode {
		patch := BuildPatch(baseline, draft)
		if !patch.IsEmpty() {
			err = c.UpdatePlanFields(ctx, draft.PlanID, patch)
		}
		if err == nil {
			saved = baseline
			patch.Apply(&saved)
		}
	} else {
		saved, err = c.CreatePlan(ctx, draft.Plan())
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.finishing = false
	if err != nil {
		w.lastErr = err
		return models.Plan{}, err
	}
	w.committed = true
	w.baseline = saved
	w.draft.PlanID = saved.ID
	w.lastErr = nil
	return saved, nil
}

// Cancel discards the draft and abandons any upload in flight.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.upload != nil {
		w.upload.cancel()
		w.upload = nil
	}
	if w.draft.EditMode {
		w.draft = draftFromPlan(w.baseline)
	} else {
		w.draft = Draft{}
	}
	w.lastErr = nil
}

func (w *Wizard) checkOpen(op string) error {
	if w.committed {
		return apperr.Validation(op, "plan already saved")
	}
	return nil
}

func (w *Wizard) fail(err error) error {
	w.lastErr = err
	return err
}

// guard returns what is missing on step s, or "".
func guard(d Draft, s Step) string {
	switch s {
	case StepDescribe:
		switch {
		case strings.TrimSpace(d.Title) == "":
			return "title is required"
		case strings.TrimSpace(d.Description) == "":
			return "description is required"
		case d.Uploading:
			return "image upload in progress"
		case d.ImageURL == "" && d.UploadError != "":
			return "image upload failed: " + d.UploadError
		case d.ImageURL == "":
			return "an image is required"
		}
	case StepFilters:
		if len(d.Tags) == 0 {
			return "pick at least one tag"
		}
	case StepSchedule:
		switch {
		case d.Date == nil:
			return "date is required"
		case strings.TrimSpace(d.TimeLabel) == "":
			return "time is required"
		}
	case StepLocation:
		if strings.TrimSpace(d.Location.Name) == "" {
			return "location name is required"
		}
	}
	return ""
}

// BuildPatch returns the fields of d that differ from base. Text fields,
// the date, the image, tags and location are only included when they are
// set; age range and gender filter are included whenever they changed,
// since their zero values mean "anyone".
func BuildPatch(base models.Plan, d Draft) models.PlanPatch {
	var p models.PlanPatch
	if v := strings.TrimSpace(d.Title); v != "" && v != base.Title {
		p.SetTitle(v)
	}
	if v := strings.TrimSpace(d.Description); v != "" && v != base.Description {
		p.SetDescription(v)
	}
	if v := strings.TrimSpace(d.ImageURL); v != "" && v != base.ImageURL {
		p.SetImageURL(v)
	}
	if strings.TrimSpace(d.Location.Name) != "" && d.Location != base.Location {
		p.SetLocation(d.Location)
	}
	if d.Date != nil && (base.Schedule.Date == nil || !d.Date.Equal(*base.Schedule.Date)) {
		p.SetScheduleDate(*d.Date)
	}
	if v := strings.TrimSpace(d.TimeLabel); v != "" && v != base.Schedule.TimeLabel {
		p.SetTimeLabel(v)
	}
	if len(d.Tags) > 0 && !equalStrings(d.Tags, base.Tags) {
		p.SetTags(d.Tags)
	}
	if d.AgeRange != base.AgeRange {
		p.SetAgeRange(d.AgeRange)
	}
	if d.GenderFilter != base.GenderFilter {
		p.SetGenderFilter(d.GenderFilter)
	}
	return p
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

/*─────────────────────────────────────────────────────────────────────────────*
| Field setters. Typing is never blocked, including during an upload.        |
*─────────────────────────────────────────────────────────────────────────────*/

func (w *Wizard) edit(fn func(d *Draft)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.draft)
}

func (w *Wizard) SetTitle(v string)       { w.edit(func(d *Draft) { d.Title = v }) }
func (w *Wizard) SetDescription(v string) { w.edit(func(d *Draft) { d.Description = v }) }
func (w *Wizard) SetTimeLabel(v string)   { w.edit(func(d *Draft) { d.TimeLabel = v }) }
func (w *Wizard) SetLocation(v models.Location) {
	w.edit(func(d *Draft) { d.Location = v })
}
func (w *Wizard) SetAgeRange(v models.AgeRange) {
	w.edit(func(d *Draft) { d.AgeRange = v })
}
func (w *Wizard) SetGender(v string) {
	w.edit(func(d *Draft) { d.GenderFilter = strings.ToLower(strings.TrimSpace(v)) })
}

// SetDate sets the plan date; the zero time clears it.
func (w *Wizard) SetDate(v time.Time) {
	w.edit(func(d *Draft) {
		if v.IsZero() {
			d.Date = nil
			return
		}
		u := v.UTC()
		d.Date = &u
	})
}

// SetTags replaces the tag list.
func (w *Wizard) SetTags(tags []string) {
	w.edit(func(d *Draft) {
		d.Tags = d.Tags[:0:0]
		for _, t := range tags {
			if t = strings.TrimSpace(t); t != "" && indexFold(d.Tags, t) < 0 {
				d.Tags = append(d.Tags, t)
			}
		}
	})
}

// ToggleTag adds tag, or removes it when already selected (case-insensitive).
func (w *Wizard) ToggleTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	w.edit(func(d *Draft) {
		if i := indexFold(d.Tags, tag); i >= 0 {
			d.Tags = append(d.Tags[:i:i], d.Tags[i+1:]...)
			return
		}
		d.Tags = append(d.Tags, tag)
	})
}

func indexFold(tags []string, tag string) int {
	k := text.Fold(tag)
	for i, t := range tags {
		if text.Fold(t) == k {
			return i
		}
	}
	return -1
}
