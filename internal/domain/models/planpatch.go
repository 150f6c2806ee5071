// internal/domain/models/planpatch.go
package models

import (
	"sort"
	"time"
)

// PlanField names a patchable plan field. Values are the stored field paths.
type PlanField string

const (
	FieldTitle        PlanField = "title"
	FieldTitleCI      PlanField = "title_ci"
	FieldDescription  PlanField = "description"
	FieldImageURL     PlanField = "image_url"
	FieldLocation     PlanField = "location"
	FieldScheduleDate PlanField = "schedule.date"
	FieldTimeLabel    PlanField = "schedule.time_label"
	FieldTags         PlanField = "tags"
	FieldAgeRange     PlanField = "age_range"
	FieldGenderFilter PlanField = "gender_filter"
)

// PlanPatch is an explicit set of (field, new value) pairs. Only fields that
// were set are written, so a patch never clobbers fields it does not name.
type PlanPatch struct {
	values map[PlanField]any
}

func (p *PlanPatch) set(f PlanField, v any) {
	if p.values == nil {
		p.values = make(map[PlanField]any)
	}
	p.values[f] = v
}

func (p *PlanPatch) SetTitle(v string)        { p.set(FieldTitle, v) }
func (p *PlanPatch) SetTitleCI(v string)      { p.set(FieldTitleCI, v) }
func (p *PlanPatch) SetDescription(v string)  { p.set(FieldDescription, v) }
func (p *PlanPatch) SetImageURL(v string)     { p.set(FieldImageURL, v) }
func (p *PlanPatch) SetLocation(v Location)   { p.set(FieldLocation, v) }
func (p *PlanPatch) SetTimeLabel(v string)    { p.set(FieldTimeLabel, v) }
func (p *PlanPatch) SetAgeRange(v AgeRange)   { p.set(FieldAgeRange, v) }
func (p *PlanPatch) SetGenderFilter(v string) { p.set(FieldGenderFilter, v) }

func (p *PlanPatch) SetScheduleDate(v time.Time) { p.set(FieldScheduleDate, v.UTC()) }

func (p *PlanPatch) SetTags(v []string) {
	p.set(FieldTags, append([]string(nil), v...))
}

// Len returns the number of fields in the patch.
func (p PlanPatch) Len() int { return len(p.values) }

// IsEmpty reports whether the patch names no fields.
func (p PlanPatch) IsEmpty() bool { return len(p.values) == 0 }

// Has reports whether f is part of the patch.
func (p PlanPatch) Has(f PlanField) bool {
	_, ok := p.values[f]
	return ok
}

// Get returns the value for f.
func (p PlanPatch) Get(f PlanField) (any, bool) {
	v, ok := p.values[f]
	return v, ok
}

// Fields returns the patched fields in a stable order.
func (p PlanPatch) Fields() []PlanField {
	out := make([]PlanField, 0, len(p.values))
	for f := range p.values {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply writes the patched values onto plan.
func (p PlanPatch) Apply(plan *Plan) {
	for f, v := range p.values {
		switch f {
		case FieldTitle:
			plan.Title = v.(string)
		case FieldTitleCI:
			plan.TitleCI = v.(string)
		case FieldDescription:
			plan.Description = v.(string)
		case FieldImageURL:
			plan.ImageURL = v.(string)
		case FieldLocation:
			plan.Location = v.(Location)
		case FieldScheduleDate:
			d := v.(time.Time)
			plan.Schedule.Date = &d
		case FieldTimeLabel:
			plan.Schedule.TimeLabel = v.(string)
		case FieldTags:
			plan.Tags = append([]string(nil), v.([]string)...)
		case FieldAgeRange:
			plan.AgeRange = v.(AgeRange)
		case FieldGenderFilter:
			plan.GenderFilter = v.(string)
		}
	}
}
