package membership

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
)

// Field limits.
const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
	MaxTags              = 12
	MaxTagLength         = 40
	MaxAge               = 120
)

// normalizePlan sanitizes the user-editable fields of p and checks the
// fields a plan cannot exist without.
func normalizePlan(op string, p models.Plan) (models.Plan, error) {
	p.Title = htmlsanitize.PlainText(p.Title)
	p.Description = htmlsanitize.PlainText(p.Description)
	p.Location.Name = htmlsanitize.PlainText(p.Location.Name)
	p.Location.Address = htmlsanitize.PlainText(p.Location.Address)
	p.Location.City = htmlsanitize.PlainText(p.Location.City)
	p.Location.Country = htmlsanitize.PlainText(p.Location.Country)
	p.Schedule.TimeLabel = htmlsanitize.PlainText(p.Schedule.TimeLabel)
	p.Tags = normalizeTags(p.Tags)
	p.GenderFilter = strings.ToLower(strings.TrimSpace(p.GenderFilter))
	if p.Schedule.Date != nil {
		d := p.Schedule.Date.UTC()
		p.Schedule.Date = &d
	}

	if err := checkTitle(op, p.Title); err != nil {
		return p, err
	}
	if err := checkDescription(op, p.Description); err != nil {
		return p, err
	}
	if p.Location.Name == "" {
		return p, apperr.Validation(op, "location name is required")
	}
	if err := checkTags(op, p.Tags); err != nil {
		return p, err
	}
	if err := checkAgeRange(op, p.AgeRange); err != nil {
		return p, err
	}
	if err := checkGender(op, p.GenderFilter); err != nil {
		return p, err
	}
	p.TitleCI = text.Fold(p.Title)
	return p, nil
}

// normalizePatch sanitizes and validates every value in patch and returns a
// new patch. A title change also refreshes the folded title.
func normalizePatch(op string, patch models.PlanPatch) (models.PlanPatch, error) {
	var out models.PlanPatch
	for _, f := range patch.Fields() {
		v, _ := patch.Get(f)
		switch f {
		case models.FieldTitle:
			s := htmlsanitize.PlainText(v.(string))
			if err := checkTitle(op, s); err != nil {
				return out, err
			}
			out.SetTitle(s)
			out.SetTitleCI(text.Fold(s))
		case models.FieldTitleCI:
			// Derived from the title; never set directly.
		case models.FieldDescription:
			s := htmlsanitize.PlainText(v.(string))
			if err := checkDescription(op, s); err != nil {
				return out, err
			}
			out.SetDescription(s)
		case models.FieldImageURL:
			s := strings.TrimSpace(v.(string))
			if s == "" {
				return out, apperr.Validation(op, "image url cannot be cleared")
			}
			out.SetImageURL(s)
		case models.FieldLocation:
			loc := v.(models.Location)
			loc.Name = htmlsanitize.PlainText(loc.Name)
			loc.Address = htmlsanitize.PlainText(loc.Address)
			loc.City = htmlsanitize.PlainText(loc.City)
			loc.Country = htmlsanitize.PlainText(loc.Country)
			if loc.Name == "" {
				return out, apperr.Validation(op, "location name is required")
			}
			out.SetLocation(loc)
		case models.FieldScheduleDate:
			out.SetScheduleDate(v.(time.Time))
		case models.FieldTimeLabel:
			s := htmlsanitize.PlainText(v.(string))
			if s == "" {
				return out, apperr.Validation(op, "time is required")
			}
			out.SetTimeLabel(s)
		case models.FieldTags:
			tags := normalizeTags(v.([]string))
			if len(tags) == 0 {
				return out, apperr.Validation(op, "at least one tag is required")
			}
			if err := checkTags(op, tags); err != nil {
				return out, err
			}
			out.SetTags(tags)
		case models.FieldAgeRange:
			ar := v.(models.AgeRange)
			if err := checkAgeRange(op, ar); err != nil {
				return out, err
			}
			out.SetAgeRange(ar)
		case models.FieldGenderFilter:
			g := strings.ToLower(strings.TrimSpace(v.(string)))
			if err := checkGender(op, g); err != nil {
				return out, err
			}
			out.SetGenderFilter(g)
		default:
			return out, apperr.Validation(op, fmt.Sprintf("field %q cannot be updated", f))
		}
	}
	return out, nil
}

// normalizeTags sanitizes tags and removes case-insensitive duplicates,
// keeping the first spelling and the original order.
func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, t := range htmlsanitize.PlainTextAll(in) {
		k := text.Fold(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

func checkTitle(op, s string) error {
	if s == "" {
		return apperr.Validation(op, "title is required")
	}
	if utf8.RuneCountInString(s) > MaxTitleLength {
		return apperr.Validation(op, fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}
	return nil
}

func checkDescription(op, s string) error {
	if s == "" {
		return apperr.Validation(op, "description is required")
	}
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return apperr.Validation(op, fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}
	return nil
}

func checkTags(op string, tags []string) error {
	if len(tags) > MaxTags {
		return apperr.Validation(op, fmt.Sprintf("at most %d tags", MaxTags))
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > MaxTagLength {
			return apperr.Validation(op, fmt.Sprintf("tag %q is longer than %d characters", t, MaxTagLength))
		}
	}
	return nil
}

func checkAgeRange(op string, a models.AgeRange) error {
	if a.Min < 0 || a.Max < 0 || a.Min > MaxAge || a.Max > MaxAge {
		return apperr.Validation(op, fmt.Sprintf("ages must be between 0 and %d", MaxAge))
	}
	if a.Min > 0 && a.Max > 0 && a.Min > a.Max {
		return apperr.Validation(op, "minimum age is above maximum age")
	}
	return nil
}

func checkGender(op, g string) error {
	switch g {
	case "", models.GenderAny, models.GenderFemale, models.GenderMale, models.GenderNonbinary:
		return nil
	}
	return apperr.Validation(op, fmt.Sprintf("unknown gender filter %q", g))
}
