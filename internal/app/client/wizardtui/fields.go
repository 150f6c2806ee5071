// internal/app/client/wizardtui/fields.go
package wizardtui

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/dalemusser/planhub/internal/app/plans/wizard"
	"github.com/dalemusser/planhub/internal/domain/models"
)

// DateLayout is how dates are typed on the schedule step.
const DateLayout = "2006-01-02"

type fieldKind int

const (
	fieldText fieldKind = iota
	// fieldImage holds a local file path; enter starts the upload.
	fieldImage
)

// field is one text input bound to a draft setter. apply returns a message
// when the typed value cannot be used yet; the draft keeps its last good
// value in that case.
type field struct {
	label string
	kind  fieldKind
	input textinput.Model
	apply func(w *wizard.Wizard, v string) string
	load  func(d wizard.Draft) string
	err   string
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.Width = 48
	ti.Prompt = "› "
	return ti
}

// stepFields builds the inputs for every step. The verify step has none.
func stepFields(tags []string) [wizard.StepCount][]field {
	var out [wizard.StepCount][]field

	out[wizard.StepDescribe] = []field{
		{
			label: "Title",
			input: newInput("Sunset hike", 120),
			apply: func(w *wizard.Wizard, v string) string { w.SetTitle(v); return "" },
			load:  func(d wizard.Draft) string { return d.Title },
		},
		{
			label: "Description",
			input: newInput("What are we doing?", 2000),
			apply: func(w *wizard.Wizard, v string) string { w.SetDescription(v); return "" },
			load:  func(d wizard.Draft) string { return d.Description },
		},
		{
			label: "Image file",
			kind:  fieldImage,
			input: newInput("path/to/picture.jpg, then enter", 1024),
			apply: func(*wizard.Wizard, string) string { return "" },
			load:  func(wizard.Draft) string { return "" },
		},
	}

	out[wizard.StepFilters] = []field{
		{
			label: "Tags (" + strings.Join(tags, ", ") + ")",
			input: newInput("comma separated", 400),
			apply: func(w *wizard.Wizard, v string) string { w.SetTags(splitTags(v)); return "" },
			load:  func(d wizard.Draft) string { return strings.Join(d.Tags, ", ") },
		},
		{
			label: "Minimum age",
			input: newInput("any", 3),
			apply: func(w *wizard.Wizard, v string) string {
				n, msg := parseAge(v)
				if msg != "" {
					return msg
				}
				ar := w.Draft().AgeRange
				ar.Min = n
				w.SetAgeRange(ar)
				return ""
			},
			load: func(d wizard.Draft) string { return ageText(d.AgeRange.Min) },
		},
		{
			label: "Maximum age",
			input: newInput("any", 3),
			apply: func(w *wizard.Wizard, v string) string {
				n, msg := parseAge(v)
				if msg != "" {
					return msg
				}
				ar := w.Draft().AgeRange
				ar.Max = n
				w.SetAgeRange(ar)
				return ""
			},
			load: func(d wizard.Draft) string { return ageText(d.AgeRange.Max) },
		},
		{
			label: "Gender (any, female, male, nonbinary)",
			input: newInput("any", 16),
			apply: func(w *wizard.Wizard, v string) string {
				v = strings.ToLower(strings.TrimSpace(v))
				switch v {
				case "", models.GenderAny, models.GenderFemale, models.GenderMale, models.GenderNonbinary:
					w.SetGender(v)
					return ""
				}
				return "unknown gender"
			},
			load: func(d wizard.Draft) string { return d.GenderFilter },
		},
	}

	out[wizard.StepSchedule] = []field{
		{
			label: "Date (YYYY-MM-DD)",
			input: newInput(time.Now().Format(DateLayout), 10),
			apply: func(w *wizard.Wizard, v string) string {
				v = strings.TrimSpace(v)
				if v == "" {
					return ""
				}
				d, err := time.Parse(DateLayout, v)
				if err != nil {
					return "use YYYY-MM-DD"
				}
				w.SetDate(d)
				return ""
			},
			load: func(d wizard.Draft) string {
				if d.Date == nil {
					return ""
				}
				return d.Date.Format(DateLayout)
			},
		},
		{
			label: "Time",
			input: newInput("7pm", 40),
			apply: func(w *wizard.Wizard, v string) string { w.SetTimeLabel(v); return "" },
			load:  func(d wizard.Draft) string { return d.TimeLabel },
		},
	}

	out[wizard.StepLocation] = []field{
		locationField("Place name", "Ridge trailhead", func(l *models.Location, v string) { l.Name = v }, func(l models.Location) string { return l.Name }),
		locationField("Address", "", func(l *models.Location, v string) { l.Address = v }, func(l models.Location) string { return l.Address }),
		locationField("City", "", func(l *models.Location, v string) { l.City = v }, func(l models.Location) string { return l.City }),
		locationField("Country", "", func(l *models.Location, v string) { l.Country = v }, func(l models.Location) string { return l.Country }),
	}

	return out
}

func locationField(label, placeholder string, set func(*models.Location, string), get func(models.Location) string) field {
	return field{
		label: label,
		input: newInput(placeholder, 200),
		apply: func(w *wizard.Wizard, v string) string {
			loc := w.Draft().Location
			set(&loc, v)
			w.SetLocation(loc)
			return ""
		},
		load: func(d wizard.Draft) string { return get(d.Location) },
	}
}

func splitTags(v string) []string {
	var out []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseAge(v string) (int, string) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "any") {
		return 0, ""
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 120 {
		return 0, "age must be 0-120"
	}
	return n, ""
}

func ageText(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
