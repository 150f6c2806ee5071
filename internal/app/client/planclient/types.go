// internal/app/client/planclient/types.go
package planclient

import (
	"time"

	"github.com/dalemusser/planhub/internal/domain/models"
)

// PlanView is a plan as the server shows it to the signed-in user.
type PlanView struct {
	models.Plan
	IsCreator     bool `json:"is_creator"`
	IsParticipant bool `json:"is_participant"`
}

type planBody struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Location     models.Location `json:"location"`
	Date         *time.Time      `json:"date,omitempty"`
	TimeLabel    string          `json:"time_label"`
	Tags         []string        `json:"tags"`
	AgeRange     models.AgeRange `json:"age_range"`
	GenderFilter string          `json:"gender_filter"`
}

func createBody(p models.Plan) planBody {
	return planBody{
		Title:        p.Title,
		Description:  p.Description,
		ImageURL:     p.ImageURL,
		Location:     p.Location,
		Date:         p.Schedule.Date,
		TimeLabel:    p.Schedule.TimeLabel,
		Tags:         p.Tags,
		AgeRange:     p.AgeRange,
		GenderFilter: p.GenderFilter,
	}
}

// patchKeys maps patch fields to PATCH /plans/{id} body keys. The folded
// title is derived by the server and never sent.
var patchKeys = map[models.PlanField]string{
	models.FieldTitle:        "title",
	models.FieldDescription:  "description",
	models.FieldImageURL:     "image_url",
	models.FieldLocation:     "location",
	models.FieldScheduleDate: "date",
	models.FieldTimeLabel:    "time_label",
	models.FieldTags:         "tags",
	models.FieldAgeRange:     "age_range",
	models.FieldGenderFilter: "gender_filter",
}

func patchBody(patch models.PlanPatch) map[string]any {
	out := make(map[string]any, patch.Len())
	for _, f := range patch.Fields() {
		key, ok := patchKeys[f]
		if !ok {
			continue
		}
		v, _ := patch.Get(f)
		out[key] = v
	}
	return out
}
