// internal/app/features/plans/types.go
package plans

import (
	"time"

	"github.com/dalemusser/planhub/internal/domain/models"
)

// planRequest is the POST /plans body.
type planRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Location     models.Location `json:"location"`
	Date         *time.Time      `json:"date"`
	TimeLabel    string          `json:"time_label"`
	Tags         []string        `json:"tags"`
	AgeRange     models.AgeRange `json:"age_range"`
	GenderFilter string          `json:"gender_filter"`
}

func (req planRequest) plan() models.Plan {
	p := models.Plan{
		Title:        req.Title,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Location:     req.Location,
		Tags:         req.Tags,
		AgeRange:     req.AgeRange,
		GenderFilter: req.GenderFilter,
	}
	p.Schedule.TimeLabel = req.TimeLabel
	if req.Date != nil {
		d := req.Date.UTC()
		p.Schedule.Date = &d
	}
	return p
}

// patchRequest is the PATCH /plans/{id} body. Absent fields stay untouched.
type patchRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	ImageURL     *string          `json:"image_url"`
	Location     *models.Location `json:"location"`
	Date         *time.Time       `json:"date"`
	TimeLabel    *string          `json:"time_label"`
	Tags         *[]string        `json:"tags"`
	AgeRange     *models.AgeRange `json:"age_range"`
	GenderFilter *string          `json:"gender_filter"`
}

func (req patchRequest) patch() models.PlanPatch {
	var p models.PlanPatch
	if req.Title != nil {
		p.SetTitle(*req.Title)
	}
	if req.Description != nil {
		p.SetDescription(*req.Description)
	}
	if req.ImageURL != nil {
		p.SetImageURL(*req.ImageURL)
	}
	if req.Location != nil {
		p.SetLocation(*req.Location)
	}
	if req.Date != nil {
		p.SetScheduleDate(*req.Date)
	}
	if req.TimeLabel != nil {
		p.SetTimeLabel(*req.TimeLabel)
	}
	if req.Tags != nil {
		p.SetTags(*req.Tags)
	}
	if req.AgeRange != nil {
		p.SetAgeRange(*req.AgeRange)
	}
	if req.GenderFilter != nil {
		p.SetGenderFilter(*req.GenderFilter)
	}
	return p
}

// planView is a plan as seen by one caller. The transcript is only shown
// to people who can chat in the plan.
type planView struct {
	models.Plan
	IsCreator     bool `json:"is_creator"`
	IsParticipant bool `json:"is_participant"`
}

func viewFor(p models.Plan, userID string) planView {
	v := planView{
		Plan:          p,
		IsCreator:     p.IsCreator(userID),
		IsParticipant: p.HasParticipant(userID),
	}
	if !p.CanChat(userID) {
		v.Plan.Messages = nil
	}
	return v
}

// listResponse is the GET /plans body.
type listResponse struct {
	Plans []planView `json:"plans"`
	// Next is the cursor for the following page; empty on the last one.
	Next string `json:"next,omitempty"`
}
