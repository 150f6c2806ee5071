// internal/domain/models/plan.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gender filter values. An empty filter means anyone may join.
const (
	GenderAny       = "any"
	GenderFemale    = "female"
	GenderMale      = "male"
	GenderNonbinary = "nonbinary"
)

// Plan is the aggregate root: one document per plan holding metadata, the
// participant roster and the full chat transcript.
//
// NOTE:
//   - Participants and Messages are only mutated through the store's atomic
//     array operations, keyed by ID.
//   - Creator and Participants are denormalized snapshots captured at write
//     time; they do not follow later profile edits.
type Plan struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	TitleCI     string             `bson:"title_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	ImageURL    string             `bson:"image_url" json:"image_url"`

	Location     Location `bson:"location" json:"location"`
	Schedule     Schedule `bson:"schedule" json:"schedule"`
	Tags         []string `bson:"tags" json:"tags"`
	AgeRange     AgeRange `bson:"age_range" json:"age_range"`
	GenderFilter string   `bson:"gender_filter" json:"gender_filter"`

	Creator      UserSnapshot   `bson:"creator" json:"creator"`
	Participants []UserSnapshot `bson:"participants" json:"participants"`
	Messages     []GroupMessage `bson:"messages" json:"messages,omitempty"`

	// Version is bumped by every mutation so pollers can detect change.
	Version int64 `bson:"version" json:"version"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Location is a structured place. City and Country are optional.
type Location struct {
	Name    string  `bson:"name" json:"name"`
	Address string  `bson:"address" json:"address"`
	Lat     float64 `bson:"lat" json:"lat"`
	Lng     float64 `bson:"lng" json:"lng"`
	City    string  `bson:"city,omitempty" json:"city,omitempty"`
	Country string  `bson:"country,omitempty" json:"country,omitempty"`
}

// Schedule is a date (nil until set) plus a free-text time label.
type Schedule struct {
	Date      *time.Time `bson:"date" json:"date"`
	TimeLabel string     `bson:"time_label" json:"time_label"`
}

// AgeRange is an eligibility hint. Zero bounds are open.
type AgeRange struct {
	Min int `bson:"min" json:"min"`
	Max int `bson:"max" json:"max"`
}

// IsZero reports whether neither bound is set.
func (a AgeRange) IsZero() bool { return a.Min == 0 && a.Max == 0 }

// Contains reports whether age falls inside the range. Open bounds match anything.
func (a AgeRange) Contains(age int) bool {
	if a.Min > 0 && age < a.Min {
		return false
	}
	if a.Max > 0 && age > a.Max {
		return false
	}
	return true
}

// UserSnapshot is a copy of a user's public attributes stored inside a plan.
type UserSnapshot struct {
	ID       string `bson:"id" json:"id"`
	Name     string `bson:"name" json:"name"`
	PhotoURL string `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	Age      int    `bson:"age,omitempty" json:"age,omitempty"`
	Gender   string `bson:"gender,omitempty" json:"gender,omitempty"`
}

// IsCreator reports whether userID created the plan.
func (p Plan) IsCreator(userID string) bool {
	return userID != "" && p.Creator.ID == userID
}

// HasParticipant reports whether userID is on the roster.
func (p Plan) HasParticipant(userID string) bool {
	for _, u := range p.Participants {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// CanChat reports whether userID may read and post in the plan's chat.
func (p Plan) CanChat(userID string) bool {
	return p.IsCreator(userID) || p.HasParticipant(userID)
}

// ParticipantIDs returns the roster ids in stored order.
func (p Plan) ParticipantIDs() []string {
	ids := make([]string, 0, len(p.Participants))
	for _, u := range p.Participants {
		ids = append(ids, u.ID)
	}
	return ids
}

// ElementID keys roster entries by user id.
func (u UserSnapshot) ElementID() string { return u.ID }
