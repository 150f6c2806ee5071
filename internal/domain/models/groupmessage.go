// internal/domain/models/groupmessage.go
package models

import (
	"sort"
	"time"
)

// GroupMessage is one entry in a plan's transcript. ID and SentAt are
// assigned by the server at send time; the author fields are a snapshot.
type GroupMessage struct {
	ID             string    `bson:"id" json:"id"`
	AuthorID       string    `bson:"author_id" json:"author_id"`
	AuthorName     string    `bson:"author_name" json:"author_name"`
	AuthorPhotoURL string    `bson:"author_photo_url,omitempty" json:"author_photo_url,omitempty"`
	Body           string    `bson:"body" json:"body"`
	SentAt         time.Time `bson:"sent_at" json:"sent_at"`
}

// MessageLess orders messages by SentAt, breaking ties by ID.
func MessageLess(a, b GroupMessage) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.Before(b.SentAt)
	}
	return a.ID < b.ID
}

// SortMessages returns a sorted copy of msgs; the input is not modified.
// The same id appearing twice is collapsed to its first occurrence.
func SortMessages(msgs []GroupMessage) []GroupMessage {
	out := make([]GroupMessage, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return MessageLess(out[i], out[j]) })
	return out
}

// ElementID keys transcript entries by message id.
func (m GroupMessage) ElementID() string { return m.ID }
