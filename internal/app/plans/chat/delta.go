package chat

import (
	"context"
	"errors"

	"github.com/dalemusser/planhub/internal/domain/models"
)

// ErrFeedClosed is returned by DeltaFeed.Next after the feed was closed
// without an error.
var ErrFeedClosed = errors.New("chat: feed closed")

// Delta is the change between two snapshots of the same plan.
//
// Reset means the receiver must discard its local transcript first: it is
// set on the first delta of a feed and when the transcript was cleared.
// Participants is non-nil only when the roster changed (or on reset); it
// encodes as null when unchanged.
type Delta struct {
	Version      int64                 `json:"version"`
	Reset        bool                  `json:"reset,omitempty"`
	Added        []models.GroupMessage `json:"added,omitempty"`
	Removed      []string              `json:"removed,omitempty"`
	Participants []models.UserSnapshot `json:"participants"`
}

// Empty reports whether d carries no change.
func (d Delta) Empty() bool {
	return !d.Reset && len(d.Added) == 0 && len(d.Removed) == 0 && d.Participants == nil
}

// Diff computes the delta that turns prev into next. A nil prev yields a
// reset carrying the whole of next. Added keeps transcript order.
func Diff(prev *Snapshot, next Snapshot) Delta {
	d := Delta{Version: next.Version}
	if prev == nil {
		d.Reset = true
		d.Added = append([]models.GroupMessage(nil), next.Messages...)
		d.Participants = append([]models.UserSnapshot{}, next.Participants...)
		return d
	}

	if len(next.Messages) == 0 && len(prev.Messages) > 0 {
		d.Reset = true
	} else {
		before := make(map[string]struct{}, len(prev.Messages))
		for _, m := range prev.Messages {
			before[m.ID] = struct{}{}
		}
		after := make(map[string]struct{}, len(next.Messages))
		for _, m := range next.Messages {
			after[m.ID] = struct{}{}
			if _, ok := before[m.ID]; !ok {
				d.Added = append(d.Added, m)
			}
		}
		for _, m := range prev.Messages {
			if _, ok := after[m.ID]; !ok {
				d.Removed = append(d.Removed, m.ID)
			}
		}
	}

	if d.Reset || !sameRoster(prev.Participants, next.Participants) {
		d.Participants = append([]models.UserSnapshot{}, next.Participants...)
	}
	return d
}

func sameRoster(a, b []models.UserSnapshot) bool {
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

// DeltaFeed turns a Feed into a stream of Deltas. Because the Feed
// coalesces, a delta may span several store changes; it is always
// computed against the last snapshot this DeltaFeed returned.
type DeltaFeed struct {
	feed *Feed
	prev *Snapshot
}

// NewDeltaFeed wraps f. The DeltaFeed owns f from here on.
func NewDeltaFeed(f *Feed) *DeltaFeed {
	return &DeltaFeed{feed: f}
}

// Next blocks until the transcript or roster changes and returns the delta.
// Snapshots that change neither are skipped.
func (d *DeltaFeed) Next(ctx context.Context) (Delta, error) {
	for {
		select {
		case <-ctx.Done():
			return Delta{}, ctx.Err()
		case snap, ok := <-d.feed.Snapshots():
			if !ok {
				if err := d.feed.Err(); err != nil {
					return Delta{}, err
				}
				return Delta{}, ErrFeedClosed
			}
			delta := Diff(d.prev, snap)
			d.prev = &snap
			if delta.Empty() {
				continue
			}
			return delta, nil
		}
	}
}

// Done is closed when the underlying feed ends.
func (d *DeltaFeed) Done() <-chan struct{} { return d.feed.Done() }

// Close closes the underlying feed.
func (d *DeltaFeed) Close() { d.feed.Close() }
