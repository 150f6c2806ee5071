package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Snapshot is the full chat state of a plan at one version: the ordered
// transcript and the roster of who is in the chat.
type Snapshot struct {
	PlanID       primitive.ObjectID    `json:"plan_id"`
	Version      int64                 `json:"version"`
	Creator      models.UserSnapshot   `json:"creator"`
	Participants []models.UserSnapshot `json:"participants"`
	Messages     []models.GroupMessage `json:"messages"`
}

func snapshotOf(p models.Plan) Snapshot {
	participants := make([]models.UserSnapshot, len(p.Participants))
	copy(participants, p.Participants)
	return Snapshot{
		PlanID:       p.ID,
		Version:      p.Version,
		Creator:      p.Creator,
		Participants: participants,
		Messages:     models.SortMessages(p.Messages),
	}
}

// Feed is a live, level-triggered view of one plan's chat. Every value on
// Snapshots carries the complete current state. A consumer that falls
// behind only sees the newest state; it never blocks the store.
type Feed struct {
	planID primitive.ObjectID
	sub    docstore.Subscription

	mu           sync.Mutex
	out          chan Snapshot
	done         chan struct{}
	closed       bool
	err          error
	pendingSince time.Time
	onClose      func(*Feed)

	wg sync.WaitGroup
}

func newFeed(planID primitive.ObjectID, sub docstore.Subscription, onClose func(*Feed)) *Feed {
	return &Feed{
		planID:  planID,
		sub:     sub,
		out:     make(chan Snapshot, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
}

// PlanID returns the plan this feed follows.
func (f *Feed) PlanID() primitive.ObjectID { return f.planID }

// Snapshots yields chat states. It is closed when the feed ends.
func (f *Feed) Snapshots() <-chan Snapshot { return f.out }

// Done is closed when the feed ends.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Err reports why the feed ended: nil after Close or context
// cancellation, a NotFound error when the plan was deleted, or a
// StoreUnavailable error.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close stops the feed and releases the store listener. It is idempotent;
// once it returns nothing more is delivered.
func (f *Feed) Close() {
	f.finish(nil)
	f.wg.Wait()
}

func (f *Feed) run() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case p, ok := <-f.sub.Updates():
			if !ok {
				f.finish(feedError(f.sub.Err()))
				return
			}
			f.push(snapshotOf(p))
		}
	}
}

func (f *Feed) push(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case <-f.out:
		// Replaced an undelivered snapshot; the consumer is still behind
		// since pendingSince.
	default:
		f.pendingSince = time.Now()
	}
	f.out <- s
}

// idleFor reports whether a snapshot has been waiting undelivered for
// longer than d.
func (f *Feed) idleFor(now time.Time, d time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed && len(f.out) > 0 && now.Sub(f.pendingSince) > d
}

func (f *Feed) finish(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.err = err
	select {
	case <-f.out:
	default:
	}
	close(f.out)
	close(f.done)
	onClose := f.onClose
	f.onClose = nil
	f.mu.Unlock()

	f.sub.Close()
	if onClose != nil {
		onClose(f)
	}
}

func feedError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.Wrap("chat.Feed", apperr.KindNotFound, "plan was deleted", err)
	}
	return apperr.FromStore("chat.Feed", err)
}
