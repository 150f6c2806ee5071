// Package chat keeps every subscriber of a plan's group chat in sync.
//
// Subscribe returns a level-triggered Feed: each value is the whole ordered
// transcript plus the roster, re-derived from the plan document on every
// change. Send, Delete and ClearAll mutate the transcript through the
// store's atomic array operations keyed by message id. The delta layer in
// delta.go is an optional view on top of a Feed.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/planhub/internal/app/policy/planpolicy"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultMaxMessageLength bounds a message body, in characters.
const DefaultMaxMessageLength = 2000

// Synchronizer serves chat feeds and commands for any number of plans.
type Synchronizer struct {
	store  docstore.Store
	log    *zap.Logger
	maxLen int
	now    func() time.Time
	newID  func() string

	mu    sync.Mutex
	feeds map[*Feed]struct{}
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithMaxMessageLength overrides DefaultMaxMessageLength.
func WithMaxMessageLength(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithClock overrides the server clock used for SentAt.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Synchronizer) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// newMessageID returns a time-ordered UUIDv7, so messages sent within the
// same millisecond on one server still sort in send order.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New returns a Synchronizer backed by store.
func New(store docstore.Store, logger *zap.Logger, opts ...Option) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synchronizer{
		store:  store,
		log:    logger,
		maxLen: DefaultMaxMessageLength,
		now:    time.Now,
		newID:  newMessageID,
		feeds:  make(map[*Feed]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe opens a live feed for planID. The first snapshot is available
// immediately. The feed ends on Close, when ctx is cancelled, or when the
// plan is deleted.
func (s *Synchronizer) Subscribe(ctx context.Context, planID primitive.ObjectID) (*Feed, error) {
	const op = "chat.Subscribe"
	sub, err := s.store.Subscribe(ctx, planID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}

	f := newFeed(planID, sub, s.unregister)
	f.wg.Add(1)
	s.mu.Lock()
	s.feeds[f] = struct{}{}
	n := len(s.feeds)
	s.mu.Unlock()

	go f.run()

	s.log.Debug("chat feed opened", zap.String("plan_id", planID.Hex()), zap.Int("open_feeds", n))
	return f, nil
}

func (s *Synchronizer) unregister(f *Feed) {
	s.mu.Lock()
	delete(s.feeds, f)
	n := len(s.feeds)
	s.mu.Unlock()
	s.log.Debug("chat feed closed",
		zap.String("plan_id", f.planID.Hex()),
		zap.Int("open_feeds", n),
		zap.NamedError("reason", f.Err()))
}

// OpenFeeds returns the number of live feeds.
func (s *Synchronizer) OpenFeeds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}

// CloseIdle closes feeds whose consumer has left a snapshot undelivered
// for longer than idle, and returns how many it closed.
func (s *Synchronizer) CloseIdle(idle time.Duration) int {
	now := time.Now()
	s.mu.Lock()
	var stale []*Feed
	for f := range s.feeds {
		if f.idleFor(now, idle) {
			stale = append(stale, f)
		}
	}
	s.mu.Unlock()

	for _, f := range stale {
		f.Close()
	}
	return len(stale)
}

// CloseAll closes every open feed. Used at shutdown.
func (s *Synchronizer) CloseAll() {
	s.mu.Lock()
	all := make([]*Feed, 0, len(s.feeds))
	for f := range s.feeds {
		all = append(all, f)
	}
	s.mu.Unlock()

	for _, f := range all {
		f.Close()
	}
}

// Send appends a message from author. The body is reduced to plain text
// and must not be blank. The id and timestamp are assigned here.
func (s *Synchronizer) Send(ctx context.Context, author models.UserSnapshot, planID primitive.ObjectID, body string) (models.GroupMessage, error) {
	const op = "chat.Send"
	if strings.TrimSpace(author.ID) == "" {
		return models.GroupMessage{}, apperr.Unauthorized(op, "sign in required")
	}
	clean := htmlsanitize.PlainText(body)
	if clean == "" {
		return models.GroupMessage{}, apperr.Validation(op, "message cannot be empty")
	}
	if utf8.RuneCountInString(clean) > s.maxLen {
		return models.GroupMessage{}, apperr.Validation(op, fmt.Sprintf("message must be at most %d characters", s.maxLen))
	}

	p, err := s.store.Get(ctx, planID)
	if err != nil {
		return models.GroupMessage{}, apperr.FromStore(op, err)
	}
	if !p.CanChat(author.ID) {
		return models.GroupMessage{}, apperr.Unauthorized(op, "join the plan to chat")
	}

	msg := models.GroupMessage{
		ID:             s.newID(),
		AuthorID:       author.ID,
		AuthorName:     author.Name,
		AuthorPhotoURL: author.PhotoURL,
		Body:           clean,
		// Stored timestamps keep millisecond precision.
		SentAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.store.ArrayUnion(ctx, planID, docstore.Messages, msg); err != nil {
		s.log.Warn("send message failed", zap.String("plan_id", planID.Hex()), zap.Error(err))
		return models.GroupMessage{}, apperr.FromStore(op, err)
	}
	return msg, nil
}

// Delete removes the message with messageID. Only its author or the plan's
// creator may delete it. Deleting a message that is already gone succeeds.
func (s *Synchronizer) Delete(ctx context.Context, actor models.UserSnapshot, planID primitive.ObjectID, messageID string) error {
	const op = "chat.Delete"
	if strings.TrimSpace(actor.ID) == "" {
		return apperr.Unauthorized(op, "sign in required")
	}
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return apperr.Validation(op, "message id is required")
	}

	p, err := s.store.Get(ctx, planID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	var target *models.GroupMessage
	for i := range p.Messages {
		if p.Messages[i].ID == messageID {
			target = &p.Messages[i]
			break
		}
	}
	if target == nil {
		s.log.Debug("delete ignored: message not found",
			zap.String("plan_id", planID.Hex()),
			zap.String("message_id", messageID))
		return nil
	}
	if !planpolicy.CanDeleteMessage(p, *target, actor.ID) {
		return apperr.Unauthorized(op, "only the author or the plan creator can delete this message")
	}

	if _, err := s.store.ArrayRemove(ctx, planID, docstore.Messages, messageID); err != nil {
		return apperr.FromStore(op, err)
	}
	return nil
}

// ClearAll removes the whole transcript. Creator only.
func (s *Synchronizer) ClearAll(ctx context.Context, actor models.UserSnapshot, planID primitive.ObjectID) error {
	const op = "chat.ClearAll"
	if strings.TrimSpace(actor.ID) == "" {
		return apperr.Unauthorized(op, "sign in required")
	}
	p, err := s.store.Get(ctx, planID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if !planpolicy.CanEdit(p, actor.ID) {
		return apperr.Unauthorized(op, "only the creator can clear the chat")
	}
	if err := s.store.ArrayClear(ctx, planID, docstore.Messages); err != nil {
		return apperr.FromStore(op, err)
	}
	s.log.Info("chat cleared", zap.String("plan_id", planID.Hex()), zap.Int("messages", len(p.Messages)))
	return nil
}

// List returns the transcript once, in (SentAt, ID) order.
func (s *Synchronizer) List(ctx context.Context, planID primitive.ObjectID) ([]models.GroupMessage, error) {
	p, err := s.store.Get(ctx, planID)
	if err != nil {
		return nil, apperr.FromStore("chat.List", err)
	}
	return models.SortMessages(p.Messages), nil
}
