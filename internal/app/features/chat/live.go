// internal/app/features/chat/live.go
package chat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/planhub/internal/app/plans/chat"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

// Frame types written on the live socket.
const (
	FrameSnapshot = "snapshot"
	FrameDelta    = "delta"
	FrameError    = "error"
)

// Frame is one server-to-client websocket message.
type Frame struct {
	Type     string          `json:"type"`
	Snapshot *chat.Snapshot  `json:"snapshot,omitempty"`
	Delta    *chat.Delta     `json:"delta,omitempty"`
	Error    *FrameErrorBody `json:"error,omitempty"`
}

// FrameErrorBody is the payload of the error frame that ends the stream.
type FrameErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeLive handles GET /plans/{id}/messages/ws.
//
// The socket streams the plan's chat until the client goes away, the plan is
// deleted or the caller leaves it. By default every frame is a full
// snapshot; ?mode=delta sends only what changed since the previous frame.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	p, err := h.loadReadable(ctx, "chat.Subscribe", id, u)
	cancel()
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}

	s := &liveStream{
		h:         h,
		user:      u,
		isCreator: p.IsCreator(u.ID),
		delta:     r.URL.Query().Get("mode") == "delta",
	}
	websocket.Handler(func(conn *websocket.Conn) {
		s.serve(conn, p)
	}).ServeHTTP(w, r)
}

type liveStream struct {
	h         *Handler
	user      models.UserSnapshot
	isCreator bool
	delta     bool
}

func (s *liveStream) serve(conn *websocket.Conn, p models.Plan) {
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()

	// Inbound frames are ignored; a read error means the client is gone.
	go func() {
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				cancel()
				return
			}
		}
	}()

	feed, err := s.h.Chat.Subscribe(ctx, p.ID)
	if err != nil {
		s.fail(conn, err)
		return
	}
	defer feed.Close()

	log := s.h.Log.With(zap.String("plan_id", p.ID.Hex()), zap.String("user_id", s.user.ID))
	log.Debug("live chat opened", zap.Bool("delta", s.delta))
	defer log.Debug("live chat closed")

	if s.delta {
		s.streamDeltas(ctx, conn, chat.NewDeltaFeed(feed))
		return
	}
	s.streamSnapshots(ctx, conn, feed)
}

func (s *liveStream) streamSnapshots(ctx context.Context, conn *websocket.Conn, feed *chat.Feed) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-feed.Snapshots():
			if !ok {
				if err := feed.Err(); err != nil {
					s.fail(conn, err)
				}
				return
			}
			if !s.isCreator && !inRoster(snap.Participants, s.user.ID) {
				s.fail(conn, apperr.Unauthorized("chat.Subscribe", "you are no longer in this plan"))
				return
			}
			if err := s.send(conn, Frame{Type: FrameSnapshot, Snapshot: &snap}); err != nil {
				return
			}
		}
	}
}

func (s *liveStream) streamDeltas(ctx context.Context, conn *websocket.Conn, feed *chat.DeltaFeed) {
	for {
		d, err := feed.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, chat.ErrFeedClosed) {
				s.fail(conn, err)
			}
			return
		}
		if d.Participants != nil && !s.isCreator && !inRoster(d.Participants, s.user.ID) {
			s.fail(conn, apperr.Unauthorized("chat.Subscribe", "you are no longer in this plan"))
			return
		}
		if err := s.send(conn, Frame{Type: FrameDelta, Delta: &d}); err != nil {
			return
		}
	}
}

func (s *liveStream) send(conn *websocket.Conn, f Frame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeouts.Short()))
	if err := websocket.JSON.Send(conn, f); err != nil {
		s.h.Log.Debug("live chat write failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *liveStream) fail(conn *websocket.Conn, err error) {
	_ = s.send(conn, Frame{
		Type: FrameError,
		Error: &FrameErrorBody{
			Code:    string(apperr.KindOf(err)),
			Message: apperr.MessageOf(err),
		},
	})
}

func inRoster(roster []models.UserSnapshot, userID string) bool {
	for _, u := range roster {
		if u.ID == userID {
			return true
		}
	}
	return false
}
