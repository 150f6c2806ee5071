// internal/app/features/chat/handler.go
package chat

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/plans/chat"
	"github.com/dalemusser/planhub/internal/app/plans/membership"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/auditlog"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves a plan's chat: the transcript, sends and deletes, and the
// live websocket feed.
type Handler struct {
	Chat   *chat.Synchronizer
	Plans  *membership.Manager
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger

	// Audit records clears; nil disables it.
	Audit *auditlog.Logger
}

// NewHandler constructs a chat Handler.
func NewHandler(synchronizer *chat.Synchronizer, plans *membership.Manager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Chat:   synchronizer,
		Plans:  plans,
		ErrLog: errLog,
		Log:    logger,
	}
}

func planIDParam(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.RenderBadRequest(w, "invalid plan id")
		return primitive.NilObjectID, false
	}
	return id, true
}

// loadReadable returns the plan if u may read its chat.
func (h *Handler) loadReadable(ctx context.Context, op string, planID primitive.ObjectID, u models.UserSnapshot) (models.Plan, error) {
	p, err := h.Plans.GetPlan(ctx, planID)
	if err != nil {
		return models.Plan{}, err
	}
	if !p.CanChat(u.ID) {
		return models.Plan{}, apperr.Unauthorized(op, "join the plan to chat")
	}
	return p, nil
}
