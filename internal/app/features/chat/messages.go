// internal/app/features/chat/messages.go
package chat

import (
	"encoding/json"
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

type messagesResponse struct {
	Messages []models.GroupMessage `json:"messages"`
}

type sendRequest struct {
	Body string `json:"body"`
}

// ServeList handles GET /plans/{id}/messages.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	if _, err := h.loadReadable(ctx, "chat.List", id, u); err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	msgs, err := h.Chat.List(ctx, id)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.GroupMessage{}
	}
	uierrors.WriteJSON(w, http.StatusOK, messagesResponse{Messages: msgs})
}

// HandleSend handles POST /plans/{id}/messages.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.RenderBadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	msg, err := h.Chat.Send(ctx, u, id, req.Body)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusCreated, msg)
}

// HandleDelete handles DELETE /plans/{id}/messages/{messageID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	if err := h.Chat.Delete(ctx, u, id, chi.URLParam(r, "messageID")); err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear handles DELETE /plans/{id}/messages.
func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	err := h.Chat.ClearAll(ctx, u, id)
	h.Audit.MessagesCleared(ctx, r, u, id, err)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
