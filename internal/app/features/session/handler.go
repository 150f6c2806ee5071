// internal/app/features/session/handler.go
package session

import (
	"encoding/json"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auditlog"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler is the sign-in shim. Identity is established elsewhere; the
// caller presents its public profile and the session signs it.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager

	// Audit records sign-ins and sign-outs; nil disables it.
	Audit *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

type signInRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
	Age      int    `json:"age"`
	Gender   string `json:"gender"`
}

// ServeSignIn handles POST /session.
func (h *Handler) ServeSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.RenderBadRequest(w, "invalid JSON body")
		return
	}

	u := models.UserSnapshot{
		ID:       strings.TrimSpace(req.ID),
		Name:     htmlsanitize.PlainText(req.Name),
		PhotoURL: strings.TrimSpace(req.PhotoURL),
		Age:      req.Age,
		Gender:   strings.ToLower(strings.TrimSpace(req.Gender)),
	}
	if msg := checkUser(u); msg != "" {
		uierrors.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", msg)
		return
	}

	if err := h.SessionMgr.SignIn(w, r, u); err != nil {
		h.Log.Error("session: sign in", zap.Error(err))
		uierrors.WriteError(w, http.StatusInternalServerError, "unknown", "could not save session")
		return
	}

	h.Log.Info("user signed in", zap.String("user_id", u.ID))
	h.Audit.SignedIn(r.Context(), r, u)
	uierrors.WriteJSON(w, http.StatusOK, u)
}

// ServeCurrent handles GET /session.
func (h *Handler) ServeCurrent(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.WriteError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, u)
}

// ServeSignOut handles DELETE /session.
func (h *Handler) ServeSignOut(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.Audit.SignedOut(r.Context(), r, u)
	}
	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("session: sign out", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// rejectSignIn answers a sign-in refused by the per-IP limit.
func (h *Handler) rejectSignIn(w http.ResponseWriter, r *http.Request) {
	h.Audit.SignInRateLimited(r.Context(), r)
	uierrors.RenderRateLimited(w, r)
}

func checkUser(u models.UserSnapshot) string {
	switch {
	case u.ID == "":
		return "id is required"
	case u.Name == "":
		return "name is required"
	case u.Age < 0 || u.Age > 120:
		return "age is out of range"
	}
	switch u.Gender {
	case "", models.GenderAny, models.GenderFemale, models.GenderMale, models.GenderNonbinary:
		return ""
	default:
		return "unknown gender " + u.Gender
	}
}
