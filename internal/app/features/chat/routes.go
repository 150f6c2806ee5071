// internal/app/features/chat/routes.go
package chat

import (
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /plans/{id}/messages. Sends are
// limited per user when sendLimiter is non-nil.
func Routes(h *Handler, sm *auth.SessionManager, sendLimiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Delete("/", h.HandleClear)
		pr.Delete("/{messageID}", h.HandleDelete)

		pr.Group(func(sr chi.Router) {
			if sendLimiter != nil {
				sr.Use(sendLimiter.Middleware(userKey, uierrors.RenderRateLimited))
			}
			sr.Post("/", h.HandleSend)
		})

		// LIVE
		pr.Get("/ws", h.ServeLive)
	})

	return r
}

func userKey(r *http.Request) string {
	u, _ := auth.CurrentUser(r)
	return u.ID
}
