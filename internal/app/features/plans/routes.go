// internal/app/features/plans/routes.go
package plans

import (
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /plans router. Chat routes are mounted separately
// under /plans/{id}/messages.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Everything under /plans requires authentication
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		// LIST / CREATE
		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)

		// VIEW / EDIT / DELETE
		pr.Get("/{id}", h.ServeView)
		pr.Patch("/{id}", h.HandleEdit)
		pr.Delete("/{id}", h.HandleDelete)

		// MEMBERSHIP
		pr.Post("/{id}/join", h.HandleJoin)
		pr.Post("/{id}/leave", h.HandleLeave)

		// ACTIVITY (creator only)
		pr.Get("/{id}/activity", h.ServeActivity)
	})

	return r
}
