// internal/app/features/session/routes.go
package session

import (
	"github.com/dalemusser/planhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for /session. The user is loaded by the global
// LoadSessionUser middleware. Sign-in attempts are limited per client IP
// when limiter is non-nil.
func Routes(h *Handler, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()
	r.Group(func(lr chi.Router) {
		if limiter != nil {
			lr.Use(limiter.Middleware(ratelimit.ClientIP, h.rejectSignIn))
		}
		lr.Post("/", h.ServeSignIn)
	})
	r.Get("/", h.ServeCurrent)
	r.Delete("/", h.ServeSignOut)
	return r
}
