// internal/app/features/images/routes.go
package images

import (
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the /images router. Reading is public so image URLs can be
// embedded anywhere; uploading requires a session.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Get("/{id}", h.ServeImage)
	r.With(sm.RequireSignedIn).Post("/", h.HandleUpload)
	return r
}
