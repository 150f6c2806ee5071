// internal/app/features/plans/view.go
package plans

import (
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
)

// ServeView handles GET /plans/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	p, err := h.Plans.GetPlan(ctx, id)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, viewFor(p, u.ID))
}
