// internal/app/features/plans/create.go
package plans

import (
	"encoding/json"
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
)

// HandleCreate handles POST /plans.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.RenderBadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	p, err := h.Plans.CreatePlan(ctx, u, req.plan())
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	h.Audit.PlanCreated(ctx, r, u, p)

	w.Header().Set("Location", "/plans/"+p.ID.Hex())
	uierrors.WriteJSON(w, http.StatusCreated, viewFor(p, u.ID))
}
