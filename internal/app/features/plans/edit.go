// internal/app/features/plans/edit.go
package plans

import (
	"encoding/json"
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
)

// HandleEdit handles PATCH /plans/{id}. Only fields present in the body
// are written; the updated plan is returned.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	var req patchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		uierrors.RenderBadRequest(w, "invalid JSON body")
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	patch := req.patch()
	err := h.Plans.UpdatePlanFields(ctx, u, id, patch)
	if !patch.IsEmpty() {
		h.Audit.PlanUpdated(ctx, r, u, id, patch, err)
	}
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}

	p, err := h.Plans.GetPlan(ctx, id)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, viewFor(p, u.ID))
}

// HandleDelete handles DELETE /plans/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	err := h.Plans.DeletePlan(ctx, u, id)
	h.Audit.PlanDeleted(ctx, r, u, id, err)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
