// internal/app/features/plans/membership.go
package plans

import (
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HandleJoin handles POST /plans/{id}/join. Joining twice is not an error.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	err := h.Plans.Join(ctx, u, id)
	h.Audit.PlanJoined(ctx, r, u, id, err)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	h.writeFresh(w, r, id)
}

// HandleLeave handles POST /plans/{id}/leave. Leaving a plan you are not
// in is not an error.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	err := h.Plans.Leave(ctx, u, id)
	h.Audit.PlanLeft(ctx, r, u, id, err)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	h.writeFresh(w, r, id)
}

// writeFresh re-reads the plan so the caller sees the roster after its change.
func (h *Handler) writeFresh(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	u, _ := auth.CurrentUser(r)

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	p, err := h.Plans.GetPlan(ctx, id)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, viewFor(p, u.ID))
}
