// internal/app/features/plans/activity.go
package plans

import (
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/store/audit"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/paging"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
)

type activityResponse struct {
	Events []audit.Event `json:"events"`
}

// ServeActivity handles GET /plans/{id}/activity: the newest audit events
// for the plan, creator only. ?limit= caps the count.
func (h *Handler) ServeActivity(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	id, ok := planIDParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := timeouts.WithMedium(r.Context())
	defer cancel()

	p, err := h.Plans.GetPlan(ctx, id)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}
	if p.Creator.ID != u.ID {
		h.ErrLog.Render(w, r, apperr.Unauthorized("plans.Activity", "only the creator can view plan activity"))
		return
	}

	events, err := h.Audit.PlanActivity(ctx, id, paging.ParseLimit(r))
	if err != nil {
		h.ErrLog.Render(w, r, apperr.FromStore("plans.Activity", err))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	uierrors.WriteJSON(w, http.StatusOK, activityResponse{Events: events})
}
