// internal/app/features/plans/list.go
package plans

import (
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/app/system/paging"
	"github.com/dalemusser/planhub/internal/app/system/search"
	"github.com/dalemusser/planhub/internal/app/system/timeouts"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeList handles GET /plans.
//
// Query:
//
//	creator=me   plans the caller created
//	joined=me    plans the caller joined
//	q=words      every word must appear in the title, description, place or tags
//	limit=N      page size (default 50, at most 200)
//	after=C      continue from the "next" cursor of a previous page
//
// With neither filter both sets are returned, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	q := r.URL.Query()
	creator, joined := q.Get("creator"), q.Get("joined")
	for _, v := range []string{creator, joined} {
		if v != "" && v != "me" {
			uierrors.RenderBadRequest(w, `only "me" is supported as a list filter`)
			return
		}
	}

	ctx, cancel := timeouts.WithShort(r.Context())
	defer cancel()

	all, err := h.Plans.ListForUser(ctx, u.ID)
	if err != nil {
		h.ErrLog.Render(w, r, err)
		return
	}

	terms := search.Terms(q.Get("q"))
	kept := all[:0]
	for _, p := range all {
		if keep(p, u.ID, creator == "me", joined == "me") && search.MatchesPlan(p, terms) {
			kept = append(kept, p)
		}
	}

	page, res, ok := paging.Descending(kept, q.Get("after"), paging.ParseLimit(r), planKey)
	if !ok {
		uierrors.RenderBadRequest(w, "invalid cursor")
		return
	}

	resp := listResponse{Plans: make([]planView, 0, len(page)), Next: res.Next}
	for _, p := range page {
		resp.Plans = append(resp.Plans, viewFor(p, u.ID))
	}
	uierrors.WriteJSON(w, http.StatusOK, resp)
}

func planKey(p models.Plan) (string, primitive.ObjectID) {
	return paging.TimeKey(p.CreatedAt), p.ID
}

func keep(p models.Plan, userID string, created, joined bool) bool {
	switch {
	case created && joined:
		return p.IsCreator(userID) || p.HasParticipant(userID)
	case created:
		return p.IsCreator(userID)
	case joined:
		return p.HasParticipant(userID)
	default:
		return true
	}
}
