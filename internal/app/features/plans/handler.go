// internal/app/features/plans/handler.go
package plans

import (
	"net/http"

	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/plans/membership"
	"github.com/dalemusser/planhub/internal/app/system/auditlog"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the plans feature.
type Handler struct {
	Plans  *membership.Manager
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger

	// Audit records plan changes; nil disables it.
	Audit *auditlog.Logger
}

// NewHandler constructs a new plans Handler. It is called from the
// bootstrap BuildHandler function.
func NewHandler(plans *membership.Manager, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Plans:  plans,
		ErrLog: errLog,
		Log:    logger,
	}
}

// planIDParam parses {id}. On failure it writes a 400 and returns false.
func planIDParam(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.RenderBadRequest(w, "invalid plan id")
		return primitive.NilObjectID, false
	}
	return id, true
}
