// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/planhub/internal/app/store/audit"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/ratelimit"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Modes select where audit events go.
const (
	ModeAll = "all" // recorder + zap
	ModeDB  = "db"  // recorder only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// ValidMode reports whether m is one of the modes above.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Logger provides convenience methods for logging audit events.
// It writes to an audit.Recorder and to structured logs, as the mode says.
type Logger struct {
	rec    audit.Recorder
	zapLog *zap.Logger
	mode   string
}

// New creates a new audit Logger. An unknown mode is treated as "all".
func New(rec audit.Recorder, zapLog *zap.Logger, mode string) *Logger {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if !ValidMode(mode) {
		mode = ModeAll
	}
	if rec == nil && (mode == ModeAll || mode == ModeDB) {
		rec = audit.NewMemory()
	}
	return &Logger{
		rec:    rec,
		zapLog: zapLog,
		mode:   mode,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.PlanID != nil {
		fields = append(fields, zap.String("plan_id", event.PlanID.Hex()))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on the mode.
// A nil Logger is a no-op, so handlers built without one still work.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil || l.mode == ModeOff {
		return
	}

	if l.mode == ModeAll || l.mode == ModeLog {
		l.logToZap(event)
	}

	if l.mode == ModeAll || l.mode == ModeDB {
		if err := l.rec.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// PlanActivity returns the newest events recorded for a plan. It is empty
// when events are not being stored.
func (l *Logger) PlanActivity(ctx context.Context, planID primitive.ObjectID, limit int) ([]audit.Event, error) {
	if l == nil || l.rec == nil || l.mode == ModeOff || l.mode == ModeLog {
		return nil, nil
	}
	return l.rec.Query(ctx, audit.QueryFilter{PlanID: &planID, Limit: int64(limit)})
}

func actorEvent(r *http.Request, u models.UserSnapshot, category, eventType string) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		ActorID:   u.ID,
		ActorName: u.Name,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
}

func planEvent(r *http.Request, u models.UserSnapshot, planID primitive.ObjectID, category, eventType string, err error) audit.Event {
	e := actorEvent(r, u, category, eventType)
	e.PlanID = &planID
	if err != nil {
		e.Success = false
		e.FailureReason = apperr.MessageOf(err)
		e.Details = map[string]string{"kind": string(apperr.KindOf(err))}
	}
	return e
}

// --- Session Events ---

// SignedIn logs a successful sign-in.
func (l *Logger) SignedIn(ctx context.Context, r *http.Request, u models.UserSnapshot) {
	l.Log(ctx, actorEvent(r, u, audit.CategorySession, audit.EventSignIn))
}

// SignedOut logs a sign-out. u is empty when no session was present.
func (l *Logger) SignedOut(ctx context.Context, r *http.Request, u models.UserSnapshot) {
	l.Log(ctx, actorEvent(r, u, audit.CategorySession, audit.EventSignOut))
}

// SignInRateLimited logs a sign-in attempt rejected by the per-IP limit.
func (l *Logger) SignInRateLimited(ctx context.Context, r *http.Request) {
	e := actorEvent(r, models.UserSnapshot{}, audit.CategorySession, audit.EventSignInRateLimited)
	e.Success = false
	e.FailureReason = "rate limited"
	l.Log(ctx, e)
}

// --- Plan Events ---

// PlanCreated logs a new plan.
func (l *Logger) PlanCreated(ctx context.Context, r *http.Request, u models.UserSnapshot, p models.Plan) {
	e := planEvent(r, u, p.ID, audit.CategoryPlan, audit.EventPlanCreated, nil)
	e.Details = map[string]string{"title": p.Title}
	l.Log(ctx, e)
}

// PlanUpdated logs an edit, listing the fields it touched.
func (l *Logger) PlanUpdated(ctx context.Context, r *http.Request, u models.UserSnapshot, planID primitive.ObjectID, patch models.PlanPatch, err error) {
	e := planEvent(r, u, planID, audit.CategoryPlan, audit.EventPlanUpdated, err)
	if err == nil {
		names := make([]string, 0, patch.Len())
		for _, f := range patch.Fields() {
			names = append(names, string(f))
		}
		e.Details = map[string]string{"fields": strings.Join(names, ",")}
	}
	l.Log(ctx, e)
}

// PlanDeleted logs a delete or a refused delete.
func (l *Logger) PlanDeleted(ctx context.Context, r *http.Request, u models.UserSnapshot, planID primitive.ObjectID, err error) {
	l.Log(ctx, planEvent(r, u, planID, audit.CategoryPlan, audit.EventPlanDeleted, err))
}

// PlanJoined logs a join attempt.
func (l *Logger) PlanJoined(ctx context.Context, r *http.Request, u models.UserSnapshot, planID primitive.ObjectID, err error) {
	l.Log(ctx, planEvent(r, u, planID, audit.CategoryPlan, audit.EventPlanJoined, err))
}

// PlanLeft logs a leave attempt.
func (l *Logger) PlanLeft(ctx context.Context, r *http.Request, u models.UserSnapshot, planID primitive.ObjectID, err error) {
	l.Log(ctx, planEvent(r, u, planID, audit.CategoryPlan, audit.EventPlanLeft, err))
}

// --- Chat Events ---

// MessagesCleared logs a clear-all of a plan's chat.
func (l *Logger) MessagesCleared(ctx context.Context, r *http.Request, u models.UserSnapshot, planID primitive.ObjectID, err error) {
	l.Log(ctx, planEvent(r, u, planID, audit.CategoryChat, audit.EventMessagesCleared, err))
}
