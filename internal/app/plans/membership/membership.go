// Package membership owns the plan lifecycle and its participant roster:
// create, edit, delete, join and leave.
//
// Roster changes go through the store's id-keyed array operations, so two
// concurrent joins can never produce duplicate entries and no application
// lock is held across calls. Every exported method takes the acting user
// explicitly; a Manager keeps no per-user or per-screen state.
package membership

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/planhub/internal/app/policy/planpolicy"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
	"github.com/dalemusser/planhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Manager admits and removes participants and manages plan documents.
type Manager struct {
	store              docstore.Store
	log                *zap.Logger
	enforceEligibility bool
	now                func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithEligibilityEnforced turns the age range and gender filter into a hard
// gate on Join. By default they are advisory and only logged.
func WithEligibilityEnforced(on bool) Option {
	return func(m *Manager) { m.enforceEligibility = on }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// New returns a Manager backed by store.
func New(store docstore.Store, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{store: store, log: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreatePlan validates draft and writes it as one aggregate. The actor
// becomes the creator; participants and transcript start empty.
func (m *Manager) CreatePlan(ctx context.Context, actor models.UserSnapshot, draft models.Plan) (models.Plan, error) {
	const op = "membership.CreatePlan"
	if err := requireActor(op, actor); err != nil {
		return models.Plan{}, err
	}

	p, err := normalizePlan(op, draft)
	if err != nil {
		return models.Plan{}, err
	}
	p.ID = primitive.NilObjectID
	p.Creator = actor
	p.Participants = []models.UserSnapshot{}
	p.Messages = []models.GroupMessage{}
	p.Version = 0
	p.CreatedAt = m.now().UTC()
	p.UpdatedAt = p.CreatedAt

	created, err := m.store.Create(ctx, p)
	if err != nil {
		m.log.Error("create plan failed", zap.String("creator_id", actor.ID), zap.Error(err))
		return models.Plan{}, apperr.FromStore(op, err)
	}
	m.log.Info("plan created",
		zap.String("plan_id", created.ID.Hex()),
		zap.String("creator_id", actor.ID))
	return created, nil
}

// GetPlan returns the plan with its roster and transcript.
func (m *Manager) GetPlan(ctx context.Context, planID primitive.ObjectID) (models.Plan, error) {
	p, err := m.store.Get(ctx, planID)
	if err != nil {
		return models.Plan{}, apperr.FromStore("membership.GetPlan", err)
	}
	p.Messages = models.SortMessages(p.Messages)
	return p, nil
}

// ListForUser returns the plans userID created or joined, newest first.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]models.Plan, error) {
	const op = "membership.ListForUser"
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Unauthorized(op, "sign in required")
	}
	plans, err := m.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.FromStore(op, err)
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	return plans, nil
}

// UpdatePlanFields writes exactly the fields named in patch. Only the
// creator may edit. An empty patch is a no-op.
func (m *Manager) UpdatePlanFields(ctx context.Context, actor models.UserSnapshot, planID primitive.ObjectID, patch models.PlanPatch) error {
	const op = "membership.UpdatePlanFields"
	if err := requireActor(op, actor); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	clean, err := normalizePatch(op, patch)
	if err != nil {
		return err
	}

	p, err := m.store.Get(ctx, planID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if !planpolicy.CanEdit(p, actor.ID) {
		return apperr.Unauthorized(op, "only the creator can edit this plan")
	}

	if err := m.store.Update(ctx, planID, clean); err != nil {
		m.log.Error("update plan failed", zap.String("plan_id", planID.Hex()), zap.Error(err))
		return apperr.FromStore(op, err)
	}
	m.log.Info("plan updated",
		zap.String("plan_id", planID.Hex()),
		zap.Int("fields", clean.Len()))
	return nil
}

// DeletePlan removes the plan and its transcript. Creator only.
func (m *Manager) DeletePlan(ctx context.Context, actor models.UserSnapshot, planID primitive.ObjectID) error {
	const op = "membership.DeletePlan"
	if err := requireActor(op, actor); err != nil {
		return err
	}
	p, err := m.store.Get(ctx, planID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if !planpolicy.CanEdit(p, actor.ID) {
		return apperr.Unauthorized(op, "only the creator can delete this plan")
	}
	if err := m.store.Delete(ctx, planID); err != nil {
		return apperr.FromStore(op, err)
	}
	m.log.Info("plan deleted", zap.String("plan_id", planID.Hex()), zap.String("by", actor.ID))
	return nil
}

// Join adds actor to the roster. Joining twice, or joining one's own plan,
// succeeds without a change.
func (m *Manager) Join(ctx context.Context, actor models.UserSnapshot, planID primitive.ObjectID) error {
	const op = "membership.Join"
	if err := requireActor(op, actor); err != nil {
		return err
	}

	p, err := m.store.Get(ctx, planID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if p.IsCreator(actor.ID) {
		m.log.Debug("join ignored: creator", zap.String("plan_id", planID.Hex()), zap.String("user_id", actor.ID))
		return nil
	}
	if p.HasParticipant(actor.ID) {
		m.logSoft(apperr.E(op, apperr.KindAlreadyExists, "already a participant"), planID, actor.ID)
		return nil
	}

	if reasons := planpolicy.Eligibility(p, actor); len(reasons) > 0 {
		if m.enforceEligibility {
			return apperr.Unauthorized(op, "not eligible: "+strings.Join(reasons, "; "))
		}
		m.log.Info("joining outside plan filters",
			zap.String("plan_id", planID.Hex()),
			zap.String("user_id", actor.ID),
			zap.Strings("reasons", reasons))
	}

	added, err := m.store.ArrayUnion(ctx, planID, docstore.Participants, actor)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if !added {
		// Lost a race with a concurrent join of the same user.
		m.logSoft(apperr.E(op, apperr.KindAlreadyExists, "already a participant"), planID, actor.ID)
		return nil
	}
	m.log.Info("participant joined", zap.String("plan_id", planID.Hex()), zap.String("user_id", actor.ID))
	return nil
}

// Leave removes every roster entry for actor. Leaving a plan one never
// joined succeeds. The creator cannot leave; they delete the plan instead.
func (m *Manager) Leave(ctx context.Context, actor models.UserSnapshot, planID primitive.ObjectID) error {
	const op = "membership.Leave"
	if err := requireActor(op, actor); err != nil {
		return err
	}

	p, err := m.store.Get(ctx, planID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if p.IsCreator(actor.ID) {
		return apperr.Unauthorized(op, "the creator cannot leave; delete the plan instead")
	}

	removed, err := m.store.ArrayRemove(ctx, planID, docstore.Participants, actor.ID)
	if err != nil {
		return apperr.FromStore(op, err)
	}
	if !removed {
		m.logSoft(apperr.E(op, apperr.KindNotAMember, "not a participant"), planID, actor.ID)
		return nil
	}
	m.log.Info("participant left", zap.String("plan_id", planID.Hex()), zap.String("user_id", actor.ID))
	return nil
}

func (m *Manager) logSoft(err error, planID primitive.ObjectID, userID string) {
	m.log.Debug("soft success",
		zap.String("plan_id", planID.Hex()),
		zap.String("user_id", userID),
		zap.String("kind", string(apperr.KindOf(err))),
		zap.Error(err))
}

func requireActor(op string, actor models.UserSnapshot) error {
	if strings.TrimSpace(actor.ID) == "" {
		return apperr.Unauthorized(op, "sign in required")
	}
	return nil
}
