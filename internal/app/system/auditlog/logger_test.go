package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/planhub/internal/app/store/audit"
	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/auditlog"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/dalemusser/planhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_NilLogger(t *testing.T) {
	// nil logger should be a no-op (not panic)
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.SignedIn(ctx, req, testutil.User("Ada"))
	logger.PlanJoined(ctx, req, testutil.User("Ada"), primitive.NewObjectID(), nil)
	events, err := logger.PlanActivity(ctx, primitive.NewObjectID(), 10)
	if err != nil || len(events) != 0 {
		t.Fatalf("nil logger activity: %v %v", events, err)
	}
}

func TestLogger_Modes(t *testing.T) {
	tests := []struct {
		mode     string
		wantDB   bool
		wantLogs bool
	}{
		{auditlog.ModeAll, true, true},
		{auditlog.ModeDB, true, false},
		{auditlog.ModeLog, false, true},
		{auditlog.ModeOff, false, false},
		{"bogus", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			ctx, cancel := testutil.TestContext()
			defer cancel()
			core, logs := observer.New(zap.InfoLevel)
			rec := audit.NewMemory()
			logger := auditlog.New(rec, zap.New(core), tt.mode)

			planID := primitive.NewObjectID()
			req := httptest.NewRequest("POST", "/plans", nil)
			req.RemoteAddr = "10.0.0.1:5555"
			ada := testutil.User("Ada")
			logger.PlanCreated(ctx, req, ada, models.Plan{ID: planID, Title: "Picnic"})

			events, err := rec.Query(ctx, audit.QueryFilter{PlanID: &planID})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if got := len(events) == 1; got != tt.wantDB {
				t.Errorf("stored events: got %d, wantDB %v", len(events), tt.wantDB)
			}
			if got := logs.FilterMessage("audit event").Len() == 1; got != tt.wantLogs {
				t.Errorf("zap entries: got %d, wantLogs %v", logs.Len(), tt.wantLogs)
			}

			if tt.wantDB {
				e := events[0]
				if e.ActorID != ada.ID || e.Details["title"] != "Picnic" || !e.Success {
					t.Errorf("unexpected event: %+v", e)
				}
				if e.IP != "10.0.0.1" {
					t.Errorf("ip: got %q", e.IP)
				}
			}
		})
	}
}

func TestLogger_FailureIsWarned(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	core, logs := observer.New(zap.InfoLevel)
	logger := auditlog.New(audit.NewMemory(), zap.New(core), auditlog.ModeAll)

	planID := primitive.NewObjectID()
	req := httptest.NewRequest("POST", "/plans/x/leave", nil)
	logger.PlanLeft(ctx, req, testutil.User("Ada"), planID, apperr.Unauthorized("plans.Leave", "the creator cannot leave"))

	entries := logs.FilterMessage("audit event").All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel {
		t.Fatalf("expected one warn entry, got %+v", entries)
	}

	events, err := logger.PlanActivity(ctx, planID, 10)
	if err != nil {
		t.Fatalf("PlanActivity failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	e := events[0]
	if e.Success || e.FailureReason != "the creator cannot leave" || e.Details["kind"] != string(apperr.KindUnauthorized) {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestLogger_PlanUpdatedListsFields(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	logger := auditlog.New(nil, zap.NewNop(), auditlog.ModeDB)

	planID := primitive.NewObjectID()
	var patch models.PlanPatch
	patch.SetTitle("Picnic")
	patch.SetTimeLabel("noon")
	logger.PlanUpdated(ctx, httptest.NewRequest("PATCH", "/", nil), testutil.User("Ada"), planID, patch, nil)

	events, err := logger.PlanActivity(ctx, planID, 10)
	if err != nil {
		t.Fatalf("PlanActivity failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events: got %d, want 1", len(events))
	}
	if got := events[0].Details["fields"]; got != "schedule.time_label,title" {
		t.Errorf("fields: got %q", got)
	}
}

func TestLogger_LogModeKeepsNoActivity(t *testing.T) {
	ctx, cancel := testutil.TestContext()
	defer cancel()
	logger := auditlog.New(audit.NewMemory(), zap.NewNop(), auditlog.ModeLog)

	planID := primitive.NewObjectID()
	logger.PlanDeleted(ctx, httptest.NewRequest("DELETE", "/", nil), testutil.User("Ada"), planID, nil)
	events, err := logger.PlanActivity(ctx, planID, 10)
	if err != nil || len(events) != 0 {
		t.Fatalf("log mode activity: %v %v", events, err)
	}
}
