package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chatfeature "github.com/dalemusser/planhub/internal/app/features/chat"
	uierrors "github.com/dalemusser/planhub/internal/app/features/errors"
	"github.com/dalemusser/planhub/internal/app/plans/chat"
	"github.com/dalemusser/planhub/internal/app/plans/membership"
	"github.com/dalemusser/planhub/internal/app/system/auth"
	"github.com/dalemusser/planhub/internal/domain/models"
	"github.com/dalemusser/planhub/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

type env struct {
	router  chi.Router
	fx      *testutil.Fixtures
	sync    *chat.Synchronizer
	members *membership.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()
	store := testutil.NewMemStore(t)

	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}

	sync := chat.New(store, logger)
	t.Cleanup(sync.CloseAll)
	members := membership.New(store, logger)
	h := chatfeature.NewHandler(sync, members, uierrors.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	r.Mount("/plans/{id}/messages", chatfeature.Routes(h, sessionMgr, nil))

	return &env{router: r, fx: testutil.NewFixtures(t, store), sync: sync, members: members}
}

func (e *env) do(r *http.Request, u models.UserSnapshot) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, testutil.WithUser(r, u))
	return rec
}

// serveAs starts a server whose every request is made as u.
func (e *env) serveAs(t *testing.T, u models.UserSnapshot) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.router.ServeHTTP(w, testutil.WithUser(r, u))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, path string) (*websocket.Conn, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err == nil {
		t.Cleanup(func() {
			_ = conn.Close()
		})
	}
	return conn, err
}

func readFrame(t *testing.T, conn *websocket.Conn) chatfeature.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f chatfeature.Frame
	if err := websocket.JSON.Receive(conn, &f); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return f
}

// readUntil reads snapshot frames until ok returns true.
func readUntil(t *testing.T, conn *websocket.Conn, ok func(chatfeature.Frame) bool) chatfeature.Frame {
	t.Helper()
	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if ok(f) {
			return f
		}
	}
	t.Fatal("expected frame never arrived")
	return chatfeature.Frame{}
}

func msgPath(p models.Plan) string { return "/plans/" + p.ID.Hex() + "/messages" }

func TestList_RequiresMembership(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana, bo, cy := testutil.User("Ana"), testutil.User("Bo"), testutil.User("Cy")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)
	e.fx.AddParticipant(ctx, p.ID, bo)
	e.fx.AddMessage(ctx, p.ID, ana, "m2", "second", time.Now())
	e.fx.AddMessage(ctx, p.ID, ana, "m1", "first", time.Now().Add(-time.Minute))

	if rec := e.do(testutil.NewRequest("GET", msgPath(p)), cy); rec.Code != http.StatusForbidden {
		t.Errorf("outsider: got %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec := e.do(testutil.NewRequest("GET", msgPath(p)), bo)
	if rec.Code != http.StatusOK {
		t.Fatalf("participant: got %d, want %d", rec.Code, http.StatusOK)
	}
	var body struct {
		Messages []models.GroupMessage `json:"messages"`
	}
	testutil.DecodeJSON(t, rec, &body)
	if len(body.Messages) != 2 || body.Messages[0].ID != "m1" || body.Messages[1].ID != "m2" {
		t.Errorf("expected [m1 m2] in order, got %+v", body.Messages)
	}
}

func TestSend(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana, cy := testutil.User("Ana"), testutil.User("Cy")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)

	rec := e.do(testutil.NewJSONRequest(t, "POST", msgPath(p), map[string]string{"body": "see you there"}), ana)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: got %d, want %d (%s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var msg models.GroupMessage
	testutil.DecodeJSON(t, rec, &msg)
	if msg.ID == "" || msg.AuthorID != ana.ID || msg.Body != "see you there" {
		t.Errorf("unexpected message %+v", msg)
	}

	if rec := e.do(testutil.NewJSONRequest(t, "POST", msgPath(p), map[string]string{"body": "  "}), ana); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank body: got %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	if rec := e.do(testutil.NewJSONRequest(t, "POST", msgPath(p), map[string]string{"body": "hi"}), cy); rec.Code != http.StatusForbidden {
		t.Errorf("outsider send: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestDeleteAndClear(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana, bo := testutil.User("Ana"), testutil.User("Bo")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)
	e.fx.AddParticipant(ctx, p.ID, bo)
	e.fx.AddMessage(ctx, p.ID, ana, "m1", "from ana", time.Now())
	e.fx.AddMessage(ctx, p.ID, bo, "m2", "from bo", time.Now())

	if rec := e.do(testutil.NewRequest("DELETE", msgPath(p)+"/m1"), bo); rec.Code != http.StatusForbidden {
		t.Errorf("delete other's: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := e.do(testutil.NewRequest("DELETE", msgPath(p)+"/m2"), bo); rec.Code != http.StatusNoContent {
		t.Errorf("delete own: got %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := e.do(testutil.NewRequest("DELETE", msgPath(p)), bo); rec.Code != http.StatusForbidden {
		t.Errorf("participant clear: got %d, want %d", rec.Code, http.StatusForbidden)
	}
	if rec := e.do(testutil.NewRequest("DELETE", msgPath(p)), ana); rec.Code != http.StatusNoContent {
		t.Errorf("creator clear: got %d, want %d", rec.Code, http.StatusNoContent)
	}

	msgs, err := e.sync.List(ctx, p.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("expected empty transcript, got %d", len(msgs))
	}
}

func TestLive_Snapshots(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana := testutil.User("Ana")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)

	conn, err := dial(t, e.serveAs(t, ana), msgPath(p)+"/ws")
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}

	first := readFrame(t, conn)
	if first.Type != chatfeature.FrameSnapshot || first.Snapshot == nil {
		t.Fatalf("expected snapshot frame, got %+v", first)
	}
	if len(first.Snapshot.Messages) != 0 {
		t.Errorf("expected empty transcript, got %d", len(first.Snapshot.Messages))
	}

	if _, err := e.sync.Send(ctx, ana, p.ID, "hello"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	f := readUntil(t, conn, func(f chatfeature.Frame) bool {
		return f.Snapshot != nil && len(f.Snapshot.Messages) == 1
	})
	if f.Snapshot.Messages[0].Body != "hello" {
		t.Errorf("body: got %q, want %q", f.Snapshot.Messages[0].Body, "hello")
	}
}

func TestLive_Deltas(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana, bo := testutil.User("Ana"), testutil.User("Bo")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)
	e.fx.AddMessage(ctx, p.ID, ana, "m1", "earlier", time.Now().Add(-time.Minute))

	conn, err := dial(t, e.serveAs(t, ana), msgPath(p)+"/ws?mode=delta")
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}

	first := readFrame(t, conn)
	if first.Type != chatfeature.FrameDelta || first.Delta == nil || !first.Delta.Reset {
		t.Fatalf("expected reset delta, got %+v", first)
	}
	if len(first.Delta.Added) != 1 {
		t.Errorf("reset added: got %d, want 1", len(first.Delta.Added))
	}

	if err := e.members.Join(ctx, bo, p.ID); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	f := readFrame(t, conn)
	if f.Delta == nil || len(f.Delta.Participants) != 1 || len(f.Delta.Added) != 0 {
		t.Fatalf("expected roster-only delta, got %+v", f.Delta)
	}

	if _, err := e.sync.Send(ctx, bo, p.ID, "joined!"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	f = readFrame(t, conn)
	if f.Delta == nil || len(f.Delta.Added) != 1 || f.Delta.Added[0].Body != "joined!" {
		t.Fatalf("expected one added message, got %+v", f.Delta)
	}
	if f.Delta.Participants != nil {
		t.Errorf("expected unchanged roster, got %+v", f.Delta.Participants)
	}
}

func TestLive_PlanDeleted(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana := testutil.User("Ana")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)

	conn, err := dial(t, e.serveAs(t, ana), msgPath(p)+"/ws")
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	readFrame(t, conn)

	if err := e.members.DeletePlan(ctx, ana, p.ID); err != nil {
		t.Fatalf("DeletePlan failed: %v", err)
	}

	f := readUntil(t, conn, func(f chatfeature.Frame) bool { return f.Type == chatfeature.FrameError })
	if f.Error.Code != "not_found" {
		t.Errorf("code: got %q, want %q", f.Error.Code, "not_found")
	}
}

func TestLive_LeaveEndsStream(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana, bo := testutil.User("Ana"), testutil.User("Bo")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)
	e.fx.AddParticipant(ctx, p.ID, bo)

	conn, err := dial(t, e.serveAs(t, bo), msgPath(p)+"/ws")
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	readFrame(t, conn)

	if err := e.members.Leave(ctx, bo, p.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	f := readUntil(t, conn, func(f chatfeature.Frame) bool { return f.Type == chatfeature.FrameError })
	if f.Error.Code != "unauthorized" {
		t.Errorf("code: got %q, want %q", f.Error.Code, "unauthorized")
	}
}

func TestLive_OutsiderRejected(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana, cy := testutil.User("Ana"), testutil.User("Cy")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)

	if _, err := dial(t, e.serveAs(t, cy), msgPath(p)+"/ws"); err == nil {
		t.Fatal("expected handshake to fail for an outsider")
	}
}

func TestLive_DisconnectReleasesFeed(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	ana := testutil.User("Ana")
	p := e.fx.CreatePlan(ctx, "Picnic", ana)

	conn, err := dial(t, e.serveAs(t, ana), msgPath(p)+"/ws")
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	readFrame(t, conn)
	if n := e.sync.OpenFeeds(); n != 1 {
		t.Fatalf("open feeds: got %d, want 1", n)
	}

	_ = conn.Close()

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Second)
	defer waitCancel()
	for e.sync.OpenFeeds() != 0 {
		select {
		case <-waitCtx.Done():
			t.Fatalf("feed not released, open feeds: %d", e.sync.OpenFeeds())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
