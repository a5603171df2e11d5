package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rakunlabs/edgeflow/internal/auth"
	"github.com/rakunlabs/edgeflow/internal/block"
	_ "github.com/rakunlabs/edgeflow/internal/block/blocks"
	"github.com/rakunlabs/edgeflow/internal/config"
	"github.com/rakunlabs/edgeflow/internal/engine"
	"github.com/rakunlabs/edgeflow/internal/graph"
	"github.com/rakunlabs/edgeflow/internal/logbuf"
	"github.com/rakunlabs/edgeflow/internal/manifest"
	"github.com/rakunlabs/edgeflow/internal/metrics"
)

// newTestServer wires a Server around a one-node pipeline without
// starting the listener; handlers are exercised directly.
func newTestServer(t *testing.T, am *auth.Manager) (*Server, *engine.Engine) {
	t.Helper()

	m := &manifest.Manifest{
		Platform: "test",
		Blocks:   []manifest.Descriptor{{ID: "const-source", Version: "1.0.0"}},
		Nodes: []manifest.Node{
			{ID: 1, Type: "source.constant", Block: manifest.Descriptor{ID: "const-source", Version: "1.0.0"}},
		},
	}

	g, err := graph.Build(m, block.NewRegistry())
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	collector := metrics.NewCollector()
	eng := engine.New(g, collector, engine.Options{Rate: 10})

	s := &Server{
		config: config.Server{
			DashboardFile: filepath.Join(t.TempDir(), "dashboard.json"),
		},
		auth:      am,
		collector: collector,
		ctrl:      engine.NewController(context.Background(), eng),
		ring:      logbuf.NewRing(16),
	}

	return s, eng
}

func enabledAuth(t *testing.T) *auth.Manager {
	t.Helper()

	am := auth.NewManager(time.Hour)
	if err := am.SetCredentials("u", "p"); err != nil {
		t.Fatal(err)
	}
	return am
}

func TestLoginAPI(t *testing.T) {
	s, _ := newTestServer(t, enabledAuth(t))

	// Wrong credentials.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"u","password":"nope"}`))
	s.LoginAPI(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad credentials: %d", rec.Code)
	}

	// Malformed body.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{`))
	s.LoginAPI(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: %d", rec.Code)
	}

	// Good credentials.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"username":"u","password":"p"}`))
	s.LoginAPI(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d", rec.Code)
	}

	var resp loginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Error("empty token")
	}
	if resp.TTLSeconds != 3600 {
		t.Errorf("ttl: %d", resp.TTLSeconds)
	}
}

func TestAuthMiddleware(t *testing.T) {
	am := enabledAuth(t)
	s, _ := newTestServer(t, am)

	handler := s.authMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}

	// Valid token.
	token := am.Login("u", "p")
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: %d", rec.Code)
	}

	// Administratively expired token.
	am.Expire(token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expired token: %d", rec.Code)
	}
}

func TestAuthMiddleware_DisabledMode(t *testing.T) {
	s, _ := newTestServer(t, auth.NewManager(time.Hour))

	handler := s.authMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("disabled auth must pass everything: %d", rec.Code)
	}
}

func TestDashboardRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, auth.NewManager(time.Hour))

	// Empty default before any save.
	rec := httptest.NewRecorder()
	s.GetDashboardAPI(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/config", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "{}" {
		t.Errorf("empty default: %d %q", rec.Code, rec.Body.String())
	}

	blob := `{"panels":[{"kind":"gauge","block":"sensor"}]}`
	rec = httptest.NewRecorder()
	s.SaveDashboardAPI(rec, httptest.NewRequest(http.MethodPost, "/api/dashboard/config", bytes.NewBufferString(blob)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("save: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.GetDashboardAPI(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard/config", nil))
	if rec.Body.String() != blob {
		t.Errorf("round trip: %q", rec.Body.String())
	}

	// Invalid JSON is rejected before touching the file.
	rec = httptest.NewRecorder()
	s.SaveDashboardAPI(rec, httptest.NewRequest(http.MethodPost, "/api/dashboard/config", bytes.NewBufferString(`{broken`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid json: %d", rec.Code)
	}

	data, err := os.ReadFile(s.config.DashboardFile)
	if err != nil || string(data) != blob {
		t.Errorf("file content after rejected write: %q, %v", data, err)
	}
}

func TestListBlocksAPI(t *testing.T) {
	s, eng := newTestServer(t, auth.NewManager(time.Hour))
	eng.Initialize()

	rec := httptest.NewRecorder()
	s.ListBlocksAPI(rec, httptest.NewRequest(http.MethodGet, "/api/blocks", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	var resp blocksResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Blocks) != 1 {
		t.Fatalf("blocks: %d", len(resp.Blocks))
	}

	b := resp.Blocks[0]
	if b.NodeID != 1 || b.BlockID != "const-source" || b.Version != "1.0.0" {
		t.Errorf("block info: %+v", b)
	}
	if len(b.OutputPins) != 1 || b.OutputPins[0].Name != "out" {
		t.Errorf("output pins: %+v", b.OutputPins)
	}
}

func TestMetricsAPI(t *testing.T) {
	s, eng := newTestServer(t, auth.NewManager(time.Hour))
	eng.Initialize()
	eng.Tick()

	rec := httptest.NewRecorder()
	s.MetricsAPI(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: %q", ct)
	}

	var snap metrics.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Blocks) != 1 || snap.Blocks[0].ExecutionCount != 1 {
		t.Errorf("snapshot: %+v", snap.Blocks)
	}

	// Reset clears the table.
	rec = httptest.NewRecorder()
	s.ResetMetricsAPI(rec, httptest.NewRequest(http.MethodPost, "/api/metrics/reset", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset: %d", rec.Code)
	}
	if snap := s.collector.Snapshot(); len(snap.Blocks) != 0 {
		t.Errorf("blocks after reset: %v", snap.Blocks)
	}
}

func TestLogsAPI(t *testing.T) {
	s, _ := newTestServer(t, auth.NewManager(time.Hour))

	for i := 0; i < 5; i++ {
		s.ring.Append(logbuf.Record{ID: "r", Message: "m"})
	}

	rec := httptest.NewRecorder()
	s.LogsAPI(rec, httptest.NewRequest(http.MethodGet, "/api/logs?limit=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}

	var resp logsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Logs) != 3 {
		t.Errorf("logs: %d", len(resp.Logs))
	}

	rec = httptest.NewRecorder()
	s.LogsAPI(rec, httptest.NewRequest(http.MethodGet, "/api/logs?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: %d", rec.Code)
	}
}

func TestRuntimeAPI(t *testing.T) {
	s, eng := newTestServer(t, auth.NewManager(time.Hour))
	eng.Initialize()

	rec := httptest.NewRecorder()
	s.RuntimeStartAPI(rec, httptest.NewRequest(http.MethodPost, "/api/runtime/start", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: %d", rec.Code)
	}

	// The transition is asynchronous; poll the status briefly.
	deadline := time.Now().Add(time.Second)
	for !s.ctrl.Status().Running && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !s.ctrl.Status().Running {
		t.Fatal("scheduler did not start")
	}

	rec = httptest.NewRecorder()
	s.RuntimeStatusAPI(rec, httptest.NewRequest(http.MethodGet, "/api/runtime/status", nil))
	var st engine.Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.Running {
		t.Error("status must report running")
	}

	rec = httptest.NewRecorder()
	s.RuntimeStopAPI(rec, httptest.NewRequest(http.MethodPost, "/api/runtime/stop", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("stop: %d", rec.Code)
	}

	deadline = time.Now().Add(time.Second)
	for s.ctrl.Status().Running && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.ctrl.Status().Running {
		t.Error("scheduler did not stop")
	}
}
