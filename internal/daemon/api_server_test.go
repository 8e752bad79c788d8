package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tecscanner/internal/api"
	"tecscanner/internal/config"
	"tecscanner/internal/metrics"
	"tecscanner/internal/recorder"
	"tecscanner/internal/testsupport"
)

func newTestAPI(t *testing.T, cfg *config.Config, runner *testsupport.FakeRunner) (*apiServer, *recorder.Controller) {
	t.Helper()
	store := testsupport.MustOpenJournal(t, cfg)
	rec := metrics.New(false)
	controller := testsupport.NewController(t, cfg, runner, store, rec)
	d, err := New(cfg, Deps{Controller: controller, Journal: store, Metrics: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api == nil {
		t.Fatal("expected API server to be configured")
	}
	return d.api, controller
}

func serve(t *testing.T, srv *apiServer, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.routes().ServeHTTP(w, req)
	return w
}

func TestAPIStartStopFlow(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountedDrive())
	srv, controller := newTestAPI(t, cfg, testsupport.NewFakeRunner())

	w := serve(t, srv, http.MethodPost, "/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /start, got %d: %s", w.Code, w.Body.String())
	}
	var start api.StartResponse
	if err := json.Unmarshal(w.Body.Bytes(), &start); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	if !start.Started {
		t.Fatalf("expected started=true, got %+v", start)
	}

	w = serve(t, srv, http.MethodPost, "/start", "")
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), "already_active") {
		t.Fatalf("expected 409 already_active, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(t, srv, http.MethodGet, "/status", "")
	var status recorder.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Recording || !status.StoragePresent {
		t.Fatalf("unexpected status %+v", status)
	}

	deadline := time.Now().Add(5 * time.Second)
	for controller.Status().FramesRecorded == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	w = serve(t, srv, http.MethodPost, "/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /stop, got %d", w.Code)
	}
	w = serve(t, srv, http.MethodPost, "/stop", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from idle /stop, got %d", w.Code)
	}

	w = serve(t, srv, http.MethodGet, "/recordings", "")
	var recordings api.RecordingsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &recordings); err != nil {
		t.Fatalf("decode recordings: %v", err)
	}
	if len(recordings.Recordings) != 1 {
		t.Fatalf("expected one recording, got %d", len(recordings.Recordings))
	}

	w = serve(t, srv, http.MethodGet, "/history", "")
	var history api.HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history.Sessions) != 1 || history.Sessions[0].Folder != recordings.Recordings[0].Folder {
		t.Fatalf("unexpected history %+v", history)
	}

	w = serve(t, srv, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `tecscanner_sessions_total{result="completed"} 1`) {
		t.Fatalf("unexpected metrics output: %d %s", w.Code, w.Body.String())
	}
}

func TestAPIStartRefusals(t *testing.T) {
	cases := []struct {
		name  string
		mount bool
		lidar bool
		code  string
	}{
		{name: "no storage", mount: false, lidar: true, code: "no_storage"},
		{name: "no lidar", mount: true, lidar: false, code: "no_lidar"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			if tc.mount {
				testsupport.MountDrive(t, cfg)
			}
			runner := testsupport.NewFakeRunner()
			runner.SetLidar(tc.lidar)
			srv, _ := newTestAPI(t, cfg, runner)

			w := serve(t, srv, http.MethodPost, "/start", "")
			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("expected 503, got %d", w.Code)
			}
			var resp api.StartResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Started || resp.Error != tc.code {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestAPILogs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMountedDrive())
	testsupport.WriteDriveLog(t, cfg, "tecscanner.log", "alpha\nbeta\ngamma\n")
	srv, _ := newTestAPI(t, cfg, testsupport.NewFakeRunner())

	w := serve(t, srv, http.MethodGet, "/logs/tecscanner.log?lines=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if w.Body.String() != "beta\ngamma\n" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}

	if w := serve(t, srv, http.MethodGet, "/logs/missing.log", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing log, got %d", w.Code)
	}
	if w := serve(t, srv, http.MethodGet, "/logs/a..b", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for traversal, got %d", w.Code)
	}
	if w := serve(t, srv, http.MethodGet, "/logs/tecscanner.log?lines=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad lines, got %d", w.Code)
	}
}

func TestAPIRejectsWrongMethod(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, _ := newTestAPI(t, cfg, testsupport.NewFakeRunner())

	if w := serve(t, srv, http.MethodGet, "/start", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("secret"))
	srv, _ := newTestAPI(t, cfg, testsupport.NewFakeRunner())

	if w := serve(t, srv, http.MethodGet, "/status", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(t, srv, http.MethodGet, "/status", "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := serve(t, srv, http.MethodGet, "/status", "secret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestAPIServerListens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, _ := newTestAPI(t, cfg, testsupport.NewFakeRunner())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer srv.stop()

	resp, err := http.Get("http://" + srv.address() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAPIServerDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	srv, err := newAPIServer(cfg, &Daemon{}, nil)
	if err != nil || srv != nil {
		t.Fatalf("expected nil server, got %v %v", srv, err)
	}
	if srv.address() != "" {
		t.Fatal("nil server should have no address")
	}
}
