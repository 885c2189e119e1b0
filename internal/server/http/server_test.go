package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "github.com/rzbill/ringlog/internal/config"
	"github.com/rzbill/ringlog/internal/clock"
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/runtime"
	logpkg "github.com/rzbill/ringlog/pkg/log"
)

func newTestServer(t *testing.T) (*Server, *runtime.Runtime) {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Capacity = 16
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	rt, err := runtime.Open(runtime.Options{Config: cfg, Clock: &clock.Manual{}})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})
	return New(rt, logger), rt
}

func do(s *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	s, _ := newTestServer(t)
	if w := do(s, http.MethodGet, "/v1/healthz"); w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestListFilterAndLimit(t *testing.T) {
	s, rt := newTestServer(t)
	for i := int32(1); i <= 3; i++ {
		rt.Log(events.User0, i)
	}
	rt.Log(events.User1, 9)

	w := do(s, http.MethodGet, "/v1/log?filter="+`name%3D%3D%22USER_0%22`+"&limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Records []struct {
			Name  string `json:"name"`
			Param int32  `json:"param"`
		} `json:"records"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 || resp.Records[0].Param != 2 || resp.Records[1].Param != 3 || resp.Records[0].Name != "USER_0" {
		t.Fatalf("resp %+v", resp)
	}
	// listing does not consume
	if rt.Store().Count() == 0 {
		t.Fatalf("records consumed")
	}
}

func TestListBadFilter(t *testing.T) {
	s, _ := newTestServer(t)
	if w := do(s, http.MethodGet, "/v1/log?filter=param+%2B"); w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestDrainAndCount(t *testing.T) {
	s, rt := newTestServer(t)
	rt.Log(events.User0, 1)
	if w := do(s, http.MethodGet, "/v1/log/drain"); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET drain: %d", w.Code)
	}
	w := do(s, http.MethodPost, "/v1/log/drain")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"file":"0000.log"`) {
		t.Fatalf("drain: %d %s", w.Code, w.Body.String())
	}
	w = do(s, http.MethodGet, "/v1/log/count")
	var c struct {
		Pending  int `json:"pending"`
		Capacity int `json:"capacity"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &c); err != nil {
		t.Fatal(err)
	}
	if c.Pending != 0 || c.Capacity != 16 {
		t.Fatalf("count %+v", c)
	}
}

func TestUploadDisabled(t *testing.T) {
	s, _ := newTestServer(t)
	if w := do(s, http.MethodPost, "/v1/upload/start"); w.Code != http.StatusPreconditionFailed {
		t.Fatalf("status: %d", w.Code)
	}
	if w := do(s, http.MethodPost, "/v1/upload/stop"); w.Code != http.StatusNoContent {
		t.Fatalf("stop: %d", w.Code)
	}
	w := do(s, http.MethodGet, "/v1/upload/status")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"running":false`) {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
}

func TestDumpText(t *testing.T) {
	s, rt := newTestServer(t)
	rt.Log(events.User2, 5)
	w := do(s, http.MethodGet, "/v1/log/dump")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "USER_2") {
		t.Fatalf("dump: %d %s", w.Code, w.Body.String())
	}
}
