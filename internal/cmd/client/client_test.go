package client

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newAgentStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/log", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" || r.URL.Query().Get("filter") != "param > 1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records":[],"count":0}`))
	})
	mux.HandleFunc("/v1/upload/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"upload: already running"}`))
	})
	mux.HandleFunc("/v1/upload/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLogListPassesQuery(t *testing.T) {
	srv := newAgentStub(t)
	cmd := NewRoot(func() string { return srv.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"log", "list", "--filter", "param > 1", "--limit", "5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), `"count": 0`) {
		t.Fatalf("expected indented JSON, got: %s", buf.String())
	}
}

func TestUploadStartConflict(t *testing.T) {
	srv := newAgentStub(t)
	cmd := NewRoot(func() string { return srv.URL })
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"upload", "start"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("err=%v", err)
	}
}

func TestUploadStopStatus(t *testing.T) {
	srv := newAgentStub(t)
	cmd := NewRoot(func() string { return srv.URL })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"upload", "stop"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(buf.String(), "204") {
		t.Fatalf("output %q", buf.String())
	}
}
