package runtime

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/ringlog/internal/config"
	"github.com/rzbill/ringlog/internal/clock"
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	cfg := cfgpkg.Default()
	cfg.Capacity = 32
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestOpenCloseHealth(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t), Clock: &clock.Manual{}})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if rt.Warm() {
		t.Fatalf("first open reported warm")
	}
	if rt.Files().Current() != "0000.log" {
		t.Fatalf("current=%q", rt.Files().Current())
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("health after close: %v", err)
	}
}

func TestCloseLogsStopWithVersion(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogDir = ""
	rt, err := Open(Options{Config: cfg, Clock: &clock.Manual{}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	unread := rt.Store().Unread()
	last := unread[len(unread)-1]
	if last.Event != events.LogStop || last.Parameter != int32(rt.Table().Version()) {
		t.Fatalf("last record %+v, want LOG_STOP with version %d", last, rt.Table().Version())
	}
}

func TestHealthDuringClose(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t), Clock: &clock.Manual{}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			rt.CheckHealth(context.Background())
		}
	}()
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	<-done
	if err := rt.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPrintOnlyEchoesWithoutStoring(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogDir = ""
	cfg.DataDir = ""
	cfg.PrintOnly = true
	var echo bytes.Buffer
	rt, err := Open(Options{Config: cfg, Clock: &clock.Manual{}, Echo: &echo})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	rt.Log(events.User2, 7)
	if rt.Store().Count() != 0 {
		t.Fatalf("print-only stored %d records", rt.Store().Count())
	}
	if !strings.Contains(echo.String(), "LOG_START") || !strings.Contains(echo.String(), "7 (0x7)") {
		t.Fatalf("echo:\n%s", echo.String())
	}
}

func TestWarmStartFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogDir = ""
	rt, err := Open(Options{Config: cfg, Clock: &clock.Manual{}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rt.Log(events.User4, 4242)
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt, err = Open(Options{Config: cfg, Clock: &clock.Manual{}})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rt.Close()
	if !rt.Warm() {
		t.Fatalf("expected warm start")
	}
	var found bool
	for _, r := range rt.Store().Unread() {
		if r.Event == events.User4 && r.Parameter == 4242 {
			found = true
		}
	}
	if !found {
		t.Fatalf("record lost across restart: %+v", rt.Store().Unread())
	}
	if st := rt.Status(); st.Storage == nil || st.Storage.Reads == 0 {
		t.Fatalf("storage metrics missing: %+v", st)
	}
}

func TestCapacityChangeStartsCold(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogDir = ""
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	rt.Close()
	cfg.Capacity = 16
	rt, err = Open(Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if rt.Warm() {
		t.Fatalf("resized buffer started warm")
	}
}

func TestDrainAndDump(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t), Clock: &clock.Manual{}})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	rt.Log(events.User0, 1)
	if _, err := rt.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	rt.LogX(events.User1, 2)

	var out bytes.Buffer
	if err := rt.Dump(&out, `name.startsWith("USER_")`); err != nil {
		t.Fatalf("dump: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "USER_0") || !strings.Contains(lines[1], "USER_1") {
		t.Fatalf("dump:\n%s", out.String())
	}
	if err := rt.Dump(io.Discard, "param +"); err == nil {
		t.Fatalf("bad filter accepted")
	}

	recs, err := rt.Records("", 1)
	if err != nil || len(recs) != 1 || recs[0].Parameter != 2 {
		t.Fatalf("records %+v err=%v", recs, err)
	}
}

func TestUploadDisabledWithoutServer(t *testing.T) {
	rt, err := Open(Options{Config: testConfig(t)})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if err := rt.StartUpload(context.Background()); !errors.Is(err, ErrUploadDisabled) {
		t.Fatalf("err=%v", err)
	}
}

type loopback struct{}

func (loopback) LookupHost(context.Context, string) ([]string, error) {
	return []string{"127.0.0.1"}, nil
}

func TestUploadPreviousFiles(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	got := make(chan []record.Record, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		recs, _ := record.ReadAll(c)
		c.Close()
		got <- recs
	}()

	cfg := testConfig(t)
	cfg.Upload.ServerURL = "collector:" + portOf(t, ln.Addr())

	// first run leaves 0000.log behind
	rt, err := Open(Options{Config: cfg, Clock: &clock.Manual{}})
	if err != nil {
		t.Fatal(err)
	}
	rt.Log(events.User0, 7)
	rt.Close()

	rt, err = Open(Options{Config: cfg, Clock: &clock.Manual{}, Resolver: loopback{}})
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()
	if rt.Files().Current() != "0001.log" {
		t.Fatalf("current=%q", rt.Files().Current())
	}
	if err := rt.StartUpload(context.Background()); err != nil {
		t.Fatalf("start upload: %v", err)
	}
	rt.Uploader().Wait()

	select {
	case recs := <-got:
		var seen bool
		for _, r := range recs {
			if r.Event == events.User0 && r.Parameter == 7 {
				seen = true
			}
		}
		if !seen {
			t.Fatalf("uploaded records %+v", recs)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("nothing uploaded")
	}
	if _, err := os.Stat(filepath.Join(cfg.LogDir, "0000.log")); !os.IsNotExist(err) {
		t.Fatalf("uploaded file kept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.LogDir, "0001.log")); err != nil {
		t.Fatalf("current file missing: %v", err)
	}
}

func portOf(t *testing.T, a net.Addr) string {
	t.Helper()
	_, port, err := net.SplitHostPort(a.String())
	if err != nil {
		t.Fatal(err)
	}
	return port
}
