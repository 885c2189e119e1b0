package agentrun

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/ringlog/internal/config"
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
	"github.com/rzbill/ringlog/internal/runtime"
)

func TestRunDrainsPeriodically(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Capacity = 32
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.HTTPAddr = ""
	cfg.DrainInterval = cfgpkg.Duration(10 * time.Millisecond)
	cfg.CheckpointInterval = cfgpkg.Duration(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan *runtime.Runtime, 1)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Config: cfg, Ready: func(rt *runtime.Runtime) { ready <- rt }})
	}()

	rt := <-ready
	rt.LogX(events.User0, 77)
	deadline := time.Now().Add(5 * time.Second)
	for rt.Store().Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("records not drained")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	recs, err := record.ReadFile(filepath.Join(cfg.LogDir, "0000.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var seen bool
	for _, r := range recs {
		if r.Event == events.User0 && r.Parameter == 77 {
			seen = true
		}
	}
	if !seen || recs[len(recs)-1].Event != events.LogFileClose {
		t.Fatalf("file content %+v", recs)
	}
}

func TestRunServesHTTP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := cfgpkg.Default()
	cfg.Capacity = 8
	cfg.HTTPAddr = addr
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Options{Config: cfg}) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		c, err := net.Dial("tcp", addr)
		if err == nil {
			c.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("http not listening: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestEveryDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	var wg sync.WaitGroup
	every(ctx, &wg, 0, func() { called = true })
	wg.Wait()
	if called {
		t.Fatalf("disabled loop ran")
	}
}
