package agentrun

import (
	"context"
	"errors"
	"sync"
	"time"

	cfgpkg "github.com/rzbill/ringlog/internal/config"
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/runtime"
	httpserver "github.com/rzbill/ringlog/internal/server/http"
	"github.com/rzbill/ringlog/internal/upload"
	logpkg "github.com/rzbill/ringlog/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	Logger logpkg.Logger
	// Runtime overrides, used by tests.
	Runtime runtime.Options
	// Ready, if set, is called once the runtime is open.
	Ready func(*runtime.Runtime)
}

// Run opens the log runtime, serves the diagnostics API and runs the
// periodic drain, upload and checkpoint loops until ctx is cancelled. It
// then shuts down in order: HTTP, loops, runtime.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	rtOpts := opts.Runtime
	rtOpts.Config = opts.Config
	rtOpts.Logger = logger
	rt, err := runtime.Open(rtOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("close runtime", logpkg.Err(err))
		}
	}()

	cfg := opts.Config
	logger.Info("Starting ringlog agent",
		logpkg.Int("capacity", cfg.Capacity),
		logpkg.Str("log_dir", cfg.LogDir),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("server", cfg.Upload.ServerURL),
		logpkg.Str("http", cfg.HTTPAddr),
		logpkg.Bool("warm", rt.Warm()),
	)
	rt.LogX(events.CurrentTimeUTC, int32(time.Now().Unix()))
	if opts.Ready != nil {
		opts.Ready(rt)
	}

	var wg sync.WaitGroup
	var hsrv *httpserver.Server
	if cfg.HTTPAddr != "" {
		hsrv = httpserver.New(rt, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := hsrv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && ctx.Err() == nil {
				logger.Error("http error", logpkg.Err(err))
			}
		}()
	}

	every(ctx, &wg, cfg.DrainInterval.Std(), func() {
		if _, err := rt.Drain(); err != nil {
			logger.Error("drain failed", logpkg.Err(err))
		}
	})
	if cfg.Upload.ServerURL != "" && cfg.LogDir != "" {
		every(ctx, &wg, cfg.UploadInterval.Std(), func() {
			err := rt.StartUpload(ctx)
			if err != nil && !errors.Is(err, upload.ErrAlreadyRunning) {
				logger.Warn("upload not started", logpkg.Err(err))
			}
		})
	}
	if cfg.DataDir != "" {
		every(ctx, &wg, cfg.CheckpointInterval.Std(), func() {
			if err := rt.Checkpoint(); err != nil {
				logger.Error("checkpoint failed", logpkg.Err(err))
			}
		})
	}

	<-ctx.Done()
	if hsrv != nil {
		hsrv.Close()
	}
	wg.Wait()
	logger.Info("ringlog agent stopped")
	return nil
}

// every runs fn each interval until ctx is done. A non-positive interval
// disables the loop.
func every(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				fn()
			}
		}
	}()
}
