package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	cfgpkg "github.com/rzbill/ringlog/internal/config"
	"github.com/rzbill/ringlog/internal/clock"
	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/filestore"
	"github.com/rzbill/ringlog/internal/filter"
	"github.com/rzbill/ringlog/internal/logstore"
	"github.com/rzbill/ringlog/internal/record"
	pebblestore "github.com/rzbill/ringlog/internal/storage/pebble"
	"github.com/rzbill/ringlog/internal/upload"
	"github.com/rzbill/ringlog/pkg/log"
)

var (
	ErrUploadDisabled = errors.New("runtime: upload needs a server URL and a log directory")
	ErrClosed         = errors.New("runtime: closed")
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	// Table names events. Nil loads Config.EventsFile, or the built-in
	// table when that is empty.
	Table *events.Table
	// Clock drives timestamps. Nil uses the process monotonic clock.
	Clock  clock.Source
	Logger log.Logger
	// Resolver and Dialer override the upload network. Optional.
	Resolver upload.Resolver
	Dialer   upload.Dialer
	// Echo receives echoed records when Config.Print or Config.PrintOnly
	// is set. Nil uses os.Stdout.
	Echo io.Writer
}

// Runtime wires the ring buffer, its checkpoint storage, the log files and
// the upload pipeline for one process.
type Runtime struct {
	config  cfgpkg.Config
	logger  log.Logger
	table   *events.Table
	db      *pebblestore.DB
	metrics *pebblestore.Counters
	clock   *clock.Adapter

	store    *logstore.Store
	files    *filestore.Files
	uploader *upload.Uploader
	warm     bool
	closed   atomic.Bool
	// dbMu keeps health probes off a closing database
	dbMu sync.RWMutex
}

// Open initialises the log. With a data directory the buffer is restored
// from its last checkpoint (warm start) when one matches; with a log
// directory the first free log file is opened. Failing to open the log file
// is logged and leaves the buffer in memory only.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("runtime: config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	rt := &Runtime{config: cfg, logger: logger.WithComponent("runtime")}

	rt.table = opts.Table
	if rt.table == nil {
		rt.table = events.Default()
		if cfg.EventsFile != "" {
			t, err := events.LoadTable(cfg.EventsFile)
			if err != nil {
				return nil, fmt.Errorf("runtime: events table: %w", err)
			}
			rt.table = t
		}
	}

	region, persister, err := rt.openRegion()
	if err != nil {
		return nil, err
	}

	src := opts.Clock
	if src == nil {
		src = clock.NewMonotonic()
	}
	rt.clock = clock.NewAdapter(src)
	var echo io.Writer
	if cfg.Print || cfg.PrintOnly {
		echo = opts.Echo
		if echo == nil {
			echo = os.Stdout
		}
	}
	rt.store, rt.warm = logstore.Open(region, rt.clock, logstore.Options{
		Version:   rt.table.Version(),
		Strict:    cfg.Strict,
		Persister: persister,
		Echo:      echo,
		Table:     rt.table,
		PrintOnly: cfg.PrintOnly,
	})
	rt.logger.Info("log initialised",
		log.Int("capacity", cfg.Capacity), log.Bool("warm", rt.warm), log.Int("pending", rt.store.Count()))

	rt.files = filestore.New(rt.store, rt.table, filestore.Options{
		MaxPathLen: cfg.MaxPathLen,
		FlushEvery: cfg.FlushEvery,
		Logger:     logger,
	})
	if cfg.LogDir != "" {
		if err := rt.files.Open(cfg.LogDir); err != nil {
			rt.logger.Warn("log file not opened, keeping records in memory", log.Err(err))
		}
	}

	rt.uploader = upload.New(upload.Config{
		Dir:            cfg.LogDir,
		ServerURL:      cfg.Upload.ServerURL,
		DefaultPort:    cfg.Upload.DefaultPort,
		ConnectTimeout: cfg.Upload.ConnectTimeout.Std(),
		SendTimeout:    cfg.Upload.SendTimeout.Std(),
		Current:        rt.files.Current,
		Resolver:       opts.Resolver,
		Dialer:         opts.Dialer,
	}, rt.store, logger)
	return rt, nil
}

// openRegion restores the checkpointed region if a data directory is set
// and a same-sized image exists, else allocates a fresh one.
func (r *Runtime) openRegion() (*logstore.Region, logstore.Persister, error) {
	cfg := r.config
	if cfg.DataDir == "" {
		region, err := logstore.NewRegion(cfg.Capacity)
		return region, nil, err
	}
	mode, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, nil, err
	}
	r.metrics = &pebblestore.Counters{}
	r.db, err = pebblestore.Open(pebblestore.Options{DataDir: cfg.DataDir, Fsync: mode, Metrics: r.metrics})
	if err != nil {
		return nil, nil, fmt.Errorf("runtime: open storage: %w", err)
	}
	saved := r.db.Region(cfg.Region)
	image, err := saved.Load()
	if err != nil {
		r.db.Close()
		return nil, nil, fmt.Errorf("runtime: load region: %w", err)
	}
	if len(image) == logstore.RegionSize(cfg.Capacity) {
		region, err := logstore.WrapRegion(image, cfg.Capacity)
		return region, saved, err
	}
	if image != nil {
		r.logger.Warn("checkpoint size does not match capacity, starting cold",
			log.Int("bytes", len(image)), log.Int("capacity", cfg.Capacity))
	}
	region, err := logstore.NewRegion(cfg.Capacity)
	return region, saved, err
}

func (r *Runtime) Store() *logstore.Store       { return r.store }
func (r *Runtime) Files() *filestore.Files      { return r.files }
func (r *Runtime) Uploader() *upload.Uploader   { return r.uploader }
func (r *Runtime) Table() *events.Table         { return r.table }
func (r *Runtime) Config() cfgpkg.Config        { return r.config }
func (r *Runtime) DB() *pebblestore.DB          { return r.db }
func (r *Runtime) Warm() bool                   { return r.warm }
func (r *Runtime) Log(ev events.Code, p int32)  { r.store.Log(ev, p) }
func (r *Runtime) LogX(ev events.Code, p int32) { r.store.LogX(ev, p) }

// Drain moves pending records to the current log file.
func (r *Runtime) Drain() (int, error) { return r.files.Drain() }

// StartUpload begins an upload run in the background.
func (r *Runtime) StartUpload(ctx context.Context) error {
	if r.config.Upload.ServerURL == "" || r.config.LogDir == "" {
		return ErrUploadDisabled
	}
	return r.uploader.Start(ctx)
}

// StopUpload ends an active upload run and waits for it.
func (r *Runtime) StopUpload() { r.uploader.Stop() }

// Dump prints file and memory records matching expr (CEL, empty for all).
func (r *Runtime) Dump(w io.Writer, expr string) error {
	f, err := filter.New(expr, r.table)
	if err != nil {
		return err
	}
	return r.files.Dump(w, f)
}

// Records returns up to limit of the newest records matching expr, from the
// current file and memory, without consuming them.
func (r *Runtime) Records(expr string, limit int) ([]record.Record, error) {
	f, err := filter.New(expr, r.table)
	if err != nil {
		return nil, err
	}
	recs, err := r.files.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs, nil
}

// Checkpoint saves the region to storage. No-op without a data directory.
func (r *Runtime) Checkpoint() error { return r.store.Checkpoint() }

// Status is a point-in-time view for diagnostics.
type Status struct {
	Header      logstore.Header              `json:"header"`
	Warm        bool                         `json:"warm"`
	CurrentFile string                       `json:"currentFile"`
	LogDir      string                       `json:"logDir"`
	Uploading   bool                         `json:"uploading"`
	LastUpload  upload.Result                `json:"lastUpload"`
	Storage     *pebblestore.CounterSnapshot `json:"storage,omitempty"`
	ClockUs     uint32                       `json:"clockUs"`
}

func (r *Runtime) Status() Status {
	st := Status{
		Header:      r.store.Header(),
		Warm:        r.warm,
		CurrentFile: r.files.Current(),
		LogDir:      r.config.LogDir,
		Uploading:   r.uploader.Running(),
		LastUpload:  r.uploader.Result(),
		ClockUs:     r.clock.Now(),
	}
	if r.metrics != nil {
		s := r.metrics.Snapshot()
		st.Storage = &s
	}
	return st
}

// CheckHealth verifies the storage is reachable.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.dbMu.RLock()
	defer r.dbMu.RUnlock()
	if r.closed.Load() {
		return ErrClosed
	}
	if r.db == nil {
		return nil
	}
	_, err := r.db.Keys([]byte("regionmeta/"))
	return err
}

// Close stops any upload, logs LOG_STOP, closes the log file and
// checkpoints the buffer. The in-memory buffer stays readable.
func (r *Runtime) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	start := time.Now()
	r.uploader.Stop()
	r.store.LogX(events.LogStop, int32(r.table.Version()))
	err := r.files.Close()
	r.clock.Halt()
	if cerr := r.store.Checkpoint(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("runtime: checkpoint: %w", cerr))
	}
	if r.db != nil {
		r.dbMu.Lock()
		err = errors.Join(err, r.db.Close())
		r.dbMu.Unlock()
	}
	r.logger.Info("log closed", log.Duration("took", time.Since(start)), log.Int("pending", r.store.Count()))
	return err
}
