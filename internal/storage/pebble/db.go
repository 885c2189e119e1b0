package pebblestore

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = pebble.ErrNotFound

// FsyncMode defines durability behavior for writes.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every commit. Checkpoints that must
	// survive power loss want this.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever leaves syncing to Pebble.
	FsyncModeNever
)

// ParseFsyncMode maps "always", "interval" and "never" to a mode. Empty is
// FsyncModeUnspecified.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "":
		return FsyncModeUnspecified, nil
	case "always":
		return FsyncModeAlways, nil
	case "interval":
		return FsyncModeInterval, nil
	case "never":
		return FsyncModeNever, nil
	}
	return FsyncModeUnspecified, fmt.Errorf("pebble: unknown fsync mode %q", s)
}

// Options configures the store.
type Options struct {
	// DataDir is the Pebble database directory.
	DataDir string
	Fsync   FsyncMode
	// FsyncInterval applies to FsyncModeInterval (default 5ms).
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning. Nil means defaults.
	PebbleOptions *pebble.Options
	// Metrics observes read and commit sizes and latencies. Optional.
	Metrics MetricsHook
}

// MetricsHook is the storage observation surface.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveCommit(elapsed time.Duration, bytes int)
}

// NoopMetrics discards observations.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(time.Duration, int)   {}
func (NoopMetrics) ObserveCommit(time.Duration, int) {}

// Counters is a MetricsHook keeping running totals.
type Counters struct {
	reads, readBytes     atomic.Int64
	commits, commitBytes atomic.Int64
	commitNanos          atomic.Int64
}

func (c *Counters) ObserveRead(_ time.Duration, bytes int) {
	c.reads.Add(1)
	c.readBytes.Add(int64(bytes))
}

func (c *Counters) ObserveCommit(d time.Duration, bytes int) {
	c.commits.Add(1)
	c.commitBytes.Add(int64(bytes))
	c.commitNanos.Add(int64(d))
}

// CounterSnapshot is a copy of Counters.
type CounterSnapshot struct {
	Reads       int64         `json:"reads"`
	ReadBytes   int64         `json:"readBytes"`
	Commits     int64         `json:"commits"`
	CommitBytes int64         `json:"commitBytes"`
	CommitTime  time.Duration `json:"commitTimeNs"`
}

func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Reads:       c.reads.Load(),
		ReadBytes:   c.readBytes.Load(),
		Commits:     c.commits.Load(),
		CommitBytes: c.commitBytes.Load(),
		CommitTime:  time.Duration(c.commitNanos.Load()),
	}
}

// DB wraps a Pebble instance with an fsync policy.
type DB struct {
	inner     *pebble.DB
	writeSync bool
	metrics   MetricsHook
}

// Open creates or opens the database in opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	switch opts.Fsync {
	case FsyncModeAlways, FsyncModeNever:
	case FsyncModeInterval:
		if opts.FsyncInterval <= 0 {
			opts.FsyncInterval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return opts.FsyncInterval }
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &DB{inner: inner, writeSync: opts.Fsync == FsyncModeAlways, metrics: metrics}, nil
}

// Close closes the database. A nil DB is a no-op.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

func (db *DB) commit(b *pebble.Batch) error {
	start := time.Now()
	size := b.Len()
	mode := pebble.NoSync
	if db.writeSync {
		mode = pebble.Sync
	}
	err := b.Commit(mode)
	db.metrics.ObserveCommit(time.Since(start), size)
	return err
}

// Set writes one key.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.commit(b)
}

// Delete removes one key.
func (db *DB) Delete(key []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Delete(key, nil); err != nil {
		return err
	}
	return db.commit(b)
}

// Get returns a copy of the value for key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// Keys returns every key starting with prefix, in order.
func (db *DB) Keys(prefix []byte) ([]string, error) {
	it, err := db.inner.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []string
	for ok := it.First(); ok; ok = it.Next() {
		out = append(out, string(it.Key()))
	}
	return out, it.Error()
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
