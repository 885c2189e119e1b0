package filestore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/logstore"
	"github.com/rzbill/ringlog/internal/record"
	"github.com/rzbill/ringlog/pkg/log"
)

const (
	// MaxFiles is the number of names probed: 0000.log to 0999.log.
	MaxFiles = 1000
	// DefaultMaxPathLen bounds the directory path accepted by Open.
	DefaultMaxPathLen = 240
	// Ext is the log file extension.
	Ext = ".log"
)

var (
	ErrPathTooLong = errors.New("filestore: directory path too long")
	ErrNoFreeName  = errors.New("filestore: no free log file name")
	ErrAlreadyOpen = errors.New("filestore: a log file is already open")
	ErrNotOpen     = errors.New("filestore: no log file open")
)

// Filter selects records for Dump and ReadAll. A nil Filter keeps all.
type Filter interface {
	Match(record.Record) bool
}

// Options configures Files.
type Options struct {
	// MaxPathLen bounds the directory path. Defaults to DefaultMaxPathLen.
	MaxPathLen int
	// FlushEvery is the number of drain cycles between flushes, where the
	// file is synced, closed and reopened in append mode. Defaults to 1.
	FlushEvery int
	Logger     log.Logger
}

// Files moves records from a Store into append-only log files named
// NNNN.log. At most one file is current.
//
// Lock order is Files.mu before the store lock.
type Files struct {
	mu    sync.Mutex
	store *logstore.Store
	table *events.Table
	opts  Options

	dir  string
	name string
	f    *os.File
	// drained records not yet written to f; kept across write failures
	pending []byte
	// drain cycles since the last flush
	cycles int
	// events to record once the store lock is free
	notes  []note
	logger log.Logger
}

type note struct {
	event events.Code
	param int32
}

// New returns Files draining store. table renders dumps.
func New(store *logstore.Store, table *events.Table, opts Options) *Files {
	if opts.MaxPathLen <= 0 {
		opts.MaxPathLen = DefaultMaxPathLen
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 1
	}
	if table == nil {
		table = events.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Files{store: store, table: table, opts: opts, logger: logger.WithComponent("filestore")}
}

// FileName returns the log file name for index i.
func FileName(i int) string { return fmt.Sprintf("%04d%s", i, Ext) }

// Open creates the next free NNNN.log in dir and makes it current. dir is
// created if missing. A trailing slash is ignored. Records left over from a
// file lost to an I/O error go first into the new file.
func (fs *Files) Open(dir string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.f != nil || fs.name != "" {
		return ErrAlreadyOpen
	}
	if len(dir) > 1 {
		dir = strings.TrimRight(dir, "/")
	}
	if dir == "" {
		return fmt.Errorf("filestore: empty directory")
	}
	if len(dir) > fs.opts.MaxPathLen {
		fs.store.LogX(events.LogFileOpenFailure, int32(len(dir)))
		return fmt.Errorf("%w: %d > %d", ErrPathTooLong, len(dir), fs.opts.MaxPathLen)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fs.store.LogX(events.DirOpenFailure, 0)
		return fmt.Errorf("filestore: create %s: %w", dir, err)
	}

	for i := 0; i < MaxFiles; i++ {
		name := FileName(i)
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			fs.store.LogX(events.LogFileOpenFailure, int32(i))
			fs.logger.Error("open log file failed", log.Str("file", name), log.Err(err))
			return fmt.Errorf("filestore: open %s: %w", name, err)
		}
		fs.dir, fs.name, fs.f = dir, name, f
		fs.cycles = 0
		fs.store.LogX(events.LogFileOpen, int32(i))
		fs.logger.Info("log file opened", log.Str("dir", dir), log.Str("file", name))
		return nil
	}
	fs.store.LogX(events.LogFileOpenFailure, MaxFiles)
	return ErrNoFreeName
}

// Current returns the name of the current file, or "" if none.
func (fs *Files) Current() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.name
}

// Dir returns the directory of the current (or last) file.
func (fs *Files) Dir() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.dir
}

// Drain writes all pending records to the current file. It returns at once,
// draining nothing, if no file is open or either lock is busy.
//
// A failed flush keeps the unwritten records and reopens the file in append
// mode. If that fails too the file is dropped: Current reports "" and the
// kept records go to the file made by the next Open.
func (fs *Files) Drain() (int, error) {
	if !fs.mu.TryLock() {
		return 0, nil
	}
	defer fs.mu.Unlock()
	if fs.f == nil {
		return 0, nil
	}

	n, ok, err := fs.store.TryDrain(fs.writeRecord)
	if !ok {
		return 0, nil
	}
	if err != nil {
		return n, err
	}

	fs.cycles++
	if fs.cycles >= fs.opts.FlushEvery {
		fs.cycles = 0
		err = fs.flushLocked()
	}
	fs.recordNotesLocked()
	return n, err
}

func (fs *Files) writeRecord(r record.Record) error {
	fs.pending = r.AppendTo(fs.pending)
	return nil
}

// index is the number in the current file name.
func (fs *Files) index() int32 {
	var i int32
	fmt.Sscanf(fs.name, "%04d", &i)
	return i
}

// writePendingLocked appends the kept records to the open file.
func (fs *Files) writePendingLocked() error {
	if len(fs.pending) == 0 {
		return nil
	}
	n, err := fs.f.Write(fs.pending)
	fs.pending = fs.pending[:copy(fs.pending, fs.pending[n:])]
	return err
}

// flushLocked writes, syncs, closes and reopens the current file in append
// mode. Failures are queued as ring events for recordNotesLocked, so it is
// safe to call under the store lock.
func (fs *Files) flushLocked() error {
	if fs.f == nil {
		return nil
	}
	err := fs.closeFileLocked()
	if err == nil {
		return fs.reopenLocked()
	}
	idx := fs.index()
	fs.notes = append(fs.notes, note{events.LogFileClose, idx})
	if rerr := fs.reopenLocked(); rerr != nil {
		return errors.Join(err, rerr)
	}
	fs.notes = append(fs.notes, note{events.LogFileOpen, idx})
	if werr := fs.writePendingLocked(); werr != nil {
		fs.logger.Error("rewrite after reopen failed", log.Str("file", fs.name), log.Err(werr))
	}
	return err
}

func (fs *Files) closeFileLocked() error {
	if fs.f == nil {
		return nil
	}
	werr := fs.writePendingLocked()
	serr := fs.f.Sync()
	cerr := fs.f.Close()
	fs.f = nil
	if err := errors.Join(werr, serr, cerr); err != nil {
		fs.logger.Error("close log file failed", log.Str("file", fs.name),
			log.Int("kept_bytes", len(fs.pending)), log.Err(err))
		return fmt.Errorf("filestore: close %s: %w", fs.name, err)
	}
	return nil
}

func (fs *Files) reopenLocked() error {
	f, err := os.OpenFile(filepath.Join(fs.dir, fs.name), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fs.logger.Error("reopen log file failed", log.Str("file", fs.name), log.Err(err))
		fs.notes = append(fs.notes, note{events.LogFileOpenFailure, fs.index()})
		fs.name = ""
		return fmt.Errorf("filestore: reopen: %w", err)
	}
	fs.f = f
	return nil
}

// recordNotesLocked logs queued failure events. Caller holds fs.mu but not
// the store lock.
func (fs *Files) recordNotesLocked() {
	for _, n := range fs.notes {
		fs.store.LogX(n.event, n.param)
	}
	fs.notes = fs.notes[:0]
}

// Close drains what is pending, flushes and closes the current file. The
// in-memory buffer is left as is.
func (fs *Files) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.f == nil {
		fs.name = ""
		return nil
	}
	// LOG_FILE_CLOSE is the last record in the file
	fs.store.LogX(events.LogFileClose, fs.index())
	_, derr := fs.store.Drain(fs.writeRecord)
	err := errors.Join(derr, fs.closeFileLocked())
	fs.logger.Info("log file closed", log.Str("file", fs.name))
	fs.name = ""
	return err
}

// Dump prints the records of the current file followed by the unread
// in-memory records, one line each. It holds the store lock throughout, so
// the file is complete and nothing is appended meanwhile.
func (fs *Files) Dump(w io.Writer, filter Filter) error {
	bw := bufio.NewWriter(w)
	err := fs.walk(filter, func(r record.Record) error {
		return events.Fprint(bw, fs.table, r.Timestamp, r.Event, r.Parameter)
	})
	if ferr := bw.Flush(); err == nil {
		err = ferr
	}
	return err
}

// ReadAll returns what Dump would print, as records.
func (fs *Files) ReadAll(filter Filter) ([]record.Record, error) {
	var out []record.Record
	err := fs.walk(filter, func(r record.Record) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

func (fs *Files) walk(filter Filter, fn func(record.Record) error) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer fs.recordNotesLocked()
	return fs.store.Locked(func(unread []record.Record) error {
		emit := func(r record.Record) error {
			if filter != nil && !filter.Match(r) {
				return nil
			}
			return fn(r)
		}
		// a failed flush keeps its records in pending, which is emitted below
		_ = fs.flushLocked()
		if fs.f != nil {
			recs, rerr := record.ReadFile(filepath.Join(fs.dir, fs.name))
			for _, r := range recs {
				if err := emit(r); err != nil {
					return err
				}
			}
			if rerr != nil && !errors.Is(rerr, record.ErrPartial) {
				return fmt.Errorf("filestore: read %s: %w", fs.name, rerr)
			}
		}
		// drained but not yet on disk
		for off := 0; off+record.Size <= len(fs.pending); off += record.Size {
			if err := emit(record.Get(fs.pending[off:])); err != nil {
				return err
			}
		}
		for _, r := range unread {
			if err := emit(r); err != nil {
				return err
			}
		}
		return nil
	})
}
