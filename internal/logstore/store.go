package logstore

import (
	"io"
	"sync"

	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
)

// Clock supplies record timestamps in microseconds.
type Clock interface {
	Now() uint32
	Suspend()
	Resume(intervalUs uint32)
}

// Persister receives a copy of the region image on Checkpoint.
type Persister interface {
	SaveRegion(image []byte) error
}

// Options configures a Store.
type Options struct {
	// Version is the event table version. A region written with a different
	// version is reinitialised. Defaults to events.Version.
	Version int
	// Strict makes Log take the store lock like LogX. This is the
	// strictly-safe alternative to the default relaxed writer.
	Strict bool
	// Persister, if set, is used by Checkpoint.
	Persister Persister
	// Echo, if set, receives each appended record as a text line.
	Echo io.Writer
	// Table names events in echoed lines. Defaults to events.Default().
	Table *events.Table
	// PrintOnly echoes records without storing them; the ring stays empty.
	// It has no effect without Echo.
	PrintOnly bool
}

// Store is a bounded, overwrite-on-full ring buffer of records living in a
// Region. It owns all mutation of the region cursors and counters.
//
// Lock discipline: LogX, Pop, the drains, Locked and Checkpoint serialise on
// one mutex. Log takes no lock (unless Options.Strict is set) and may race
// with the others; see Log.
type Store struct {
	mu        sync.Mutex
	region    *Region
	clock     Clock
	version   uint32
	strict    bool
	persister Persister

	echoMu    sync.Mutex
	echo      io.Writer
	table     *events.Table
	printOnly bool

	// last timestamp seen by append; process-local, not persisted
	last uint32
}

// Open attaches a Store to region. If the region header does not carry the
// expected magic, version and capacity, the region is zeroed and
// reinitialised (cold start, LOG_START is logged). Otherwise its cursors,
// counters and records are kept (warm start, LOG_START_AGAIN). The returned
// bool reports a warm start.
func Open(region *Region, clk Clock, opts Options) (*Store, bool) {
	version := uint32(opts.Version)
	if opts.Version == 0 {
		version = events.Version
	}
	s := &Store{
		region:    region,
		clock:     clk,
		version:   version,
		strict:    opts.Strict,
		persister: opts.Persister,
		echo:      opts.Echo,
		table:     opts.Table,
		printOnly: opts.PrintOnly && opts.Echo != nil,
	}
	if s.table == nil {
		s.table = events.Default()
	}
	warm := region.valid(version)
	if !warm {
		region.reset(version)
		s.LogX(events.LogStart, int32(version))
	} else {
		s.LogX(events.LogStartAgain, int32(version))
	}
	return s, warm
}

// Log appends an event without taking the store lock. It never blocks and is
// meant for the bulk of call sites. Concurrent Log callers, or Log racing a
// LogX/Pop/drain, can occasionally corrupt a record or a cursor update; the
// overwrite-on-full policy bounds the damage. Use LogX, or open the store
// with Options.Strict, where that matters more than latency.
func (s *Store) Log(event events.Code, param int32) {
	if s.strict {
		s.LogX(event, param)
		return
	}
	s.appendAt(s.clock.Now(), event, param)
}

// LogX appends an event under the store lock.
func (s *Store) LogX(event events.Code, param int32) {
	s.mu.Lock()
	s.appendAt(s.clock.Now(), event, param)
	s.mu.Unlock()
}

// appendAt writes one record stamped ts. If ts went backwards (the 32-bit
// clock wrapped), a LOG_TIME_WRAP marker carrying ts goes in first. last is
// updated before the nested call so the marker passes its own check and the
// recursion stops at depth one.
func (s *Store) appendAt(ts uint32, event events.Code, param int32) {
	if ts < s.last {
		s.last = ts
		s.appendAt(ts, events.LogTimeWrap, int32(ts))
	}
	s.last = ts
	rec := record.Record{Timestamp: ts, Event: event, Parameter: param}
	if s.echo != nil {
		s.echoRecord(rec)
	}
	if s.printOnly {
		return
	}
	s.put(rec)
}

// echoRecord writes rec to the echo writer. Write errors are ignored.
func (s *Store) echoRecord(rec record.Record) {
	s.echoMu.Lock()
	events.Fprint(s.echo, s.table, rec.Timestamp, rec.Event, rec.Parameter)
	s.echoMu.Unlock()
}

// put stores rec at the write cursor. When the buffer is already full the
// oldest record is discarded and counted as overwritten.
func (s *Store) put(rec record.Record) {
	r := s.region
	w := r.write()
	full := r.pending() >= r.capacity
	r.set(w, rec)
	r.setWrite(r.advance(w))
	if full {
		r.setRead(r.advance(r.read()))
		r.setOverwritten(r.overwritten() + 1)
	} else {
		r.setPending(r.pending() + 1)
	}
}

// next pops one record for a consumer, synthesising the overwritten marker
// ahead of the oldest record when data was lost. Caller holds mu and has
// checked pending > 0.
func (s *Store) next() record.Record {
	r := s.region
	rd := r.read()
	if n := r.overwritten(); n > 0 {
		r.setOverwritten(0)
		return record.Record{Timestamp: r.get(rd).Timestamp, Event: events.LogEntriesOverwritten, Parameter: int32(n)}
	}
	rec := r.get(rd)
	r.setRead(r.advance(rd))
	r.setPending(r.pending() - 1)
	return rec
}

// Pop copies up to len(dst) of the oldest records into dst, consuming them,
// and returns how many were copied. If records were overwritten since the
// last read, a LOG_ENTRIES_OVERWRITTEN record carrying the count comes
// first and counts towards len(dst).
func (s *Store) Pop(dst []record.Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(dst) && s.region.pending() > 0 {
		dst[n] = s.next()
		n++
	}
	return n
}

// TryDrain pops every pending record into fn without blocking: if the lock
// is held elsewhere it returns (0, false) at once. fn runs under the lock.
// If fn returns an error, draining stops; the record passed to the failing
// call is already consumed.
func (s *Store) TryDrain(fn func(record.Record) error) (int, bool, error) {
	if !s.mu.TryLock() {
		return 0, false, nil
	}
	defer s.mu.Unlock()
	n, err := s.drain(fn)
	return n, true, err
}

// Drain is TryDrain that waits for the lock.
func (s *Store) Drain(fn func(record.Record) error) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drain(fn)
}

func (s *Store) drain(fn func(record.Record) error) (int, error) {
	n := 0
	for s.region.pending() > 0 {
		if err := fn(s.next()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Locked runs fn under the store lock with a copy of the unread records,
// oldest first, without consuming them. LogX, Pop and drains wait until fn
// returns.
func (s *Store) Locked(fn func(unread []record.Record) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.unread())
}

// Unread returns a copy of the unread records without consuming them.
func (s *Store) Unread() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread()
}

func (s *Store) unread() []record.Record {
	r := s.region
	out := make([]record.Record, 0, r.pending())
	i := r.read()
	for k := uint32(0); k < r.pending(); k++ {
		out = append(out, r.get(i))
		i = r.advance(i)
	}
	return out
}

// Count returns the number of unread records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.region.pending())
}

// Overwritten returns the number of records lost since it was last
// reported.
func (s *Store) Overwritten() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.region.overwritten())
}

// Header returns a copy of the region header.
func (s *Store) Header() Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region.header()
}

// Capacity is the number of record slots.
func (s *Store) Capacity() int { return s.region.Capacity() }

// Suspend stops the log clock, e.g. before sleeping. Not synchronised: no
// append may run until Resume.
func (s *Store) Suspend() { s.clock.Suspend() }

// Resume restarts the log clock, adding intervalUs (the time spent
// suspended, or 0 if unknown) to all later timestamps.
func (s *Store) Resume(intervalUs uint32) { s.clock.Resume(intervalUs) }

// Checkpoint hands a copy of the region image to the configured Persister.
// It is a no-op without one.
func (s *Store) Checkpoint() error {
	if s.persister == nil {
		return nil
	}
	s.mu.Lock()
	image := append([]byte(nil), s.region.Bytes()...)
	s.mu.Unlock()
	return s.persister.SaveRegion(image)
}
