// Package clock provides the microsecond time base for log records: a raw
// 32-bit monotonic counter, a stoppable timer over it, and an adapter that
// folds suspended time back in through an offset.
package clock

import (
	"sync"
	"time"
)

// Source is a raw monotonic microsecond counter. The value is allowed to
// wrap at 2^32.
type Source interface {
	Micros() uint32
}

// Monotonic reads the Go monotonic clock relative to its creation time.
type Monotonic struct {
	start time.Time
}

// NewMonotonic returns a Source starting at zero now.
func NewMonotonic() *Monotonic { return &Monotonic{start: time.Now()} }

// Micros truncates elapsed time to 32 bits, so it wraps roughly every 71.6
// minutes, like a hardware us counter.
func (m *Monotonic) Micros() uint32 {
	return uint32(time.Since(m.start).Microseconds())
}

// Timer measures running time over a Source. While stopped its reading is
// frozen and the stopped interval is not counted once restarted.
type Timer struct {
	mu      sync.Mutex
	src     Source
	running bool
	base    uint32 // source reading at the last Start
	acc     uint32 // time accumulated before the last Start
}

func NewTimer(src Source) *Timer { return &Timer{src: src} }

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.base = t.src.Micros()
	t.running = true
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.acc += t.src.Micros() - t.base
	t.running = false
}

// Reset zeroes the accumulated time, keeping the running state.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acc = 0
	t.base = t.src.Micros()
}

// Read returns the elapsed running time in microseconds, modulo 2^32.
func (t *Timer) Read() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return t.acc
	}
	return t.acc + (t.src.Micros() - t.base)
}

// Adapter is the clock the log store reads. Now is the timer reading plus an
// offset that Resume grows by the interval spent suspended.
//
// Suspend and Resume are not synchronised with Now callers; no append may run
// concurrently across a suspend/resume boundary.
type Adapter struct {
	timer  *Timer
	offset uint32
}

// NewAdapter resets and starts a timer over src.
func NewAdapter(src Source) *Adapter {
	t := NewTimer(src)
	t.Start()
	return &Adapter{timer: t}
}

// Now returns the current log timestamp in microseconds.
func (a *Adapter) Now() uint32 { return a.timer.Read() + a.offset }

// Suspend stops the clock.
func (a *Adapter) Suspend() { a.timer.Stop() }

// Resume adds interval (us since Suspend, or 0 if unknown) to the offset and
// restarts the clock.
func (a *Adapter) Resume(interval uint32) {
	a.offset += interval
	a.timer.Start()
}

// Restart zeroes the timer and the offset, as on log initialisation.
func (a *Adapter) Restart() {
	a.timer.Reset()
	a.offset = 0
	a.timer.Start()
}

// Halt stops the clock for good, as on log shutdown.
func (a *Adapter) Halt() { a.timer.Stop() }

// Manual is a settable Source for tests and simulations.
type Manual struct {
	mu  sync.Mutex
	now uint32
}

func (m *Manual) Micros() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the counter to v, which may be lower than before (a wrap).
func (m *Manual) Set(v uint32) {
	m.mu.Lock()
	m.now = v
	m.mu.Unlock()
}

// Advance moves the counter forward by d microseconds.
func (m *Manual) Advance(d uint32) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()
}
