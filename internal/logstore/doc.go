// Package logstore implements the in-memory event log: a fixed-capacity
// ring buffer of (timestamp, event, parameter) records in a flat Region,
// with a lock-free best-effort writer and a mutex-guarded one.
//
// # Overview
//
// The region starts with a header (magic, version, capacity, cursors,
// counters) followed by the record slots. Cursors are slot indices advanced
// modulo capacity. When the buffer is full a new record replaces the oldest
// one and the overwritten counter grows; consumers see that loss as a
// synthetic LOG_ENTRIES_OVERWRITTEN record ahead of the surviving data.
//
// Timestamps come from a Clock. If a reading is lower than the previous one
// the 32-bit counter wrapped, and a LOG_TIME_WRAP record is inserted before
// the record that noticed it.
//
// Usage
//
//	region, _ := logstore.NewRegion(500)
//	store, warm := logstore.Open(region, clock.NewAdapter(clock.NewMonotonic()), logstore.Options{})
//	_ = warm
//	store.Log(events.User0, 42)   // hot path, no lock
//	store.LogX(events.User1, 7)   // guarded
//	buf := make([]record.Record, 16)
//	n := store.Pop(buf)
//	_ = buf[:n]
package logstore
