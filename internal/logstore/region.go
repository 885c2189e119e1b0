package logstore

import (
	"encoding/binary"
	"fmt"

	"github.com/rzbill/ringlog/internal/record"
)

// Region layout (little-endian):
//
//	[0:4)   magic
//	[4:8)   version
//	[8:12)  capacity
//	[12:16) write cursor
//	[16:20) read cursor
//	[20:24) pending count
//	[24:28) overwritten count
//	[28: )  capacity x record.Size slots, indexed circularly
const (
	HeaderSize = 28

	offMagic       = 0
	offVersion     = 4
	offCapacity    = 8
	offWrite       = 12
	offRead        = 16
	offPending     = 20
	offOverwritten = 24

	// Magic marks an initialised region.
	Magic uint32 = 0x123456
)

// RegionSize is the number of bytes a region of capacity slots occupies.
func RegionSize(capacity int) int { return HeaderSize + capacity*record.Size }

// Region is the header and record slots of a ring buffer in one flat byte
// slice, so it can live in memory that outlasts the process (a mapped file,
// a persisted image) and be picked up again on warm start.
type Region struct {
	buf      []byte
	capacity uint32
}

// NewRegion allocates a zeroed region for capacity slots.
func NewRegion(capacity int) (*Region, error) {
	return WrapRegion(make([]byte, RegionSize(capacity)), capacity)
}

// WrapRegion uses b as the backing store for a region of capacity slots.
// b must be exactly RegionSize(capacity) bytes; its content is left as is so
// Open can decide between a cold and a warm start.
func WrapRegion(b []byte, capacity int) (*Region, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("logstore: capacity must be at least 1, got %d", capacity)
	}
	if len(b) != RegionSize(capacity) {
		return nil, fmt.Errorf("logstore: region is %d bytes, want %d for capacity %d", len(b), RegionSize(capacity), capacity)
	}
	return &Region{buf: b, capacity: uint32(capacity)}, nil
}

// Bytes returns the backing slice. Callers must not write to it while a
// Store is using the region.
func (r *Region) Bytes() []byte { return r.buf }

// Capacity is the number of record slots.
func (r *Region) Capacity() int { return int(r.capacity) }

func (r *Region) u32(off int) uint32      { return binary.LittleEndian.Uint32(r.buf[off : off+4]) }
func (r *Region) put32(off int, v uint32) { binary.LittleEndian.PutUint32(r.buf[off:off+4], v) }

func (r *Region) magic() uint32       { return r.u32(offMagic) }
func (r *Region) version() uint32     { return r.u32(offVersion) }
func (r *Region) storedCap() uint32   { return r.u32(offCapacity) }
func (r *Region) write() uint32       { return r.u32(offWrite) }
func (r *Region) read() uint32        { return r.u32(offRead) }
func (r *Region) pending() uint32     { return r.u32(offPending) }
func (r *Region) overwritten() uint32 { return r.u32(offOverwritten) }

func (r *Region) setWrite(v uint32)       { r.put32(offWrite, v) }
func (r *Region) setRead(v uint32)        { r.put32(offRead, v) }
func (r *Region) setPending(v uint32)     { r.put32(offPending, v) }
func (r *Region) setOverwritten(v uint32) { r.put32(offOverwritten, v) }

// advance moves a cursor one slot forward, wrapping at capacity.
func (r *Region) advance(i uint32) uint32 { return (i + 1) % r.capacity }

func (r *Region) slot(i uint32) []byte {
	off := HeaderSize + int(i)*record.Size
	return r.buf[off : off+record.Size]
}

func (r *Region) get(i uint32) record.Record      { return record.Get(r.slot(i)) }
func (r *Region) set(i uint32, rec record.Record) { rec.Put(r.slot(i)) }

// valid reports whether the header describes an initialised region of this
// shape and version with cursors in range.
func (r *Region) valid(version uint32) bool {
	return r.magic() == Magic &&
		r.version() == version &&
		r.storedCap() == r.capacity &&
		r.write() < r.capacity &&
		r.read() < r.capacity &&
		r.pending() <= r.capacity
}

// reset zeroes the region and writes a fresh header.
func (r *Region) reset(version uint32) {
	for i := range r.buf {
		r.buf[i] = 0
	}
	r.put32(offVersion, version)
	r.put32(offCapacity, r.capacity)
	// magic last: a torn reset must not look initialised
	r.put32(offMagic, Magic)
}

// Header is a point-in-time copy of the region header.
type Header struct {
	Magic       uint32 `json:"magic"`
	Version     uint32 `json:"version"`
	Capacity    uint32 `json:"capacity"`
	WriteCursor uint32 `json:"writeCursor"`
	ReadCursor  uint32 `json:"readCursor"`
	Pending     uint32 `json:"pending"`
	Overwritten uint32 `json:"overwritten"`
}

func (r *Region) header() Header {
	return Header{
		Magic:       r.magic(),
		Version:     r.version(),
		Capacity:    r.storedCap(),
		WriteCursor: r.write(),
		ReadCursor:  r.read(),
		Pending:     r.pending(),
		Overwritten: r.overwritten(),
	}
}
