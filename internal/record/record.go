// Package record defines the fixed-width (timestamp, event, parameter) log
// record and its byte encoding, shared by the in-memory region, log files
// and the upload stream.
package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/rzbill/ringlog/internal/events"
)

// Size is the encoded size of a Record in bytes.
const Size = 12

// ErrPartial reports a trailing fragment shorter than Size at the end of a
// stream.
var ErrPartial = errors.New("record: partial record at end of stream")

// Record is one log entry. Timestamp is in microseconds since the log clock
// started.
type Record struct {
	Timestamp uint32
	Event     events.Code
	Parameter int32
}

// Put encodes r into dst, which must be at least Size bytes.
// Layout (little-endian): u32 timestamp | i32 event | i32 parameter.
func (r Record) Put(dst []byte) {
	_ = dst[Size-1]
	binary.LittleEndian.PutUint32(dst[0:4], r.Timestamp)
	binary.LittleEndian.PutUint32(dst[4:8], uint32(r.Event))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(r.Parameter))
}

// AppendTo appends the encoding of r to dst.
func (r Record) AppendTo(dst []byte) []byte {
	var b [Size]byte
	r.Put(b[:])
	return append(dst, b[:]...)
}

// Get decodes a record from src, which must be at least Size bytes.
func Get(src []byte) Record {
	_ = src[Size-1]
	return Record{
		Timestamp: binary.LittleEndian.Uint32(src[0:4]),
		Event:     events.Code(int32(binary.LittleEndian.Uint32(src[4:8]))),
		Parameter: int32(binary.LittleEndian.Uint32(src[8:12])),
	}
}

// Encode returns the concatenated encoding of recs.
func Encode(recs []Record) []byte {
	out := make([]byte, 0, len(recs)*Size)
	for _, r := range recs {
		out = r.AppendTo(out)
	}
	return out
}

// Reader decodes records from a byte stream.
type Reader struct {
	r   *bufio.Reader
	buf [Size]byte
}

func NewReader(r io.Reader) *Reader { return &Reader{r: bufio.NewReader(r)} }

// Next returns the next record. It returns io.EOF at a clean end of stream
// and ErrPartial if the stream ends inside a record.
func (rd *Reader) Next() (Record, error) {
	n, err := io.ReadFull(rd.r, rd.buf[:])
	switch {
	case err == nil:
		return Get(rd.buf[:]), nil
	case errors.Is(err, io.EOF):
		return Record{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF) && n > 0:
		return Record{}, ErrPartial
	default:
		return Record{}, err
	}
}

// ReadAll decodes every record in r. On ErrPartial the complete records read
// so far are returned alongside the error.
func ReadAll(r io.Reader) ([]Record, error) {
	rd := NewReader(r)
	var out []Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// ReadFile decodes every record in the file at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}
