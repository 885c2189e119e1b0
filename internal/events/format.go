package events

import (
	"fmt"
	"io"
)

// Format renders one record the way dumps print it: the timestamp in ms with
// three decimals, the event name, its code, and the parameter in decimal and
// hex. Codes without a name are reported as out of range.
func Format(t *Table, timestampUs uint32, code Code, param int32) string {
	ms := float64(timestampUs) / 1000
	if !t.InRange(code) {
		return fmt.Sprintf("%.3f: out of range event %d (max %d)", ms, int32(code), t.Len()-1)
	}
	return fmt.Sprintf("%6.3f: %s [%d] %d (%s)", ms, t.Name(code), int32(code), param, hex(param))
}

// hex follows C's %#x: zero prints without the 0x prefix.
func hex(v int32) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%#x", uint32(v))
}

// Fprint writes a formatted record followed by a newline.
func Fprint(w io.Writer, t *Table, timestampUs uint32, code Code, param int32) error {
	_, err := io.WriteString(w, Format(t, timestampUs, code, param)+"\n")
	return err
}
