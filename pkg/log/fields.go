package log

import "time"

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field from an arbitrary value.
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

func Str(key, value string) Field                { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Uint32(key string, value uint32) Field      { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Err attaches an error under the "error" key. A nil error yields an empty
// string so the key is still present.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component tags an entry with the emitting component.
func Component(name string) Field { return Field{Key: ComponentKey, Value: name} }
