package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TextFormatter renders entries as a single human-readable line:
//
//	2026-10-17T09:00:00.000Z INFO  message key=value ...
type TextFormatter struct {
	// TimeFormat defaults to RFC3339 with milliseconds.
	TimeFormat string
	// ShowCaller appends the caller file:line.
	ShowCaller bool
}

func (f *TextFormatter) Format(e *Entry) ([]byte, error) {
	tf := f.TimeFormat
	if tf == "" {
		tf = "2006-01-02T15:04:05.000Z07:00"
	}
	var b bytes.Buffer
	b.WriteString(e.Timestamp.Format(tf))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s ", e.Level.String())
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	if e.Error != nil {
		fmt.Fprintf(&b, " error=%q", e.Error.Error())
	}
	if f.ShowCaller && e.Caller != "" {
		b.WriteString(" caller=")
		b.WriteString(e.Caller)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// JSONFormatter renders entries as one JSON object per line.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(e *Entry) ([]byte, error) {
	m := make(map[string]interface{}, len(e.Fields)+4)
	for k, v := range e.Fields {
		m[k] = v
	}
	m["time"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
	m["level"] = e.Level.String()
	m["msg"] = e.Message
	if e.Caller != "" {
		m["caller"] = e.Caller
	}
	if e.Error != nil {
		m["error"] = e.Error.Error()
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
