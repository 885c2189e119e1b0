package events

import (
	"fmt"
	"os"

	"github.com/valyala/fastjson"
)

// ParseTable builds a table from the built-ins plus application names given
// as JSON:
//
//	{"version": 3, "events": ["APP_BUTTON_PRESSED", "*APP_SENSOR_FAULT"]}
func ParseTable(data []byte) (*Table, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("events: parse table: %w", err)
	}
	version := Version
	if vv := v.Get("version"); vv != nil {
		n, err := vv.Int()
		if err != nil {
			return nil, fmt.Errorf("events: version: %w", err)
		}
		version = n
	}
	var names []string
	if ev := v.Get("events"); ev != nil {
		arr, err := ev.Array()
		if err != nil {
			return nil, fmt.Errorf("events: events must be an array: %w", err)
		}
		for i, item := range arr {
			b, err := item.StringBytes()
			if err != nil {
				return nil, fmt.Errorf("events: entry %d: %w", i, err)
			}
			if len(b) == 0 {
				return nil, fmt.Errorf("events: entry %d is empty", i)
			}
			names = append(names, string(b))
		}
	}
	return Default().Extend(version, names...), nil
}

// LoadTable reads ParseTable input from path. An empty path yields Default.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTable(b)
}
