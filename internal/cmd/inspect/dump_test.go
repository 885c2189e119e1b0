package inspect

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rzbill/ringlog/internal/events"
	"github.com/rzbill/ringlog/internal/record"
)

type paramAbove int32

func (p paramAbove) Match(r record.Record) bool { return r.Parameter > int32(p) }

func TestExpandAndDump(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"0001.log", "0000.log"} {
		b := record.Encode([]record.Record{{Timestamp: 1500, Event: events.User0, Parameter: int32(i)}})
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	paths, err := Expand([]string{dir})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "0000.log" {
		t.Fatalf("paths %v", paths)
	}

	var out bytes.Buffer
	if err := Dump(&out, paths, nil, nil); err != nil {
		t.Fatalf("dump: %v", err)
	}
	s := out.String()
	if strings.Count(s, "== ") != 2 || !strings.Contains(s, " 1.500:") {
		t.Fatalf("output:\n%s", s)
	}

	out.Reset()
	if err := Dump(&out, paths, nil, paramAbove(0)); err != nil {
		t.Fatal(err)
	}
	if strings.Count(out.String(), "USER_0") != 1 {
		t.Fatalf("filtered output:\n%s", out.String())
	}
}

func TestDumpTruncated(t *testing.T) {
	p := filepath.Join(t.TempDir(), "0000.log")
	b := record.Encode([]record.Record{{Event: events.User1}, {Event: events.User1}})
	if err := os.WriteFile(p, b[:20], 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := Dump(&out, []string{p}, nil, nil); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out.String(), "truncated") || strings.Count(out.String(), "USER_1") != 1 {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestOutOfRangeEvent(t *testing.T) {
	p := filepath.Join(t.TempDir(), "0000.log")
	b := record.Encode([]record.Record{{Timestamp: 2000, Event: 9999}})
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := Dump(&out, []string{p}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "out of range event 9999") {
		t.Fatalf("output:\n%s", out.String())
	}
}
