package pebblestore

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T, dir string) (*DB, *Counters) {
	t.Helper()
	metrics := &Counters{}
	db, err := Open(Options{
		DataDir:       dir,
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db, metrics
}

func TestCRUD(t *testing.T) {
	db, metrics := newTestDB(t, t.TempDir())
	defer db.Close()

	if err := db.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q", got)
	}
	s := metrics.Snapshot()
	if s.Reads != 1 || s.ReadBytes != 2 || s.Commits != 1 {
		t.Fatalf("metrics %+v", s)
	}
	if err := db.Delete([]byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestRegionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	db, _ := newTestDB(t, dir)
	image := bytes.Repeat([]byte{0xab}, 64)
	if err := db.Region("main").SaveRegion(image); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, _ = newTestDB(t, dir)
	defer db.Close()
	got, err := db.Region("main").Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(got, image) {
		t.Fatalf("image changed")
	}
	infos, err := db.Regions()
	if err != nil {
		t.Fatalf("regions: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "main" || infos[0].Size != 64 || infos[0].SavedAt.IsZero() {
		t.Fatalf("infos %+v", infos)
	}
}

func TestLoadMissingRegion(t *testing.T) {
	db, _ := newTestDB(t, t.TempDir())
	defer db.Close()
	got, err := db.Region("none").Load()
	if got != nil || err != nil {
		t.Fatalf("got %v err=%v", got, err)
	}
	if err := db.DeleteRegion("none"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestKeysPrefix(t *testing.T) {
	db, _ := newTestDB(t, t.TempDir())
	defer db.Close()
	for _, k := range []string{"a/1", "a/2", "b/1"} {
		if err := db.Set([]byte(k), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := db.Keys([]byte("a/"))
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "a/1" || keys[1] != "a/2" {
		t.Fatalf("keys %v", keys)
	}
}

func TestParseFsyncMode(t *testing.T) {
	tests := []struct {
		in   string
		want FsyncMode
		err  bool
	}{
		{"", FsyncModeUnspecified, false},
		{"always", FsyncModeAlways, false},
		{"interval", FsyncModeInterval, false},
		{"never", FsyncModeNever, false},
		{"sometimes", FsyncModeUnspecified, true},
	}
	for _, tt := range tests {
		got, err := ParseFsyncMode(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Fatalf("%q: got %v err=%v", tt.in, got, err)
		}
	}
}
