package events

import (
	"strings"
	"testing"
)

func TestBuiltinTableMatchesCodes(t *testing.T) {
	tab := Default()
	if tab.Len() != int(FirstApp) {
		t.Fatalf("table has %d names, codes end at %d", tab.Len(), FirstApp)
	}
	checks := map[Code]string{
		LogStart:              "LOG_START",
		LogEntriesOverwritten: "LOG_ENTRIES_OVERWRITTEN",
		LogTimeWrap:           "LOG_TIME_WRAP",
		TCPSendTimeout:        "TCP_SEND_TIMEOUT",
		User9:                 "USER_9",
	}
	for c, want := range checks {
		if got := tab.Bare(c); got != want {
			t.Fatalf("code %d: got %q want %q", c, got, want)
		}
	}
}

func TestFormatKnownEvent(t *testing.T) {
	got := Format(Default(), 1500, LogFileByteCount, 255)
	want := " 1.500:   LOG_FILE_BYTE_COUNT [10] 255 (0xff)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFormatHexParameter(t *testing.T) {
	tests := []struct {
		param int32
		want  string
	}{
		{0, "0 (0)"},
		{11, "11 (0xb)"},
		{-1, "-1 (0xffffffff)"},
	}
	for _, tt := range tests {
		got := Format(Default(), 0, LogStop, tt.param)
		if !strings.HasSuffix(got, tt.want) {
			t.Fatalf("param %d: got %q want suffix %q", tt.param, got, tt.want)
		}
	}
}

func TestFormatOutOfRange(t *testing.T) {
	got := Format(Default(), 2000, Code(999), 1)
	if !strings.Contains(got, "out of range") || !strings.Contains(got, "999") {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Format(Default(), 0, Code(-1), 0); !strings.Contains(got, "out of range") {
		t.Fatalf("negative code should be out of range: %q", got)
	}
}

func TestParseTable(t *testing.T) {
	tab, err := ParseTable([]byte(`{"version":4,"events":["APP_BOOT","*APP_SENSOR_FAULT"]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tab.Version() != 4 {
		t.Fatalf("version: %d", tab.Version())
	}
	c, ok := tab.Lookup("APP_SENSOR_FAULT")
	if !ok || c != FirstApp+1 {
		t.Fatalf("lookup: %v %v", c, ok)
	}
	if tab.Name(c) != "* APP_SENSOR_FAULT" {
		t.Fatalf("failure marker not kept: %q", tab.Name(c))
	}
	if tab.Name(FirstApp) != "  APP_BOOT" {
		t.Fatalf("pad not applied: %q", tab.Name(FirstApp))
	}
}

func TestParseTableErrors(t *testing.T) {
	for _, in := range []string{`{`, `{"events":"x"}`, `{"events":[1]}`, `{"events":[""]}`, `{"version":"a"}`} {
		if _, err := ParseTable([]byte(in)); err == nil {
			t.Fatalf("expected error for %s", in)
		}
	}
}
