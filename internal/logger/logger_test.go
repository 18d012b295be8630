package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	sub := log.WithComponent("ledger")
	sub.Info().Str("key", "sonarr:1:1:2").Msg("recorded")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "ledger" {
		t.Errorf("component = %v, want ledger", line["component"])
	}
	if line["message"] != "recorded" {
		t.Errorf("message = %v, want recorded", line["message"])
	}
}

func TestNew_WritesRotatedFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Path: dir, Output: &buf})
	log.Info().Msg("hello")
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "seadexarr.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !bytes.Contains(data, []byte("hello")) {
		t.Errorf("log file missing message: %q", data)
	}
}

func TestRecentLogs_TeeAndFilter(t *testing.T) {
	recent := NewRecentLogs(3)
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "console", Output: &buf, Tee: recent})

	comp := log.WithComponent("orchestrator")
	comp.Debug().Msg("one")
	log.Info().Str("title", "Frieren").Msg("two")
	log.Warn().Msg("three")
	log.Error().Msg("four")

	all := recent.Entries(0, "")
	if len(all) != 3 {
		t.Fatalf("expected 3 buffered entries, got %d", len(all))
	}
	if all[0].Message != "two" || all[0].Fields["title"] != "Frieren" {
		t.Errorf("oldest entry should be 'two' with title field, got %+v", all[0])
	}

	warn := recent.Entries(0, "warn")
	if len(warn) != 2 || warn[0].Message != "three" {
		t.Errorf("expected warn and error entries, got %+v", warn)
	}

	last := recent.Entries(1, "")
	if len(last) != 1 || last[0].Message != "four" {
		t.Errorf("expected newest entry, got %+v", last)
	}
}

func TestRingBuffer_Overwrites(t *testing.T) {
	rb := NewRingBuffer[int](2)
	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	got := rb.GetAll()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("GetAll() = %v, want [2 3]", got)
	}
	if rb.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rb.Len())
	}
	if newest := rb.Newest(1); len(newest) != 1 || newest[0] != 3 {
		t.Errorf("Newest(1) = %v, want [3]", newest)
	}
	if all := rb.Newest(0); len(all) != 2 || all[0] != 3 || all[1] != 2 {
		t.Errorf("Newest(0) = %v, want [3 2]", all)
	}
	if last, ok := rb.Last(); !ok || last != 3 {
		t.Errorf("Last() = %d, %v, want 3, true", last, ok)
	}
}

func TestRingBuffer_Empty(t *testing.T) {
	rb := NewRingBuffer[string](3)
	if _, ok := rb.Last(); ok {
		t.Error("Last() on empty buffer reported an item")
	}
	if got := rb.GetAll(); len(got) != 0 {
		t.Errorf("GetAll() = %v, want empty", got)
	}
	rb.Push("a")
	if last, ok := rb.Last(); !ok || last != "a" {
		t.Errorf("Last() = %q, %v, want a, true", last, ok)
	}
}
