package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_WithFieldsPromotesRideID(t *testing.T) {
	var buf bytes.Buffer
	log := New("ride-service", &buf, LevelDebug)

	log.WithFields(LogFields{"ride_id": "r-1", "status": "ARRIVING"}).Info("ride_status_changed", "status changed")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["ride_id"] != "r-1" {
		t.Fatalf("ride_id not promoted: %v", entry)
	}
	if entry["service"] != "ride-service" || entry["action"] != "ride_status_changed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["status"] != "ARRIVING" {
		t.Fatalf("status field missing: %v", entry)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("svc", &buf, LevelWarn)

	log.Debug("debug_action", "dropped")
	log.Info("info_action", "dropped")
	log.Warn("warn_action", "kept")
	log.Error("error_action", errors.New("boom"))

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}
	if lines[1]["level"] != string(LevelError) {
		t.Fatalf("unexpected level: %v", lines[1]["level"])
	}
	errEntry, ok := lines[1]["error"].(map[string]any)
	if !ok || errEntry["msg"] != "boom" {
		t.Fatalf("error entry missing: %v", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
