package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Options{Level: "warn", Format: "json"})

	log.Info().Msg("hidden")
	log.Warn().Str("task_id", "t1").Msg("skipped")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["task_id"] != "t1" || entry["message"] != "skipped" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != zerolog.DebugLevel {
		t.Error("expected debug")
	}
	if ParseLevel("nonsense") != zerolog.InfoLevel {
		t.Error("expected info default")
	}
}
