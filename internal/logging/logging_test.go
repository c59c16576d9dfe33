package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/keyxmakerx/catalog/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetup_ProductionWritesJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := setup(&buf, &config.Config{Env: "production", LogLevel: "info"})
	logger.Debug("hidden")
	logger.Info("visible", slog.String("media_id", "m1"))

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(out), &line); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", out, err)
	}
	if line["media_id"] != "m1" {
		t.Errorf("expected media_id attribute, got %v", line)
	}
}

func TestQueueLogger_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	ql := NewQueueLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	ql.Warn("broker ", "unreachable")

	out := buf.String()
	if !strings.Contains(out, "component=queue") {
		t.Errorf("expected component tag, got %q", out)
	}
	if !strings.Contains(out, "broker unreachable") {
		t.Errorf("expected joined message, got %q", out)
	}
}
