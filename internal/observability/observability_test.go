package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	otellog "go.opentelemetry.io/otel/log"
)

func TestInstrumentLocalFormats(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelInfo, Format: "json", Output: &buf})
		if err != nil {
			t.Fatalf("Instrument: %v", err)
		}
		defer func() { _ = shutdown(context.Background()) }()

		slog.Debug("hidden")
		slog.Info("visible", "model", "claude-3")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected 1 record, got %d: %q", len(lines), buf.String())
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
			t.Fatalf("record is not JSON: %v", err)
		}
		if record["msg"] != "visible" || record["model"] != "claude-3" {
			t.Errorf("unexpected record: %v", record)
		}
	})

	t.Run("text at debug", func(t *testing.T) {
		var buf bytes.Buffer
		if _, err := Instrument(context.Background(), Options{Level: slog.LevelDebug, Format: "text", Output: &buf}); err != nil {
			t.Fatalf("Instrument: %v", err)
		}

		slog.Debug("injected thinking", "budget_tokens", 11904)

		if !strings.Contains(buf.String(), "budget_tokens=11904") {
			t.Errorf("debug record missing: %q", buf.String())
		}
	})
}

func TestInstrumentRejectsUnknownOptions(t *testing.T) {
	if _, err := Instrument(context.Background(), Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := Instrument(context.Background(), Options{Exporter: "kafka"}); err == nil {
		t.Error("expected error for unknown exporter")
	}
}

func TestLevelSeverity(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  otellog.Severity
	}{
		{slog.LevelDebug, otellog.SeverityDebug},
		{slog.LevelInfo, otellog.SeverityInfo},
		{slog.LevelWarn, otellog.SeverityWarn},
		{slog.LevelError, otellog.SeverityError},
	}

	for _, tt := range tests {
		if got := levelSeverity(tt.level).Severity(); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFanoutHandler(t *testing.T) {
	var debugBuf, warnBuf bytes.Buffer
	h := fanoutHandler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger := slog.New(h).With("request_id", "r-1")

	logger.Debug("only debug")
	logger.Warn("both")

	if !strings.Contains(debugBuf.String(), "only debug") || !strings.Contains(debugBuf.String(), "both") {
		t.Errorf("debug handler missing records: %q", debugBuf.String())
	}
	if strings.Contains(warnBuf.String(), "only debug") {
		t.Errorf("warn handler received debug record: %q", warnBuf.String())
	}
	if !strings.Contains(warnBuf.String(), "request_id=r-1") {
		t.Errorf("attrs not propagated: %q", warnBuf.String())
	}
}
