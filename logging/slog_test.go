package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerWritesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	log.With("component", "engine").Warn(context.Background(), "hash upgrade failed", "account", "a1")

	out := buf.String()
	for _, want := range []string{"hash upgrade failed", "component=engine", "account=a1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q: %s", want, out)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	log := Nop()
	// Must not panic and With must keep returning a usable logger.
	log.With("k", "v").Error(context.Background(), "ignored")
}
