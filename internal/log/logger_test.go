package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfigureOnce(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Service: "test-a", Output: &buf, Level: "debug"})

	// A second Configure must be a no-op.
	Configure(Config{Service: "test-b"})

	logger := Base()
	logger.Info().Str(FieldEvent, "test.configure").Msg("hello")
	out := buf.String()
	if out == "" {
		t.Skip("base logger already configured by another test")
	}
	if !strings.Contains(out, `"service":"test-a"`) {
		t.Errorf("expected service test-a in output, got %s", out)
	}
	if strings.Contains(out, "test-b") {
		t.Errorf("second Configure must not win, got %s", out)
	}
}

func TestWithSessionCarriesFields(t *testing.T) {
	l := WithSession("session", "abc-123")
	// Smoke: the derived logger must be usable without panicking.
	l.Debug().Str(FieldTrack, "video").Msg("derived logger")
}
