package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLog_RespectsEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetEnabled(false)

	SetEnabled(false)
	Log("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no output while disabled, got %q", buf.String())
	}

	SetEnabled(true)
	Log("visible %d", 2)
	LogIf(false, "skipped")
	LogIf(true, "kept")
	out := buf.String()
	if !strings.Contains(out, "visible 2") || !strings.Contains(out, "kept") {
		t.Errorf("missing expected lines in %q", out)
	}
	if strings.Contains(out, "skipped") {
		t.Errorf("LogIf(false) wrote output: %q", out)
	}
}

func TestLogEnterExit(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetEnabled(true)
	defer SetEnabled(false)

	LogEnterExit("export")()
	out := buf.String()
	if !strings.Contains(out, "-> export") || !strings.Contains(out, "<- export") {
		t.Errorf("expected enter/exit lines, got %q", out)
	}
}
