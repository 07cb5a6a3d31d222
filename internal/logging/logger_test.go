package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jordanella.com/screen-mapper/internal/events"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test").SetOutputs(&buf).SetMinLevel(LogLevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")
	logger.Error("failed", errors.New("cause"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("INFO written below WARN threshold")
	}
	if !strings.Contains(out, "WARN [test] shown") {
		t.Errorf("missing warning in %q", out)
	}
	if !strings.Contains(out, "| error=cause") {
		t.Errorf("missing error in %q", out)
	}
}

func TestLogger_ContextSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("test").SetOutputs(&buf)

	logger.InfoWithContext("tick", map[string]interface{}{"z": 1, "a": 2, "m": 3})
	if !strings.HasSuffix(buf.String(), "tick | a=2 m=3 z=1\n") {
		t.Errorf("context not sorted: %q", buf.String())
	}
}

func TestLogger_Named(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger("mapper").SetOutputs(&buf).SetMinLevel(LogLevelDebug)
	child := parent.Named("capture")

	child.Debug("started")
	if child.Component() != "mapper.capture" {
		t.Errorf("component = %q", child.Component())
	}
	if !strings.Contains(buf.String(), "DEBUG [mapper.capture] started") {
		t.Errorf("child output = %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		" Info ":  LogLevelInfo,
		"warning": LogLevelWarn,
		"ERROR":   LogLevelError,
		"verbose": LogLevelInfo,
		"":        LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestOpenLogFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mapper.log")

	for i := 0; i < 2; i++ {
		f, err := OpenLogFile(path)
		if err != nil {
			t.Fatalf("OpenLogFile: %v", err)
		}
		NewLogger("test").SetOutputs(f).Info("line")
		f.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "line\n"); n != 2 {
		t.Errorf("found %d lines, want 2", n)
	}
}

func TestEventLogger(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewEventBus(8)
	el := NewEventLogger(bus, NewLogger("events").SetOutputs(&buf))

	bus.Publish(events.NewSessionStartedEvent("out/01 02_10:00:00", 0, false))
	bus.Publish(events.NewErrorEvent("capture", "tick failed", errors.New("disk full")))
	bus.Stop()
	el.Close()

	out := buf.String()
	if !strings.Contains(out, "INFO [events] Event: session.started") {
		t.Errorf("missing session event in %q", out)
	}
	if !strings.Contains(out, "WARN [events] Event: error") || !strings.Contains(out, "error=disk full") {
		t.Errorf("missing error event in %q", out)
	}
}
