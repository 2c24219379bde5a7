package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf}).With(String("component", "layout"))

	log.Debug(context.Background(), "tick", Int("nodes", 3), Float("alpha", 0.5), Err(errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "tick" || entry["component"] != "layout" {
		t.Fatalf("entry = %v", entry)
	}
	if entry["nodes"] != float64(3) || entry["alpha"] != 0.5 || entry["error"] != "boom" {
		t.Fatalf("fields = %v", entry)
	}
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("output = %q", out)
	}
}

func TestErrNilIsEmpty(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != "" {
		t.Fatalf("Err(nil) = %+v", f)
	}
}

func TestEnsureRequestIDIsStable(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRequestID returned empty id")
	}
	_, again := EnsureRequestID(ctx)
	if again != id {
		t.Fatalf("second EnsureRequestID = %q, want %q", again, id)
	}
}

func TestWithSessionLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, log, id := WithSessionLogger(context.Background(), base)
	if id == "" || SessionIDFromContext(ctx) != id {
		t.Fatalf("session id = %q, context has %q", id, SessionIDFromContext(ctx))
	}
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("logger missing from context")
	}
	log.Info(ctx, "opened")
	if !strings.Contains(buf.String(), `"session_id":"`+id+`"`) {
		t.Fatalf("log line lacks session id: %s", buf.String())
	}

	// An existing session id is reused.
	_, _, reused := WithSessionLogger(ctx, nil)
	if reused != id {
		t.Fatalf("reused session id = %q, want %q", reused, id)
	}
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"", "info", "DEBUG", "warning", "error"} {
		if _, err := ParseLevel(name); err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", name, err)
		}
	}
	if _, err := ParseLevel("verbose"); !errors.Is(err, ErrUnknownLevel) {
		t.Fatalf("ParseLevel(verbose) err = %v, want ErrUnknownLevel", err)
	}
}
