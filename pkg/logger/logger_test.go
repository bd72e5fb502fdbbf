package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextFieldsFlowThroughEntries(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-123")
	ctx = logg.WithCustomerID(ctx, "cust-9")
	logg.Info(ctx, "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not json: %v", err)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("missing request_id, got %v", entry)
	}
	if entry["customer_id"] != "cust-9" {
		t.Fatalf("missing customer_id, got %v", entry)
	}
	if entry["service"] != "test" {
		t.Fatalf("missing service field, got %v", entry)
	}
}

func TestErrorIncludesErrAndStack(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf})

	logg.Error(context.Background(), "boom", errors.New("kaput"))

	out := buf.String()
	if !strings.Contains(out, "kaput") {
		t.Fatalf("expected error message in output: %s", out)
	}
	if !strings.Contains(out, "stack") {
		t.Fatalf("expected stack field in output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "test", Output: &buf, Level: zerolog.WarnLevel})

	logg.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %s", buf.String())
	}

	logg.Warn(context.Background(), "kept")
	if buf.Len() == 0 {
		t.Fatal("warn should pass at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatal("expected debug level")
	}
	if ParseLevel("") != zerolog.InfoLevel {
		t.Fatal("expected info fallback for empty value")
	}
	if ParseLevel("garbage") != zerolog.InfoLevel {
		t.Fatal("expected info fallback for unknown value")
	}
}
