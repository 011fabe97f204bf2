package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	if id := RequestID(ctx); id != "" {
		t.Errorf("RequestID on empty context = %q", id)
	}
	if id := RequestID(WithRequestID(ctx, "abc")); id != "abc" {
		t.Errorf("RequestID = %q, want abc", id)
	}
}

func TestEventHelpers(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := WithOperation(WithTicket(zerolog.New(&buf), 100001), "close_position")

	LogOrder(logger, "DEAL", "EURUSD", "SELL", 0.1, "DONE")
	LogTerminalCall(logger, "order_send", 3*time.Millisecond, errors.New("boom"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d log lines: %s", len(lines), buf.String())
	}

	var order map[string]interface{}
	if err := json.Unmarshal(lines[0], &order); err != nil {
		t.Fatal(err)
	}
	if order["event"] != "order" || order["retcode"] != "DONE" || order["ticket"] != float64(100001) || order["operation"] != "close_position" {
		t.Errorf("order event = %v", order)
	}

	var call map[string]interface{}
	if err := json.Unmarshal(lines[1], &call); err != nil {
		t.Fatal(err)
	}
	if call["method"] != "order_send" || call["error"] != "boom" || call["message"] != "Terminal call failed" {
		t.Errorf("terminal call event = %v", call)
	}
}
