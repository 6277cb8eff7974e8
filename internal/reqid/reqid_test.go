package reqid

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestWithFrom(t *testing.T) {
	ctx := With(context.Background(), "abc-123")
	if id, ok := From(ctx); !ok || id != "abc-123" {
		t.Fatalf("From = %q, %v", id, ok)
	}
	if _, ok := From(context.Background()); ok {
		t.Fatalf("expected no id on a bare context")
	}
	if _, ok := From(With(context.Background(), "")); ok {
		t.Fatalf("empty id should not be stored")
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	Logger(With(context.Background(), "req-7"), base).Info("status stream opened")
	if !strings.Contains(buf.String(), `"request_id":"req-7"`) {
		t.Fatalf("log = %s", buf.String())
	}

	buf.Reset()
	if got := Logger(context.Background(), base); got != base {
		t.Fatalf("expected the base logger without a request id")
	}
}
