package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestWithLogger_FromContext(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := WithLogger(context.Background(), l)

	retrieved := FromContext(ctx)
	if retrieved != l {
		t.Fatal("FromContext did not return the stored logger")
	}

	retrieved.Info("test message")
	if buf.Len() == 0 {
		t.Error("Logger from context should produce output")
	}
}

func TestFromContext_Default(t *testing.T) {
	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("FromContext without logger should return slog.Default()")
	}

	ctx := WithLogger(context.Background(), nil)
	if got := FromContext(ctx); got != slog.Default() {
		t.Error("FromContext with nil logger should return slog.Default()")
	}
}

func TestContextKeyCollision(t *testing.T) {
	l := Discard()
	ctx := context.WithValue(context.Background(), "mtls.logger", "not a logger") //nolint:staticcheck
	ctx = WithLogger(ctx, l)

	if FromContext(ctx) != l {
		t.Error("string key should not collide with the typed logger key")
	}
}
