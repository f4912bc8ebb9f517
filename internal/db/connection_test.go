package db

import (
	"context"
	"testing"
	"time"
)

func TestQueryContextAppliesTimeout(t *testing.T) {
	conn := &Connection{queryTimeout: 30 * time.Second}

	ctx, cancel := conn.QueryContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline on the bounded context")
	}
	remaining := time.Until(deadline)
	if remaining <= 0 || remaining > 30*time.Second {
		t.Fatalf("deadline %v away, want within the configured 30s", remaining)
	}
}

func TestQueryContextZeroTimeoutPassesThrough(t *testing.T) {
	conn := &Connection{}

	ctx, cancel := conn.QueryContext(context.Background())
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected no deadline when no timeout is configured")
	}
	if ctx != context.Background() {
		t.Fatal("expected the caller context back unchanged")
	}
}

func TestQueryContextKeepsEarlierDeadline(t *testing.T) {
	conn := &Connection{queryTimeout: 30 * time.Second}

	parent, cancelParent := context.WithTimeout(context.Background(), time.Second)
	defer cancelParent()

	ctx, cancel := conn.QueryContext(parent)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if time.Until(deadline) > time.Second {
		t.Fatalf("deadline %v away, want the parent's tighter bound", time.Until(deadline))
	}
}
