package mcp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchParent_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	WatchParent(ctx, time.Millisecond, func() { called.Store(true) })

	time.Sleep(20 * time.Millisecond)
	if called.Load() {
		t.Error("cancelFn called after the context was done")
	}
}

func TestWatchParent_ParentAlive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var called atomic.Bool
	WatchParent(ctx, time.Millisecond, func() { called.Store(true) })

	time.Sleep(20 * time.Millisecond)
	if called.Load() {
		t.Error("cancelFn called while the parent process is alive")
	}
}
