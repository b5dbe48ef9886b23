package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// WatchParent monitors for parent process death in a background goroutine
// and calls cancelFn when the parent pid changes, so a stdio server does not
// outlive the client that spawned it.
//
// It must not read from stdin: the stdio transport owns it.
func WatchParent(ctx context.Context, interval time.Duration, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					slog.Warn("parent process died, shutting down", "component", "mcp", "ppid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
