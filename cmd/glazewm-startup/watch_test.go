package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwsmws22/glazewm-startup/internal/config"
	"github.com/mwsmws22/glazewm-startup/internal/util"
)

const watchTestConfig = `{
  "workspaces": [
    {
      "name": "1",
      "tilingDirection": "horizontal",
      "children": [
        {"type": "window", "application": "code", "tilingSize": 1}
      ]
    }
  ]
}`

func TestWatchAndReapplyTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(watchTestConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	applied := make(chan *config.Config, 1)
	done := make(chan error, 1)
	logger := util.NewLoggerWithWriter(util.LevelError, os.Stderr)
	go func() {
		done <- watchAndReapply(ctx, logger, path, func(cfg *config.Config) error {
			select {
			case applied <- cfg:
			default:
			}
			cancel()
			return nil
		})
	}()

	// Give the watcher time to register before touching the file.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte(watchTestConfig), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-applied:
		if len(cfg.Workspaces) != 1 || cfg.Workspaces[0].Name != "1" {
			t.Fatalf("unexpected reloaded config: %+v", cfg)
		}
	case <-ctx.Done():
		t.Fatalf("reapply was not triggered before timeout")
	}
	if err := <-done; err != nil {
		t.Fatalf("watchAndReapply returned error: %v", err)
	}
}

func TestRunCommandRejectsUnknownPhase(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run", "--phases", "teardown"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected unknown phase error")
	}
}
