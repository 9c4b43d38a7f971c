package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mwsmws22/glazewm-startup/internal/config"
	"github.com/mwsmws22/glazewm-startup/internal/util"
)

const watchDebounce = 250 * time.Millisecond

// watchAndReapply blocks watching the config file and invokes reapply with
// the freshly loaded config after each change, until the context ends.
// Editors replace files instead of writing in place, so the parent directory
// is watched and events are filtered by cleaned path.
func watchAndReapply(ctx context.Context, logger *util.Logger, cfgPath string, reapply func(*config.Config) error) error {
	target, err := filepath.Abs(cfgPath)
	if err != nil {
		return err
	}
	target = filepath.Clean(target)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}
	logger.Infof("watching %s", target)

	changes := make(chan struct{}, 1)
	go debounceEvents(ctx, watcher, target, changes, logger)

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				logger.Errorf("reload config: %v", err)
				continue
			}
			logger.Infof("config changed, re-applying layout")
			if err := reapply(cfg); err != nil {
				return err
			}
		}
	}
}

// debounceEvents coalesces bursts of filesystem events into single change
// notifications.
func debounceEvents(ctx context.Context, watcher *fsnotify.Watcher, target string, changes chan<- struct{}, logger *util.Logger) {
	defer close(changes)
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(watchDebounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case changes <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}
