package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/mwsmws22/glazewm-startup/internal/util"
)

// Life-cycle event kinds emitted by the window manager.
const (
	EventWindowManaged    = "window_managed"
	EventWindowUnmanaged  = "window_unmanaged"
	EventWorkspaceUpdated = "workspace_updated"
)

// Event is a single life-cycle notification.
type Event struct {
	Kind    string
	Payload json.RawMessage
}

// Subscribe starts a long-lived event subscription for the given kinds and
// streams events until the returned stop function is called or the context
// is cancelled. The stop function is the unsubscribe handle.
func (c *Client) Subscribe(ctx context.Context, logger *util.Logger, kinds ...string) (<-chan Event, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	args := append([]string{"sub", "--events"}, kinds...)
	cmd := exec.CommandContext(subCtx, c.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("event stream pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("start event stream: %w", err)
	}
	events := make(chan Event)
	go func() {
		defer close(events)
		defer cmd.Wait()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Bytes()
			var envelope struct {
				Data struct {
					EventType string `json:"eventType"`
				} `json:"data"`
			}
			ev := Event{Payload: append(json.RawMessage(nil), line...)}
			if err := json.Unmarshal(line, &envelope); err == nil {
				ev.Kind = envelope.Data.EventType
			}
			select {
			case events <- ev:
			case <-subCtx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && subCtx.Err() == nil {
			logger.Warnf("event stream error: %v", err)
		}
	}()
	return events, cancel, nil
}
