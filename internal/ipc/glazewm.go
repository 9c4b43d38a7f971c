package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mwsmws22/glazewm-startup/internal/state"
)

// Client wraps glazewm CLI shell-outs. It is the single window-manager
// session for a run; callers share it by reference and must not replace it
// mid-run.
type Client struct {
	Binary string
}

// NewClient returns a client using the glazewm binary on PATH.
func NewClient() *Client {
	return &Client{Binary: "glazewm"}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("glazewm %s: %v: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.Bytes(), nil
}

type rawContainer struct {
	Type            string         `json:"type"`
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Title           string         `json:"title"`
	ProcessName     string         `json:"processName"`
	TilingSize      float64        `json:"tilingSize"`
	TilingDirection string         `json:"tilingDirection"`
	HasFocus        bool           `json:"hasFocus"`
	Children        []rawContainer `json:"children"`
}

func (r rawContainer) toContainer() state.Container {
	children := make([]state.Container, 0, len(r.Children))
	for _, child := range r.Children {
		children = append(children, child.toContainer())
	}
	if len(children) == 0 {
		children = nil
	}
	return state.Container{
		Type:            r.Type,
		ID:              r.ID,
		Name:            r.Name,
		Title:           r.Title,
		ProcessName:     r.ProcessName,
		TilingSize:      r.TilingSize,
		TilingDirection: strings.ToLower(r.TilingDirection),
		HasFocus:        r.HasFocus,
		Children:        children,
	}
}

// QueryWorkspaces reads the current full container tree.
func (c *Client) QueryWorkspaces(ctx context.Context) (state.Snapshot, error) {
	data, err := c.run(ctx, "query", "workspaces")
	if err != nil {
		return state.Snapshot{}, err
	}
	return parseWorkspaces(data)
}

func parseWorkspaces(data []byte) (state.Snapshot, error) {
	var payload struct {
		Data struct {
			Workspaces []rawContainer `json:"workspaces"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode workspaces: %w", err)
	}
	snap := state.Snapshot{Workspaces: make([]state.Container, 0, len(payload.Data.Workspaces))}
	for _, ws := range payload.Data.Workspaces {
		container := ws.toContainer()
		if container.HasFocus || containsFocus(ws) {
			snap.FocusedWorkspace = container.Name
		}
		snap.Workspaces = append(snap.Workspaces, container)
	}
	return snap, nil
}

func containsFocus(r rawContainer) bool {
	if r.HasFocus {
		return true
	}
	for _, child := range r.Children {
		if containsFocus(child) {
			return true
		}
	}
	return false
}

// RunCommand issues an imperative mutation, optionally targeted at a
// container id. The command string uses the manager's own vocabulary, e.g.
// "focus --workspace 2" or "resize --width +3%".
func (c *Client) RunCommand(ctx context.Context, command string, targetID string) error {
	full := command
	if targetID != "" {
		full = fmt.Sprintf("%s --id %s", command, targetID)
	}
	_, err := c.run(ctx, "command", full)
	return err
}

var _ state.DataSource = (*Client)(nil)
