package ipc

import (
	"context"
	"strings"
	"testing"
)

const workspacesPayload = `{
  "success": true,
  "messageType": "client_response",
  "data": {
    "workspaces": [
      {
        "type": "workspace",
        "id": "ws-1",
        "name": "1",
        "tilingDirection": "Horizontal",
        "hasFocus": false,
        "children": [
          {
            "type": "window",
            "id": "w-a",
            "title": "editor",
            "processName": "code",
            "tilingSize": 0.5,
            "hasFocus": true
          },
          {
            "type": "split",
            "id": "s-1",
            "tilingDirection": "Vertical",
            "tilingSize": 0.5,
            "children": [
              {"type": "window", "id": "w-b", "processName": "wt", "tilingSize": 1}
            ]
          }
        ]
      },
      {
        "type": "workspace",
        "id": "ws-2",
        "name": "2",
        "tilingDirection": "Vertical",
        "hasFocus": false,
        "children": []
      }
    ]
  }
}`

func TestParseWorkspaces(t *testing.T) {
	snap, err := parseWorkspaces([]byte(workspacesPayload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snap.Workspaces) != 2 {
		t.Fatalf("expected 2 workspaces, got %d", len(snap.Workspaces))
	}
	ws := snap.Workspaces[0]
	if ws.TilingDirection != "horizontal" {
		t.Fatalf("expected lowercased direction, got %q", ws.TilingDirection)
	}
	if len(ws.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(ws.Children))
	}
	if ws.Children[1].TilingDirection != "vertical" {
		t.Fatalf("nested direction not lowercased: %q", ws.Children[1].TilingDirection)
	}
	if snap.FocusedWorkspace != "1" {
		t.Fatalf("focus should bubble up from nested window, got %q", snap.FocusedWorkspace)
	}
	if snap.Workspaces[1].Children != nil {
		t.Fatalf("empty children should decode as nil")
	}
}

func TestParseWorkspacesRejectsGarbage(t *testing.T) {
	if _, err := parseWorkspaces([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRunCommandReportsBinaryFailure(t *testing.T) {
	client := &Client{Binary: "/nonexistent/glazewm"}
	err := client.RunCommand(context.Background(), "focus --workspace 1", "")
	if err == nil {
		t.Fatalf("expected error for missing binary")
	}
	if !strings.Contains(err.Error(), "focus --workspace 1") {
		t.Fatalf("error should name the failing command, got: %v", err)
	}
}
