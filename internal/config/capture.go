package config

import (
	"github.com/mwsmws22/glazewm-startup/internal/state"
)

// FromSnapshot converts a live window-manager snapshot into a config
// document, normalizing sibling sizes into ratios. Window titles become the
// launch target as a starting point for hand-editing; splits are kept as
// captured.
func FromSnapshot(snap state.Snapshot) Config {
	cfg := Config{Workspaces: make([]Workspace, 0, len(snap.Workspaces))}
	for _, ws := range snap.Workspaces {
		dir := ws.TilingDirection
		if dir == "" {
			dir = DirectionHorizontal
		}
		cfg.Workspaces = append(cfg.Workspaces, Workspace{
			Name:            ws.Name,
			TilingDirection: dir,
			Children:        captureChildren(ws.Children),
		})
	}
	return cfg
}

func captureChildren(children []state.Container) []Node {
	if len(children) == 0 {
		return nil
	}
	ratios := state.NormalizedSizes(children)
	nodes := make([]Node, 0, len(children))
	for i, child := range children {
		switch child.Type {
		case state.TypeSplit:
			nodes = append(nodes, Node{
				Type:            TypeSplit,
				TilingDirection: child.TilingDirection,
				TilingSize:      ratios[i],
				Children:        captureChildren(child.Children),
			})
		case state.TypeWindow:
			app := child.ProcessName
			if app == "" {
				app = child.Title
			}
			nodes = append(nodes, Node{
				Type:        TypeWindow,
				Title:       child.Title,
				Application: app,
				TilingSize:  ratios[i],
			})
		}
	}
	return nodes
}
