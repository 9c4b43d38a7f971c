package state

import "context"

// Container types reported by the window manager.
const (
	TypeWorkspace = "workspace"
	TypeSplit     = "split"
	TypeWindow    = "window"
)

// Container is one node of the live window-manager tree. Trees are ephemeral:
// ids stay stable for a window's lifetime but structure and split ids change
// after every mutating command, so callers re-query instead of diffing.
type Container struct {
	Type            string
	ID              string
	Name            string
	Title           string
	ProcessName     string
	TilingSize      float64
	TilingDirection string
	HasFocus        bool
	Children        []Container
}

// Snapshot is the full live tree at one point in time.
type Snapshot struct {
	Workspaces       []Container
	FocusedWorkspace string
}

// DataSource abstracts the queries needed to observe the window manager.
type DataSource interface {
	QueryWorkspaces(ctx context.Context) (Snapshot, error)
}

// FindAllWindows collects every window under c in depth-first child order.
// Splits and workspaces are traversed transparently and never returned.
func FindAllWindows(c Container) []Container {
	var windows []Container
	var walk func(Container)
	walk = func(node Container) {
		if node.Type == TypeWindow {
			windows = append(windows, node)
			return
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(c)
	return windows
}

// ChildAtPath descends from c by child indexes. An empty path returns c.
func ChildAtPath(c Container, path []int) (Container, bool) {
	node := c
	for _, idx := range path {
		if idx < 0 || idx >= len(node.Children) {
			return Container{}, false
		}
		node = node.Children[idx]
	}
	return node, true
}

// NormalizedSizes converts raw sibling tiling sizes into ratios summing to 1.
// The manager reports sizes in arbitrary units, so each is divided by the
// sibling sum. A zero sum yields all zeros.
func NormalizedSizes(children []Container) []float64 {
	ratios := make([]float64, len(children))
	var sum float64
	for _, child := range children {
		sum += child.TilingSize
	}
	if sum == 0 {
		return ratios
	}
	for i, child := range children {
		ratios[i] = child.TilingSize / sum
	}
	return ratios
}

// WorkspaceByName returns the named workspace from the snapshot, or nil.
func (s Snapshot) WorkspaceByName(name string) *Container {
	for i := range s.Workspaces {
		if s.Workspaces[i].Name == name {
			return &s.Workspaces[i]
		}
	}
	return nil
}
