package layout

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mwsmws22/glazewm-startup/internal/state"
)

// fakeWM simulates the window manager: it holds a mutable container tree and
// applies focus/toggle/set/move/resize/close semantics to it. Resizes scale
// the target child by a percentage of its own size, so sibling shares shift
// the way a real manager's do.
type fakeWM struct {
	workspaces       []state.Container
	focusedWorkspace string
	focusHistory     []string
	commands         []fakeCommand
	queries          int
	splitSeq         int

	// brokenToggle makes toggle-tiling-direction a no-op, for exercising the
	// bounded retry loop.
	brokenToggle bool
	// failCommands maps a command prefix to an error.
	failCommands map[string]error
}

type fakeCommand struct {
	command string
	target  string
}

func (f *fakeWM) QueryWorkspaces(context.Context) (state.Snapshot, error) {
	f.queries++
	snap := state.Snapshot{FocusedWorkspace: f.focusedWorkspace}
	for _, ws := range f.workspaces {
		snap.Workspaces = append(snap.Workspaces, cloneContainer(ws))
	}
	return snap, nil
}

func cloneContainer(c state.Container) state.Container {
	clone := c
	clone.Children = nil
	for _, child := range c.Children {
		clone.Children = append(clone.Children, cloneContainer(child))
	}
	return clone
}

func (f *fakeWM) RunCommand(_ context.Context, command string, targetID string) error {
	f.commands = append(f.commands, fakeCommand{command: command, target: targetID})
	for prefix, err := range f.failCommands {
		if strings.HasPrefix(command, prefix) {
			return err
		}
	}
	fields := strings.Fields(command)
	switch fields[0] {
	case "focus":
		switch fields[1] {
		case "--workspace":
			f.focusedWorkspace = fields[2]
		case "--container-id":
			f.focusHistory = append(f.focusHistory, fields[2])
		}
	case "toggle-tiling-direction":
		if f.brokenToggle {
			return nil
		}
		if ws := f.workspace(f.focusedWorkspace); ws != nil {
			if ws.TilingDirection == "horizontal" {
				ws.TilingDirection = "vertical"
			} else {
				ws.TilingDirection = "horizontal"
			}
		}
	case "set-tiling-direction":
		if node := f.find(targetID); node != nil {
			node.TilingDirection = fields[1]
		}
	case "move":
		return f.groupWithPreviousFocus(targetID)
	case "resize":
		return f.resize(targetID, fields[2])
	case "close":
		f.remove(targetID)
	}
	return nil
}

func (f *fakeWM) workspace(name string) *state.Container {
	for i := range f.workspaces {
		if f.workspaces[i].Name == name {
			return &f.workspaces[i]
		}
	}
	return nil
}

func (f *fakeWM) find(id string) *state.Container {
	for i := range f.workspaces {
		if found := findNode(&f.workspaces[i], id); found != nil {
			return found
		}
	}
	return nil
}

func findNode(c *state.Container, id string) *state.Container {
	if c.ID == id {
		return c
	}
	for i := range c.Children {
		if found := findNode(&c.Children[i], id); found != nil {
			return found
		}
	}
	return nil
}

func (f *fakeWM) parentOf(id string) (*state.Container, int) {
	for i := range f.workspaces {
		if parent, idx := findParent(&f.workspaces[i], id); parent != nil {
			return parent, idx
		}
	}
	return nil, -1
}

func findParent(c *state.Container, id string) (*state.Container, int) {
	for i := range c.Children {
		if c.Children[i].ID == id {
			return c, i
		}
		if parent, idx := findParent(&c.Children[i], id); parent != nil {
			return parent, idx
		}
	}
	return nil, -1
}

// groupWithPreviousFocus simulates "move --direction left": the moved window
// docks against the previously focused window, and the manager re-parents
// both under a fresh split. The new split's direction deliberately does not
// keep what was set on the first window beforehand.
func (f *fakeWM) groupWithPreviousFocus(idB string) error {
	if len(f.focusHistory) < 2 {
		return fmt.Errorf("no previous focus to dock against")
	}
	idA := f.focusHistory[len(f.focusHistory)-2]
	parentB, idxB := f.parentOf(idB)
	if parentB == nil {
		return fmt.Errorf("unknown container %s", idB)
	}
	nodeB := parentB.Children[idxB]
	parentB.Children = append(parentB.Children[:idxB], parentB.Children[idxB+1:]...)
	parentA, idxA := f.parentOf(idA)
	if parentA == nil {
		return fmt.Errorf("unknown container %s", idA)
	}
	nodeA := parentA.Children[idxA]
	f.splitSeq++
	split := state.Container{
		Type:            state.TypeSplit,
		ID:              "split-" + strconv.Itoa(f.splitSeq),
		TilingSize:      nodeA.TilingSize + nodeB.TilingSize,
		TilingDirection: "horizontal",
		Children:        []state.Container{nodeA, nodeB},
	}
	parentA.Children[idxA] = split
	return nil
}

func (f *fakeWM) resize(id string, amount string) error {
	amount = strings.TrimSuffix(amount, "%")
	pct, err := strconv.Atoi(amount)
	if err != nil {
		return fmt.Errorf("bad resize amount %q", amount)
	}
	node := f.find(id)
	if node == nil {
		return fmt.Errorf("unknown container %s", id)
	}
	scaled := node.TilingSize * (1 + float64(pct)/100)
	if scaled <= 0 {
		scaled = node.TilingSize / 2
	}
	node.TilingSize = scaled
	return nil
}

func (f *fakeWM) remove(id string) {
	if parent, idx := f.parentOf(id); parent != nil {
		parent.Children = append(parent.Children[:idx], parent.Children[idx+1:]...)
	}
}

func (f *fakeWM) countCommands(prefix string) int {
	total := 0
	for _, cmd := range f.commands {
		if strings.HasPrefix(cmd.command, prefix) {
			total++
		}
	}
	return total
}

func liveWindow(id string, size float64) state.Container {
	return state.Container{Type: state.TypeWindow, ID: id, TilingSize: size}
}
