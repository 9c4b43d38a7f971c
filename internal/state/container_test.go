package state

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func window(id string) Container {
	return Container{Type: TypeWindow, ID: id}
}

func TestFindAllWindowsDepthFirstOrder(t *testing.T) {
	tree := Container{
		Type: TypeWorkspace,
		Name: "1",
		Children: []Container{
			window("a"),
			{
				Type: TypeSplit,
				ID:   "s1",
				Children: []Container{
					window("b"),
					{
						Type:     TypeSplit,
						ID:       "s2",
						Children: []Container{window("c"), window("d")},
					},
				},
			},
			window("e"),
		},
	}
	got := FindAllWindows(tree)
	ids := make([]string, 0, len(got))
	for _, w := range got {
		if w.Type != TypeWindow {
			t.Fatalf("expected only window nodes, got %q", w.Type)
		}
		ids = append(ids, w.ID)
	}
	want := []string{"a", "b", "c", "d", "e"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("window order mismatch (-want +got):\n%s", diff)
	}
}

func TestFindAllWindowsEmptyTree(t *testing.T) {
	tree := Container{
		Type: TypeWorkspace,
		Children: []Container{
			{Type: TypeSplit, Children: nil},
		},
	}
	if got := FindAllWindows(tree); len(got) != 0 {
		t.Fatalf("expected no windows, got %d", len(got))
	}
}

func TestChildAtPath(t *testing.T) {
	tree := Container{
		Type: TypeWorkspace,
		Children: []Container{
			{Type: TypeSplit, Children: []Container{window("a"), window("b")}},
			window("c"),
		},
	}
	node, ok := ChildAtPath(tree, []int{0, 1})
	if !ok || node.ID != "b" {
		t.Fatalf("expected to find window b, got %+v ok=%v", node, ok)
	}
	if node, ok := ChildAtPath(tree, nil); !ok || node.Type != TypeWorkspace {
		t.Fatalf("expected empty path to return the root, got %+v ok=%v", node, ok)
	}
	if _, ok := ChildAtPath(tree, []int{0, 5}); ok {
		t.Fatalf("expected out-of-range path to miss")
	}
}

func TestNormalizedSizes(t *testing.T) {
	children := []Container{
		{TilingSize: 250},
		{TilingSize: 750},
	}
	got := NormalizedSizes(children)
	if got[0] != 0.25 || got[1] != 0.75 {
		t.Fatalf("expected 0.25/0.75, got %v", got)
	}
	zero := NormalizedSizes([]Container{{}, {}})
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("expected zeros for zero sum, got %v", zero)
	}
}

func TestWorkspaceByName(t *testing.T) {
	snap := Snapshot{Workspaces: []Container{
		{Type: TypeWorkspace, Name: "1"},
		{Type: TypeWorkspace, Name: "2"},
	}}
	if ws := snap.WorkspaceByName("2"); ws == nil || ws.Name != "2" {
		t.Fatalf("expected workspace 2, got %+v", ws)
	}
	if ws := snap.WorkspaceByName("9"); ws != nil {
		t.Fatalf("expected nil for unknown workspace, got %+v", ws)
	}
}
