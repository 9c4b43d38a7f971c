package layout

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/mwsmws22/glazewm-startup/internal/config"
	"github.com/mwsmws22/glazewm-startup/internal/state"
	"github.com/mwsmws22/glazewm-startup/internal/util"
)

// Mismatch is the first point at which a config tree and a live tree
// diverge, addressed by a slash-separated path rooted at the workspace name.
type Mismatch struct {
	Path   string
	Reason string
}

func (m Mismatch) String() string {
	return m.Path + ": " + m.Reason
}

// CompareStructure recursively checks node type, tiling direction (only when
// both sides define one; leaf windows don't) and ordered child counts. The
// check is strict: any divergence is reported, and only the first is
// returned.
func CompareStructure(ws config.Workspace, live state.Container) (bool, Mismatch) {
	if live.Type != state.TypeWorkspace {
		return false, Mismatch{ws.Name, fmt.Sprintf("type: want workspace, got %s", live.Type)}
	}
	if live.TilingDirection != "" && live.TilingDirection != ws.TilingDirection {
		return false, Mismatch{ws.Name, fmt.Sprintf("tiling direction: want %s, got %s",
			ws.TilingDirection, live.TilingDirection)}
	}
	if len(live.Children) != len(ws.Children) {
		return false, Mismatch{ws.Name, fmt.Sprintf("children count: want %d, got %d",
			len(ws.Children), len(live.Children))}
	}
	for i, child := range ws.Children {
		if ok, mm := compareNode(childPath(ws.Name, i), child, live.Children[i]); !ok {
			return false, mm
		}
	}
	return true, Mismatch{}
}

func compareNode(path string, want config.Node, got state.Container) (bool, Mismatch) {
	switch want.Type {
	case config.TypeWindow:
		if got.Type != state.TypeWindow {
			return false, Mismatch{path, fmt.Sprintf("type: want window, got %s", got.Type)}
		}
	case config.TypeSplit:
		if got.Type != state.TypeSplit {
			return false, Mismatch{path, fmt.Sprintf("type: want split, got %s", got.Type)}
		}
		if got.TilingDirection != "" && want.TilingDirection != "" &&
			got.TilingDirection != want.TilingDirection {
			return false, Mismatch{path, fmt.Sprintf("tiling direction: want %s, got %s",
				want.TilingDirection, got.TilingDirection)}
		}
		if len(got.Children) != len(want.Children) {
			return false, Mismatch{path, fmt.Sprintf("children count: want %d, got %d",
				len(want.Children), len(got.Children))}
		}
		for i, child := range want.Children {
			if ok, mm := compareNode(childPath(path, i), child, got.Children[i]); !ok {
				return false, mm
			}
		}
	}
	return true, Mismatch{}
}

// CompareRatios flags the first child whose normalized live share deviates
// from its configured ratio by more than RatioTolerance. Containers whose
// child counts disagree already carry a structural mismatch and are skipped
// here rather than double-reported. An error of exactly the tolerance still
// matches.
func CompareRatios(ws config.Workspace, live state.Container) (bool, Mismatch) {
	return compareRatios(ws.Name, ws.Children, live.Children)
}

func compareRatios(path string, want []config.Node, got []state.Container) (bool, Mismatch) {
	if len(want) != len(got) {
		return true, Mismatch{}
	}
	actual := state.NormalizedSizes(got)
	for i, child := range want {
		if err := math.Abs(child.TilingSize - actual[i]); err > RatioTolerance {
			return false, Mismatch{childPath(path, i), fmt.Sprintf("ratio: want %.3f, got %.3f",
				child.TilingSize, actual[i])}
		}
	}
	for i, child := range want {
		if child.Type == config.TypeSplit {
			if ok, mm := compareRatios(childPath(path, i), child.Children, got[i].Children); !ok {
				return false, mm
			}
		}
	}
	return true, Mismatch{}
}

func childPath(parent string, index int) string {
	return parent + "/" + strconv.Itoa(index)
}

// Verifier audits live state against the config after the builder has run.
// It is read-only: it never retries or repairs, and callers decide how
// severe a failed verification is.
type Verifier struct {
	wm     state.DataSource
	logger *util.Logger
}

// NewVerifier returns a verifier reading through the given data source.
func NewVerifier(wm state.DataSource, logger *util.Logger) *Verifier {
	return &Verifier{wm: wm, logger: logger}
}

// Verify re-snapshots live state and diffs every configured workspace,
// reporting per-workspace outcomes. The result is the conjunction of the
// structure match and the ratio match across all workspaces.
func (v *Verifier) Verify(ctx context.Context, cfg config.Config) (bool, error) {
	snap, err := v.wm.QueryWorkspaces(ctx)
	if err != nil {
		return false, err
	}
	structureOK, ratiosOK := true, true
	for _, ws := range cfg.Workspaces {
		live := snap.WorkspaceByName(ws.Name)
		if live == nil {
			v.logger.Errorf("workspace %s: not present in live state", ws.Name)
			structureOK = false
			continue
		}
		if ok, mm := CompareStructure(ws, *live); ok {
			v.logger.Infof("workspace %s: structure matches", ws.Name)
		} else {
			v.logger.Warnf("workspace %s: structure mismatch at %s", ws.Name, mm)
			structureOK = false
		}
		if ok, mm := CompareRatios(ws, *live); ok {
			v.logger.Infof("workspace %s: ratios match", ws.Name)
		} else {
			v.logger.Warnf("workspace %s: ratio mismatch at %s", ws.Name, mm)
			ratiosOK = false
		}
	}
	return structureOK && ratiosOK, nil
}
