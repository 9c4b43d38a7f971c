package layout

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mwsmws22/glazewm-startup/internal/config"
	"github.com/mwsmws22/glazewm-startup/internal/metrics"
	"github.com/mwsmws22/glazewm-startup/internal/state"
	"github.com/mwsmws22/glazewm-startup/internal/util"
)

// Bounded-iteration policies against the external window manager. The
// manager offers no transactional guarantees, so convergence loops carry a
// fixed cap and a fixed settle delay instead of open-ended retries.
const (
	// DirectionRetryLimit caps toggle-tiling-direction attempts per container.
	DirectionRetryLimit = 5
	// RatioIterationLimit caps resize iterations per container.
	RatioIterationLimit = 80
	// RatioTolerance is the per-child ratio error at or below which a
	// container counts as converged. Shared with the verifier.
	RatioTolerance = 0.002

	defaultSettle = 150 * time.Millisecond
)

// Runner is the command-and-query surface the builder drives. Commands are
// strictly sequential; the runner is never invoked concurrently.
type Runner interface {
	QueryWorkspaces(ctx context.Context) (state.Snapshot, error)
	RunCommand(ctx context.Context, command string, targetID string) error
}

// Builder drives the live window arrangement of one workspace toward its
// configured tree using imperative focus/move/resize commands, re-querying
// after every mutation because container ids and structure shift under it.
type Builder struct {
	wm      Runner
	logger  *util.Logger
	metrics *metrics.Collector
	settle  time.Duration
	sleep   func(time.Duration)
}

// NewBuilder returns a builder with the default settle delay.
func NewBuilder(wm Runner, logger *util.Logger) *Builder {
	return &Builder{wm: wm, logger: logger, settle: defaultSettle, sleep: time.Sleep}
}

// SetSettle overrides the post-command settle delay.
func (b *Builder) SetSettle(d time.Duration) {
	b.settle = d
}

// SetMetrics attaches an optional metrics collector.
func (b *Builder) SetMetrics(c *metrics.Collector) {
	b.metrics = c
}

// command issues one mutation and waits for the manager to settle.
func (b *Builder) command(ctx context.Context, workspace, command, targetID string) error {
	if err := b.wm.RunCommand(ctx, command, targetID); err != nil {
		return err
	}
	b.metrics.RecordCommand(workspace)
	b.sleep(b.settle)
	return nil
}

func (b *Builder) query(ctx context.Context, workspace string) (state.Snapshot, error) {
	snap, err := b.wm.QueryWorkspaces(ctx)
	if err == nil {
		b.metrics.RecordQuery(workspace)
	}
	return snap, err
}

// Apply brings one workspace into structural and proportional agreement with
// its config. Precondition: the open phase has finished and the live window
// count matches the flattened config; otherwise layout is skipped for the
// workspace and Apply returns nil.
func (b *Builder) Apply(ctx context.Context, ws config.Workspace) error {
	snap, err := b.query(ctx, ws.Name)
	if err != nil {
		return err
	}
	live := snap.WorkspaceByName(ws.Name)
	if live == nil {
		b.logger.Warnf("workspace %s not present in live state, skipping layout", ws.Name)
		return nil
	}
	apps := config.FlattenApplications(ws)
	windows := state.FindAllWindows(*live)
	if len(windows) != len(apps) {
		b.logger.Warnf("workspace %s has %d windows but config expects %d, skipping layout",
			ws.Name, len(windows), len(apps))
		return nil
	}

	if err := b.applyWorkspaceDirection(ctx, ws); err != nil {
		return err
	}
	b.buildSplits(ctx, ws)
	b.applyRatios(ctx, ws)
	return nil
}

// applyWorkspaceDirection converges the workspace's own tiling direction by
// toggling. The manager only exposes a toggle for the workspace root, so the
// loop re-queries after each attempt and gives up silently past the bound.
func (b *Builder) applyWorkspaceDirection(ctx context.Context, ws config.Workspace) error {
	for attempt := 0; attempt < DirectionRetryLimit; attempt++ {
		snap, err := b.query(ctx, ws.Name)
		if err != nil {
			return err
		}
		live := snap.WorkspaceByName(ws.Name)
		if live == nil {
			return nil
		}
		if live.TilingDirection == ws.TilingDirection {
			return nil
		}
		if err := b.command(ctx, ws.Name, "focus --workspace "+ws.Name, ""); err != nil {
			return err
		}
		if err := b.command(ctx, ws.Name, "toggle-tiling-direction", ""); err != nil {
			return err
		}
	}
	b.logger.Debugf("workspace %s direction did not settle after %d toggles", ws.Name, DirectionRetryLimit)
	return nil
}

// buildSplits groups top-level binary splits. Nested grouping below depth 1
// is not attempted. Per-split failures are logged and skipped so the
// remaining splits still run.
func (b *Builder) buildSplits(ctx context.Context, ws config.Workspace) {
	offset := 0
	for i, child := range ws.Children {
		if child.Type == config.TypeSplit {
			if err := b.buildSplit(ctx, ws.Name, child, offset); err != nil {
				b.logger.Warnf("workspace %s: split %d skipped: %v", ws.Name, i, err)
			}
		}
		offset += countWindows(child)
	}
}

func countWindows(n config.Node) int {
	if n.Type == config.TypeWindow {
		return 1
	}
	total := 0
	for _, child := range n.Children {
		total += countWindows(child)
	}
	return total
}

// buildSplit docks the split's second window against its first, forcing the
// manager to create a split container, then fixes up that container's
// direction and focuses it so later grouping in the same pass targets it.
func (b *Builder) buildSplit(ctx context.Context, workspace string, split config.Node, offset int) error {
	if split.Children[0].Type != config.TypeWindow || split.Children[1].Type != config.TypeWindow {
		b.logger.Infof("workspace %s: split children are not both windows, skipping", workspace)
		return nil
	}
	snap, err := b.query(ctx, workspace)
	if err != nil {
		return err
	}
	live := snap.WorkspaceByName(workspace)
	if live == nil {
		return fmt.Errorf("workspace %s disappeared", workspace)
	}
	windows := state.FindAllWindows(*live)
	if offset+1 >= len(windows) {
		return fmt.Errorf("window indexes %d,%d out of range (%d live windows)", offset, offset+1, len(windows))
	}
	idA, idB := windows[offset].ID, windows[offset+1].ID
	if idA == "" || idB == "" {
		return fmt.Errorf("live window at index %d or %d has no id", offset, offset+1)
	}

	if err := b.command(ctx, workspace, "focus --container-id "+idA, ""); err != nil {
		return err
	}
	if err := b.command(ctx, workspace, "set-tiling-direction "+split.TilingDirection, idA); err != nil {
		return err
	}
	if err := b.command(ctx, workspace, "focus --container-id "+idB, ""); err != nil {
		return err
	}
	if err := b.command(ctx, workspace, "move --direction left", idB); err != nil {
		return err
	}

	// The move re-parents both windows under a fresh split container whose
	// id is only discoverable by re-query.
	snap, err = b.query(ctx, workspace)
	if err != nil {
		return err
	}
	live = snap.WorkspaceByName(workspace)
	if live == nil {
		return fmt.Errorf("workspace %s disappeared", workspace)
	}
	group := findSplitWithChildren(*live, idA, idB)
	if group == nil {
		return fmt.Errorf("grouped split for windows %s,%s not found", idA, idB)
	}
	// The move may not preserve the direction set before grouping.
	if err := b.command(ctx, workspace, "set-tiling-direction "+split.TilingDirection, group.ID); err != nil {
		return err
	}
	return b.command(ctx, workspace, "focus --container-id "+group.ID, "")
}

// findSplitWithChildren locates the split whose exactly-two children are the
// given window ids, in either order.
func findSplitWithChildren(c state.Container, idA, idB string) *state.Container {
	for i := range c.Children {
		child := &c.Children[i]
		if child.Type == state.TypeSplit && len(child.Children) == 2 {
			first, second := child.Children[0].ID, child.Children[1].ID
			if (first == idA && second == idB) || (first == idB && second == idA) {
				return child
			}
		}
		if found := findSplitWithChildren(*child, idA, idB); found != nil {
			return found
		}
	}
	return nil
}

// ratioTarget is one container whose child ratios need refinement: the path
// from the workspace root, the parent's declared direction (which picks the
// resize axis), and the configured ratio per child.
type ratioTarget struct {
	path      []int
	direction string
	targets   []float64
}

// collectRatioTargets walks config and live trees in lockstep breadth-first,
// so outer containers are refined before nested ones. Containers whose child
// counts disagree are dropped along with their subtrees.
func collectRatioTargets(ws config.Workspace, live state.Container) []ratioTarget {
	type item struct {
		path     []int
		dir      string
		children []config.Node
	}
	queue := []item{{path: nil, dir: ws.TilingDirection, children: ws.Children}}
	var out []ratioTarget
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		node, ok := state.ChildAtPath(live, it.path)
		if !ok || len(node.Children) != len(it.children) {
			continue
		}
		targets := make([]float64, len(it.children))
		for i, child := range it.children {
			targets[i] = child.TilingSize
		}
		out = append(out, ratioTarget{path: it.path, direction: it.dir, targets: targets})
		for i, child := range it.children {
			if child.Type == config.TypeSplit {
				childPath := append(append([]int(nil), it.path...), i)
				queue = append(queue, item{path: childPath, dir: child.TilingDirection, children: child.Children})
			}
		}
	}
	return out
}

// applyRatios runs the greedy refinement over every collected container.
func (b *Builder) applyRatios(ctx context.Context, ws config.Workspace) {
	snap, err := b.query(ctx, ws.Name)
	if err != nil {
		b.logger.Debugf("workspace %s: ratio phase query failed: %v", ws.Name, err)
		return
	}
	live := snap.WorkspaceByName(ws.Name)
	if live == nil {
		return
	}
	converged := true
	for _, target := range collectRatioTargets(ws, *live) {
		if !b.refineRatios(ctx, ws.Name, target) {
			converged = false
		}
	}
	b.metrics.SetConverged(ws.Name, converged)
}

// refineRatios is a greedy coordinate-descent approximation: per iteration
// only the worst-offending child is resized, since any resize shifts every
// sibling's share. Termination is not guaranteed exact; the iteration cap
// bounds worst-case cost and partial improvement is accepted.
func (b *Builder) refineRatios(ctx context.Context, workspace string, target ratioTarget) bool {
	for iter := 0; iter < RatioIterationLimit; iter++ {
		snap, err := b.query(ctx, workspace)
		if err != nil {
			b.logger.Debugf("workspace %s: ratio query failed at %v: %v", workspace, target.path, err)
			return false
		}
		live := snap.WorkspaceByName(workspace)
		if live == nil {
			return false
		}
		node, ok := state.ChildAtPath(*live, target.path)
		if !ok || len(node.Children) != len(target.targets) {
			// Container vanished or restructured; refinement for this path
			// simply ends early.
			return false
		}
		actual := state.NormalizedSizes(node.Children)
		worst, worstErr := -1, 0.0
		for i, want := range target.targets {
			if e := want - actual[i]; math.Abs(e) > math.Abs(worstErr) {
				worst, worstErr = i, e
			}
		}
		if worst < 0 || math.Abs(worstErr) <= RatioTolerance {
			return true
		}
		b.metrics.RecordResizeIteration(workspace)

		step := int(math.Round(math.Abs(worstErr) * 100))
		if step < 1 {
			step = 1
		}
		if step > 5 {
			step = 5
		}
		axis := "--width"
		if target.direction == config.DirectionVertical {
			axis = "--height"
		}
		sign := "+"
		if worstErr < 0 {
			sign = "-"
		}
		cmd := fmt.Sprintf("resize %s %s%d%%", axis, sign, step)
		if err := b.command(ctx, workspace, cmd, node.Children[worst].ID); err != nil {
			b.logger.Debugf("workspace %s: resize failed at %v: %v", workspace, target.path, err)
			return false
		}
	}
	b.logger.Warnf("workspace %s: container %v did not converge within %d iterations",
		workspace, target.path, RatioIterationLimit)
	return false
}
