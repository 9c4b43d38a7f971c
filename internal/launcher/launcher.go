package launcher

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mwsmws22/glazewm-startup/internal/config"
	"github.com/mwsmws22/glazewm-startup/internal/util"
)

// Launcher starts an external application for a window config entry. The
// window manager, not the launcher, decides when the resulting window is
// managed; callers wait on life-cycle events for that.
type Launcher interface {
	Launch(ctx context.Context, app config.Node) error
}

// Resolver maps display names to launch targets (executable paths or
// AUMIDs). The table is built lazily exactly once per process on first use;
// construct the resolver before the open phase starts so the initialization
// order stays explicit.
type Resolver struct {
	once   sync.Once
	lookup func() (map[string]string, error)
	table  map[string]string
	err    error
}

// NewResolver returns a resolver backed by the given lookup function. The
// lookup runs at most once.
func NewResolver(lookup func() (map[string]string, error)) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns the launch target for name. Names not present in the
// table pass through unchanged, so executable paths and AUMIDs need no
// entry.
func (r *Resolver) Resolve(name string) (string, error) {
	r.once.Do(func() {
		if r.lookup == nil {
			return
		}
		table, err := r.lookup()
		if err != nil {
			r.err = err
			return
		}
		r.table = make(map[string]string, len(table))
		for k, v := range table {
			r.table[strings.ToLower(k)] = v
		}
	})
	if r.err != nil {
		return "", fmt.Errorf("resolve %q: %w", name, r.err)
	}
	if target, ok := r.table[strings.ToLower(name)]; ok {
		return target, nil
	}
	return name, nil
}

// Arguments builds the argv tail for a window entry. A link is passed as a
// trailing argument after any explicit args.
func Arguments(app config.Node) []string {
	args := append([]string(nil), app.Args...)
	if app.Link != "" {
		args = append(args, app.Link)
	}
	return args
}

// ExecLauncher launches applications with spawn-and-detach semantics: the
// child is started and immediately released, never supervised.
type ExecLauncher struct {
	resolver *Resolver
	logger   *util.Logger
}

// NewExecLauncher returns a launcher using the given resolver, which may be
// nil when applications are always concrete targets.
func NewExecLauncher(resolver *Resolver, logger *util.Logger) *ExecLauncher {
	return &ExecLauncher{resolver: resolver, logger: logger}
}

// Launch starts the application and detaches from it.
func (l *ExecLauncher) Launch(ctx context.Context, app config.Node) error {
	target := app.Application
	if l.resolver != nil {
		resolved, err := l.resolver.Resolve(target)
		if err != nil {
			return err
		}
		target = resolved
	}
	cmd := exec.CommandContext(ctx, target, Arguments(app)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", target, err)
	}
	l.logger.Debugf("launched %s (pid %d)", target, cmd.Process.Pid)
	return cmd.Process.Release()
}

var _ Launcher = (*ExecLauncher)(nil)
