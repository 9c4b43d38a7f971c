package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mwsmws22/glazewm-startup/internal/config"
	"github.com/mwsmws22/glazewm-startup/internal/ipc"
	"github.com/mwsmws22/glazewm-startup/internal/launcher"
	"github.com/mwsmws22/glazewm-startup/internal/layout"
	"github.com/mwsmws22/glazewm-startup/internal/metrics"
	"github.com/mwsmws22/glazewm-startup/internal/state"
	"github.com/mwsmws22/glazewm-startup/internal/util"
)

// Phase names, in their canonical run order.
const (
	PhaseClear      = "clear"
	PhaseOpen       = "open"
	PhaseLayout     = "layout"
	PhaseVerify     = "verify"
	PhaseFullscreen = "fullscreen"
)

// DefaultPhases is the full setup pipeline.
var DefaultPhases = []string{PhaseClear, PhaseOpen, PhaseLayout, PhaseVerify, PhaseFullscreen}

// ParsePhases splits a comma-separated phase list and rejects unknown names.
func ParsePhases(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return append([]string(nil), DefaultPhases...), nil
	}
	known := map[string]struct{}{
		PhaseClear: {}, PhaseOpen: {}, PhaseLayout: {}, PhaseVerify: {}, PhaseFullscreen: {},
	}
	var phases []string
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(strings.ToLower(part))
		if name == "" {
			continue
		}
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unknown phase %q", part)
		}
		phases = append(phases, name)
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("no phases selected")
	}
	return phases, nil
}

// SubscribeFunc opens a life-cycle event subscription for the given kinds.
// The returned stop function is the unsubscribe handle.
type SubscribeFunc func(ctx context.Context, kinds ...string) (<-chan ipc.Event, func(), error)

// DryRunRunner logs mutations instead of issuing them; queries pass through.
type DryRunRunner struct {
	WM     layout.Runner
	Logger *util.Logger
}

func (d DryRunRunner) QueryWorkspaces(ctx context.Context) (state.Snapshot, error) {
	return d.WM.QueryWorkspaces(ctx)
}

func (d DryRunRunner) RunCommand(_ context.Context, command string, targetID string) error {
	if targetID != "" {
		d.Logger.Infof("dry-run: %s [%s]", command, targetID)
	} else {
		d.Logger.Infof("dry-run: %s", command)
	}
	return nil
}

// Options tunes orchestrator timing and reporting.
type Options struct {
	DryRun       bool
	OpenTimeout  time.Duration // per window, open phase
	ClearTimeout time.Duration // per workspace, clear phase
	Settle       time.Duration // post-command settle delay
	Metrics      *metrics.Collector
}

const (
	defaultOpenTimeout  = 30 * time.Second
	defaultClearTimeout = 10 * time.Second
	defaultSettle       = 150 * time.Millisecond
)

// Orchestrator sequences the setup phases against a single window-manager
// session, which it owns for the run's duration. Commands are issued
// strictly sequentially; the only concurrency is the event-versus-timeout
// race in the clear and open phases.
type Orchestrator struct {
	wm        layout.Runner
	subscribe SubscribeFunc
	launch    launcher.Launcher
	builder   *layout.Builder
	verifier  *layout.Verifier
	logger    *util.Logger
	metrics   *metrics.Collector
	cfg       config.Config
	opts      Options
	sleep     func(time.Duration)
}

// New builds an orchestrator. In dry-run mode every mutation, including the
// builder's, is logged rather than issued, and launches and waits are
// skipped.
func New(wm layout.Runner, subscribe SubscribeFunc, launch launcher.Launcher, cfg config.Config, logger *util.Logger, opts Options) *Orchestrator {
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if opts.ClearTimeout <= 0 {
		opts.ClearTimeout = defaultClearTimeout
	}
	if opts.Settle <= 0 {
		opts.Settle = defaultSettle
	}
	effective := wm
	if opts.DryRun {
		effective = DryRunRunner{WM: wm, Logger: logger}
	}
	builder := layout.NewBuilder(effective, logger)
	builder.SetSettle(opts.Settle)
	builder.SetMetrics(opts.Metrics)
	return &Orchestrator{
		wm:        effective,
		subscribe: subscribe,
		launch:    launch,
		builder:   builder,
		verifier:  layout.NewVerifier(snapshotSource{effective}, logger),
		logger:    logger,
		metrics:   opts.Metrics,
		cfg:       cfg,
		opts:      opts,
		sleep:     time.Sleep,
	}
}

// snapshotSource narrows a Runner to the verifier's read-only view.
type snapshotSource struct {
	wm layout.Runner
}

func (s snapshotSource) QueryWorkspaces(ctx context.Context) (state.Snapshot, error) {
	return s.wm.QueryWorkspaces(ctx)
}

// Run executes the requested phases in order. The workspace focused before
// the run is restored on both success and failure paths. The returned
// boolean is the verification outcome; it is true when the verify phase did
// not run. Callers must inspect it, since a failed verification does not
// abort the run by itself.
func (o *Orchestrator) Run(ctx context.Context, phases []string) (verified bool, err error) {
	verified = true
	snap, err := o.wm.QueryWorkspaces(ctx)
	if err != nil {
		return false, err
	}
	original := snap.FocusedWorkspace
	defer func() {
		if original == "" {
			return
		}
		if ferr := o.command(ctx, original, "focus --workspace "+original, ""); ferr != nil {
			o.logger.Warnf("restore focus to workspace %s: %v", original, ferr)
		}
	}()

	for _, phase := range phases {
		o.logger.Infof("phase %s", phase)
		switch phase {
		case PhaseClear:
			err = o.Clear(ctx)
		case PhaseOpen:
			err = o.Open(ctx)
		case PhaseLayout:
			err = o.Layout(ctx)
		case PhaseVerify:
			var ok bool
			ok, err = o.verifier.Verify(ctx, o.cfg)
			if err == nil {
				verified = ok
				if ok {
					o.logger.Infof("verification passed")
				} else {
					o.logger.Warnf("verification failed")
				}
			}
		case PhaseFullscreen:
			err = o.Fullscreen(ctx)
		default:
			err = fmt.Errorf("unknown phase %q", phase)
		}
		if err != nil {
			return verified, fmt.Errorf("%s phase: %w", phase, err)
		}
	}
	return verified, nil
}

func (o *Orchestrator) command(ctx context.Context, workspace, command, targetID string) error {
	if err := o.wm.RunCommand(ctx, command, targetID); err != nil {
		return err
	}
	o.metrics.RecordCommand(workspace)
	o.sleep(o.opts.Settle)
	return nil
}

// Clear closes every window on the configured workspaces and verifies zero
// remain. A configured workspace missing from live state is a hard error.
func (o *Orchestrator) Clear(ctx context.Context) error {
	for _, ws := range o.cfg.Workspaces {
		snap, err := o.wm.QueryWorkspaces(ctx)
		if err != nil {
			return err
		}
		live := snap.WorkspaceByName(ws.Name)
		if live == nil {
			return fmt.Errorf("workspace %s not present in live state", ws.Name)
		}
		windows := state.FindAllWindows(*live)
		if len(windows) == 0 {
			continue
		}
		o.logger.Infof("closing %d windows on workspace %s", len(windows), ws.Name)
		if err := o.command(ctx, ws.Name, "focus --workspace "+ws.Name, ""); err != nil {
			return err
		}
		if o.opts.DryRun {
			for _, w := range windows {
				if err := o.command(ctx, ws.Name, "close", w.ID); err != nil {
					return err
				}
			}
			continue
		}
		events, stop, err := o.subscribe(ctx, ipc.EventWindowUnmanaged)
		if err != nil {
			return err
		}
		err = o.clearWorkspace(ctx, ws.Name, windows, events)
		stop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) clearWorkspace(ctx context.Context, workspace string, windows []state.Container, events <-chan ipc.Event) error {
	for _, w := range windows {
		if err := o.command(ctx, workspace, "close", w.ID); err != nil {
			return err
		}
	}
	return o.awaitEmptyWorkspace(ctx, workspace, events)
}

// awaitEmptyWorkspace re-queries until the workspace reports no windows,
// waking on unmanaged events and bounded by the clear timeout.
func (o *Orchestrator) awaitEmptyWorkspace(ctx context.Context, workspace string, events <-chan ipc.Event) error {
	deadline := time.Now().Add(o.opts.ClearTimeout)
	for {
		snap, err := o.wm.QueryWorkspaces(ctx)
		if err != nil {
			return err
		}
		live := snap.WorkspaceByName(workspace)
		if live == nil || len(state.FindAllWindows(*live)) == 0 {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("workspace %s still has windows after %s", workspace, o.opts.ClearTimeout)
		}
		if err := o.awaitEvent(ctx, events, remaining, func(ev ipc.Event) bool {
			return ev.Kind == ipc.EventWindowUnmanaged
		}); err != nil {
			return fmt.Errorf("workspace %s: %w", workspace, err)
		}
	}
}

// Open launches every configured application into its workspace in flatten
// order, waiting for the manager to report each window managed. The launch
// order is what establishes the index correspondence the later phases rely
// on, so applications are opened one at a time.
func (o *Orchestrator) Open(ctx context.Context) error {
	for _, ws := range o.cfg.Workspaces {
		apps := config.FlattenApplications(ws)
		if len(apps) == 0 {
			continue
		}
		if err := o.command(ctx, ws.Name, "focus --workspace "+ws.Name, ""); err != nil {
			return err
		}
		if o.opts.DryRun {
			for _, app := range apps {
				o.logger.Infof("dry-run: launch %s on workspace %s", app.Application, ws.Name)
			}
			continue
		}
		events, stop, err := o.subscribe(ctx, ipc.EventWindowManaged)
		if err != nil {
			return err
		}
		err = o.openWorkspace(ctx, ws, apps, events)
		stop()
		if err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) openWorkspace(ctx context.Context, ws config.Workspace, apps []config.Node, events <-chan ipc.Event) error {
	for _, app := range apps {
		o.logger.Infof("opening %s on workspace %s", app.Application, ws.Name)
		if err := o.launch.Launch(ctx, app); err != nil {
			return fmt.Errorf("open %s: %w", app.Application, err)
		}
		if err := o.awaitEvent(ctx, events, o.opts.OpenTimeout, func(ev ipc.Event) bool {
			return ev.Kind == ipc.EventWindowManaged
		}); err != nil {
			return fmt.Errorf("window for %s: %w", app.Application, err)
		}
		o.sleep(o.opts.Settle)
	}
	return nil
}

// awaitEvent waits for the first of: an event matching the predicate, the
// timeout, or context cancellation.
func (o *Orchestrator) awaitEvent(ctx context.Context, events <-chan ipc.Event, timeout time.Duration, match func(ipc.Event) bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			if match(ev) {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timed out after %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Layout runs the builder per workspace. Workspaces whose live window count
// does not match config are skipped inside the builder.
func (o *Orchestrator) Layout(ctx context.Context) error {
	for _, ws := range o.cfg.Workspaces {
		if err := o.builder.Apply(ctx, ws); err != nil {
			return err
		}
	}
	return nil
}

// Fullscreen matches live windows to config entries by flattened index and
// toggles fullscreen on each entry flagged for it.
func (o *Orchestrator) Fullscreen(ctx context.Context) error {
	snap, err := o.wm.QueryWorkspaces(ctx)
	if err != nil {
		return err
	}
	for _, ws := range o.cfg.Workspaces {
		apps := config.FlattenApplications(ws)
		wantFullscreen := false
		for _, app := range apps {
			if app.Fullscreen {
				wantFullscreen = true
				break
			}
		}
		if !wantFullscreen {
			continue
		}
		live := snap.WorkspaceByName(ws.Name)
		if live == nil {
			o.logger.Warnf("workspace %s not present in live state, skipping fullscreen", ws.Name)
			continue
		}
		windows := state.FindAllWindows(*live)
		if len(windows) != len(apps) {
			o.logger.Warnf("workspace %s has %d windows but config expects %d, skipping fullscreen",
				ws.Name, len(windows), len(apps))
			continue
		}
		for i, app := range apps {
			if !app.Fullscreen {
				continue
			}
			id := windows[i].ID
			if err := o.command(ctx, ws.Name, "focus --container-id "+id, ""); err != nil {
				return err
			}
			if err := o.command(ctx, ws.Name, "toggle-fullscreen", id); err != nil {
				return err
			}
		}
	}
	return nil
}
