package metrics

import (
	"sort"
	"sync"
	"time"
)

// Collector aggregates per-workspace counters for a setup run. It is opt-in:
// a nil collector is safe to call and records nothing.
type Collector struct {
	mu         sync.RWMutex
	enabled    bool
	started    time.Time
	workspaces map[string]*WorkspaceMetrics
}

// WorkspaceMetrics captures the command traffic spent on one workspace.
type WorkspaceMetrics struct {
	Workspace        string    `json:"workspace"`
	Commands         uint64    `json:"commands"`
	Queries          uint64    `json:"queries"`
	ResizeIterations uint64    `json:"resizeIterations"`
	Converged        bool      `json:"converged"`
	LastCommand      time.Time `json:"lastCommand,omitempty"`
}

// Totals aggregates counters across all workspaces in a snapshot.
type Totals struct {
	Commands         uint64 `json:"commands"`
	Queries          uint64 `json:"queries"`
	ResizeIterations uint64 `json:"resizeIterations"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled    bool               `json:"enabled"`
	Started    time.Time          `json:"started,omitempty"`
	Totals     Totals             `json:"totals"`
	Workspaces []WorkspaceMetrics `json:"workspaces,omitempty"`
}

// NewCollector returns a collector with the provided opt-in state.
func NewCollector(enabled bool) *Collector {
	c := &Collector{}
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	if !enabled {
		c.workspaces = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.workspaces = make(map[string]*WorkspaceMetrics)
}

// RecordCommand increments the command counter for a workspace.
func (c *Collector) RecordCommand(workspace string) {
	c.update(workspace, func(m *WorkspaceMetrics, now time.Time) {
		m.Commands++
		m.LastCommand = now
	})
}

// RecordQuery increments the query counter for a workspace.
func (c *Collector) RecordQuery(workspace string) {
	c.update(workspace, func(m *WorkspaceMetrics, _ time.Time) {
		m.Queries++
	})
}

// RecordResizeIteration increments the ratio-refinement counter.
func (c *Collector) RecordResizeIteration(workspace string) {
	c.update(workspace, func(m *WorkspaceMetrics, _ time.Time) {
		m.ResizeIterations++
	})
}

// SetConverged records whether the ratio phase converged for a workspace.
func (c *Collector) SetConverged(workspace string, converged bool) {
	c.update(workspace, func(m *WorkspaceMetrics, _ time.Time) {
		m.Converged = converged
	})
}

func (c *Collector) update(workspace string, mutate func(*WorkspaceMetrics, time.Time)) {
	if c == nil || mutate == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.workspaces == nil {
		c.workspaces = make(map[string]*WorkspaceMetrics)
	}
	m, exists := c.workspaces[workspace]
	if !exists {
		m = &WorkspaceMetrics{Workspace: workspace}
		c.workspaces[workspace] = m
	}
	mutate(m, now)
}

// Snapshot returns the current counters for serialization or display.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled}
	if !c.enabled {
		return snap
	}
	snap.Started = c.started
	if len(c.workspaces) == 0 {
		return snap
	}
	snap.Workspaces = make([]WorkspaceMetrics, 0, len(c.workspaces))
	for _, m := range c.workspaces {
		if m == nil {
			continue
		}
		clone := *m
		snap.Workspaces = append(snap.Workspaces, clone)
		snap.Totals.Commands += clone.Commands
		snap.Totals.Queries += clone.Queries
		snap.Totals.ResizeIterations += clone.ResizeIterations
	}
	sort.Slice(snap.Workspaces, func(i, j int) bool {
		return snap.Workspaces[i].Workspace < snap.Workspaces[j].Workspace
	})
	return snap
}
