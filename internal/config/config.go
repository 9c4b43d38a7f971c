package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Node types in the declarative layout tree.
const (
	TypeWindow = "window"
	TypeSplit  = "split"
)

// Tiling directions.
const (
	DirectionHorizontal = "horizontal"
	DirectionVertical   = "vertical"
)

// Node is one entry of a workspace layout tree: either a window to launch or
// a binary split grouping exactly two children. Deeper fan-out is expressed
// by nesting splits.
type Node struct {
	Type string `json:"type" yaml:"type"`

	// Window fields.
	Title       string   `json:"title,omitempty" yaml:"title,omitempty"`
	Application string   `json:"application,omitempty" yaml:"application,omitempty"`
	Args        []string `json:"args,omitempty" yaml:"args,omitempty"`
	Link        string   `json:"link,omitempty" yaml:"link,omitempty"`
	Fullscreen  bool     `json:"fullscreen,omitempty" yaml:"fullscreen,omitempty"`

	// TilingSize is this node's share of its parent's main axis, in [0,1].
	TilingSize float64 `json:"tilingSize,omitempty" yaml:"tilingSize,omitempty"`

	// Split fields.
	TilingDirection string `json:"tilingDirection,omitempty" yaml:"tilingDirection,omitempty"`
	Children        []Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// Workspace is the top of one layout tree. Name doubles as the window
// manager's workspace name.
type Workspace struct {
	Name            string `json:"name" yaml:"name"`
	TilingDirection string `json:"tilingDirection" yaml:"tilingDirection"`
	Children        []Node `json:"children" yaml:"children"`
}

// Config is the full declarative session document.
type Config struct {
	Workspaces []Workspace `json:"workspaces" yaml:"workspaces"`
}

// Load reads and validates a configuration file. JSON documents may carry
// comments and trailing commas; .yaml/.yml files are decoded as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs basic sanity checks on the tree.
func (c *Config) Validate() error {
	if len(c.Workspaces) == 0 {
		return fmt.Errorf("config must define at least one workspace")
	}
	names := map[string]struct{}{}
	for _, ws := range c.Workspaces {
		if ws.Name == "" {
			return fmt.Errorf("workspace name cannot be empty")
		}
		if _, exists := names[ws.Name]; exists {
			return fmt.Errorf("duplicate workspace %q", ws.Name)
		}
		names[ws.Name] = struct{}{}
		if err := validateDirection(ws.TilingDirection); err != nil {
			return fmt.Errorf("workspace %q: %w", ws.Name, err)
		}
		for i, child := range ws.Children {
			if err := validateNode(child); err != nil {
				return fmt.Errorf("workspace %q child %d: %w", ws.Name, i, err)
			}
		}
	}
	return nil
}

func validateNode(n Node) error {
	switch n.Type {
	case TypeWindow:
		if n.Application == "" {
			return fmt.Errorf("window node must define an application")
		}
		if n.TilingSize < 0 || n.TilingSize > 1 {
			return fmt.Errorf("tilingSize %v out of range [0,1]", n.TilingSize)
		}
	case TypeSplit:
		if err := validateDirection(n.TilingDirection); err != nil {
			return err
		}
		if len(n.Children) != 2 {
			return fmt.Errorf("split must have exactly 2 children, got %d", len(n.Children))
		}
		if n.TilingSize < 0 || n.TilingSize > 1 {
			return fmt.Errorf("tilingSize %v out of range [0,1]", n.TilingSize)
		}
		for i, child := range n.Children {
			if err := validateNode(child); err != nil {
				return fmt.Errorf("child %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown node type %q", n.Type)
	}
	return nil
}

func validateDirection(dir string) error {
	switch dir {
	case DirectionHorizontal, DirectionVertical:
		return nil
	default:
		return fmt.Errorf("invalid tiling direction %q", dir)
	}
}

// FlattenApplications collects the workspace's window nodes depth-first in
// encounter order, descending into splits transparently.
//
// This order is the open order, and index i of the result corresponds to the
// i-th live window of the workspace once the open phase completes. That
// positional correspondence is the only identity linking live windows back to
// config entries, so callers must not reorder the result.
func FlattenApplications(ws Workspace) []Node {
	var windows []Node
	var walk func(Node)
	walk = func(n Node) {
		if n.Type == TypeWindow {
			windows = append(windows, n)
			return
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, child := range ws.Children {
		walk(child)
	}
	return windows
}
