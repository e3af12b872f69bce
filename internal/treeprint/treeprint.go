// Package treeprint renders a hierarchy.Provider's tree to a terminal as
// box-drawing ASCII, colorized by node kind.
package treeprint

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/go-hierarchy/provider/internal/hierarchy"
)

// Options configures a Render call.
type Options struct {
	// MaxDepth bounds recursion; 0 means unbounded.
	MaxDepth int

	// ShowKeys appends each node's key string, padded to start at display
	// column 40 (one space after the label when the line is already wider).
	ShowKeys bool

	// NoColor disables gookit/color output, e.g. when writing to a file.
	NoColor bool

	// LevelSizeLimit is forwarded to every GetNodes call as
	// HierarchyLevelSizeLimit (0 = unbounded).
	LevelSizeLimit int
}

// nodeStyle returns the color to apply to a node's label based on its kind.
func nodeStyle(n *hierarchy.FinalNode, noColor bool) func(string) string {
	identity := func(s string) string { return s }
	if noColor {
		return identity
	}
	switch {
	case n.Key.IsGrouping():
		return color.FgCyan.Render
	case n.IsFilterTarget:
		return color.New(color.FgYellow, color.OpBold).Render
	case n.HasFilterTargetAncestor:
		return color.FgYellow.Render
	case n.Key.Kind == hierarchy.NodeKeyGeneric:
		return color.FgGreen.Render
	default:
		return identity
	}
}

// Render walks p's tree starting at root (nil for the hierarchy root) and
// writes it to w as an ASCII tree, descending into every node reported as
// having children up to opts.MaxDepth.
func Render(ctx context.Context, w io.Writer, p *hierarchy.Provider, root *hierarchy.FinalNode, opts Options) error {
	var parent *hierarchy.ProcessedNode
	if root != nil {
		parent = hierarchy.AsParent(root)
	}
	return renderLevel(ctx, w, p, parent, "", true, 0, opts)
}

func renderLevel(ctx context.Context, w io.Writer, p *hierarchy.Provider, parent *hierarchy.ProcessedNode, prefix string, isRoot bool, depth int, opts Options) error {
	nodes, err := p.GetNodes(ctx, hierarchy.GetNodesOptions{Parent: parent, HierarchyLevelSizeLimit: opts.LevelSizeLimit})
	if err != nil {
		return fmt.Errorf("get_nodes at depth %d: %w", depth, err)
	}

	for i, n := range nodes {
		last := i == len(nodes)-1
		if err := writeLine(w, n, prefix, last, opts); err != nil {
			return err
		}

		if n.Key.IsGrouping() {
			if err := renderGroupedChildren(w, n.GroupedChildren, childPrefix(prefix, last), opts, depth+1); err != nil {
				return err
			}
			continue
		}

		if !n.Children {
			continue
		}
		if opts.MaxDepth > 0 && depth+1 >= opts.MaxDepth {
			continue
		}
		if err := renderLevel(ctx, w, p, hierarchy.AsParent(n), childPrefix(prefix, last), false, depth+1, opts); err != nil {
			return err
		}
	}
	return nil
}

// renderGroupedChildren walks a grouping node's already-materialized
// children (spec.md ยง3.3: GroupedChildren is always populated for a
// grouping node), recursing through nested grouping nodes the same way.
func renderGroupedChildren(w io.Writer, children []*hierarchy.FinalNode, prefix string, opts Options, depth int) error {
	if opts.MaxDepth > 0 && depth >= opts.MaxDepth {
		return nil
	}
	for i, n := range children {
		last := i == len(children)-1
		if err := writeLine(w, n, prefix, last, opts); err != nil {
			return err
		}
		if n.Key.IsGrouping() {
			if err := renderGroupedChildren(w, n.GroupedChildren, childPrefix(prefix, last), opts, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func childPrefix(prefix string, parentWasLast bool) string {
	if parentWasLast {
		return prefix + "    "
	}
	return prefix + "│   "
}

func writeLine(w io.Writer, n *hierarchy.FinalNode, prefix string, last bool, opts Options) error {
	branch := "├── "
	if last {
		branch = "└── "
	}

	label := n.Label
	styled := nodeStyle(n, opts.NoColor)(label)

	line := prefix + branch + styled
	if opts.ShowKeys {
		pad := 40 - runewidth.StringWidth(prefix+branch+label)
		if pad < 1 {
			pad = 1
		}
		keyText := n.Key.String()
		if !opts.NoColor {
			keyText = color.FgGray.Render(keyText)
		}
		line += strings.Repeat(" ", pad) + keyText
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
