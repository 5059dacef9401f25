// Package depgraph implements the arena-backed typed dependency graph
// described in §3/§4.1: a DAG of Interface, Library and Executable
// targets with two eagerly-maintained directed edge sets (requires and
// required-by).
//
// Node identity is a Handle, a cheap, stable, copyable index into the
// graph's arena — the same arena+handle pattern the teacher's batch
// scheduler uses gonum's int64 node IDs for. Declaration order of
// requires/required-by is preserved, because the Instructor depends on
// it for include-directory and link order (§4.3).
package depgraph

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Kind is the target's variant.
type Kind int

const (
	Interface Kind = iota
	Library
	Executable
)

func (k Kind) String() string {
	switch k {
	case Interface:
		return "interface"
	case Library:
		return "library"
	case Executable:
		return "executable"
	default:
		return "unknown"
	}
}

// Options is implemented by kind-specific node configuration. Today
// only Executable carries options.
type Options interface {
	isOptions()
}

// ExecutableOptions is the only Options variant. Setting it on a
// non-Executable node is a misuse error (see SetExecutableOptions).
type ExecutableOptions struct {
	LinkLibraries []string
	LinkFlags     []string
}

func (ExecutableOptions) isOptions() {}

// Handle is an opaque, stable reference to a node in the graph's
// arena. Handles are cheap to copy, compare and use as map keys, and
// remain valid for the lifetime of the graph — nodes are never removed
// during a build.
type Handle int64

type node struct {
	handle     Handle
	name       string
	kind       Kind
	files      []string
	options    Options
	requires   []Handle // declaration order
	requiredBy []Handle // declaration order
}

// Graph is the dependency graph. All mutators (Add*, AddRequirement,
// SetExecutableOptions) must run single-threaded before a build starts;
// all accessors are pure reads and safe for concurrent callers once
// configuration has finished.
type Graph struct {
	arena []*node
	roots []Handle

	// mirror is kept in lock-step with arena/requires purely to let
	// Validate reuse gonum's cycle-detection machinery (topo.Sort /
	// topo.TarjanSCC), the same tools distri's batch scheduler uses to
	// detect and report unorderable dependency sets.
	mirror *simple.DirectedGraph
}

// New returns an empty dependency graph.
func New() *Graph {
	return &Graph{mirror: simple.NewDirectedGraph()}
}

func (g *Graph) addNode(kind Kind, name string, files []string) Handle {
	h := Handle(len(g.arena))
	g.arena = append(g.arena, &node{
		handle: h,
		name:   name,
		kind:   kind,
		files:  files,
	})
	g.mirror.AddNode(simpleNode(h))
	return h
}

// AddExecutable allocates an Executable node and records it as a root.
func (g *Graph) AddExecutable(name string, files []string) Handle {
	h := g.addNode(Executable, name, files)
	g.roots = append(g.roots, h)
	return h
}

// AddLibrary allocates a Library node.
func (g *Graph) AddLibrary(name string, files []string) Handle {
	return g.addNode(Library, name, files)
}

// AddInterface allocates an Interface node.
func (g *Graph) AddInterface(name string, files []string) Handle {
	return g.addNode(Interface, name, files)
}

// AddRequirement records that origin depends on requires, updating
// both origin.requires and requires.requiredBy. No cycle detection is
// performed here — that is Validate's job, run once configuration is
// complete.
func (g *Graph) AddRequirement(origin, requires Handle) {
	o := g.node(origin)
	r := g.node(requires)
	o.requires = append(o.requires, requires)
	r.requiredBy = append(r.requiredBy, origin)
	if !g.mirror.HasEdgeFromTo(int64(origin), int64(requires)) {
		g.mirror.SetEdge(g.mirror.NewEdge(simpleNode(origin), simpleNode(requires)))
	}
}

// SetExecutableOptions attaches options to an Executable node. It
// fails if the handle does not name an Executable or if opts is not an
// ExecutableOptions.
func (g *Graph) SetExecutableOptions(h Handle, opts Options) error {
	n := g.node(h)
	if n.kind != Executable {
		return xerrors.Errorf("%s: cannot set executable options on a %s", n.name, n.kind)
	}
	if _, ok := opts.(ExecutableOptions); !ok {
		return xerrors.Errorf("%s: options variant does not match executable", n.name)
	}
	n.options = opts
	return nil
}

// FindInterface performs a linear search over Interface nodes and
// returns the first whose name ends with the queried suffix. This
// mirrors the configurator's two-pass name resolution: external
// dependency names commonly appear suffixed (e.g. "foo_headers"), and
// a non-unique suffix silently resolves to the first match — keeping
// names unique within a kind is the configurator's responsibility, not
// the graph's.
func (g *Graph) FindInterface(suffix string) (Handle, bool) {
	for _, n := range g.arena {
		if n.kind != Interface {
			continue
		}
		if strings.HasSuffix(n.name, suffix) {
			return n.handle, true
		}
	}
	return 0, false
}

func (g *Graph) node(h Handle) *node {
	return g.arena[h]
}

// Name returns the node's human-readable identifier.
func (g *Graph) Name(h Handle) string { return g.node(h).name }

// Kind returns the node's variant.
func (g *Graph) Kind(h Handle) Kind { return g.node(h).kind }

// Files returns the node's ordered file list (headers for Interface,
// sources for Library/Executable).
func (g *Graph) Files(h Handle) []string { return g.node(h).files }

// Options returns the node's options, or nil if none were set.
func (g *Graph) Options(h Handle) Options { return g.node(h).options }

// Requires returns the handles this node depends on, in declaration order.
func (g *Graph) Requires(h Handle) []Handle { return g.node(h).requires }

// RequiredBy returns the handles that depend on this node, in
// declaration order.
func (g *Graph) RequiredBy(h Handle) []Handle { return g.node(h).requiredBy }

// Roots returns every Executable node, in declaration order.
func (g *Graph) Roots() []Handle { return g.roots }

// NumNodes returns the total number of nodes in the arena (reachable
// or not).
func (g *Graph) NumNodes() int { return len(g.arena) }

// Validate checks the graph invariants required before the scheduler
// is invoked (§3): edge consistency is maintained by construction, so
// this checks acyclicity, that every Executable is a root, that every
// Interface has at least one file, and that names are unique within a
// kind.
func (g *Graph) Validate() error {
	if _, err := topo.Sort(g.mirror); err != nil {
		unorderable, ok := err.(topo.Unorderable)
		if !ok {
			return xerrors.Errorf("dependency graph: %w", err)
		}
		return xerrors.Errorf("dependency graph contains a cycle: %s", describeCycles(g, unorderable))
	}

	namesByKind := map[Kind]map[string]bool{}
	for _, n := range g.arena {
		if n.kind == Interface && len(n.files) == 0 {
			return xerrors.Errorf("interface %q has no files: its include directory cannot be derived", n.name)
		}
		if n.kind == Executable && len(n.requiredBy) != 0 {
			return xerrors.Errorf("executable %q is required by %q: executables must be roots", n.name, g.Name(n.requiredBy[0]))
		}
		seen := namesByKind[n.kind]
		if seen == nil {
			seen = map[string]bool{}
			namesByKind[n.kind] = seen
		}
		if seen[n.name] {
			return xerrors.Errorf("duplicate %s name %q", n.kind, n.name)
		}
		seen[n.name] = true
	}
	return nil
}

func describeCycles(g *Graph, unorderable topo.Unorderable) string {
	var parts []string
	for _, component := range unorderable {
		names := make([]string, 0, len(component))
		for _, n := range component {
			names = append(names, g.Name(Handle(n.ID())))
		}
		parts = append(parts, "["+strings.Join(names, " -> ")+"]")
	}
	return strings.Join(parts, ", ")
}

// String renders the graph as a human-readable tree: one line per
// root, recursively printing its requires-subtree with a kind prefix
// and two-space indent per depth.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, root := range g.roots {
		fmt.Fprintln(&sb, "Root")
		g.printNode(&sb, root, 0)
	}
	return sb.String()
}

func (g *Graph) printNode(sb *strings.Builder, h Handle, depth int) {
	n := g.node(h)
	prefix := map[Kind]string{
		Library:    "library:   ",
		Interface:  "interface: ",
		Executable: "executable:",
	}[n.kind]
	fmt.Fprintf(sb, "%s%s %s\n", strings.Repeat("  ", depth), prefix, n.name)
	for _, dep := range n.requires {
		g.printNode(sb, dep, depth+1)
	}
}

// simpleNode adapts a Handle to gonum's graph.Node interface.
type simpleNode Handle

func (n simpleNode) ID() int64 { return int64(n) }

var _ graph.Node = simpleNode(0)
