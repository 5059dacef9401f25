// Package instruct is the pure transformation from a graph node plus
// the resolved TargetData of its direct dependencies into the work
// instructions required to build that node and the TargetData it will
// expose to its own dependents (§4.3).
//
// It is grounded on the original's instructor.rs, generalized from a
// resettable single-node cursor (set_node/set_dependency_targetdata/
// process/reset) into a plain function: the spec calls this
// transformation "pure, reusable, single-shot", and a pure function
// matches that contract without the mutable-cursor bookkeeping the
// Rust borrow checker needed.
package instruct

import (
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/nouwaarom/beaver-build/internal/depgraph"
	"github.com/nouwaarom/beaver-build/internal/target"
	"github.com/nouwaarom/beaver-build/internal/workpool"
)

// Result is what Process returns: the work instructions needed to
// build the node (empty for Interface nodes, and potentially empty for
// a Library with no sources), plus the TargetData the node exposes
// once those instructions have all completed.
type Result struct {
	Instructions []workpool.Instruction
	Data         target.Data
}

// Process synthesizes work instructions for node, given the TargetData
// of each of its direct dependencies in declaration order. buildDir is
// where object files and executables are written.
//
// A dependency-kind mismatch (a Library depending on an Executable, or
// an Executable depending on another Executable) is a misuse error per
// §3/§7: it means the configurator produced a malformed graph, and the
// build aborts rather than recovering.
func Process(g *depgraph.Graph, node depgraph.Handle, depData []target.Data, buildDir string) (Result, error) {
	name := g.Name(node)

	switch g.Kind(node) {
	case depgraph.Interface:
		return processInterface(g, node)
	case depgraph.Library:
		return processLibrary(name, g, node, depData, buildDir)
	case depgraph.Executable:
		return processExecutable(name, g, node, depData, buildDir)
	default:
		return Result{}, xerrors.Errorf("%s: unknown target kind", name)
	}
}

// processInterface emits no instructions: header-only targets
// contribute include paths only. The effective include directory is
// the parent directory of the first header file (§3) — if the
// interface's files span multiple directories, only the first is
// exposed; this is a documented limitation, not a bug.
func processInterface(g *depgraph.Graph, node depgraph.Handle) (Result, error) {
	files := g.Files(node)
	if len(files) == 0 {
		// The graph invariant in §3 guarantees this never fires for a
		// validated graph; guard it anyway since Process is called
		// directly by tests bypassing Validate.
		return Result{}, xerrors.Errorf("%s: interface has no files", g.Name(node))
	}
	includeDir := filepath.Dir(files[0])
	return Result{Data: target.Interface([]string{includeDir})}, nil
}

// processLibrary concatenates the include directories contributed by
// every dependency (Interface and Library both contribute; Executable
// does not and is rejected), then emits one Compile instruction per
// source file. Object files are named by source basename only — two
// sources sharing a basename, even across different libraries, collide
// on disk; resolving that is the configurator's responsibility (§9
// Open Question 3).
func processLibrary(name string, g *depgraph.Graph, node depgraph.Handle, depData []target.Data, buildDir string) (Result, error) {
	var includeDirs []string
	for _, dep := range depData {
		dirs, err := target.RequireIncludeDirs(name, dep)
		if err != nil {
			return Result{}, err
		}
		includeDirs = append(includeDirs, dirs...)
	}

	sources := g.Files(node)
	instructions := make([]workpool.Instruction, 0, len(sources))
	objectFiles := make([]string, 0, len(sources))
	for _, source := range sources {
		objectFile := filepath.Join(buildDir, filepath.Base(source)+".o")
		instructions = append(instructions, workpool.Compile{
			SourceFile:  source,
			IncludeDirs: includeDirs,
			OutputFile:  objectFile,
		})
		objectFiles = append(objectFiles, objectFile)
	}

	return Result{
		Instructions: instructions,
		Data:         target.Library(includeDirs, objectFiles),
	}, nil
}

// processExecutable collects object files from every Library
// dependency (Interface dependencies contribute nothing; any other
// variant is rejected) and emits a single Link instruction. It does
// NOT compile sources the Executable node owns directly — per §4.3 and
// §9 Open Question 1, the configurator is expected to have split an
// executable's own sources into a companion Library the executable
// requires, so node.Files is not read here.
func processExecutable(name string, g *depgraph.Graph, node depgraph.Handle, depData []target.Data, buildDir string) (Result, error) {
	var objectFiles []string
	for _, dep := range depData {
		switch dep.Kind {
		case target.LibraryKind:
			objectFiles = append(objectFiles, dep.ObjectFiles...)
		case target.InterfaceKind:
			// Contributes nothing to the link step.
		default:
			return Result{}, xerrors.Errorf("%s: executable may not depend on %s", name, dep.Kind)
		}
	}

	var linkLibraries []string
	if opts, ok := g.Options(node).(depgraph.ExecutableOptions); ok {
		// LinkFlags is intentionally unused here, mirroring the
		// upstream instructor.rs, which never got further than a "add
		// link flags" TODO.
		linkLibraries = opts.LinkLibraries
	}

	executableFile := filepath.Join(buildDir, name)
	link := workpool.Link{
		ObjectFiles:   objectFiles,
		LinkLibraries: linkLibraries,
		OutputFile:    executableFile,
	}

	return Result{
		Instructions: []workpool.Instruction{link},
		Data:         target.Executable(executableFile),
	}, nil
}
