// Package target defines the typed value produced by a built node and
// consumed by the nodes that depend on it.
package target

import "golang.org/x/xerrors"

// Kind identifies which variant a Data value holds. The set is closed:
// the constructors below only produce these three Kinds, and
// code that switches over Kind should treat the default case as a
// programming error, not a recoverable one.
type Kind int

const (
	InterfaceKind Kind = iota
	LibraryKind
	ExecutableKind
)

func (k Kind) String() string {
	switch k {
	case InterfaceKind:
		return "interface"
	case LibraryKind:
		return "library"
	case ExecutableKind:
		return "executable"
	default:
		return "unknown"
	}
}

// Data is the tagged output of a built target. Only the fields relevant
// to Kind are meaningful; the others are left at their zero value.
type Data struct {
	Kind Kind

	// IncludeDirs is set for InterfaceKind and LibraryKind: the include
	// directories this target contributes to its dependents.
	IncludeDirs []string

	// ObjectFiles is set for LibraryKind: the object files this library
	// produced, in source-declaration order.
	ObjectFiles []string

	// ExecutableFile is set for ExecutableKind: the path to the linked
	// binary.
	ExecutableFile string
}

// Interface builds the TargetData for a header-only target.
func Interface(includeDirs []string) Data {
	return Data{Kind: InterfaceKind, IncludeDirs: includeDirs}
}

// Library builds the TargetData for a compiled library.
func Library(includeDirs, objectFiles []string) Data {
	return Data{Kind: LibraryKind, IncludeDirs: includeDirs, ObjectFiles: objectFiles}
}

// Executable builds the TargetData for a linked binary.
func Executable(executableFile string) Data {
	return Data{Kind: ExecutableKind, ExecutableFile: executableFile}
}

// RequireIncludeDirs returns the include directories a dependency
// contributes, or an error if dep cannot contribute include directories
// (i.e. it is an Executable). Used by the Instructor when assembling a
// Library's compile instructions.
func RequireIncludeDirs(name string, dep Data) ([]string, error) {
	switch dep.Kind {
	case InterfaceKind, LibraryKind:
		return dep.IncludeDirs, nil
	default:
		return nil, xerrors.Errorf("%s: library may not depend on %s", name, dep.Kind)
	}
}
