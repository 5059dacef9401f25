// Package configurator is the project-discovery component §1 treats
// as an external collaborator: it walks a package-directory project,
// reads each package's manifest, and produces a well-formed
// dependency graph. Its only contract with the scheduler core is that
// contract — "produce a well-formed graph" — so nothing under
// internal/scheduler, internal/instruct or internal/workpool imports
// this package.
//
// It is grounded on distri's own directory-walking package discovery
// (internal/batch.Ctx.Build, which reads a flat pkgs/ directory of
// build.textproto manifests) and on original_source/configurator.rs's
// two-pass resolution: a first pass creates every node, a second pass
// resolves "requires" by name, so forward references between packages
// (and the project's own package depending on something declared later
// in directory order) work correctly.
package configurator

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/nouwaarom/beaver-build/internal/depgraph"
)

// Manifest is the on-disk shape of a package's build.yaml.
type Manifest struct {
	Kind          string   `yaml:"kind"`
	Files         []string `yaml:"files"`
	Requires      []string `yaml:"requires"`
	LinkLibraries []string `yaml:"link_libraries"`
	LinkFlags     []string `yaml:"link_flags"`
}

const manifestFilename = "build.yaml"

// Load walks projectDir (the project's own manifest plus every
// package directory under projectDir/pkgs) and returns a validated
// dependency graph.
func Load(projectDir string) (*depgraph.Graph, error) {
	g := depgraph.New()

	pkgDirs, err := discoverPackageDirs(projectDir)
	if err != nil {
		return nil, err
	}

	// Pass 1: read every manifest and create its node(s), without
	// resolving "requires" yet.
	type pending struct {
		dir      string
		manifest Manifest
	}
	byName := make(map[string]depgraph.Handle)
	companionByName := make(map[string]depgraph.Handle)
	var entries []pending

	for _, dir := range pkgDirs {
		name := filepath.Base(dir)
		manifest, err := readManifest(dir)
		if err != nil {
			return nil, xerrors.Errorf("%s: %w", name, err)
		}
		handle, companion, err := addNode(g, name, dir, manifest)
		if err != nil {
			return nil, xerrors.Errorf("%s: %w", name, err)
		}
		byName[name] = handle
		// addNode only creates a companion (and the executable's
		// requirement on it) when the file globs matched something.
		if manifest.Kind == "executable" && len(g.Requires(handle)) > 0 {
			companionByName[name] = companion
		}
		entries = append(entries, pending{dir: dir, manifest: manifest})
	}

	// Pass 2: resolve requires. An executable's own interface
	// requirements (headers needed to compile its own sources) are
	// routed to its companion library instead of the executable node
	// itself, since only the companion's sources are ever compiled —
	// the executable node's requires exist purely to pull in the
	// object files it links against (§4.3).
	for i, dir := range pkgDirs {
		name := filepath.Base(dir)
		origin := byName[name]
		companion, hasCompanion := companionByName[name]
		for _, req := range entries[i].manifest.Requires {
			dep, ok := byName[req]
			if !ok {
				dep, ok = g.FindInterface(req)
			}
			if !ok {
				return nil, xerrors.Errorf("%s: requires %q, which was not found", name, req)
			}
			target := origin
			if hasCompanion && g.Kind(dep) == depgraph.Interface {
				target = companion
			}
			g.AddRequirement(target, dep)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// discoverPackageDirs returns the project's own root directory plus
// every immediate child of projectDir/pkgs that contains a manifest,
// root first so it is processed (and, for naming purposes, resolvable)
// like any other package.
func discoverPackageDirs(projectDir string) ([]string, error) {
	var dirs []string
	if _, err := os.Stat(filepath.Join(projectDir, manifestFilename)); err == nil {
		dirs = append(dirs, projectDir)
	}

	pkgsDir := filepath.Join(projectDir, "pkgs")
	entries, err := os.ReadDir(pkgsDir)
	if os.IsNotExist(err) {
		return dirs, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("reading %s: %w", pkgsDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(pkgsDir, e.Name())
		if _, err := os.Stat(filepath.Join(dir, manifestFilename)); err != nil {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func readManifest(dir string) (Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifestFilename))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Manifest{}, xerrors.Errorf("parsing %s: %w", manifestFilename, err)
	}
	return m, nil
}

// addNode creates the graph node(s) for one manifest. An executable
// manifest that lists its own source files gets those files split into
// a companion library ("<name>_objects") that the executable requires
// instead — the concrete mechanism behind §9 Open Question 1's
// "companion library" convention.
func addNode(g *depgraph.Graph, name, dir string, m Manifest) (handle, companion depgraph.Handle, err error) {
	files, err := resolveFiles(dir, m.Files)
	if err != nil {
		return 0, 0, err
	}

	switch m.Kind {
	case "interface":
		return g.AddInterface(name, files), 0, nil
	case "library":
		return g.AddLibrary(name, files), 0, nil
	case "executable":
		handle = g.AddExecutable(name, nil)
		if err := g.SetExecutableOptions(handle, depgraph.ExecutableOptions{
			LinkLibraries: m.LinkLibraries,
			LinkFlags:     m.LinkFlags,
		}); err != nil {
			return 0, 0, err
		}
		if len(files) > 0 {
			companion = g.AddLibrary(name+"_objects", files)
			g.AddRequirement(handle, companion)
		}
		return handle, companion, nil
	default:
		return 0, 0, xerrors.Errorf("unknown kind %q", m.Kind)
	}
}

// resolveFiles expands each glob pattern relative to dir, in
// declaration order (duplicates across patterns are kept: §3 treats
// files as an ordered list, not a set).
func resolveFiles(dir string, patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, xerrors.Errorf("glob %q: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	return files, nil
}
