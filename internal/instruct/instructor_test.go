package instruct

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nouwaarom/beaver-build/internal/depgraph"
	"github.com/nouwaarom/beaver-build/internal/target"
	"github.com/nouwaarom/beaver-build/internal/workpool"
)

func TestProcessInterface(t *testing.T) {
	g := depgraph.New()
	h := g.AddInterface("headers", []string{"include/foo.h", "include/bar.h"})

	res, err := Process(g, h, nil, "/build")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Instructions) != 0 {
		t.Errorf("Instructions = %v, want none for an interface", res.Instructions)
	}
	want := target.Interface([]string{"include"})
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessLibrarySingleSource(t *testing.T) {
	g := depgraph.New()
	h := g.AddLibrary("mylib", []string{"src/mylib.c"})

	res, err := Process(g, h, nil, "/build")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	wantInstr := []workpool.Instruction{
		workpool.Compile{SourceFile: "src/mylib.c", OutputFile: "/build/mylib.c.o"},
	}
	if diff := cmp.Diff(wantInstr, res.Instructions); diff != "" {
		t.Errorf("Instructions mismatch (-want +got):\n%s", diff)
	}
	wantData := target.Library(nil, []string{"/build/mylib.c.o"})
	if diff := cmp.Diff(wantData, res.Data); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}
}

// TestProcessDiamondIncludeOrder builds a diamond: an executable
// requires two libraries that both require the same shared interface.
// A library must pick up the shared interface's include directory, and
// the executable's link order must follow the declaration order of its
// own requires.
func TestProcessDiamondIncludeOrder(t *testing.T) {
	g := depgraph.New()
	shared := g.AddInterface("shared", []string{"shared/api.h"})
	a := g.AddLibrary("a", []string{"a.c"})
	b := g.AddLibrary("b", []string{"b.c"})
	exe := g.AddExecutable("app", nil)

	g.AddRequirement(a, shared)
	g.AddRequirement(b, shared)
	g.AddRequirement(exe, a)
	g.AddRequirement(exe, b)

	sharedRes, err := Process(g, shared, nil, "/build")
	if err != nil {
		t.Fatalf("Process(shared) error = %v", err)
	}

	aRes, err := Process(g, a, []target.Data{sharedRes.Data}, "/build")
	if err != nil {
		t.Fatalf("Process(a) error = %v", err)
	}
	if diff := cmp.Diff([]string{"shared"}, aRes.Data.IncludeDirs); diff != "" {
		t.Errorf("a include dirs mismatch (-want +got):\n%s", diff)
	}

	bRes, err := Process(g, b, []target.Data{sharedRes.Data}, "/build")
	if err != nil {
		t.Fatalf("Process(b) error = %v", err)
	}

	exeRes, err := Process(g, exe, []target.Data{aRes.Data, bRes.Data}, "/build")
	if err != nil {
		t.Fatalf("Process(exe) error = %v", err)
	}
	wantLink := workpool.Link{
		ObjectFiles: []string{"/build/a.c.o", "/build/b.c.o"},
		OutputFile:  "/build/app",
	}
	if diff := cmp.Diff([]workpool.Instruction{wantLink}, exeRes.Instructions); diff != "" {
		t.Errorf("link instruction mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessExecutableIgnoresOwnFiles(t *testing.T) {
	g := depgraph.New()
	exe := g.AddExecutable("app", []string{"main.c"}) // own files, never read
	companion := g.AddLibrary("app_objects", []string{"main.c"})
	g.AddRequirement(exe, companion)

	companionRes, err := Process(g, companion, nil, "/build")
	if err != nil {
		t.Fatalf("Process(companion) error = %v", err)
	}

	exeRes, err := Process(g, exe, []target.Data{companionRes.Data}, "/build")
	if err != nil {
		t.Fatalf("Process(exe) error = %v", err)
	}
	wantLink := workpool.Link{
		ObjectFiles: []string{"/build/main.c.o"},
		OutputFile:  "/build/app",
	}
	if diff := cmp.Diff([]workpool.Instruction{wantLink}, exeRes.Instructions); diff != "" {
		t.Errorf("link instruction mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessLibraryRejectsExecutableDependency(t *testing.T) {
	g := depgraph.New()
	lib := g.AddLibrary("lib", []string{"lib.c"})
	exeData := target.Executable("/build/other")

	_, err := Process(g, lib, []target.Data{exeData}, "/build")
	if err == nil {
		t.Fatal("Process() error = nil, want an error for a library depending on an executable")
	}
}

func TestProcessExecutableUsesLinkLibraries(t *testing.T) {
	g := depgraph.New()
	exe := g.AddExecutable("app", nil)
	if err := g.SetExecutableOptions(exe, depgraph.ExecutableOptions{
		LinkLibraries: []string{"m", "pthread"},
	}); err != nil {
		t.Fatalf("SetExecutableOptions() error = %v", err)
	}

	res, err := Process(g, exe, nil, "/build")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	wantLink := workpool.Link{
		LinkLibraries: []string{"m", "pthread"},
		OutputFile:    "/build/app",
	}
	if diff := cmp.Diff([]workpool.Instruction{wantLink}, res.Instructions); diff != "" {
		t.Errorf("link instruction mismatch (-want +got):\n%s", diff)
	}
}
