package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/nouwaarom/beaver-build/internal/depgraph"
	"github.com/nouwaarom/beaver-build/internal/workpool"
)

var errFake = errors.New("simulated compile failure")

// fakeToolchain never touches the filesystem or a subprocess: Compile
// fails for any source file listed in failSources, everything else
// succeeds instantly.
type fakeToolchain struct {
	failSources map[string]bool
}

func (f *fakeToolchain) Compile(ctx context.Context, instr workpool.Compile) (string, error) {
	if f.failSources[instr.SourceFile] {
		return "", errFake
	}
	return "", nil
}

func (f *fakeToolchain) Link(ctx context.Context, instr workpool.Link) (string, error) {
	return "", nil
}

func TestAnnotateIdempotentOnDiamond(t *testing.T) {
	g := depgraph.New()
	shared := g.AddLibrary("shared", []string{"shared.c"})
	a := g.AddLibrary("a", []string{"a.c"})
	b := g.AddLibrary("b", []string{"b.c"})
	exe := g.AddExecutable("app", nil)
	g.AddRequirement(a, shared)
	g.AddRequirement(b, shared)
	g.AddRequirement(exe, a)
	g.AddRequirement(exe, b)

	statuses := Annotate(g)
	if len(statuses) != 4 {
		t.Fatalf("Annotate produced %d statuses, want 4 (one per distinct node)", len(statuses))
	}
	if statuses[shared].UnbuiltDependencies != 0 {
		t.Errorf("shared.UnbuiltDependencies = %d, want 0", statuses[shared].UnbuiltDependencies)
	}
	if statuses[exe].UnbuiltDependencies != 2 {
		t.Errorf("exe.UnbuiltDependencies = %d, want 2", statuses[exe].UnbuiltDependencies)
	}
}

func TestBuildAllSucceeds(t *testing.T) {
	g := depgraph.New()
	hdr := g.AddInterface("hdr", []string{"hdr/api.h"})
	lib := g.AddLibrary("lib", []string{"lib.c"})
	exe := g.AddExecutable("app", nil)
	companion := g.AddLibrary("app_objects", []string{"main.c"})
	g.AddRequirement(lib, hdr)
	g.AddRequirement(companion, lib)
	g.AddRequirement(exe, companion)

	ctx := context.Background()
	s := New(ctx, 4, t.TempDir(), &fakeToolchain{}, nil)
	defer s.Close()

	report, err := s.BuildAll(ctx, g)
	if err != nil {
		t.Fatalf("BuildAll() error = %v", err)
	}
	if report.Failed != 0 {
		t.Errorf("report.Failed = %d, want 0", report.Failed)
	}
	if report.Succeeded != 4 {
		t.Errorf("report.Succeeded = %d, want 4", report.Succeeded)
	}
}

// TestBuildAllIsolatesFailure builds two independent executables; one
// depends on a library that fails to compile. The failing executable
// must end up Failed, and the other must still succeed (S4).
func TestBuildAllIsolatesFailure(t *testing.T) {
	g := depgraph.New()
	badLib := g.AddLibrary("bad", []string{"bad.c"})
	badExe := g.AddExecutable("badapp", nil)
	g.AddRequirement(badExe, badLib)

	goodLib := g.AddLibrary("good", []string{"good.c"})
	goodExe := g.AddExecutable("goodapp", nil)
	g.AddRequirement(goodExe, goodLib)

	ctx := context.Background()
	tc := &fakeToolchain{failSources: map[string]bool{"bad.c": true}}
	s := New(ctx, 4, t.TempDir(), tc, nil)
	defer s.Close()

	report, err := s.BuildAll(ctx, g)
	if err != nil {
		t.Fatalf("BuildAll() error = %v", err)
	}
	if report.Failed != 2 {
		t.Errorf("report.Failed = %d, want 2 (bad lib and its dependent executable)", report.Failed)
	}
	if report.Succeeded != 2 {
		t.Errorf("report.Succeeded = %d, want 2 (good lib and its executable)", report.Succeeded)
	}

	var badAppResult, goodAppResult bool
	for _, n := range report.Nodes {
		switch n.Name {
		case "badapp":
			badAppResult = n.Failed
		case "goodapp":
			goodAppResult = n.Built
		}
	}
	if !badAppResult {
		t.Error("badapp was not marked Failed")
	}
	if !goodAppResult {
		t.Error("goodapp was not marked Built")
	}
	_ = badLib
	_ = goodLib
}

func TestEligibleSetAllDone(t *testing.T) {
	statuses := map[depgraph.Handle]*NodeStatus{
		1: {IsBuilt: true},
		2: {Failed: true},
	}
	eligible, allDone := eligibleSet(statuses)
	if !allDone {
		t.Error("allDone = false, want true when every node is Built or Failed")
	}
	if len(eligible) != 0 {
		t.Errorf("eligible = %v, want none", eligible)
	}
}
