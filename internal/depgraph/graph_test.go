package depgraph

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAddRequirementOrdering(t *testing.T) {
	g := New()
	exe := g.AddExecutable("app", nil)
	a := g.AddLibrary("a", []string{"a.c"})
	b := g.AddLibrary("b", []string{"b.c"})
	c := g.AddLibrary("c", []string{"c.c"})

	g.AddRequirement(exe, a)
	g.AddRequirement(exe, b)
	g.AddRequirement(exe, c)

	got := g.Requires(exe)
	want := []Handle{a, b, c}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Requires(exe) order mismatch (-want +got):\n%s", diff)
	}

	for _, dep := range []Handle{a, b, c} {
		rb := g.RequiredBy(dep)
		if len(rb) != 1 || rb[0] != exe {
			t.Errorf("RequiredBy(%s) = %v, want [exe]", g.Name(dep), rb)
		}
	}
}

func TestValidateDetectsCycle(t *testing.T) {
	g := New()
	a := g.AddLibrary("a", []string{"a.c"})
	b := g.AddLibrary("b", []string{"b.c"})
	g.AddRequirement(a, b)
	g.AddRequirement(b, a)

	err := g.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want a cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Validate() error = %q, want it to mention a cycle", err)
	}
}

func TestValidateRejectsNonRootExecutable(t *testing.T) {
	g := New()
	exe := g.AddExecutable("app", []string{"main.c"})
	other := g.AddExecutable("other", []string{"other.c"})
	g.AddRequirement(other, exe)

	err := g.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want an error (executable required by another node)")
	}
}

func TestValidateRejectsEmptyInterface(t *testing.T) {
	g := New()
	g.AddInterface("headers", nil)

	if err := g.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for an interface with no files")
	}
}

func TestValidateRejectsDuplicateNames(t *testing.T) {
	g := New()
	g.AddLibrary("dup", []string{"a.c"})
	g.AddLibrary("dup", []string{"b.c"})

	if err := g.Validate(); err == nil {
		t.Fatal("Validate() = nil, want a duplicate-name error")
	}
}

func TestFindInterfaceSuffixMatch(t *testing.T) {
	g := New()
	first := g.AddInterface("foo_headers", []string{"foo.h"})
	g.AddInterface("bar_headers", []string{"bar.h"})

	got, ok := g.FindInterface("headers")
	if !ok {
		t.Fatal("FindInterface(\"headers\") = not found, want first match")
	}
	if got != first {
		t.Errorf("FindInterface(\"headers\") = %v, want first declared match %v", got, first)
	}

	if _, ok := g.FindInterface("nonexistent"); ok {
		t.Error("FindInterface(\"nonexistent\") = found, want not found")
	}
}

func TestStringRendersRootAtDepthZero(t *testing.T) {
	g := New()
	exe := g.AddExecutable("app", nil)
	lib := g.AddLibrary("mylib", []string{"mylib.c"})
	g.AddRequirement(exe, lib)

	got := g.String()
	want := "Root\nexecutable: app\n  library:    mylib\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}

func TestStringDiamond(t *testing.T) {
	g := New()
	exe := g.AddExecutable("app", nil)
	a := g.AddLibrary("a", []string{"a.c"})
	b := g.AddLibrary("b", []string{"b.c"})
	shared := g.AddInterface("shared", []string{"shared.h"})
	g.AddRequirement(exe, a)
	g.AddRequirement(exe, b)
	g.AddRequirement(a, shared)
	g.AddRequirement(b, shared)

	got := g.String()
	want := "Root\n" +
		"executable: app\n" +
		"  library:    a\n" +
		"    interface:  shared\n" +
		"  library:    b\n" +
		"    interface:  shared\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}
