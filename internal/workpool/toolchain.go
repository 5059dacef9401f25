package workpool

import (
	"bytes"
	"context"
	"os/exec"

	"golang.org/x/xerrors"
)

// stderrTruncateLimit bounds how much linker stderr is kept in a
// formatted failure message (§4.2: "truncate captured stderr to a
// bounded prefix (~2000 characters)").
const stderrTruncateLimit = 2000

// Toolchain executes the two work instruction variants as external
// processes. It is the only seam between the work pool and the actual
// C compiler/linker — toolchain invocation is explicitly out of the
// core's scope (§1), but the core needs something to call, so this
// narrow interface is that external collaborator's contract from the
// work pool's point of view.
type Toolchain interface {
	Compile(ctx context.Context, instr Compile) (stdout string, err error)
	Link(ctx context.Context, instr Link) (stdout string, err error)
}

// ccToolchain drives a C compiler binary the way the original's
// work_pool.rs drives gcc: compile with "-c" and one "-I" per include
// directory, link by passing object files followed by "-l<name>" per
// library.
type ccToolchain struct {
	cc string
}

// NewCCToolchain returns a Toolchain that invokes cc (e.g. "cc", "gcc",
// "clang") for both compiling and linking.
func NewCCToolchain(cc string) Toolchain {
	if cc == "" {
		cc = "cc"
	}
	return &ccToolchain{cc: cc}
}

func (t *ccToolchain) Compile(ctx context.Context, instr Compile) (string, error) {
	args := make([]string, 0, 4+2*len(instr.IncludeDirs))
	args = append(args, instr.SourceFile, "-c")
	for _, dir := range instr.IncludeDirs {
		args = append(args, "-I", dir)
	}
	args = append(args, "-o", instr.OutputFile)

	stdout, stderr, err := t.run(ctx, args)
	if err == nil {
		return stdout, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return "", xerrors.Errorf("compile %s: exit status %d: %s", instr.SourceFile, exitErr.ExitCode(), stderr)
	}
	return "", xerrors.Errorf("compile %s: %w", instr.SourceFile, err)
}

func (t *ccToolchain) Link(ctx context.Context, instr Link) (string, error) {
	args := make([]string, 0, len(instr.ObjectFiles)+2*len(instr.LinkLibraries)+2)
	args = append(args, instr.ObjectFiles...)
	for _, lib := range instr.LinkLibraries {
		args = append(args, "-l"+lib)
	}
	args = append(args, "-o", instr.OutputFile)

	stdout, stderr, err := t.run(ctx, args)
	if err == nil {
		return stdout, nil
	}
	truncated := truncate(stderr, stderrTruncateLimit)
	if exitErr, ok := err.(*exec.ExitError); ok {
		return "", xerrors.Errorf("link %s: exit status %d: %s", instr.OutputFile, exitErr.ExitCode(), truncated)
	}
	return "", xerrors.Errorf("link %s: %w", instr.OutputFile, err)
}

func (t *ccToolchain) run(ctx context.Context, args []string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, t.cc, args...)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if runErr := cmd.Run(); runErr != nil {
		return "", errBuf.String(), runErr
	}
	return out.String(), "", nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
