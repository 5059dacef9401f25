// Command beaverbuild builds a package-directory project: it reads a
// build.yaml manifest per package, constructs the dependency graph,
// and drives the scheduler to compile and link everything in
// topological order.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nouwaarom/beaver-build/internal/blog"
	"github.com/nouwaarom/beaver-build/internal/configurator"
	"github.com/nouwaarom/beaver-build/internal/report"
	"github.com/nouwaarom/beaver-build/internal/scheduler"
	"github.com/nouwaarom/beaver-build/internal/signalctx"
	"github.com/nouwaarom/beaver-build/internal/trace"
	"github.com/nouwaarom/beaver-build/internal/workpool"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beaverbuild",
		Short: "beaverbuild compiles and links a package-directory project in dependency order",
	}
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newGraphCommand())
	return cmd
}

func newBuildCommand() *cobra.Command {
	var (
		workers    int
		buildDir   string
		logLevel   string
		logFormat  string
		cc         string
		reportPath string
		traceName  string
	)

	cmd := &cobra.Command{
		Use:   "build [project]",
		Short: "Build every package reachable from the project's roots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := "."
			if len(args) > 0 {
				projectDir = args[0]
			}
			absProjectDir, err := filepath.Abs(projectDir)
			if err != nil {
				return err
			}

			log, err := blog.New(logLevel, logFormat, os.Stderr)
			if err != nil {
				return fmt.Errorf("invalid --log-level or --log-format: %w", err)
			}

			if err := os.MkdirAll(buildDir, 0o755); err != nil {
				return fmt.Errorf("creating build dir: %w", err)
			}

			if traceName != "" {
				if err := trace.Enable(traceName); err != nil {
					return fmt.Errorf("enabling trace: %w", err)
				}
			}

			g, err := configurator.Load(absProjectDir)
			if err != nil {
				return fmt.Errorf("loading project: %w", err)
			}

			ctx, cancel := signalctx.Interruptible()
			defer cancel()

			sched := scheduler.New(ctx, workers, buildDir, workpool.NewCCToolchain(cc), log)
			defer sched.Close()

			r, err := sched.BuildAll(ctx, g)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			if reportPath != "" {
				if err := report.WriteAtomic(reportPath, r); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			}

			fmt.Println(r.Summary())
			if r.Failed > 0 {
				return fmt.Errorf("%d package(s) failed", r.Failed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 16, "number of concurrent compile/link jobs")
	cmd.Flags().StringVar(&buildDir, "build-dir", "build", "directory for compiled objects and executables")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	cmd.Flags().StringVar(&cc, "cc", "cc", "C compiler/linker to invoke")
	cmd.Flags().StringVar(&reportPath, "report", "", "path to write a JSON build report (optional)")
	cmd.Flags().StringVar(&traceName, "trace", "", "if set, write a Chrome trace-event file named <trace>.<pid> under $TMPDIR/beaverbuild.traces")

	return cmd
}

func newGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [project]",
		Short: "Print the resolved dependency graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := "."
			if len(args) > 0 {
				projectDir = args[0]
			}
			absProjectDir, err := filepath.Abs(projectDir)
			if err != nil {
				return err
			}
			g, err := configurator.Load(absProjectDir)
			if err != nil {
				return fmt.Errorf("loading project: %w", err)
			}
			fmt.Print(g.String())
			return nil
		},
	}
	return cmd
}
