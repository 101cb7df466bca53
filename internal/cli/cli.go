// Package cli wires a cobra command tree onto internal/app.Checker.
// It is explicitly peripheral (spec.md §1 names "command-line option
// parsing" as out of the core's scope): everything here only adapts
// flags and files into an app.Request and renders the resulting
// report.Report, never touching linkage semantics itself.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jvm-linkage/checker/internal/app"
	"github.com/jvm-linkage/checker/internal/archive"
	"github.com/jvm-linkage/checker/internal/bom"
	"github.com/jvm-linkage/checker/internal/classpath"
	"github.com/jvm-linkage/checker/internal/config"
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/report"
	"github.com/jvm-linkage/checker/internal/workspace"
)

// ErrProblemsFound is returned from the command's RunE, and so from
// Execute, when the run completed but reported findings; it is never a
// usage error. It lets main distinguish "ran fine, found problems" from
// an infrastructural failure when choosing an exit code.
var ErrProblemsFound = errors.New("cli: linkage problems found")

type options struct {
	roots          []string
	bomPath        string
	configPath     string
	classpathDir   string
	extraClasspath []string
	format         string
	maxParsers     int
	maxOpenArch    int
}

// NewRootCommand builds the linkage-checker command tree. stdout and
// stderr back the command's Out/Err streams so tests can capture them
// without touching the process's real file descriptors.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "linkage-checker",
		Short:         "Static linkage checker for JVM class library classpaths",
		Long:          "linkage-checker verifies that every symbolic reference a set of class files makes resolves cleanly across a given classpath, reporting unresolved or incompatible references as linkage problems.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().StringArrayVar(&opts.roots, "root", nil, "root artifact coordinate group:name:version (repeatable)")
	cmd.Flags().StringVar(&opts.bomPath, "bom", "", "path to a BOM manifest declaring roots, an offline dependency graph, and exclusions")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a run configuration file")
	cmd.Flags().StringVar(&opts.classpathDir, "classpath-dir", "", "local Maven-layout directory to resolve artifact coordinates against")
	cmd.Flags().StringArrayVar(&opts.extraClasspath, "extra-classpath", nil, "extra archive path outside the resolved graph (repeatable)")
	cmd.Flags().StringVar(&opts.format, "format", "", "output format: text, json, dot, or sarif (overrides config)")
	cmd.Flags().IntVar(&opts.maxParsers, "max-parsers", 0, "bounded parallel class-parser count (0 = CPU count)")
	cmd.Flags().IntVar(&opts.maxOpenArch, "max-open-archives", 0, "bounded open-archive LRU size (0 = config default)")

	return cmd
}

func runCheck(ctx context.Context, opts *options, out io.Writer) error {
	workDir, err := workspace.NormalizeRepoPath(".")
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	values, err := config.LoadOrDefault(workDir, opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.format != "" {
		values.OutputFormat = config.OutputFormat(opts.format)
	}
	if opts.maxParsers != 0 {
		values.MaxParsers = opts.maxParsers
	}
	if opts.maxOpenArch != 0 {
		values.MaxOpenArchives = opts.maxOpenArch
	}
	if err := values.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var manifest bom.Manifest
	if opts.bomPath != "" {
		manifest, err = bom.Load(workDir, opts.bomPath)
		if err != nil {
			return fmt.Errorf("load BOM manifest: %w", err)
		}
	}

	roots := append([]coord.Artifact{}, manifest.Roots...)
	for _, spec := range opts.roots {
		artifact, err := parseCoordinate(spec)
		if err != nil {
			return fmt.Errorf("--root %q: %w", spec, err)
		}
		roots = append(roots, artifact)
	}
	if len(roots) == 0 {
		return fmt.Errorf("no root artifacts: supply --root or --bom")
	}
	// Registers --root artifacts with the manifest's Declarer as leaves
	// when the manifest declares no edges for them.
	manifest.Roots = roots

	var locator classpath.ArchiveLocator
	if opts.classpathDir != "" {
		locator = archive.DirLocator{Root: opts.classpathDir}
	} else {
		locator = archive.MapLocator{}
	}

	var extraEntries []classpath.Entry
	for _, path := range opts.extraClasspath {
		extraEntries = append(extraEntries, classpath.Entry{ArchivePath: path})
	}

	req := app.Request{
		Roots:          roots,
		Declarer:       manifest.Declarer(),
		Locator:        locator,
		ExclusionRules: manifest.ExclusionRules(),
		ExtraClasspath: extraEntries,
		Config:         values,
	}

	checker := app.New(slog.Default())
	rep, err := checker.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("run linkage check: %w", err)
	}

	rendered, err := report.NewFormatter().Format(rep, values.OutputFormat)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if rep.Summary.TotalFindings > 0 {
		return ErrProblemsFound
	}
	return nil
}

func parseCoordinate(spec string) (coord.Artifact, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 3 {
		return coord.Artifact{}, fmt.Errorf("expected group:name:version[:classifier], got %q", spec)
	}
	artifact := coord.New(parts[0], parts[1], parts[2])
	if len(parts) >= 4 {
		artifact.Classifier = parts[3]
	}
	return artifact, nil
}
