// Package app wires the core pipeline stages — dependency resolution,
// classpath building, class repository, symbol extraction, linkage
// resolution, and cause attribution — into a single entry point a CLI
// or other driver calls once per run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/jvm-linkage/checker/internal/archive"
	"github.com/jvm-linkage/checker/internal/cause"
	"github.com/jvm-linkage/checker/internal/classpath"
	"github.com/jvm-linkage/checker/internal/config"
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/linkage"
	"github.com/jvm-linkage/checker/internal/repository"
	"github.com/jvm-linkage/checker/internal/resolve"
	"github.com/jvm-linkage/checker/internal/report"
	"github.com/jvm-linkage/checker/internal/symbol"
)

// ErrNoRoots is returned when Run is called with an empty root set.
var ErrNoRoots = errors.New("app: no root artifacts supplied")

// Request bundles everything a run needs from its caller. The CLI
// collaborator (or any other driver) is responsible for producing
// these values; the core has no opinion on where a Declarer or
// ArchiveLocator gets its data from.
type Request struct {
	Roots           []coord.Artifact
	Declarer        resolve.Declarer
	Locator         classpath.ArchiveLocator
	ExclusionRules  []resolve.ExclusionRule
	ExtraClasspath  []classpath.Entry
	Config          config.Values
}

// Checker runs the full pipeline for one Request.
type Checker struct {
	logger *slog.Logger
}

// New builds a Checker. A nil logger falls back to slog's default.
func New(logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{logger: logger}
}

// Run executes one end-to-end linkage check and returns the assembled
// Report. Infrastructural failures (resolution failure, archive I/O)
// are returned as errors; linkage problems themselves are data in the
// returned Report, never an error.
func (c *Checker) Run(ctx context.Context, req Request) (report.Report, error) {
	if len(req.Roots) == 0 {
		return report.Report{}, ErrNoRoots
	}

	graph, err := resolve.Resolve(ctx, req.Roots, req.Declarer, req.ExclusionRules)
	if err != nil {
		return report.Report{}, fmt.Errorf("resolve dependency graph: %w", err)
	}

	cpResult, err := classpath.Build(graph.Nodes, req.Locator, req.ExtraClasspath)
	if err != nil {
		return report.Report{}, fmt.Errorf("build classpath: %w", err)
	}

	maxOpenArchives := req.Config.MaxOpenArchives
	if maxOpenArchives <= 0 {
		maxOpenArchives = config.DefaultMaxOpenArchives
	}
	repo := repository.New(cpResult, req.Locator, maxOpenArchives)
	defer func() {
		if err := repo.Close(); err != nil {
			c.logger.Warn("closing class repository", "error", err)
		}
	}()

	problems := linkage.NewProblemSet()
	sourceArtifacts := make(map[string]coord.Artifact)
	var warnings []string

	entryNames := make(map[string][]string, len(cpResult.Entries))
	var allNames []string
	for _, entry := range cpResult.Entries {
		names, err := listClasses(entry.ArchivePath)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("open %s: %v", entry.ArchivePath, err))
			continue
		}
		entryNames[entry.ArchivePath] = names
		allNames = append(allNames, names...)
	}

	maxParsers := req.Config.MaxParsers
	if maxParsers <= 0 {
		maxParsers = runtime.NumCPU()
	}
	if err := repo.Preload(ctx, allNames, maxParsers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return report.Report{}, fmt.Errorf("preload classes: %w", err)
		}
		// Individual parse failures are recoverable: FindClass leaves
		// the name uncached on error, so the scan loop below retries
		// and reports it, via that per-class warning path.
		warnings = append(warnings, fmt.Sprintf("preload classes: %v", err))
	}

	visited := make(map[string]struct{})
	for _, entry := range cpResult.Entries {
		if err := ctx.Err(); err != nil {
			return report.Report{}, fmt.Errorf("run cancelled: %w", err)
		}
		names := entryNames[entry.ArchivePath]
		for _, name := range names {
			if _, ok := visited[name]; ok {
				continue
			}
			visited[name] = struct{}{}

			lookup, found, err := repo.FindClass(ctx, name)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("parse %s: %v", name, err))
				continue
			}
			if !found || lookup.IsSystem || lookup.ClassFile == nil {
				continue
			}
			// Only extract from the archive that actually won
			// selection for this name; otherwise this entry's copy is
			// hidden by an earlier classpath entry and is not scanned.
			if lookup.Entry.ArchivePath != entry.ArchivePath {
				continue
			}
			sourceArtifacts[name] = lookup.Entry.Artifact

			for _, ref := range symbol.Extract(lookup.ClassFile) {
				problem, bad, err := linkage.Resolve(ctx, repo, ref)
				if err != nil {
					if errors.Is(err, linkage.ErrMalformedHierarchy) {
						warnings = append(warnings, fmt.Sprintf("%s: %v", name, err))
						continue
					}
					return report.Report{}, fmt.Errorf("resolve reference from %s: %w", name, err)
				}
				if bad {
					problems.Add(problem)
				}
			}
		}
	}

	attributor := cause.New(repo, cpResult, graph.Exclusions)
	resolved := problems.Problems()
	attributions := make([]cause.Attribution, 0, len(resolved))
	for _, p := range resolved {
		attribution, err := attributor.Attribute(ctx, p)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("attribute cause for %s: %v", p.Symbol, err))
			attribution = cause.Attribution{Cause: cause.UnknownCause}
		}
		attributions = append(attributions, attribution)
	}

	return report.Build(time.Now().UTC(), req.Roots, len(cpResult.Entries), countUnselected(cpResult), resolved, attributions, sourceArtifacts, warnings), nil
}

func countUnselected(r classpath.Result) int {
	total := 0
	for _, alts := range r.Unselected {
		total += len(alts)
	}
	return total
}

func listClasses(archivePath string) ([]string, error) {
	a, err := archive.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	entries := a.Entries()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.InternalName)
	}
	return names, nil
}
