// Package cause implements the cause attributor (spec §4.H): given an
// unresolved linkage problem, it consults the classpath builder and
// class repository to classify the problem into a fixed taxonomy.
// Attribution is best-effort and additive; failing to attribute a
// precise cause is never itself an error.
package cause

import (
	"context"
	"strings"

	"github.com/jvm-linkage/checker/internal/classpath"
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/linkage"
	"github.com/jvm-linkage/checker/internal/repository"
	"github.com/jvm-linkage/checker/internal/resolve"
)

// Cause is the fixed attribution taxonomy (spec §1, §4.H).
type Cause int

const (
	UnknownCause Cause = iota
	MissingArtifact
	ExcludedArtifact
	DependencyConflict
)

func (c Cause) String() string {
	switch c {
	case MissingArtifact:
		return "MissingArtifact"
	case ExcludedArtifact:
		return "ExcludedArtifact"
	case DependencyConflict:
		return "DependencyConflict"
	default:
		return "UnknownCause"
	}
}

// ExcludedRef names the exclusion rule and path that kept an artifact
// off the classpath.
type ExcludedRef struct {
	Rule resolve.ExclusionRule
	Path coord.DependencyPath
}

// Attribution is the structured cause assigned to a Problem. Only the
// fields relevant to Cause are populated.
type Attribution struct {
	Cause Cause

	// DependencyConflict
	Selected   coord.Artifact
	Unselected coord.Artifact

	// ExcludedArtifact
	Excluded ExcludedRef

	// MissingArtifact: a best-effort hint, not a claimed exact match.
	// Empty (zero Artifact) when no plausible hint could be formed.
	NearestDeclaringArtifact coord.Artifact

	Detail string
}

// Attributor consults the classpath builder's selection/shadow records
// and the resolver's retained exclusions to classify problems.
type Attributor struct {
	repo            *repository.Repository
	classpathResult classpath.Result
	exclusions      []resolve.Exclusion
}

// New builds an Attributor from the pipeline stages that ran before it.
func New(repo *repository.Repository, classpathResult classpath.Result, exclusions []resolve.Exclusion) *Attributor {
	return &Attributor{repo: repo, classpathResult: classpathResult, exclusions: exclusions}
}

// Attribute classifies a single problem.
func (a *Attributor) Attribute(ctx context.Context, p linkage.Problem) (Attribution, error) {
	if p.Kind == linkage.ClassNotFound {
		return a.attributeMissingClass(ctx, p)
	}
	return a.attributeMemberProblem(ctx, p)
}

// attributeMemberProblem handles problems where the owner class itself
// resolved but a member on it did not: the only classpath-attributable
// cause is a version that carries the symbol being shadowed by the
// selected one that lacks it.
func (a *Attributor) attributeMemberProblem(ctx context.Context, p linkage.Problem) (Attribution, error) {
	ownerLookup, found, err := a.repo.FindClass(ctx, p.Symbol.Owner)
	if err != nil {
		return Attribution{}, err
	}
	if !found || ownerLookup.IsSystem {
		return Attribution{Cause: UnknownCause}, nil
	}

	shadows, err := a.repo.FindShadows(ctx, p.Symbol.Owner)
	if err != nil {
		return Attribution{}, err
	}
	if len(shadows) > 0 {
		return Attribution{
			Cause:      DependencyConflict,
			Selected:   ownerLookup.Entry.Artifact,
			Unselected: shadows[0].Artifact,
			Detail:     "selected classpath entry lacks the symbol; a superseded version carries it",
		}, nil
	}

	return Attribution{Cause: UnknownCause}, nil
}

// attributeMissingClass handles ClassNotFound: the owner class is
// absent from the whole classpath, not merely from the selected entry.
func (a *Attributor) attributeMissingClass(ctx context.Context, p linkage.Problem) (Attribution, error) {
	shadows, err := a.repo.FindShadows(ctx, p.Symbol.Owner)
	if err != nil {
		return Attribution{}, err
	}
	if len(shadows) > 0 {
		return Attribution{
			Cause:      DependencyConflict,
			Unselected: shadows[0].Artifact,
			Detail:     "class exists only in a version that lost selection",
		}, nil
	}

	if excl, ok := matchExclusionForOwner(a.exclusions, p.Symbol.Owner); ok {
		return Attribution{Cause: ExcludedArtifact, Excluded: excl}, nil
	}

	if hint, ok := a.nearestDeclaringArtifact(ctx, p.SourceClass); ok {
		return Attribution{Cause: MissingArtifact, NearestDeclaringArtifact: hint,
			Detail: "artifact providing this class was never declared; nearest known ancestor on the source's dependency path shown as a hint"}, nil
	}

	return Attribution{Cause: UnknownCause}, nil
}

// nearestDeclaringArtifact returns the artifact one step up from
// sourceClass's own artifact on its selected dependency path, a
// best-effort signal for where a missing dependency declaration would
// have been added (spec §4.H: "inferred from the source's dependency
// path... when possible").
func (a *Attributor) nearestDeclaringArtifact(ctx context.Context, sourceClass string) (coord.Artifact, bool) {
	lookup, found, err := a.repo.FindClass(ctx, sourceClass)
	if err != nil || !found || lookup.IsSystem {
		return coord.Artifact{}, false
	}
	path, ok := a.classpathResult.SelectedPaths[lookup.Entry.Artifact.ModuleKey()]
	if !ok || path.Len() < 2 {
		return coord.Artifact{}, false
	}
	steps := path.Steps()
	return steps[len(steps)-2].Artifact, true
}

// matchExclusionForOwner guesses whether an exclusion rule plausibly
// targeted the artifact that would have provided ownerInternalName, by
// comparing the class's package against the rule's group pattern. This
// is a heuristic: exclusions are recorded against artifact coordinates,
// and a missing class carries no coordinates of its own.
func matchExclusionForOwner(exclusions []resolve.Exclusion, ownerInternalName string) (ExcludedRef, bool) {
	pkg := strings.ReplaceAll(packageOf(ownerInternalName), "/", ".")
	for _, ex := range exclusions {
		group := ex.Rule.To.Group
		if group == "" || group == "*" {
			continue
		}
		if strings.HasPrefix(pkg, group) {
			return ExcludedRef{Rule: ex.Rule, Path: ex.Path}, true
		}
	}
	return ExcludedRef{}, false
}

func packageOf(internalName string) string {
	idx := strings.LastIndexByte(internalName, '/')
	if idx < 0 {
		return ""
	}
	return internalName[:idx]
}
