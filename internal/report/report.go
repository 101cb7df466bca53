// Package report defines the checker's output model and renders it in
// the formats callers can request (spec §6): human-readable text
// (summary counts by kind and cause, then one table row per finding;
// findings are not grouped by target symbol), JSON, Graphviz dot, and
// SARIF for code-scanning integrations.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/jvm-linkage/checker/internal/cause"
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/linkage"
)

// SchemaVersion is the report document's schema version, bumped
// whenever a field is added or renamed in a way that breaks strict
// JSON consumers.
const SchemaVersion = "1.0.0"

// Report is the complete output of one linkage check run.
type Report struct {
	SchemaVersion string    `json:"schemaVersion"`
	RunID         string    `json:"runId"`
	GeneratedAt   time.Time `json:"generatedAt"`

	Classpath ClasspathSummary `json:"classpath"`
	Findings  []Finding        `json:"findings"`
	Summary   Summary          `json:"summary"`
	Warnings  []string         `json:"warnings,omitempty"`
}

// ClasspathSummary describes the resolved classpath the run checked,
// without repeating every archive path inline.
type ClasspathSummary struct {
	EntryCount      int      `json:"entryCount"`
	Roots           []string `json:"roots"`
	UnselectedCount int      `json:"unselectedCount"`
}

// Finding pairs one linkage problem with its best-effort cause
// attribution. SourceArtifact is the coordinate of the artifact that
// owns SourceClass, when the classpath builder could identify it.
type Finding struct {
	Kind           string            `json:"kind"`
	SourceClass    string            `json:"sourceClass"`
	SourceArtifact *coord.Artifact   `json:"sourceArtifact,omitempty"`
	Symbol         string            `json:"symbol"`
	Detail         string            `json:"detail,omitempty"`
	Cause          string            `json:"cause"`
	CauseDetail    string            `json:"causeDetail,omitempty"`
	Selected       *coord.Artifact   `json:"selected,omitempty"`
	Unselected     *coord.Artifact   `json:"unselected,omitempty"`
	NearestParent  *coord.Artifact   `json:"nearestDeclaringArtifact,omitempty"`
}

// Summary aggregates Findings into counts for quick triage.
type Summary struct {
	TotalFindings int            `json:"totalFindings"`
	ByKind        map[string]int `json:"byKind,omitempty"`
	ByCause       map[string]int `json:"byCause,omitempty"`
}

// Build assembles a Report from the resolver's raw problems, their
// attributions (indexed the same order as problems), and the
// classpath metadata gathered earlier in the pipeline. now is injected
// by the caller since this package never calls time.Now() itself.
func Build(now time.Time, roots []coord.Artifact, entryCount, unselectedCount int, problems []linkage.Problem, attributions []cause.Attribution, sourceArtifacts map[string]coord.Artifact, warnings []string) Report {
	rootNames := make([]string, 0, len(roots))
	for _, r := range roots {
		rootNames = append(rootNames, r.String())
	}

	findings := make([]Finding, 0, len(problems))
	byKind := make(map[string]int)
	byCause := make(map[string]int)
	for i, p := range problems {
		var attribution cause.Attribution
		if i < len(attributions) {
			attribution = attributions[i]
		}
		f := Finding{
			Kind:        p.Kind.String(),
			SourceClass: p.SourceClass,
			Symbol:      p.Symbol.String(),
			Detail:      p.Detail,
			Cause:       attribution.Cause.String(),
			CauseDetail: attribution.Detail,
		}
		if artifact, ok := sourceArtifacts[p.SourceClass]; ok {
			a := artifact
			f.SourceArtifact = &a
		}
		if attribution.Cause == cause.DependencyConflict {
			selected, unselected := attribution.Selected, attribution.Unselected
			f.Selected, f.Unselected = &selected, &unselected
		}
		if attribution.Cause == cause.MissingArtifact && attribution.NearestDeclaringArtifact != (coord.Artifact{}) {
			parent := attribution.NearestDeclaringArtifact
			f.NearestParent = &parent
		}
		findings = append(findings, f)
		byKind[f.Kind]++
		byCause[f.Cause]++
	}

	return Report{
		SchemaVersion: SchemaVersion,
		RunID:         uuid.NewString(),
		GeneratedAt:   now,
		Classpath: ClasspathSummary{
			EntryCount:      entryCount,
			Roots:           rootNames,
			UnselectedCount: unselectedCount,
		},
		Findings: findings,
		Summary: Summary{
			TotalFindings: len(findings),
			ByKind:        byKind,
			ByCause:       byCause,
		},
		Warnings: warnings,
	}
}
