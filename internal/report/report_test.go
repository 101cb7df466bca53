package report

import (
	"strings"
	"testing"
	"time"

	"github.com/jvm-linkage/checker/internal/cause"
	"github.com/jvm-linkage/checker/internal/config"
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/linkage"
	"github.com/jvm-linkage/checker/internal/symbol"
)

func sampleReport() Report {
	root := coord.New("g", "app", "1.0.0")
	problems := []linkage.Problem{
		{
			Kind:        linkage.SymbolNotFound,
			SourceClass: "p/A",
			Symbol:      symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/B", Name: "foo", Descriptor: "()V"},
		},
		{
			Kind:        linkage.ClassNotFound,
			SourceClass: "p/C",
			Symbol:      symbol.Symbol{Kind: symbol.KindClass, Owner: "q/Missing"},
		},
	}
	attributions := []cause.Attribution{
		{Cause: cause.DependencyConflict, Selected: coord.New("g", "lib", "2.0.0"), Unselected: coord.New("g", "lib", "1.0.0")},
		{Cause: cause.MissingArtifact, NearestDeclaringArtifact: coord.New("g", "parent", "1.0.0")},
	}
	sourceArtifacts := map[string]coord.Artifact{
		"p/A": root,
		"p/C": root,
	}
	return Build(time.Unix(0, 0).UTC(), []coord.Artifact{root}, 3, 1, problems, attributions, sourceArtifacts, []string{"example warning"})
}

func TestBuildPopulatesSummary(t *testing.T) {
	r := sampleReport()
	if r.Summary.TotalFindings != 2 {
		t.Fatalf("TotalFindings = %d", r.Summary.TotalFindings)
	}
	if r.Summary.ByKind["SymbolNotFound"] != 1 || r.Summary.ByKind["ClassNotFound"] != 1 {
		t.Fatalf("ByKind = %+v", r.Summary.ByKind)
	}
	if r.Summary.ByCause["DependencyConflict"] != 1 || r.Summary.ByCause["MissingArtifact"] != 1 {
		t.Fatalf("ByCause = %+v", r.Summary.ByCause)
	}
	if r.RunID == "" {
		t.Fatal("expected a non-empty RunID")
	}
}

func TestBuildAttachesSourceArtifactAndConflictDetails(t *testing.T) {
	r := sampleReport()
	if r.Findings[0].SourceArtifact == nil || r.Findings[0].SourceArtifact.Name != "app" {
		t.Fatalf("SourceArtifact = %+v", r.Findings[0].SourceArtifact)
	}
	if r.Findings[0].Selected == nil || r.Findings[0].Unselected == nil {
		t.Fatalf("expected Selected/Unselected set for DependencyConflict finding")
	}
	if r.Findings[1].NearestParent == nil || r.Findings[1].NearestParent.Name != "parent" {
		t.Fatalf("NearestParent = %+v", r.Findings[1].NearestParent)
	}
}

func TestFormatText(t *testing.T) {
	out, err := NewFormatter().Format(sampleReport(), config.FormatText)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if !strings.Contains(out, "Findings: 2") {
		t.Fatalf("output missing summary line: %s", out)
	}
	if !strings.Contains(out, "q/B#foo()V") {
		t.Fatalf("output missing symbol: %s", out)
	}
}

func TestFormatTextNoFindings(t *testing.T) {
	r := Build(time.Unix(0, 0).UTC(), nil, 0, 0, nil, nil, nil, nil)
	out, err := NewFormatter().Format(r, config.FormatText)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if !strings.Contains(out, "No linkage problems found.") {
		t.Fatalf("expected no-problems message: %s", out)
	}
}

func TestFormatJSON(t *testing.T) {
	out, err := NewFormatter().Format(sampleReport(), config.FormatJSON)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if !strings.Contains(out, `"schemaVersion"`) || !strings.Contains(out, `"findings"`) {
		t.Fatalf("unexpected JSON output: %s", out)
	}
}

func TestFormatDot(t *testing.T) {
	out, err := NewFormatter().Format(sampleReport(), config.FormatDot)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if !strings.HasPrefix(out, "digraph linkage {") {
		t.Fatalf("expected digraph header, got: %s", out)
	}
	if !strings.Contains(out, `"p/A" -> "q/B"`) {
		t.Fatalf("expected edge from source to symbol owner: %s", out)
	}
}

func TestFormatSARIF(t *testing.T) {
	out, err := NewFormatter().Format(sampleReport(), config.FormatSARIF)
	if err != nil {
		t.Fatalf("Format error: %v", err)
	}
	if !strings.Contains(out, `"$schema"`) || !strings.Contains(out, `"runs"`) {
		t.Fatalf("unexpected SARIF output: %s", out)
	}
	if !strings.Contains(out, "linkage-checker/symbol-not-found") {
		t.Fatalf("expected normalized rule id: %s", out)
	}
}

func TestFormatUnknownFormat(t *testing.T) {
	if _, err := NewFormatter().Format(sampleReport(), config.OutputFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
