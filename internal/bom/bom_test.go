package bom

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAMLManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.yml")
	contents := `
artifacts:
  - group: com.example
    name: widgets
    version: 1.2.3
  - group: com.example
    name: gadgets
    version: 4.5.6
    classifier: sources
exclusions:
  - from: { group: com.example, name: widgets }
    to: { group: com.legacy }
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := Load(dir, "bom.yml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(manifest.Roots) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(manifest.Roots))
	}
	if manifest.Roots[1].Classifier != "sources" {
		t.Fatalf("expected classifier sources, got %+v", manifest.Roots[1])
	}
	if len(manifest.Exclusions) != 1 || manifest.Exclusions[0].ToGroup != "com.legacy" {
		t.Fatalf("Exclusions = %+v", manifest.Exclusions)
	}
}

func TestLoadJSONManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.json")
	contents := `{"artifacts":[{"group":"com.example","name":"widgets","version":"1.0.0"}]}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	manifest, err := Load(dir, "bom.json")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(manifest.Roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(manifest.Roots))
	}
}

func TestLoadRejectsEmptyArtifactList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.yml")
	if err := os.WriteFile(path, []byte("artifacts: []\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := Load(dir, "bom.yml"); err == nil {
		t.Fatal("expected error for empty artifact list")
	}
}

func TestLoadParsesEdgesIntoStaticDeclarer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.yml")
	contents := `
artifacts:
  - group: com.example
    name: app
    version: 1.0.0
edges:
  - from: { group: com.example, name: app, version: 1.0.0 }
    to: { group: com.example, name: lib, version: 2.0.0 }
    scope: runtime
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	manifest, err := Load(dir, "bom.yml")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(manifest.Edges) != 1 || manifest.Edges[0].Scope != "runtime" {
		t.Fatalf("Edges = %+v", manifest.Edges)
	}

	declarer := manifest.Declarer()
	deps, err := declarer.DeclaredDependencies(context.Background(), manifest.Roots[0])
	if err != nil {
		t.Fatalf("DeclaredDependencies error: %v", err)
	}
	if len(deps) != 1 || deps[0].Artifact.Name != "lib" {
		t.Fatalf("deps = %+v", deps)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.yml")
	contents := "artifacts:\n  - group: com.example\n    version: 1.0.0\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := Load(dir, "bom.yml"); err == nil {
		t.Fatal("expected error for missing name field")
	}
}
