package app

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvm-linkage/checker/internal/classfile"
	"github.com/jvm-linkage/checker/internal/config"
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/resolve"
	"github.com/jvm-linkage/checker/internal/testutil"
)

type mapLocator map[coord.ModuleKey]string

func (m mapLocator) Locate(a coord.Artifact) (string, error) {
	path, ok := m[a.ModuleKey()]
	if !ok {
		return "", os.ErrNotExist
	}
	return path, nil
}

func writeJar(t *testing.T, path string, classes map[string]*classfile.Builder) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create jar: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, b := range classes {
		w, err := zw.Create(name + ".class")
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write(b.Bytes()); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestRunReportsMissingSymbol(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "app.jar")
	libPath := filepath.Join(dir, "lib.jar")

	writeJar(t, appPath, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "run", Descriptor: "()V", Access: classfile.AccPublic}).
			WithMethodRef("q/B", "foo", "(I)V", false),
	})
	writeJar(t, libPath, map[string]*classfile.Builder{
		"q/B": classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "foo", Descriptor: "()V", Access: classfile.AccPublic}),
	})

	appArtifact := coord.New("g", "app", "1.0.0")
	libArtifact := coord.New("g", "lib", "1.0.0")
	locator := mapLocator{
		appArtifact.ModuleKey(): appPath,
		libArtifact.ModuleKey(): libPath,
	}
	declarer := resolve.NewStaticDeclarer(map[coord.ModuleKey][]resolve.Declaration{
		appArtifact.ModuleKey(): {{Artifact: libArtifact, Scope: coord.ScopeCompile}},
		libArtifact.ModuleKey(): {},
	})

	checker := New(nil)
	rep, err := checker.Run(context.Background(), Request{
		Roots:    []coord.Artifact{appArtifact},
		Declarer: declarer,
		Locator:  locator,
		Config:   config.Defaults(),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Summary.TotalFindings != 1 {
		t.Fatalf("TotalFindings = %d, findings=%+v", rep.Summary.TotalFindings, rep.Findings)
	}
	if rep.Findings[0].Kind != "SymbolNotFound" || rep.Findings[0].SourceClass != "p/A" {
		t.Fatalf("unexpected finding: %+v", rep.Findings[0])
	}
}

func TestRunCleanClasspathHasNoFindings(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "app.jar")
	writeJar(t, appPath, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
	})
	appArtifact := coord.New("g", "app", "1.0.0")
	locator := mapLocator{appArtifact.ModuleKey(): appPath}
	declarer := resolve.NewStaticDeclarer(map[coord.ModuleKey][]resolve.Declaration{
		appArtifact.ModuleKey(): {},
	})

	checker := New(nil)
	rep, err := checker.Run(context.Background(), Request{
		Roots:    []coord.Artifact{appArtifact},
		Declarer: declarer,
		Locator:  locator,
		Config:   config.Defaults(),
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Summary.TotalFindings != 0 {
		t.Fatalf("expected no findings, got %+v", rep.Findings)
	}
}

func TestRunRespectsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	appPath := filepath.Join(dir, "app.jar")
	writeJar(t, appPath, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
	})
	appArtifact := coord.New("g", "app", "1.0.0")
	locator := mapLocator{appArtifact.ModuleKey(): appPath}
	declarer := resolve.NewStaticDeclarer(map[coord.ModuleKey][]resolve.Declaration{
		appArtifact.ModuleKey(): {},
	})

	checker := New(nil)
	_, err := checker.Run(testutil.CanceledContext(), Request{
		Roots:    []coord.Artifact{appArtifact},
		Declarer: declarer,
		Locator:  locator,
		Config:   config.Defaults(),
	})
	if err == nil {
		t.Fatal("expected error for a cancelled context")
	}
}

func TestRunRejectsEmptyRootSet(t *testing.T) {
	checker := New(nil)
	if _, err := checker.Run(context.Background(), Request{Config: config.Defaults()}); err == nil {
		t.Fatal("expected error for empty root set")
	}
}
