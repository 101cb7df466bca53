package repository

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/jvm-linkage/checker/internal/classfile"
	"github.com/jvm-linkage/checker/internal/classpath"
	"github.com/jvm-linkage/checker/internal/coord"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
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

type mapLocator map[coord.ModuleKey]string

func (m mapLocator) Locate(a coord.Artifact) (string, error) {
	path, ok := m[a.ModuleKey()]
	if !ok {
		return "", os.ErrNotExist
	}
	return path, nil
}

func TestFindClassResolvesFirstMatchInClasspathOrder(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.jar")
	writeJar(t, libPath, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
	})

	artifact := coord.New("g", "lib", "1.0.0")
	result := classpath.Result{
		Entries: []classpath.Entry{{Artifact: artifact, ArchivePath: libPath}},
	}
	repo := New(result, mapLocator{}, 4)
	defer repo.Close()

	lookup, found, err := repo.FindClass(context.Background(), "p/A")
	if err != nil {
		t.Fatalf("FindClass error: %v", err)
	}
	if !found {
		t.Fatal("expected p/A to be found")
	}
	if lookup.ClassFile.ThisClass != "p/A" {
		t.Fatalf("ThisClass = %q", lookup.ClassFile.ThisClass)
	}
	if lookup.Entry.Artifact.ModuleKey() != artifact.ModuleKey() {
		t.Fatalf("Entry.Artifact = %+v", lookup.Entry.Artifact)
	}
}

func TestFindClassMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.jar")
	writeJar(t, libPath, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A"),
	})

	result := classpath.Result{
		Entries: []classpath.Entry{{Artifact: coord.New("g", "lib", "1.0.0"), ArchivePath: libPath}},
	}
	repo := New(result, mapLocator{}, 4)
	defer repo.Close()

	_, found, err := repo.FindClass(context.Background(), "p/Missing")
	if err != nil {
		t.Fatalf("FindClass error: %v", err)
	}
	if found {
		t.Fatal("did not expect p/Missing to be found")
	}
}

func TestFindClassRecognizesSystemClasses(t *testing.T) {
	repo := New(classpath.Result{}, mapLocator{}, 4)
	defer repo.Close()

	lookup, found, err := repo.FindClass(context.Background(), "java/util/List")
	if err != nil {
		t.Fatalf("FindClass error: %v", err)
	}
	if !found || !lookup.IsSystem {
		t.Fatalf("expected java/util/List to resolve as a system class, got found=%v isSystem=%v", found, lookup.IsSystem)
	}
}

func TestFindShadowsReportsUnselectedAlternativesContainingSymbol(t *testing.T) {
	dir := t.TempDir()
	shadowPath := filepath.Join(dir, "shadow.jar")
	writeJar(t, shadowPath, map[string]*classfile.Builder{
		"p/Shadowed": classfile.NewBuilder("p/Shadowed"),
	})

	shadowArtifact := coord.New("g", "lib", "0.9.0")
	selectedArtifact := coord.New("g", "lib", "1.0.0")
	result := classpath.Result{
		Unselected: map[coord.ModuleKey][]classpath.Alternative{
			selectedArtifact.ModuleKey(): {
				{
					ModuleKey:         selectedArtifact.ModuleKey(),
					SelectedArtifact:  selectedArtifact,
					CandidateArtifact: shadowArtifact,
				},
			},
		},
	}
	repo := New(result, mapLocator{shadowArtifact.ModuleKey(): shadowPath}, 4)
	defer repo.Close()

	shadows, err := repo.FindShadows(context.Background(), "p/Shadowed")
	if err != nil {
		t.Fatalf("FindShadows error: %v", err)
	}
	if len(shadows) != 1 || shadows[0].Artifact.ModuleKey() != shadowArtifact.ModuleKey() {
		t.Fatalf("shadows = %+v", shadows)
	}
}

func TestPreloadWarmsCacheConcurrently(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.jar")
	classes := map[string]*classfile.Builder{}
	names := []string{"p/A", "p/B", "p/C", "p/D"}
	for _, n := range names {
		classes[n] = classfile.NewBuilder(n)
	}
	writeJar(t, libPath, classes)

	result := classpath.Result{
		Entries: []classpath.Entry{{Artifact: coord.New("g", "lib", "1.0.0"), ArchivePath: libPath}},
	}
	repo := New(result, mapLocator{}, 2)
	defer repo.Close()

	if err := repo.Preload(context.Background(), names, 2); err != nil {
		t.Fatalf("Preload error: %v", err)
	}
	for _, n := range names {
		lookup, found, err := repo.FindClass(context.Background(), n)
		if err != nil || !found {
			t.Fatalf("expected %s to be preloaded, found=%v err=%v", n, found, err)
		}
		if lookup.ClassFile.ThisClass != n {
			t.Fatalf("ThisClass = %q, want %q", lookup.ClassFile.ThisClass, n)
		}
	}
}

func TestArchiveLRUEvictsBeyondBound(t *testing.T) {
	dir := t.TempDir()
	var entries []classpath.Entry
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "lib"+string(rune('A'+i))+".jar")
		writeJar(t, name, map[string]*classfile.Builder{
			"p/Class" + string(rune('A'+i)): classfile.NewBuilder("p/Class" + string(rune('A'+i))),
		})
		entries = append(entries, classpath.Entry{
			Artifact:    coord.New("g", "lib"+string(rune('A'+i)), "1.0.0"),
			ArchivePath: name,
		})
	}

	repo := New(classpath.Result{Entries: entries}, mapLocator{}, 2)
	defer repo.Close()

	for i := 0; i < 5; i++ {
		className := "p/Class" + string(rune('A'+i))
		_, found, err := repo.FindClass(context.Background(), className)
		if err != nil || !found {
			t.Fatalf("expected %s to resolve, found=%v err=%v", className, found, err)
		}
	}
	if repo.archives.order.Len() > 2 {
		t.Fatalf("expected LRU to stay at bound 2, has %d open", repo.archives.order.Len())
	}
}
