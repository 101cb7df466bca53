package linkage

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jvm-linkage/checker/internal/classfile"
	"github.com/jvm-linkage/checker/internal/classpath"
	"github.com/jvm-linkage/checker/internal/coord"
	"github.com/jvm-linkage/checker/internal/repository"
	"github.com/jvm-linkage/checker/internal/symbol"
)

type mapLocator map[coord.ModuleKey]string

func (m mapLocator) Locate(a coord.Artifact) (string, error) {
	path, ok := m[a.ModuleKey()]
	if !ok {
		return "", os.ErrNotExist
	}
	return path, nil
}

func newTestRepo(t *testing.T, classes map[string]*classfile.Builder) *repository.Repository {
	t.Helper()
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "lib.jar")
	f, err := os.Create(jarPath)
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

	result := classpath.Result{
		Entries: []classpath.Entry{{Artifact: coord.New("g", "lib", "1.0.0"), ArchivePath: jarPath}},
	}
	return repository.New(result, mapLocator{}, 4)
}

func sourceOf(t *testing.T, repo *repository.Repository, name string) *classfile.ClassFile {
	t.Helper()
	lookup, found, err := repo.FindClass(context.Background(), name)
	if err != nil || !found {
		t.Fatalf("expected %s to resolve in fixture repo, found=%v err=%v", name, found, err)
	}
	return lookup.ClassFile
}

func TestResolveClassNotFound(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object").WithClassRef("p/Missing"),
	})
	defer repo.Close()

	ref := symbol.Reference{Source: sourceOf(t, repo, "p/A"), Symbol: symbol.Symbol{Kind: symbol.KindClass, Owner: "p/Missing"}}
	problem, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok || problem.Kind != ClassNotFound {
		t.Fatalf("expected ClassNotFound, got ok=%v problem=%+v", ok, problem)
	}
}

func TestResolveMethodFoundOnOwnerItself(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
		"q/B": classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "foo", Descriptor: "()V", Access: classfile.AccPublic}),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/B", Name: "foo", Descriptor: "()V"},
	}
	_, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if ok {
		t.Fatal("expected method to resolve cleanly")
	}
}

func TestResolveMethodFoundViaSuperclassChain(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
		"q/Base": classfile.NewBuilder("q/Base").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "foo", Descriptor: "()V", Access: classfile.AccPublic}),
		"q/Derived": classfile.NewBuilder("q/Derived").WithSuperClass("q/Base"),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/Derived", Name: "foo", Descriptor: "()V"},
	}
	_, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if ok {
		t.Fatal("expected method to resolve via superclass chain")
	}
}

func TestResolveSymbolNotFound(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A":    classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
		"q/B":    classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object"),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/B", Name: "missing", Descriptor: "()V"},
	}
	problem, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok || problem.Kind != SymbolNotFound {
		t.Fatalf("expected SymbolNotFound, got ok=%v problem=%+v", ok, problem)
	}
}

func TestResolveInaccessiblePrivateMethod(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
		"q/B": classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "secret", Descriptor: "()V", Access: classfile.AccPrivate}),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/B", Name: "secret", Descriptor: "()V"},
	}
	problem, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok || problem.Kind != InaccessibleMember {
		t.Fatalf("expected InaccessibleMember, got ok=%v problem=%+v", ok, problem)
	}
}

func TestResolvePackagePrivateAccessibleFromSamePackage(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"q/A": classfile.NewBuilder("q/A").WithSuperClass("java/lang/Object"),
		"q/B": classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "pkg", Descriptor: "()V", Access: 0}),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "q/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/B", Name: "pkg", Descriptor: "()V"},
	}
	_, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if ok {
		t.Fatal("expected package-private method to resolve from the same package")
	}
}

func TestResolveIncompatibleClassChangeOnInterfaceMismatch(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
		"q/B": classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "foo", Descriptor: "()V", Access: classfile.AccPublic}),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/B", Name: "foo", Descriptor: "()V", Interface: true},
	}
	problem, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok || problem.Kind != IncompatibleClassChange {
		t.Fatalf("expected IncompatibleClassChange, got ok=%v problem=%+v", ok, problem)
	}
}

func TestResolveAbstractMethodNotImplemented(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
		"q/B": classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object").
			WithMethod(classfile.Member{Name: "foo", Descriptor: "()V", Access: classfile.AccPublic | classfile.AccAbstract}),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "q/B", Name: "foo", Descriptor: "()V"},
	}
	problem, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok || problem.Kind != AbstractMethodNotImplemented {
		t.Fatalf("expected AbstractMethodNotImplemented, got ok=%v problem=%+v", ok, problem)
	}
}

func TestResolveFieldNotFound(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
		"q/B": classfile.NewBuilder("q/B").WithSuperClass("java/lang/Object"),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindField, Owner: "q/B", Name: "missing", Descriptor: "I"},
	}
	problem, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !ok || problem.Kind != FieldNotFound {
		t.Fatalf("expected FieldNotFound, got ok=%v problem=%+v", ok, problem)
	}
}

func TestResolveSystemClassAlwaysResolvesOptimistically(t *testing.T) {
	repo := newTestRepo(t, map[string]*classfile.Builder{
		"p/A": classfile.NewBuilder("p/A").WithSuperClass("java/lang/Object"),
	})
	defer repo.Close()

	ref := symbol.Reference{
		Source: sourceOf(t, repo, "p/A"),
		Symbol: symbol.Symbol{Kind: symbol.KindMethod, Owner: "java/util/List", Name: "size", Descriptor: "()I"},
	}
	_, ok, err := Resolve(context.Background(), repo, ref)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if ok {
		t.Fatal("expected system class member reference to resolve optimistically")
	}
}

func TestProblemSetDedupsAndDowngradesViaSuper(t *testing.T) {
	set := NewProblemSet()
	set.Add(Problem{Kind: ClassNotFound, SourceClass: "p/A", Symbol: symbol.Symbol{Kind: symbol.KindClass, Owner: "q/Missing", ViaSuper: true}})
	set.Add(Problem{Kind: ClassNotFound, SourceClass: "p/A", Symbol: symbol.Symbol{Kind: symbol.KindClass, Owner: "q/Missing"}})

	if set.Len() != 1 {
		t.Fatalf("expected dedup across ViaSuper symbols, got %d problems", set.Len())
	}
	if set.Problems()[0].Symbol.ViaSuper {
		t.Fatal("expected stored symbol to have ViaSuper cleared")
	}
}

func TestProblemSetKeepsDistinctSources(t *testing.T) {
	set := NewProblemSet()
	set.Add(Problem{Kind: ClassNotFound, SourceClass: "p/A", Symbol: symbol.Symbol{Kind: symbol.KindClass, Owner: "q/Missing"}})
	set.Add(Problem{Kind: ClassNotFound, SourceClass: "p/B", Symbol: symbol.Symbol{Kind: symbol.KindClass, Owner: "q/Missing"}})

	if set.Len() != 2 {
		t.Fatalf("expected 2 distinct problems, got %d", set.Len())
	}
}
