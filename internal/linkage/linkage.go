// Package linkage implements the linkage resolver (spec §4.G): for
// every extracted reference, a JVM-style resolution state machine
// walking the classpath and a class's inheritance chain, surfacing
// problems in a fixed taxonomy.
package linkage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jvm-linkage/checker/internal/classfile"
	"github.com/jvm-linkage/checker/internal/repository"
	"github.com/jvm-linkage/checker/internal/symbol"
)

// ErrMalformedHierarchy is returned (wrapped with the offending class
// name) when the super-class walk reaches a class it already visited,
// per spec §4.G's cycle guard. A revisited superinterface is skipped
// rather than reported, since diamond-shaped interface hierarchies
// reach the same interface more than once.
var ErrMalformedHierarchy = errors.New("malformed class hierarchy: super-class cycle detected")

// ProblemKind is the fixed linkage-problem taxonomy (spec §1, §4.G).
type ProblemKind int

const (
	ClassNotFound ProblemKind = iota
	SymbolNotFound
	FieldNotFound
	InaccessibleMember
	IncompatibleClassChange
	AbstractMethodNotImplemented
)

func (k ProblemKind) String() string {
	switch k {
	case ClassNotFound:
		return "ClassNotFound"
	case SymbolNotFound:
		return "SymbolNotFound"
	case FieldNotFound:
		return "FieldNotFound"
	case InaccessibleMember:
		return "InaccessibleMember"
	case IncompatibleClassChange:
		return "IncompatibleClassChange"
	case AbstractMethodNotImplemented:
		return "AbstractMethodNotImplemented"
	default:
		return "Unknown"
	}
}

// Problem is one unresolved or incompatibly-resolved reference,
// attributed to the exact source class that made it.
type Problem struct {
	Kind        ProblemKind
	Symbol      symbol.Symbol
	SourceClass string // internal name of the class holding the reference
	Detail      string // free-form context, e.g. the accessibility rule that failed
}

// Resolve applies JVM-style resolution to a single reference. It
// returns a Problem when resolution fails and ok=false when it
// resolves cleanly.
func Resolve(ctx context.Context, repo *repository.Repository, ref symbol.Reference) (Problem, bool, error) {
	sourceClass := ""
	if ref.Source != nil {
		sourceClass = ref.Source.ThisClass
	}
	sym := ref.Symbol

	ownerLookup, found, err := repo.FindClass(ctx, sym.Owner)
	if err != nil {
		return Problem{}, false, err
	}
	if !found {
		return Problem{Kind: ClassNotFound, Symbol: sym.AsOrdinaryClass(), SourceClass: sourceClass}, true, nil
	}

	switch sym.Kind {
	case symbol.KindClass:
		return Problem{}, false, nil
	case symbol.KindMethod:
		return resolveMethod(ctx, repo, sourceClass, sym, ownerLookup)
	case symbol.KindField:
		return resolveField(ctx, repo, sourceClass, sym, ownerLookup)
	default:
		return Problem{}, false, nil
	}
}

func resolveMethod(ctx context.Context, repo *repository.Repository, sourceClass string, sym symbol.Symbol, owner repository.Lookup) (Problem, bool, error) {
	if !owner.IsSystem && sym.Interface != owner.ClassFile.Access.IsInterface() {
		return Problem{Kind: IncompatibleClassChange, Symbol: sym, SourceClass: sourceClass,
			Detail: "reference interface-ness does not match owner's actual kind"}, true, nil
	}
	if owner.IsSystem {
		return Problem{}, false, nil // no bootstrap classpath to verify against; assume resolvable
	}

	match, declaringClass, err := walkMethodChain(ctx, repo, owner.ClassFile, sym)
	if err != nil {
		return Problem{}, false, err
	}
	if match == nil {
		return Problem{Kind: SymbolNotFound, Symbol: sym, SourceClass: sourceClass}, true, nil
	}

	if !accessible(*match, declaringClass, sourceClass) {
		return Problem{Kind: InaccessibleMember, Symbol: sym, SourceClass: sourceClass,
			Detail: "method not accessible from " + sourceClass}, true, nil
	}

	if match.Access.IsAbstract() && !owner.ClassFile.Access.IsInterface() && !owner.ClassFile.Access.IsAbstract() {
		return Problem{Kind: AbstractMethodNotImplemented, Symbol: sym, SourceClass: sourceClass,
			Detail: "abstract method has no concrete override between the referenced class and its declaration"}, true, nil
	}

	return Problem{}, false, nil
}

func resolveField(ctx context.Context, repo *repository.Repository, sourceClass string, sym symbol.Symbol, owner repository.Lookup) (Problem, bool, error) {
	if owner.IsSystem {
		return Problem{}, false, nil
	}

	match, declaringClass, err := walkFieldChain(ctx, repo, owner.ClassFile, sym)
	if err != nil {
		return Problem{}, false, err
	}
	if match == nil {
		return Problem{Kind: FieldNotFound, Symbol: sym, SourceClass: sourceClass}, true, nil
	}

	if !accessible(*match, declaringClass, sourceClass) {
		return Problem{Kind: InaccessibleMember, Symbol: sym, SourceClass: sourceClass,
			Detail: "field not accessible from " + sourceClass}, true, nil
	}

	return Problem{}, false, nil
}

// walkMethodChain performs the BFS lookup order spec §4.G describes:
// for a class reference, owner -> superclass chain -> interfaces
// (BFS); for an interface reference, owner -> superinterfaces (BFS).
// java.lang.Object is a system class and is not searched (see
// walkChain).
func walkMethodChain(ctx context.Context, repo *repository.Repository, owner *classfile.ClassFile, sym symbol.Symbol) (*classfile.Member, *classfile.ClassFile, error) {
	return walkChain(ctx, repo, owner, func(cf *classfile.ClassFile) *classfile.Member {
		return findMember(cf.Methods, sym.Name, sym.Descriptor)
	})
}

func walkFieldChain(ctx context.Context, repo *repository.Repository, owner *classfile.ClassFile, sym symbol.Symbol) (*classfile.Member, *classfile.ClassFile, error) {
	return walkChain(ctx, repo, owner, func(cf *classfile.ClassFile) *classfile.Member {
		return findMember(cf.Fields, sym.Name, sym.Descriptor)
	})
}

func findMember(members []classfile.Member, name, descriptor string) *classfile.Member {
	for i := range members {
		if members[i].Name == name && members[i].Descriptor == descriptor {
			return &members[i]
		}
	}
	return nil
}

// walkChain searches owner's hierarchy for a match. For a class owner
// it checks the owner and its superclass chain first, and only then
// searches the interfaces declared along that chain, breadth-first;
// for an interface owner it searches the superinterfaces breadth-first.
// A superclass that was already visited aborts the walk with
// ErrMalformedHierarchy. System classes, java.lang.Object included,
// are never searched, so a member declared only by a system ancestor
// is not found.
func walkChain(ctx context.Context, repo *repository.Repository, owner *classfile.ClassFile, match func(*classfile.ClassFile) *classfile.Member) (*classfile.Member, *classfile.ClassFile, error) {
	visited := map[string]bool{}
	queue := []*classfile.ClassFile{owner}
	var interfaces []*classfile.ClassFile // searched once queue runs dry

	for len(queue) > 0 || len(interfaces) > 0 {
		if len(queue) == 0 {
			queue, interfaces = interfaces, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.ThisClass] {
			continue
		}
		visited[cur.ThisClass] = true

		if m := match(cur); m != nil {
			return m, cur, nil
		}

		for _, iface := range cur.Interfaces {
			if visited[iface] {
				continue
			}
			lookup, found, err := repo.FindClass(ctx, iface)
			if err != nil {
				return nil, nil, err
			}
			if found && !lookup.IsSystem {
				interfaces = append(interfaces, lookup.ClassFile)
			}
		}

		if owner.Access.IsInterface() {
			continue // interfaces have no superclass chain, only superinterfaces
		}
		if cur.SuperClass == "" {
			continue
		}
		if cur.SuperClass == cur.ThisClass || visited[cur.SuperClass] {
			return nil, nil, fmt.Errorf("%w: %s", ErrMalformedHierarchy, cur.ThisClass)
		}
		lookup, found, err := repo.FindClass(ctx, cur.SuperClass)
		if err != nil {
			return nil, nil, err
		}
		if found && !lookup.IsSystem {
			queue = append(queue, lookup.ClassFile)
		}
	}

	return nil, nil, nil
}

// accessible implements the four-way JVM accessibility rule (spec
// §4.G step 4): public everywhere; protected within the same package
// or a subclass relationship (approximated here as same package,
// since subclass-relationship tracking requires the full hierarchy the
// caller already walked to reach declaringClass); package-private
// within the same package; private within the same class.
func accessible(member classfile.Member, declaringClass *classfile.ClassFile, sourceClass string) bool {
	if member.Access.IsPublic() {
		return true
	}
	if member.Access.IsPrivate() {
		return declaringClass.ThisClass == sourceClass
	}
	samePackage := packageOf(declaringClass.ThisClass) == packageOf(sourceClass)
	if member.Access.IsProtected() {
		return samePackage
	}
	return samePackage // package-private
}

func packageOf(internalName string) string {
	idx := strings.LastIndexByte(internalName, '/')
	if idx < 0 {
		return ""
	}
	return internalName[:idx]
}
