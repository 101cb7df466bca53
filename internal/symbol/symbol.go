// Package symbol implements the symbol extractor (spec §4.E): walking
// a parsed class file's constant pool to enumerate every outbound
// symbolic reference it makes.
package symbol

// Kind discriminates the tagged Symbol union (spec §3).
type Kind int

const (
	KindClass Kind = iota
	KindMethod
	KindField
)

// Symbol is a tagged reference to a class, method, or field. Owner is
// always the referenced member's (or class's) internal binary name.
type Symbol struct {
	Kind       Kind
	Owner      string
	Name       string // empty for KindClass
	Descriptor string // empty for KindClass
	Interface  bool   // KindMethod only: Methodref vs InterfaceMethodref

	// ViaSuper marks a ClassSymbol emitted for a class's super-class
	// declaration rather than an ordinary Class constant. It is
	// informational only: once a linkage problem is materialized
	// against a symbol, ViaSuper is cleared so that problems differing
	// only in reference site still deduplicate (spec §9, "super-class
	// symbol downgrade").
	ViaSuper bool
}

// AsOrdinaryClass returns a copy of the symbol with ViaSuper cleared,
// implementing the SuperClassSymbol -> ClassSymbol downgrade spec.md
// requires once a problem is recorded against it.
func (s Symbol) AsOrdinaryClass() Symbol {
	s.ViaSuper = false
	return s
}

// Equal reports value equality, ignoring ViaSuper per the downgrade
// rule above: two otherwise-identical symbols differing only in
// super-ness compare equal so problem dedup collapses them.
func (s Symbol) Equal(other Symbol) bool {
	return s.Kind == other.Kind && s.Owner == other.Owner && s.Name == other.Name &&
		s.Descriptor == other.Descriptor && s.Interface == other.Interface
}

// String renders a human-readable form, e.g. "q/B#foo(I)V" or "q/B".
func (s Symbol) String() string {
	switch s.Kind {
	case KindClass:
		return s.Owner
	case KindMethod, KindField:
		return s.Owner + "#" + s.Name + s.Descriptor
	default:
		return s.Owner
	}
}
