package symbol

import (
	"strings"

	"github.com/jvm-linkage/checker/internal/classfile"
)

// Reference pairs a Symbol with the class file whose constant pool
// contained it (spec §3, "Reference site").
type Reference struct {
	Source *classfile.ClassFile
	Symbol Symbol
}

// Extract enumerates every outbound reference a class file makes:
// every Class constant not referring to the class itself, every
// Methodref/InterfaceMethodref, every Fieldref, and the outer-class
// references implied by the InnerClasses attribute. Results are
// deduplicated within a single class file by (symbol, source) identity
// (spec §4.E). Extraction is a pure function of the class file's
// constant pool, so running it twice yields equal sets (spec §8).
func Extract(cf *classfile.ClassFile) []Reference {
	seen := map[string]struct{}{}
	var refs []Reference

	add := func(sym Symbol) {
		key := dedupKey(sym)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		refs = append(refs, Reference{Source: cf, Symbol: sym})
	}

	cp := cf.ConstantPool
	for i := 0; i < cp.Size(); i++ {
		tag, ok := cp.Tag(uint16(i))
		if !ok {
			continue
		}
		switch tag {
		case classfile.TagClass:
			name, ok := cp.ClassName(uint16(i))
			if !ok || name == cf.ThisClass {
				continue
			}
			if owner, isArray := unwrapArrayElementClass(name); isArray {
				if owner == "" {
					continue // primitive array element, no owner
				}
				name = owner
			}
			viaSuper := name == cf.SuperClass
			add(Symbol{Kind: KindClass, Owner: name, ViaSuper: viaSuper})
		case classfile.TagMethodref, classfile.TagInterfaceMethodref:
			ref, ok := cp.Ref(uint16(i))
			if !ok {
				continue
			}
			add(Symbol{
				Kind: KindMethod, Owner: ref.Owner, Name: ref.Name, Descriptor: ref.Descriptor,
				Interface: ref.Kind == classfile.RefKindInterfaceMethod,
			})
		case classfile.TagFieldref:
			ref, ok := cp.Ref(uint16(i))
			if !ok {
				continue
			}
			add(Symbol{Kind: KindField, Owner: ref.Owner, Name: ref.Name, Descriptor: ref.Descriptor})
		}
	}

	for _, ic := range cf.InnerClasses {
		if ic.Outer == "" || ic.Outer == cf.ThisClass {
			continue
		}
		if ic.Inner != cf.ThisClass {
			continue
		}
		add(Symbol{Kind: KindClass, Owner: ic.Outer})
	}

	return refs
}

func dedupKey(s Symbol) string {
	var b strings.Builder
	b.WriteByte(byte('0' + s.Kind))
	b.WriteByte('|')
	b.WriteString(s.Owner)
	b.WriteByte('|')
	b.WriteString(s.Name)
	b.WriteByte('|')
	b.WriteString(s.Descriptor)
	if s.Interface {
		b.WriteByte('I')
	}
	return b.String()
}

// unwrapArrayElementClass strips array descriptor brackets from a
// Class constant pool entry's name, returning the element class's
// internal name. Primitive array element types have no owner and are
// reported via ok=false-equivalent (empty owner).
func unwrapArrayElementClass(name string) (owner string, isArray bool) {
	if !strings.HasPrefix(name, "[") {
		return "", false
	}
	trimmed := strings.TrimLeft(name, "[")
	if strings.HasPrefix(trimmed, "L") && strings.HasSuffix(trimmed, ";") {
		return trimmed[1 : len(trimmed)-1], true
	}
	return "", true // primitive element type, e.g. "[I"
}
