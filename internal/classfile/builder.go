package classfile

import (
	"bytes"
	"encoding/binary"
)

// Builder synthesizes class file bytes for tests and for the reader's
// own round-trip property (spec §8: "Parse -> re-serialize class
// constant-pool names -> parse: identical name/descriptor sets").
// Production linkage checking never constructs class files; it only
// reads them.
type Builder struct {
	major, minor uint16
	access       AccessFlags
	thisClass    string
	superClass   string
	interfaces   []string
	fields       []Member
	methods      []Member
	innerClasses []InnerClassEntry

	extraClassRefs  []string
	extraMethodRefs []RefInfo
	extraFieldRefs  []RefInfo
}

// NewBuilder starts a class file builder for the given internal name.
func NewBuilder(thisClass string) *Builder {
	return &Builder{
		major:     52,
		minor:     0,
		access:    AccPublic | AccSuper,
		thisClass: thisClass,
	}
}

func (b *Builder) WithSuperClass(name string) *Builder   { b.superClass = name; return b }
func (b *Builder) WithAccess(access AccessFlags) *Builder { b.access = access; return b }
func (b *Builder) WithMajorVersion(major uint16) *Builder { b.major = major; return b }
func (b *Builder) WithInterface(name string) *Builder {
	b.interfaces = append(b.interfaces, name)
	return b
}
func (b *Builder) WithField(m Member) *Builder  { b.fields = append(b.fields, m); return b }
func (b *Builder) WithMethod(m Member) *Builder { b.methods = append(b.methods, m); return b }
func (b *Builder) WithInnerClass(e InnerClassEntry) *Builder {
	b.innerClasses = append(b.innerClasses, e)
	return b
}

// WithClassRef adds an outbound Class constant pool reference that
// isn't otherwise implied by the super/interfaces/members, simulating
// the kind of reference a real Code attribute's instructions would
// pull in.
func (b *Builder) WithClassRef(internalName string) *Builder {
	b.extraClassRefs = append(b.extraClassRefs, internalName)
	return b
}

func (b *Builder) WithMethodRef(owner, name, descriptor string, isInterface bool) *Builder {
	kind := RefKindMethod
	if isInterface {
		kind = RefKindInterfaceMethod
	}
	b.extraMethodRefs = append(b.extraMethodRefs, RefInfo{Kind: kind, Owner: owner, Name: name, Descriptor: descriptor})
	return b
}

func (b *Builder) WithFieldRef(owner, name, descriptor string) *Builder {
	b.extraFieldRefs = append(b.extraFieldRefs, RefInfo{Kind: RefKindField, Owner: owner, Name: name, Descriptor: descriptor})
	return b
}

// cpWriter accumulates constant pool entries and de-duplicates UTF8 and
// Class entries so round-tripped class files look like ones a real
// compiler would emit.
type cpWriter struct {
	buf        bytes.Buffer
	nextIndex  uint16
	utf8Index  map[string]uint16
	classIndex map[string]uint16
	natIndex   map[string]uint16
}

func newCPWriter() *cpWriter {
	return &cpWriter{
		nextIndex:  1,
		utf8Index:  map[string]uint16{},
		classIndex: map[string]uint16{},
		natIndex:   map[string]uint16{},
	}
}

func (w *cpWriter) utf8(s string) uint16 {
	if idx, ok := w.utf8Index[s]; ok {
		return idx
	}
	idx := w.nextIndex
	w.nextIndex++
	w.buf.WriteByte(tagUTF8)
	writeU2(&w.buf, uint16(len(s)))
	w.buf.WriteString(s)
	w.utf8Index[s] = idx
	return idx
}

func (w *cpWriter) class(name string) uint16 {
	if idx, ok := w.classIndex[name]; ok {
		return idx
	}
	nameIdx := w.utf8(name)
	idx := w.nextIndex
	w.nextIndex++
	w.buf.WriteByte(tagClass)
	writeU2(&w.buf, nameIdx)
	w.classIndex[name] = idx
	return idx
}

func (w *cpWriter) nameAndType(name, descriptor string) uint16 {
	key := name + "\x00" + descriptor
	if idx, ok := w.natIndex[key]; ok {
		return idx
	}
	nameIdx := w.utf8(name)
	descIdx := w.utf8(descriptor)
	idx := w.nextIndex
	w.nextIndex++
	w.buf.WriteByte(tagNameAndType)
	writeU2(&w.buf, nameIdx)
	writeU2(&w.buf, descIdx)
	w.natIndex[key] = idx
	return idx
}

func (w *cpWriter) ref(tag byte, owner, name, descriptor string) uint16 {
	classIdx := w.class(owner)
	natIdx := w.nameAndType(name, descriptor)
	idx := w.nextIndex
	w.nextIndex++
	w.buf.WriteByte(tag)
	writeU2(&w.buf, classIdx)
	writeU2(&w.buf, natIdx)
	return idx
}

func writeU2(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU4(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

// Bytes serializes the builder into class file bytes.
func (b *Builder) Bytes() []byte {
	cp := newCPWriter()

	thisIdx := cp.class(b.thisClass)
	var superIdx uint16
	if b.superClass != "" {
		superIdx = cp.class(b.superClass)
	}
	interfaceIdxs := make([]uint16, len(b.interfaces))
	for i, iface := range b.interfaces {
		interfaceIdxs[i] = cp.class(iface)
	}

	type preparedMember struct {
		nameIdx, descIdx uint16
		access           AccessFlags
	}
	prepare := func(members []Member) []preparedMember {
		out := make([]preparedMember, len(members))
		for i, m := range members {
			out[i] = preparedMember{nameIdx: cp.utf8(m.Name), descIdx: cp.utf8(m.Descriptor), access: m.Access}
		}
		return out
	}
	fields := prepare(b.fields)
	methods := prepare(b.methods)

	for _, c := range b.extraClassRefs {
		cp.class(c)
	}
	for _, m := range b.extraMethodRefs {
		tag := byte(tagMethodref)
		if m.Kind == RefKindInterfaceMethod {
			tag = tagInterfaceMethodref
		}
		cp.ref(tag, m.Owner, m.Name, m.Descriptor)
	}
	for _, f := range b.extraFieldRefs {
		cp.ref(tagFieldref, f.Owner, f.Name, f.Descriptor)
	}

	innerClassesAttrName := uint16(0)
	var innerClassesBody bytes.Buffer
	if len(b.innerClasses) > 0 {
		innerClassesAttrName = cp.utf8("InnerClasses")
		writeU2(&innerClassesBody, uint16(len(b.innerClasses)))
		for _, ic := range b.innerClasses {
			writeU2(&innerClassesBody, cp.class(ic.Inner))
			if ic.Outer != "" {
				writeU2(&innerClassesBody, cp.class(ic.Outer))
			} else {
				writeU2(&innerClassesBody, 0)
			}
			if ic.Name != "" {
				writeU2(&innerClassesBody, cp.utf8(ic.Name))
			} else {
				writeU2(&innerClassesBody, 0)
			}
			writeU2(&innerClassesBody, uint16(ic.Access))
		}
	}

	var out bytes.Buffer
	writeU4(&out, classMagic)
	writeU2(&out, b.minor)
	writeU2(&out, b.major)

	writeU2(&out, cp.nextIndex)
	out.Write(cp.buf.Bytes())

	writeU2(&out, uint16(b.access))
	writeU2(&out, thisIdx)
	writeU2(&out, superIdx)

	writeU2(&out, uint16(len(interfaceIdxs)))
	for _, idx := range interfaceIdxs {
		writeU2(&out, idx)
	}

	writeMembers := func(prepared []preparedMember) {
		writeU2(&out, uint16(len(prepared)))
		for _, m := range prepared {
			writeU2(&out, uint16(m.access))
			writeU2(&out, m.nameIdx)
			writeU2(&out, m.descIdx)
			writeU2(&out, 0) // no member attributes
		}
	}
	writeMembers(fields)
	writeMembers(methods)

	if innerClassesAttrName != 0 {
		writeU2(&out, 1)
		writeU2(&out, innerClassesAttrName)
		writeU4(&out, uint32(innerClassesBody.Len()))
		out.Write(innerClassesBody.Bytes())
	} else {
		writeU2(&out, 0)
	}

	return out.Bytes()
}
