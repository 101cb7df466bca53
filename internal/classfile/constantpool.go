package classfile

// Exported tag values, so callers (the symbol extractor) can
// discriminate constant pool slots returned by Tag without duplicating
// the JVM's tag table.
const (
	TagClass              = tagClass
	TagFieldref           = tagFieldref
	TagMethodref          = tagMethodref
	TagInterfaceMethodref = tagInterfaceMethodref
)

// Constant pool tag kinds, per the JVM class file format.
const (
	tagUTF8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// constantPoolEntry is the raw, tag-discriminated payload of one slot.
// Only the fields needed to resolve names/descriptors are retained;
// everything else (bytecode, stack maps, generics signatures) is
// opaque to the reader by design (spec §4.D).
type constantPoolEntry struct {
	tag byte

	// tagUTF8
	utf8 string

	// tagClass: name index (UTF8)
	nameIndex uint16

	// tagFieldref / tagMethodref / tagInterfaceMethodref: class index +
	// name-and-type index
	classIndex       uint16
	nameAndTypeIndex uint16

	// tagNameAndType: name index + descriptor index
	descriptorIndex uint16

	// tagString / tagMethodType: string/descriptor index
	stringIndex uint16

	// tagMethodHandle
	referenceKind  byte
	referenceIndex uint16

	// tagDynamic / tagInvokeDynamic
	bootstrapMethodAttrIndex uint16
}

// ConstantPool is the opaque-to-callers constant pool of a parsed class
// file, exposing only the name/descriptor accessors the symbol
// extractor and linkage resolver need.
type ConstantPool struct {
	entries []constantPoolEntry // 1-indexed; entries[0] is unused
}

func (cp *ConstantPool) at(index uint16) (constantPoolEntry, bool) {
	if int(index) <= 0 || int(index) >= len(cp.entries) {
		return constantPoolEntry{}, false
	}
	return cp.entries[index], true
}

// UTF8 resolves a UTF8 constant pool entry to its string value.
func (cp *ConstantPool) UTF8(index uint16) (string, bool) {
	entry, ok := cp.at(index)
	if !ok || entry.tag != tagUTF8 {
		return "", false
	}
	return entry.utf8, true
}

// ClassName resolves a Class constant pool entry to its internal
// binary name (e.g. "java/util/List", or "[Lcom/foo/Bar;" for array
// class references).
func (cp *ConstantPool) ClassName(index uint16) (string, bool) {
	entry, ok := cp.at(index)
	if !ok || entry.tag != tagClass {
		return "", false
	}
	return cp.UTF8(entry.nameIndex)
}

// NameAndType resolves a NameAndType entry to its (name, descriptor)
// pair.
func (cp *ConstantPool) NameAndType(index uint16) (name, descriptor string, ok bool) {
	entry, found := cp.at(index)
	if !found || entry.tag != tagNameAndType {
		return "", "", false
	}
	name, okName := cp.UTF8(entry.nameIndex)
	descriptor, okDesc := cp.UTF8(entry.descriptorIndex)
	return name, descriptor, okName && okDesc
}

// RefKind distinguishes the three *ref constant pool tags.
type RefKind int

const (
	RefKindField RefKind = iota
	RefKindMethod
	RefKindInterfaceMethod
)

// RefInfo is the resolved form of a Fieldref/Methodref/InterfaceMethodref
// constant pool entry: the owning class's internal name plus the
// referenced member's name and descriptor.
type RefInfo struct {
	Kind       RefKind
	Owner      string
	Name       string
	Descriptor string
}

// Ref resolves a Fieldref/Methodref/InterfaceMethodref entry.
func (cp *ConstantPool) Ref(index uint16) (RefInfo, bool) {
	entry, ok := cp.at(index)
	if !ok {
		return RefInfo{}, false
	}
	var kind RefKind
	switch entry.tag {
	case tagFieldref:
		kind = RefKindField
	case tagMethodref:
		kind = RefKindMethod
	case tagInterfaceMethodref:
		kind = RefKindInterfaceMethod
	default:
		return RefInfo{}, false
	}
	owner, ok := cp.ClassName(entry.classIndex)
	if !ok {
		return RefInfo{}, false
	}
	name, descriptor, ok := cp.NameAndType(entry.nameAndTypeIndex)
	if !ok {
		return RefInfo{}, false
	}
	return RefInfo{Kind: kind, Owner: owner, Name: name, Descriptor: descriptor}, true
}

// Tag exposes the raw tag byte of a slot, used by the symbol extractor
// to enumerate every Class constant without resolving each one
// through a typed accessor first.
func (cp *ConstantPool) Tag(index uint16) (byte, bool) {
	entry, ok := cp.at(index)
	if !ok {
		return 0, false
	}
	return entry.tag, true
}

// Size returns the number of addressable slots, including the unused
// index 0 and the phantom second slot after Long/Double entries.
func (cp *ConstantPool) Size() int {
	return len(cp.entries)
}
