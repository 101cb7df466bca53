package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedClassFile covers bad magic, truncated input, and invalid
// constant-pool tag chains (spec §4.D). Higher layers skip-and-log a
// class file that fails with this error rather than aborting the run.
var ErrMalformedClassFile = errors.New("classfile: malformed class file")

// ErrUnsupportedVersion is returned for a major class-file version
// newer than this reader understands.
var ErrUnsupportedVersion = errors.New("classfile: unsupported class file version")

const classMagic = 0xCAFEBABE

// MaxSupportedMajorVersion bounds the major class-file version this
// reader will parse. 68 corresponds to Java 24; newer majors are
// rejected as ErrUnsupportedVersion rather than guessed at.
const MaxSupportedMajorVersion = 68

// AccessFlags mirrors the access_flags bitmask shared by classes,
// fields, and methods (with tag-specific subsets of bits meaningful).
type AccessFlags uint16

const (
	AccPublic     AccessFlags = 0x0001
	AccPrivate    AccessFlags = 0x0002
	AccProtected  AccessFlags = 0x0004
	AccStatic     AccessFlags = 0x0008
	AccFinal      AccessFlags = 0x0010
	AccSuper      AccessFlags = 0x0020
	AccSynchron   AccessFlags = 0x0020 // alias on methods
	AccBridge     AccessFlags = 0x0040
	AccVolatile   AccessFlags = 0x0040 // alias on fields
	AccVarargs    AccessFlags = 0x0080
	AccInterface  AccessFlags = 0x0200
	AccAbstract   AccessFlags = 0x0400
	AccSynthetic  AccessFlags = 0x1000
	AccAnnotation AccessFlags = 0x2000
	AccEnum       AccessFlags = 0x4000
)

func (f AccessFlags) Has(bit AccessFlags) bool { return f&bit != 0 }
func (f AccessFlags) IsPublic() bool           { return f.Has(AccPublic) }
func (f AccessFlags) IsPrivate() bool          { return f.Has(AccPrivate) }
func (f AccessFlags) IsProtected() bool        { return f.Has(AccProtected) }
func (f AccessFlags) IsStatic() bool           { return f.Has(AccStatic) }
func (f AccessFlags) IsInterface() bool        { return f.Has(AccInterface) }
func (f AccessFlags) IsAbstract() bool         { return f.Has(AccAbstract) }
func (f AccessFlags) IsSynthetic() bool        { return f.Has(AccSynthetic) }

// Member is a declared field or method: name, descriptor, access flags.
type Member struct {
	Name       string
	Descriptor string
	Access     AccessFlags
}

// InnerClassEntry is one row of the InnerClasses attribute.
type InnerClassEntry struct {
	Inner  string
	Outer  string // empty if the entry has no outer_class_info_index
	Name   string
	Access AccessFlags
}

// ClassFile is the parsed form of a single .class file (spec §3): its
// own internal name, access flags, super/interfaces, declared members,
// and the opaque constant pool the symbol extractor walks.
type ClassFile struct {
	MajorVersion uint16
	MinorVersion uint16

	ThisClass  string
	SuperClass string // empty only for java/lang/Object
	Access     AccessFlags

	Interfaces []string
	Fields     []Member
	Methods    []Member

	InnerClasses []InnerClassEntry

	ConstantPool *ConstantPool

	// SourceArchive is an opaque handle back to the archive this class
	// file was read from; set by the caller (the class repository),
	// not by Parse. It lets a ClassFile be traced back to its
	// classpath entry for cause attribution without the classfile
	// package knowing anything about archives.
	SourceArchive any
}

// Parse reads a single .class file from r.
func Parse(r io.Reader) (*ClassFile, error) {
	br := &byteReader{r: r}

	magic, err := br.u4()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	if magic != classMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrMalformedClassFile, magic)
	}

	minor, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	major, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	if major > MaxSupportedMajorVersion {
		return nil, fmt.Errorf("%w: major version %d", ErrUnsupportedVersion, major)
	}

	cp, err := parseConstantPool(br)
	if err != nil {
		return nil, err
	}

	accessFlags, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}

	thisClassIdx, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	thisClass, ok := cp.ClassName(thisClassIdx)
	if !ok {
		return nil, fmt.Errorf("%w: invalid this_class index", ErrMalformedClassFile)
	}

	superClassIdx, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	var superClass string
	if superClassIdx != 0 {
		superClass, ok = cp.ClassName(superClassIdx)
		if !ok {
			return nil, fmt.Errorf("%w: invalid super_class index", ErrMalformedClassFile)
		}
	}

	interfaceCount, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	interfaces := make([]string, 0, interfaceCount)
	for i := 0; i < int(interfaceCount); i++ {
		idx, err := br.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		name, ok := cp.ClassName(idx)
		if !ok {
			return nil, fmt.Errorf("%w: invalid interface index", ErrMalformedClassFile)
		}
		interfaces = append(interfaces, name)
	}

	fields, err := parseMembers(br, cp)
	if err != nil {
		return nil, err
	}
	methods, err := parseMembers(br, cp)
	if err != nil {
		return nil, err
	}

	innerClasses, err := parseClassAttributes(br, cp)
	if err != nil {
		return nil, err
	}

	return &ClassFile{
		MajorVersion: major,
		MinorVersion: minor,
		ThisClass:    thisClass,
		SuperClass:   superClass,
		Access:       AccessFlags(accessFlags),
		Interfaces:   interfaces,
		Fields:       fields,
		Methods:      methods,
		InnerClasses: innerClasses,
		ConstantPool: cp,
	}, nil
}

func parseConstantPool(br *byteReader) (*ConstantPool, error) {
	count, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	entries := make([]constantPoolEntry, count)
	for i := 1; i < int(count); i++ {
		tag, err := br.u1()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		entry := constantPoolEntry{tag: tag}
		switch tag {
		case tagUTF8:
			length, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			data, err := br.bytes(int(length))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			entry.utf8 = string(data)
		case tagClass, tagModule, tagPackage:
			idx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			entry.nameIndex = idx
		case tagString, tagMethodType:
			idx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			entry.stringIndex = idx
		case tagFieldref, tagMethodref, tagInterfaceMethodref:
			classIdx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			natIdx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			entry.classIndex = classIdx
			entry.nameAndTypeIndex = natIdx
		case tagNameAndType:
			nameIdx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			descIdx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			entry.nameIndex = nameIdx
			entry.descriptorIndex = descIdx
		case tagInteger, tagFloat:
			if _, err := br.bytes(4); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
		case tagLong, tagDouble:
			if _, err := br.bytes(8); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			// Long/Double occupy two constant pool slots.
			i++
		case tagMethodHandle:
			kind, err := br.u1()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			ref, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			entry.referenceKind = kind
			entry.referenceIndex = ref
		case tagDynamic, tagInvokeDynamic:
			bsmIdx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			natIdx, err := br.u2()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
			}
			entry.bootstrapMethodAttrIndex = bsmIdx
			entry.nameAndTypeIndex = natIdx
		default:
			return nil, fmt.Errorf("%w: unknown constant pool tag %d", ErrMalformedClassFile, tag)
		}
		entries[i] = entry
	}
	return &ConstantPool{entries: entries}, nil
}

func parseMembers(br *byteReader, cp *ConstantPool) ([]Member, error) {
	count, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	members := make([]Member, 0, count)
	for i := 0; i < int(count); i++ {
		access, err := br.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		nameIdx, err := br.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		descIdx, err := br.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		name, ok := cp.UTF8(nameIdx)
		if !ok {
			return nil, fmt.Errorf("%w: invalid member name index", ErrMalformedClassFile)
		}
		descriptor, ok := cp.UTF8(descIdx)
		if !ok {
			return nil, fmt.Errorf("%w: invalid member descriptor index", ErrMalformedClassFile)
		}
		if _, err := skipAttributes(br); err != nil {
			return nil, err
		}
		members = append(members, Member{Name: name, Descriptor: descriptor, Access: AccessFlags(access)})
	}
	return members, nil
}

// parseClassAttributes walks the class-level attribute list, skipping
// everything except InnerClasses, whose rows the symbol extractor
// needs for outer-class references (spec §4.E).
func parseClassAttributes(br *byteReader, cp *ConstantPool) ([]InnerClassEntry, error) {
	count, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	var innerClasses []InnerClassEntry
	for i := 0; i < int(count); i++ {
		nameIdx, err := br.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		length, err := br.u4()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		attrName, _ := cp.UTF8(nameIdx)
		body, err := br.bytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		if attrName == "InnerClasses" {
			entries, err := parseInnerClassesAttribute(body, cp)
			if err != nil {
				return nil, err
			}
			innerClasses = append(innerClasses, entries...)
		}
	}
	return innerClasses, nil
}

func parseInnerClassesAttribute(body []byte, cp *ConstantPool) ([]InnerClassEntry, error) {
	inner := &byteReader{r: newSliceReader(body)}
	count, err := inner.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	entries := make([]InnerClassEntry, 0, count)
	for i := 0; i < int(count); i++ {
		innerIdx, err := inner.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		outerIdx, err := inner.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		nameIdx, err := inner.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		access, err := inner.u2()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		innerName, ok := cp.ClassName(innerIdx)
		if !ok {
			continue
		}
		var outerName string
		if outerIdx != 0 {
			outerName, _ = cp.ClassName(outerIdx)
		}
		var simpleName string
		if nameIdx != 0 {
			simpleName, _ = cp.UTF8(nameIdx)
		}
		entries = append(entries, InnerClassEntry{
			Inner: innerName, Outer: outerName, Name: simpleName, Access: AccessFlags(access),
		})
	}
	return entries, nil
}

// skipAttributes skips an attribute_info list without interpreting it,
// returning the raw attribute bodies (without their names) in case a caller
// needs one (the class-level walker uses its own copy of this logic to
// retain InnerClasses).
func skipAttributes(br *byteReader) ([][]byte, error) {
	count, err := br.u2()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
	}
	bodies := make([][]byte, 0, count)
	for i := 0; i < int(count); i++ {
		if _, err := br.u2(); err != nil { // attribute_name_index
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		length, err := br.u4()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		body, err := br.bytes(int(length))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedClassFile, err)
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

// byteReader is a minimal big-endian binary cursor over an io.Reader.
type byteReader struct {
	r io.Reader
}

func (b *byteReader) bytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *byteReader) u1() (byte, error) {
	buf, err := b.bytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *byteReader) u2() (uint16, error) {
	buf, err := b.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (b *byteReader) u4() (uint32, error) {
	buf, err := b.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

type sliceReader struct {
	data []byte
	pos  int
}

func newSliceReader(data []byte) *sliceReader {
	return &sliceReader{data: data}
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}
