package classfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"unicode/utf16"

	"github.com/dhamidi/classgen/errkind"
	"github.com/pkg/errors"
)

var (
	ErrBadMagic   = errkind.New(errkind.Invalid, "not a class file")
	ErrTruncated  = errkind.New(errkind.Invalid, "truncated class file")
	ErrUnknownTag = errkind.New(errkind.Invalid, "unknown constant pool tag")
	ErrTrailing   = errkind.New(errkind.Invalid, "trailing bytes after class file")
	ErrAttribute  = errkind.New(errkind.Invalid, "malformed attribute")
)

func attributeLength(name string, n int) error {
	return errors.Wrapf(ErrAttribute, "%s: %d bytes", name, n)
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = errors.Wrapf(ErrTruncated, "need %d bytes at offset %d", n, r.pos)
		return false
	}
	return true
}

func (r *reader) readU1() uint8 {
	if !r.need(1) {
		return 0
	}
	r.pos++
	return r.data[r.pos-1]
}

func (r *reader) readU2() uint16 {
	if !r.need(2) {
		return 0
	}
	r.pos += 2
	return binary.BigEndian.Uint16(r.data[r.pos-2:])
}

func (r *reader) readU4() uint32 {
	if !r.need(4) {
		return 0
	}
	r.pos += 4
	return binary.BigEndian.Uint32(r.data[r.pos-4:])
}

func (r *reader) readBytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	r.pos += n
	return r.data[r.pos-n : r.pos]
}

func ParseFile(path string) (*ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read class file")
	}
	return ParseBytes(data)
}

func Parse(rd io.Reader) (*ClassFile, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return nil, errors.Wrap(err, "failed to read class file")
	}
	return ParseBytes(buf.Bytes())
}

// ParseBytes decodes a complete class file. Only the constant kinds and
// attributes the synthesizer writes are decoded; other attributes are kept
// raw.
func ParseBytes(data []byte) (*ClassFile, error) {
	r := &reader{data: data}

	if magic := r.readU4(); r.err != nil {
		return nil, errors.Wrap(r.err, "failed to read magic")
	} else if magic != Magic {
		return nil, errors.Wrapf(ErrBadMagic, "magic 0x%X", magic)
	}

	cf := &ClassFile{
		MinorVersion: r.readU2(),
		MajorVersion: r.readU2(),
	}

	count := r.readU2()
	if r.err != nil {
		return nil, errors.Wrap(r.err, "failed to read constant pool count")
	}
	if count == 0 {
		return nil, errors.Wrap(ErrTruncated, "constant pool count is 0")
	}
	cf.ConstantPool = make(ConstantPool, count-1)
	for i := 1; i < int(count); i++ {
		entry, err := r.constant()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read constant pool entry %d", i)
		}
		cf.ConstantPool[i-1] = entry
		if entry.Tag().Slots() == 2 {
			i++
		}
	}

	cf.AccessFlags = AccessFlags(r.readU2())
	cf.ThisClass = r.readU2()
	cf.SuperClass = r.readU2()

	cf.Interfaces = make([]uint16, r.readU2())
	for i := range cf.Interfaces {
		cf.Interfaces[i] = r.readU2()
	}
	if r.err != nil {
		return nil, errors.Wrap(r.err, "failed to read class info")
	}

	var err error
	cf.Fields = make([]FieldInfo, r.readU2())
	for i := range cf.Fields {
		f := &cf.Fields[i]
		f.AccessFlags, f.NameIndex, f.DescriptorIndex = AccessFlags(r.readU2()), r.readU2(), r.readU2()
		if f.Attributes, err = r.attributes(cf.ConstantPool); err != nil {
			return nil, errors.Wrapf(err, "failed to read field %d", i)
		}
	}

	cf.Methods = make([]MethodInfo, r.readU2())
	for i := range cf.Methods {
		m := &cf.Methods[i]
		m.AccessFlags, m.NameIndex, m.DescriptorIndex = AccessFlags(r.readU2()), r.readU2(), r.readU2()
		if m.Attributes, err = r.attributes(cf.ConstantPool); err != nil {
			return nil, errors.Wrapf(err, "failed to read method %d", i)
		}
	}

	if cf.Attributes, err = r.attributes(cf.ConstantPool); err != nil {
		return nil, errors.Wrap(err, "failed to read class attributes")
	}
	if r.pos != len(data) {
		return nil, errors.Wrapf(ErrTrailing, "%d bytes", len(data)-r.pos)
	}
	return cf, nil
}

func (r *reader) constant() (ConstantPoolEntry, error) {
	tag := ConstantTag(r.readU1())
	var entry ConstantPoolEntry
	switch tag {
	case ConstantUtf8:
		entry = &ConstantUtf8Info{Value: decodeModifiedUtf8(r.readBytes(int(r.readU2())))}
	case ConstantInteger:
		entry = &ConstantIntegerInfo{Value: int32(r.readU4())}
	case ConstantFloat:
		entry = &ConstantFloatInfo{Value: math.Float32frombits(r.readU4())}
	case ConstantLong:
		high, low := r.readU4(), r.readU4()
		entry = &ConstantLongInfo{Value: int64(high)<<32 | int64(low)}
	case ConstantDouble:
		high, low := r.readU4(), r.readU4()
		entry = &ConstantDoubleInfo{Value: math.Float64frombits(uint64(high)<<32 | uint64(low))}
	case ConstantClass:
		entry = &ConstantClassInfo{NameIndex: r.readU2()}
	case ConstantString:
		entry = &ConstantStringInfo{StringIndex: r.readU2()}
	case ConstantFieldref, ConstantMethodref, ConstantInterfaceMethodref:
		entry = &ConstantRefInfo{Kind: tag, ClassIndex: r.readU2(), NameAndTypeIndex: r.readU2()}
	case ConstantNameAndType:
		entry = &ConstantNameAndTypeInfo{NameIndex: r.readU2(), DescriptorIndex: r.readU2()}
	default:
		if r.err != nil {
			return nil, r.err
		}
		return nil, errors.Wrapf(ErrUnknownTag, "tag %d", tag)
	}
	if r.err != nil {
		return nil, r.err
	}
	return entry, nil
}

func (r *reader) attributes(cp ConstantPool) ([]AttributeInfo, error) {
	attrs := make([]AttributeInfo, r.readU2())
	for i := range attrs {
		attrs[i].NameIndex = r.readU2()
		attrs[i].Info = r.readBytes(int(r.readU4()))
		if r.err != nil {
			return nil, r.err
		}
		parsed, err := parseAttribute(cp.GetUtf8(attrs[i].NameIndex), attrs[i].Info, cp)
		if err != nil {
			return nil, err
		}
		attrs[i].Parsed = parsed
	}
	if r.err != nil {
		return nil, r.err
	}
	return attrs, nil
}

// decodeModifiedUtf8 reverses the encoding used in Utf8 constants: NUL
// appears as C0 80 and supplementary characters as surrogate pairs.
func decodeModifiedUtf8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, uint16(c))
			i++
		}
	}
	return string(utf16.Decode(units))
}
