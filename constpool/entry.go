package constpool

import (
	"math"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/internal/binio"
)

// Entry is one constant pool item: *Utf8, *Integer, *Float, *Long, *Double,
// *ClassInfo, *StringInfo, *NameAndType or *Ref.
type Entry interface {
	Tag() classfile.ConstantTag
	// Slots is 2 for long and double, 1 otherwise.
	Slots() int
	key() entryKey
	write(w *binio.Writer)
}

// entryKey gives every entry a comparable value identity. Floating point
// values are keyed by their bits.
type entryKey struct {
	tag  classfile.ConstantTag
	s    string
	a, b uint16
	bits uint64
}

type Utf8 struct {
	Value string
	enc   []byte
}

func (e *Utf8) Tag() classfile.ConstantTag { return classfile.ConstantUtf8 }
func (e *Utf8) Slots() int                 { return 1 }
func (e *Utf8) key() entryKey              { return entryKey{tag: classfile.ConstantUtf8, s: e.Value} }
func (e *Utf8) write(w *binio.Writer) {
	if e.enc == nil {
		e.enc = EncodeModifiedUTF8(e.Value)
	}
	w.U1(uint8(classfile.ConstantUtf8))
	w.U2(uint16(len(e.enc)))
	w.Bytes(e.enc)
}

type Integer struct{ Value int32 }

func (e *Integer) Tag() classfile.ConstantTag { return classfile.ConstantInteger }
func (e *Integer) Slots() int                 { return 1 }
func (e *Integer) key() entryKey {
	return entryKey{tag: classfile.ConstantInteger, bits: uint64(uint32(e.Value))}
}
func (e *Integer) write(w *binio.Writer) {
	w.U1(uint8(classfile.ConstantInteger))
	w.U4(uint32(e.Value))
}

type Float struct{ Value float32 }

func (e *Float) Tag() classfile.ConstantTag { return classfile.ConstantFloat }
func (e *Float) Slots() int                 { return 1 }
func (e *Float) key() entryKey {
	return entryKey{tag: classfile.ConstantFloat, bits: uint64(math.Float32bits(e.Value))}
}
func (e *Float) write(w *binio.Writer) {
	w.U1(uint8(classfile.ConstantFloat))
	w.U4(math.Float32bits(e.Value))
}

type Long struct{ Value int64 }

func (e *Long) Tag() classfile.ConstantTag { return classfile.ConstantLong }
func (e *Long) Slots() int                 { return 2 }
func (e *Long) key() entryKey              { return entryKey{tag: classfile.ConstantLong, bits: uint64(e.Value)} }
func (e *Long) write(w *binio.Writer) {
	w.U1(uint8(classfile.ConstantLong))
	w.U8(uint64(e.Value))
}

type Double struct{ Value float64 }

func (e *Double) Tag() classfile.ConstantTag { return classfile.ConstantDouble }
func (e *Double) Slots() int                 { return 2 }
func (e *Double) key() entryKey {
	return entryKey{tag: classfile.ConstantDouble, bits: math.Float64bits(e.Value)}
}
func (e *Double) write(w *binio.Writer) {
	w.U1(uint8(classfile.ConstantDouble))
	w.U8(math.Float64bits(e.Value))
}

// ClassInfo is a CONSTANT_Class entry; NameIndex points at the internal name.
type ClassInfo struct{ NameIndex uint16 }

func (e *ClassInfo) Tag() classfile.ConstantTag { return classfile.ConstantClass }
func (e *ClassInfo) Slots() int                 { return 1 }
func (e *ClassInfo) key() entryKey              { return entryKey{tag: classfile.ConstantClass, a: e.NameIndex} }
func (e *ClassInfo) write(w *binio.Writer) {
	w.U1(uint8(classfile.ConstantClass))
	w.U2(e.NameIndex)
}

type StringInfo struct{ StringIndex uint16 }

func (e *StringInfo) Tag() classfile.ConstantTag { return classfile.ConstantString }
func (e *StringInfo) Slots() int                 { return 1 }
func (e *StringInfo) key() entryKey {
	return entryKey{tag: classfile.ConstantString, a: e.StringIndex}
}
func (e *StringInfo) write(w *binio.Writer) {
	w.U1(uint8(classfile.ConstantString))
	w.U2(e.StringIndex)
}

type NameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (e *NameAndType) Tag() classfile.ConstantTag { return classfile.ConstantNameAndType }
func (e *NameAndType) Slots() int                 { return 1 }
func (e *NameAndType) key() entryKey {
	return entryKey{tag: classfile.ConstantNameAndType, a: e.NameIndex, b: e.DescriptorIndex}
}
func (e *NameAndType) write(w *binio.Writer) {
	w.U1(uint8(classfile.ConstantNameAndType))
	w.U2(e.NameIndex)
	w.U2(e.DescriptorIndex)
}

// Ref is a Fieldref, Methodref or InterfaceMethodref entry, told apart by
// Kind.
type Ref struct {
	Kind             classfile.ConstantTag
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (e *Ref) Tag() classfile.ConstantTag { return e.Kind }
func (e *Ref) Slots() int                 { return 1 }
func (e *Ref) key() entryKey {
	return entryKey{tag: e.Kind, a: e.ClassIndex, b: e.NameAndTypeIndex}
}
func (e *Ref) write(w *binio.Writer) {
	w.U1(uint8(e.Kind))
	w.U2(e.ClassIndex)
	w.U2(e.NameAndTypeIndex)
}
