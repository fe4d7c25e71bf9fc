// Package typeref models JVM types and the symbolic references to fields
// and methods that instructions and constant pool entries point at.
//
// A Type is one of *Primitive, *Array or Class. Two types are the same
// type exactly when their descriptors are equal.
package typeref

import (
	"strings"

	"github.com/dhamidi/classgen/errkind"
	"github.com/pkg/errors"
)

var (
	ErrEmptyName       = errkind.New(errkind.Invalid, "empty name")
	ErrBadName         = errkind.New(errkind.Invalid, "illegal character in class name")
	ErrNilType         = errkind.New(errkind.Invalid, "nil type")
	ErrDimensions      = errkind.New(errkind.Invalid, "array dimensions out of range")
	ErrMalformedName   = errkind.New(errkind.Invalid, "malformed array class name")
	ErrBadDescriptor   = errkind.New(errkind.Invalid, "malformed descriptor")
	ErrArgumentsFull   = errkind.New(errkind.Capacity, "argument list full")
	ErrNotVoid         = errkind.New(errkind.Invalid, "constructor must return void")
	ErrUnknownTypeCode = errkind.New(errkind.Invalid, "unknown type code")
)

// MaxDimensions is the largest array rank a classfile can express.
const MaxDimensions = 255

type Type interface {
	// Name is the Java source spelling: "int", "java.lang.String", "int[][]".
	Name() string
	Descriptor() string
	// WordCount is the number of local variable / operand stack words.
	WordCount() int
	String() string

	isType()
}

// ClassType is a type a CONSTANT_Class entry can name: a Class or an *Array.
type ClassType interface {
	Type
	InternalName() string
}

// IsNilClassType reports whether t names nothing: a nil interface, a nil
// *Array or the zero Class.
func IsNilClassType(t ClassType) bool {
	switch v := t.(type) {
	case nil:
		return true
	case *Array:
		return v == nil
	case Class:
		return v.IsZero()
	}
	return false
}

// Family groups types that share load, store and return opcodes.
type Family uint8

const (
	FamilyInt Family = iota
	FamilyLong
	FamilyFloat
	FamilyDouble
	FamilyReference
)

func (f Family) String() string {
	switch f {
	case FamilyInt:
		return "int"
	case FamilyLong:
		return "long"
	case FamilyFloat:
		return "float"
	case FamilyDouble:
		return "double"
	}
	return "reference"
}

type Primitive struct {
	name   string
	desc   byte
	words  int
	atype  uint8
	family Family
}

var (
	Byte    = &Primitive{name: "byte", desc: 'B', words: 1, atype: 8, family: FamilyInt}
	Char    = &Primitive{name: "char", desc: 'C', words: 1, atype: 5, family: FamilyInt}
	Double  = &Primitive{name: "double", desc: 'D', words: 2, atype: 7, family: FamilyDouble}
	Float   = &Primitive{name: "float", desc: 'F', words: 1, atype: 6, family: FamilyFloat}
	Int     = &Primitive{name: "int", desc: 'I', words: 1, atype: 10, family: FamilyInt}
	Long    = &Primitive{name: "long", desc: 'J', words: 2, atype: 11, family: FamilyLong}
	Short   = &Primitive{name: "short", desc: 'S', words: 1, atype: 9, family: FamilyInt}
	Boolean = &Primitive{name: "boolean", desc: 'Z', words: 1, atype: 4, family: FamilyInt}
)

var (
	primitivesByName = map[string]*Primitive{}
	primitivesByChar = map[byte]*Primitive{}
	primitivesByCode = map[uint8]*Primitive{}
)

func init() {
	for _, p := range []*Primitive{Byte, Char, Double, Float, Int, Long, Short, Boolean} {
		primitivesByName[p.name] = p
		primitivesByChar[p.desc] = p
		primitivesByCode[p.atype] = p
	}
}

func (p *Primitive) Name() string       { return p.name }
func (p *Primitive) Descriptor() string { return string(p.desc) }
func (p *Primitive) WordCount() int     { return p.words }
func (p *Primitive) String() string     { return p.name }

// ArrayTypeCode is the operand of newarray for this primitive.
func (p *Primitive) ArrayTypeCode() uint8 { return p.atype }

func (p *Primitive) Family() Family { return p.family }

func (p *Primitive) isType() {}

// PrimitiveForName looks a primitive up by its Java name, e.g. "int".
func PrimitiveForName(name string) (*Primitive, bool) {
	p, ok := primitivesByName[name]
	return p, ok
}

// PrimitiveForDescriptor looks a primitive up by a one-letter descriptor.
func PrimitiveForDescriptor(desc string) (*Primitive, bool) {
	if len(desc) != 1 {
		return nil, false
	}
	return PrimitiveForChar(desc[0])
}

func PrimitiveForChar(c byte) (*Primitive, bool) {
	p, ok := primitivesByChar[c]
	return p, ok
}

// PrimitiveForArrayTypeCode is the inverse of ArrayTypeCode.
func PrimitiveForArrayTypeCode(code uint8) (*Primitive, bool) {
	p, ok := primitivesByCode[code]
	return p, ok
}

// Class names a class or interface. The zero Class is not a valid
// reference; use NewClass.
type Class struct {
	name     string
	internal string
}

var (
	Object    = MustClass("java.lang.Object")
	String    = MustClass("java.lang.String")
	Throwable = MustClass("java.lang.Throwable")
)

// NewClass returns a reference to the class with the given dotted name.
func NewClass(name string) (Class, error) {
	if name == "" {
		return Class{}, errors.WithStack(ErrEmptyName)
	}
	if i := strings.IndexAny(name, "/;[<>"); i >= 0 {
		return Class{}, errors.Wrapf(ErrBadName, "%q at %d in %q", name[i], i, name)
	}
	return Class{name: name, internal: strings.ReplaceAll(name, ".", "/")}, nil
}

// MustClass is NewClass for names known to be valid.
func MustClass(name string) Class {
	c, err := NewClass(name)
	if err != nil {
		panic(err)
	}
	return c
}

// ClassFromInternalName accepts the slash-separated form, "java/lang/Object".
func ClassFromInternalName(internal string) (Class, error) {
	return NewClass(strings.ReplaceAll(internal, "/", "."))
}

func (c Class) Name() string         { return c.name }
func (c Class) InternalName() string { return c.internal }
func (c Class) Descriptor() string   { return "L" + c.internal + ";" }
func (c Class) WordCount() int       { return 1 }
func (c Class) String() string       { return c.name }
func (c Class) IsZero() bool         { return c.name == "" }

// SimpleName is the class name without its package.
func (c Class) SimpleName() string {
	if i := strings.LastIndexByte(c.name, '.'); i >= 0 {
		return c.name[i+1:]
	}
	return c.name
}

// Package is the dotted package name, empty for the default package.
func (c Class) Package() string {
	if i := strings.LastIndexByte(c.name, '.'); i >= 0 {
		return c.name[:i]
	}
	return ""
}

func (c Class) isType() {}

type Array struct {
	component Type
	dims      int
	name      string
	desc      string
}

// NewArray returns the array type with the given component and rank.
// An array component is flattened: NewArray(int[], 2) is int[][][].
func NewArray(component Type, dims int) (*Array, error) {
	if component == nil {
		return nil, errors.WithStack(ErrNilType)
	}
	if a, ok := component.(*Array); ok {
		component = a.component
		dims += a.dims
	}
	if dims < 1 || dims > MaxDimensions {
		return nil, errors.Wrapf(ErrDimensions, "%d", dims)
	}
	return &Array{
		component: component,
		dims:      dims,
		name:      component.Name() + strings.Repeat("[]", dims),
		desc:      strings.Repeat("[", dims) + component.Descriptor(),
	}, nil
}

// MustArray is NewArray for arguments known to be valid.
func MustArray(component Type, dims int) *Array {
	a, err := NewArray(component, dims)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Array) Name() string       { return a.name }
func (a *Array) Descriptor() string { return a.desc }
func (a *Array) WordCount() int     { return 1 }
func (a *Array) String() string     { return a.name }

// InternalName of an array class is its descriptor.
func (a *Array) InternalName() string { return a.desc }

// Component is the innermost element type, never an array.
func (a *Array) Component() Type { return a.component }

func (a *Array) Dimensions() int { return a.dims }

// Element is the type of a[i]: the component for one-dimensional arrays,
// otherwise an array of one less dimension.
func (a *Array) Element() Type {
	if a.dims == 1 {
		return a.component
	}
	return MustArray(a.component, a.dims-1)
}

func (a *Array) isType() {}

// Equal reports whether a and b denote the same type.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Descriptor() == b.Descriptor()
}

// FamilyOf reports the opcode family of t; nil is treated as a reference.
func FamilyOf(t Type) Family {
	if p, ok := t.(*Primitive); ok {
		return p.family
	}
	return FamilyReference
}
