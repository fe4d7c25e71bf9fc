// Package synth assembles class and interface descriptions and emits them
// as class files.
//
// A ClassDescription owns one constant pool. Fields and subroutines are
// created through the class and intern what they need into that pool as
// they are built, so the pool is complete by the time Emit runs.
package synth

import (
	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/constpool"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

// MaxMembers bounds the interface, field, subroutine and thrown exception
// lists.
const MaxMembers = 65535

var (
	ErrDuplicateField      = errkind.New(errkind.Duplicate, "duplicate field")
	ErrDuplicateSubroutine = errkind.New(errkind.Duplicate, "duplicate subroutine")
	ErrListFull            = errkind.New(errkind.Capacity, "list full")
	ErrNotPermitted        = errkind.New(errkind.Invalid, "operation not permitted")
	ErrOutOfRange          = errkind.New(errkind.Invalid, "value out of range")
	ErrZeroClass           = errkind.New(errkind.Invalid, "class reference is empty")
)

var log = commonlog.GetLogger("classgen.synth")

// ClassDescription is a class or interface under construction.
type ClassDescription struct {
	ref         typeref.Class
	iface       bool
	flags       classfile.AccessFlags
	super       typeref.Class
	interfaces  []typeref.Class
	fields      []*FieldDescription
	subroutines []*SubroutineDescription
	pool        *constpool.Pool
}

type ClassOption func(*ClassDescription) error

// WithSuperclass replaces the default java.lang.Object superclass.
func WithSuperclass(super typeref.Class) ClassOption {
	return func(c *ClassDescription) error {
		if super.IsZero() {
			return errors.Wrap(ErrZeroClass, "superclass")
		}
		c.super = super
		return nil
	}
}

func WithFinal() ClassOption {
	return func(c *ClassDescription) error { return c.SetFinal() }
}

func WithAbstract() ClassOption {
	return func(c *ClassDescription) error { return c.SetAbstract() }
}

func WithPackageScope() ClassOption {
	return func(c *ClassDescription) error {
		c.SetPublic(false)
		return nil
	}
}

// NewClass starts a public class extending java.lang.Object.
func NewClass(name string, opts ...ClassOption) (*ClassDescription, error) {
	ref, err := typeref.NewClass(name)
	if err != nil {
		return nil, err
	}
	c := &ClassDescription{
		ref:   ref,
		flags: classfile.AccPublic | classfile.AccSuper,
		super: typeref.Object,
		pool:  constpool.New(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.Wrapf(err, "class %s", name)
		}
	}
	return c, nil
}

// NewInterface starts a public interface.
func NewInterface(name string) (*ClassDescription, error) {
	ref, err := typeref.NewClass(name)
	if err != nil {
		return nil, err
	}
	return &ClassDescription{
		ref:   ref,
		iface: true,
		flags: classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract,
		super: typeref.Object,
		pool:  constpool.New(),
	}, nil
}

func (c *ClassDescription) Ref() typeref.Class                { return c.ref }
func (c *ClassDescription) Name() string                      { return c.ref.Name() }
func (c *ClassDescription) IsInterface() bool                 { return c.iface }
func (c *ClassDescription) AccessFlags() classfile.AccessFlags { return c.flags }
func (c *ClassDescription) Superclass() typeref.Class         { return c.super }
func (c *ClassDescription) Pool() *constpool.Pool             { return c.pool }

func (c *ClassDescription) Superinterfaces() []typeref.Class {
	return append([]typeref.Class(nil), c.interfaces...)
}

func (c *ClassDescription) Fields() []*FieldDescription {
	return append([]*FieldDescription(nil), c.fields...)
}

func (c *ClassDescription) Subroutines() []*SubroutineDescription {
	return append([]*SubroutineDescription(nil), c.subroutines...)
}

func (c *ClassDescription) SetPublic(public bool) {
	if public {
		c.flags |= classfile.AccPublic
	} else {
		c.flags &^= classfile.AccPublic
	}
}

// SetRegular clears the final and abstract modifiers of a class.
func (c *ClassDescription) SetRegular() error {
	return c.setClassModifier(0)
}

func (c *ClassDescription) SetFinal() error {
	return c.setClassModifier(classfile.AccFinal)
}

func (c *ClassDescription) SetAbstract() error {
	return c.setClassModifier(classfile.AccAbstract)
}

func (c *ClassDescription) setClassModifier(mod classfile.AccessFlags) error {
	if c.iface {
		return errors.Wrapf(ErrNotPermitted, "interface %s cannot change class modifiers", c.ref)
	}
	c.flags = c.flags&^(classfile.AccFinal|classfile.AccAbstract) | mod
	return nil
}

func (c *ClassDescription) AddSuperinterface(iface typeref.Class) error {
	if iface.IsZero() {
		return errors.Wrap(ErrZeroClass, "superinterface")
	}
	if len(c.interfaces) >= MaxMembers {
		return errors.Wrapf(ErrListFull, "superinterfaces of %s", c.ref)
	}
	c.interfaces = append(c.interfaces, iface)
	return nil
}

func (c *ClassDescription) addField(f *FieldDescription) error {
	if len(c.fields) >= MaxMembers {
		return errors.Wrapf(ErrListFull, "fields of %s", c.ref)
	}
	c.fields = append(c.fields, f)
	return nil
}

func (c *ClassDescription) addSubroutine(s *SubroutineDescription) error {
	if len(c.subroutines) >= MaxMembers {
		return errors.Wrapf(ErrListFull, "subroutines of %s", c.ref)
	}
	c.subroutines = append(c.subroutines, s)
	return nil
}

// AddField declares a field of type t. On a class the field starts out
// public; on an interface it is public static final.
func (c *ClassDescription) AddField(name string, t typeref.Type) (*FieldDescription, error) {
	ref, err := typeref.NewFieldRef(c.ref, name, t)
	if err != nil {
		return nil, err
	}
	f := &FieldDescription{ref: ref, variant: ClassField, flags: classfile.AccPublic}
	if c.iface {
		f.variant = InterfaceField
		f.flags |= classfile.AccStatic | classfile.AccFinal
	}
	if err := c.addField(f); err != nil {
		return nil, err
	}
	return f, nil
}

// AddConstantField declares a static field initialized from the constant
// pool. The value is interned immediately.
func (c *ClassDescription) AddConstantField(name string, v Constant) (*FieldDescription, error) {
	if v == nil {
		return nil, errors.Wrapf(typeref.ErrNilType, "constant field %s", name)
	}
	ref, err := typeref.NewFieldRef(c.ref, name, v.Type())
	if err != nil {
		return nil, err
	}
	if len(c.fields) >= MaxMembers {
		return nil, errors.Wrapf(ErrListFull, "fields of %s", c.ref)
	}
	idx, err := v.intern(c.pool)
	if err != nil {
		return nil, errors.Wrapf(err, "constant value of %s", ref)
	}
	f := &FieldDescription{
		ref:           ref,
		variant:       ClassConstantField,
		flags:         classfile.AccPublic | classfile.AccStatic,
		constant:      v,
		constantIndex: idx,
	}
	if c.iface {
		f.variant = InterfaceField
		f.flags |= classfile.AccFinal
	}
	if err := c.addField(f); err != nil {
		return nil, err
	}
	return f, nil
}

func (c *ClassDescription) newSubroutine(v Variant, ref typeref.SubroutineRef, flags classfile.AccessFlags) (*SubroutineDescription, error) {
	s := newSubroutine(v, ref, flags, c.pool)
	if err := c.addSubroutine(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *ClassDescription) requireClass(what string) error {
	if c.iface {
		return errors.Wrapf(ErrNotPermitted, "%s on interface %s", what, c.ref)
	}
	return nil
}

// AddMethod declares a public concrete method.
func (c *ClassDescription) AddMethod(name string, sig typeref.Signature) (*SubroutineDescription, error) {
	if err := c.requireClass("method"); err != nil {
		return nil, err
	}
	ref, err := typeref.NewMethodRef(c.ref, name, sig)
	if err != nil {
		return nil, err
	}
	return c.newSubroutine(VariantMethod, ref, classfile.AccPublic)
}

// AddAbstractMethod declares a public abstract method with no body.
func (c *ClassDescription) AddAbstractMethod(name string, sig typeref.Signature) (*SubroutineDescription, error) {
	if err := c.requireClass("abstract method"); err != nil {
		return nil, err
	}
	ref, err := typeref.NewMethodRef(c.ref, name, sig)
	if err != nil {
		return nil, err
	}
	return c.newSubroutine(VariantAbstractMethod, ref, classfile.AccPublic|classfile.AccAbstract)
}

// AddConstructor declares a public constructor. sig must return void.
func (c *ClassDescription) AddConstructor(sig typeref.Signature) (*SubroutineDescription, error) {
	if err := c.requireClass("constructor"); err != nil {
		return nil, err
	}
	ref, err := typeref.NewConstructorRef(c.ref, sig)
	if err != nil {
		return nil, err
	}
	return c.newSubroutine(VariantConstructor, ref, classfile.AccPublic)
}

// AddClassInitializer declares the static initializer. It is allowed on
// classes and interfaces.
func (c *ClassDescription) AddClassInitializer() (*SubroutineDescription, error) {
	ref, err := typeref.NewClassInitializerRef(c.ref)
	if err != nil {
		return nil, err
	}
	return c.newSubroutine(VariantClassInitializer, ref, classfile.AccStatic)
}

// AddInterfaceMethod declares a public abstract interface method.
func (c *ClassDescription) AddInterfaceMethod(name string, sig typeref.Signature) (*SubroutineDescription, error) {
	if !c.iface {
		return nil, errors.Wrapf(ErrNotPermitted, "interface method on class %s", c.ref)
	}
	ref, err := typeref.NewMethodRef(c.ref, name, sig)
	if err != nil {
		return nil, err
	}
	return c.newSubroutine(VariantInterfaceMethod, ref, classfile.AccPublic|classfile.AccAbstract)
}
