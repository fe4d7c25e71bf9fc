package synth

import (
	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
)

type FieldVariant int

const (
	ClassField FieldVariant = iota
	ClassConstantField
	InterfaceField
)

func (v FieldVariant) String() string {
	switch v {
	case ClassField:
		return "class field"
	case ClassConstantField:
		return "class constant field"
	case InterfaceField:
		return "interface field"
	}
	return "unknown field"
}

// FieldDescription is a field under construction. Interface fields are
// always public static final and reject every modifier change.
type FieldDescription struct {
	ref           typeref.FieldRef
	variant       FieldVariant
	flags         classfile.AccessFlags
	constant      Constant
	constantIndex uint16
}

func (f *FieldDescription) Ref() typeref.FieldRef              { return f.ref }
func (f *FieldDescription) Name() string                       { return f.ref.Name() }
func (f *FieldDescription) Type() typeref.Type                 { return f.ref.Type() }
func (f *FieldDescription) Variant() FieldVariant              { return f.variant }
func (f *FieldDescription) AccessFlags() classfile.AccessFlags { return f.flags }

// Constant returns the initial value, or nil for a field without one.
func (f *FieldDescription) Constant() Constant { return f.constant }

func (f *FieldDescription) String() string { return f.ref.String() }

func (f *FieldDescription) modifiable(what string) error {
	if f.variant == InterfaceField {
		return errors.Wrapf(ErrNotPermitted, "%s on interface field %s", what, f.ref)
	}
	return nil
}

func (f *FieldDescription) setAccess(access classfile.AccessFlags) error {
	if err := f.modifiable("access change"); err != nil {
		return err
	}
	f.flags = f.flags&^classfile.AccessMask | access
	return nil
}

func (f *FieldDescription) SetPublic() error        { return f.setAccess(classfile.AccPublic) }
func (f *FieldDescription) SetPrivate() error       { return f.setAccess(classfile.AccPrivate) }
func (f *FieldDescription) SetProtected() error     { return f.setAccess(classfile.AccProtected) }
func (f *FieldDescription) SetPackageScoped() error { return f.setAccess(0) }

// SetStatic is only available on plain class fields; constant fields are
// always static.
func (f *FieldDescription) SetStatic(static bool) error {
	if f.variant != ClassField {
		return errors.Wrapf(ErrNotPermitted, "static change on %s %s", f.variant, f.ref)
	}
	f.flags = setFlag(f.flags, classfile.AccStatic, static)
	return nil
}

func (f *FieldDescription) setMutability(mod classfile.AccessFlags) error {
	if err := f.modifiable("modifier change"); err != nil {
		return err
	}
	f.flags = f.flags&^(classfile.AccFinal|classfile.AccVolatile) | mod
	return nil
}

// SetFinal makes the field final and clears volatile.
func (f *FieldDescription) SetFinal() error { return f.setMutability(classfile.AccFinal) }

// SetVolatile makes the field volatile and clears final.
func (f *FieldDescription) SetVolatile() error { return f.setMutability(classfile.AccVolatile) }

func (f *FieldDescription) SetNonFinalNonVolatile() error { return f.setMutability(0) }

func (f *FieldDescription) SetTransient(transient bool) error {
	if err := f.modifiable("transient change"); err != nil {
		return err
	}
	f.flags = setFlag(f.flags, classfile.AccTransient, transient)
	return nil
}

func setFlag(flags, flag classfile.AccessFlags, on bool) classfile.AccessFlags {
	if on {
		return flags | flag
	}
	return flags &^ flag
}
