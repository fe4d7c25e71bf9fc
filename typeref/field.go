package typeref

import (
	"github.com/pkg/errors"
)

// FieldRef identifies a field by owning class, name and type.
type FieldRef struct {
	class Class
	name  string
	typ   Type
}

func NewFieldRef(class Class, name string, typ Type) (FieldRef, error) {
	if class.IsZero() {
		return FieldRef{}, errors.Wrap(ErrEmptyName, "field owner")
	}
	if name == "" {
		return FieldRef{}, errors.Wrap(ErrEmptyName, "field name")
	}
	if typ == nil {
		return FieldRef{}, errors.Wrapf(ErrNilType, "field %s", name)
	}
	return FieldRef{class: class, name: name, typ: typ}, nil
}

// FieldRefFromDescriptor is NewFieldRef with the type given as a descriptor.
func FieldRefFromDescriptor(class Class, name, desc string) (FieldRef, error) {
	t, err := ParseFieldDescriptor(desc)
	if err != nil {
		return FieldRef{}, err
	}
	return NewFieldRef(class, name, t)
}

func (f FieldRef) Class() Class       { return f.class }
func (f FieldRef) Name() string       { return f.name }
func (f FieldRef) Type() Type         { return f.typ }
func (f FieldRef) Descriptor() string { return f.typ.Descriptor() }

// IsZero reports whether f is the zero FieldRef, which names no field.
func (f FieldRef) IsZero() bool { return f.name == "" || f.typ == nil }

// Key is the canonical identity "owner.name:descriptor" in internal form.
func (f FieldRef) Key() string {
	return f.class.InternalName() + "." + f.name + ":" + f.typ.Descriptor()
}

func (f FieldRef) Equal(other FieldRef) bool {
	return f.class == other.class && f.name == other.name && Equal(f.typ, other.typ)
}

// String renders the field like a declaration: "int com.example.Foo.count".
func (f FieldRef) String() string {
	return f.typ.Name() + " " + f.class.Name() + "." + f.name
}
