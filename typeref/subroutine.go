package typeref

import (
	"github.com/pkg/errors"
)

const (
	ConstructorName      = "<init>"
	ClassInitializerName = "<clinit>"
)

type SubroutineKind uint8

const (
	KindMethod SubroutineKind = iota
	KindConstructor
	KindClassInitializer
)

func (k SubroutineKind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindClassInitializer:
		return "initializer"
	}
	return "method"
}

// SubroutineRef identifies a method, constructor or class initializer.
type SubroutineRef struct {
	kind  SubroutineKind
	class Class
	name  string
	sig   Signature
}

func NewMethodRef(class Class, name string, sig Signature) (SubroutineRef, error) {
	if class.IsZero() {
		return SubroutineRef{}, errors.Wrap(ErrEmptyName, "method owner")
	}
	if name == "" {
		return SubroutineRef{}, errors.Wrap(ErrEmptyName, "method name")
	}
	if name == ConstructorName || name == ClassInitializerName {
		return SubroutineRef{}, errors.Wrapf(ErrBadName, "%s is reserved", name)
	}
	return SubroutineRef{kind: KindMethod, class: class, name: name, sig: sig}, nil
}

// MethodRefFromDescriptor accepts "<init>" and "<clinit>" as well and
// returns the matching kind.
func MethodRefFromDescriptor(class Class, name, desc string) (SubroutineRef, error) {
	sig, err := ParseSignature(desc)
	if err != nil {
		return SubroutineRef{}, err
	}
	switch name {
	case ConstructorName:
		return NewConstructorRef(class, sig)
	case ClassInitializerName:
		if sig.ArgumentCount() != 0 || !sig.IsVoid() {
			return SubroutineRef{}, errors.Wrapf(ErrBadDescriptor, "class initializer descriptor %q", desc)
		}
		return NewClassInitializerRef(class)
	}
	return NewMethodRef(class, name, sig)
}

func NewConstructorRef(class Class, sig Signature) (SubroutineRef, error) {
	if class.IsZero() {
		return SubroutineRef{}, errors.Wrap(ErrEmptyName, "constructor owner")
	}
	if !sig.IsVoid() {
		return SubroutineRef{}, errors.Wrapf(ErrNotVoid, "%s returns %s", class.Name(), sig.ReturnType().Name())
	}
	return SubroutineRef{kind: KindConstructor, class: class, name: ConstructorName, sig: sig}, nil
}

func ConstructorRefFromDescriptor(class Class, desc string) (SubroutineRef, error) {
	sig, err := ParseSignature(desc)
	if err != nil {
		return SubroutineRef{}, err
	}
	return NewConstructorRef(class, sig)
}

func NewClassInitializerRef(class Class) (SubroutineRef, error) {
	if class.IsZero() {
		return SubroutineRef{}, errors.Wrap(ErrEmptyName, "initializer owner")
	}
	return SubroutineRef{kind: KindClassInitializer, class: class, name: ClassInitializerName, sig: VoidSignature}, nil
}

func (r SubroutineRef) Kind() SubroutineKind   { return r.kind }
func (r SubroutineRef) Class() Class           { return r.class }
func (r SubroutineRef) Name() string           { return r.name }
func (r SubroutineRef) Signature() Signature   { return r.sig }
func (r SubroutineRef) Descriptor() string     { return r.sig.Descriptor() }
func (r SubroutineRef) ArgumentTypes() []Type  { return r.sig.ArgumentTypes() }
func (r SubroutineRef) ReturnType() Type       { return r.sig.ReturnType() }
func (r SubroutineRef) ArgumentWordCount() int { return r.sig.ArgumentWordCount() }
func (r SubroutineRef) IsZero() bool           { return r.name == "" }

// Key is the canonical identity "owner.name:descriptor" in internal form.
func (r SubroutineRef) Key() string {
	return r.class.InternalName() + "." + r.name + ":" + r.Descriptor()
}

func (r SubroutineRef) Equal(other SubroutineRef) bool {
	return r.class == other.class && r.name == other.name && r.Descriptor() == other.Descriptor()
}

// String renders the reference like a declaration:
// "void com.example.Foo.run(int,java.lang.String)".
func (r SubroutineRef) String() string {
	ret := "void"
	if t := r.sig.ReturnType(); t != nil {
		ret = t.Name()
	}
	return ret + " " + r.class.Name() + "." + r.name + "(" + r.sig.argumentList() + ")"
}
