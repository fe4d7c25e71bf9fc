package synth

import (
	"github.com/dhamidi/classgen/bytecode"
	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/constpool"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
)

// MaxStackOrLocals is the largest max_stack or max_locals value.
const MaxStackOrLocals = 65535

type Variant int

const (
	VariantMethod Variant = iota
	VariantAbstractMethod
	VariantConstructor
	VariantClassInitializer
	VariantInterfaceMethod
)

var variantNames = [...]string{
	VariantMethod:           "method",
	VariantAbstractMethod:   "abstract method",
	VariantConstructor:      "constructor",
	VariantClassInitializer: "class initializer",
	VariantInterfaceMethod:  "interface method",
}

func (v Variant) String() string { return variantNames[v] }

// HasCode reports whether subroutines of this variant carry a body.
func (v Variant) HasCode() bool {
	return v == VariantMethod || v == VariantConstructor || v == VariantClassInitializer
}

// SubroutineDescription is a method, constructor or class initializer
// under construction. It shares the constant pool of its class.
type SubroutineDescription struct {
	variant   Variant
	ref       typeref.SubroutineRef
	flags     classfile.AccessFlags
	pool      *constpool.Pool
	code      *bytecode.Code
	thrown    []typeref.Class
	maxStack  int
	maxLocals int
}

func newSubroutine(v Variant, ref typeref.SubroutineRef, flags classfile.AccessFlags, pool *constpool.Pool) *SubroutineDescription {
	return &SubroutineDescription{
		variant: v,
		ref:     ref,
		flags:   flags,
		pool:    pool,
		code:    bytecode.NewCode(pool),
	}
}

func (s *SubroutineDescription) Variant() Variant                   { return s.variant }
func (s *SubroutineDescription) Ref() typeref.SubroutineRef         { return s.ref }
func (s *SubroutineDescription) Name() string                       { return s.ref.Name() }
func (s *SubroutineDescription) Descriptor() string                 { return s.ref.Descriptor() }
func (s *SubroutineDescription) AccessFlags() classfile.AccessFlags { return s.flags }
func (s *SubroutineDescription) MaxStack() int                      { return s.maxStack }
func (s *SubroutineDescription) MaxLocals() int                     { return s.maxLocals }
func (s *SubroutineDescription) CodeLength() int                    { return s.code.Len() }
func (s *SubroutineDescription) String() string                     { return s.ref.String() }

func (s *SubroutineDescription) Instructions() []bytecode.Instruction {
	return s.code.Instructions()
}

func (s *SubroutineDescription) Handlers() []bytecode.Handler {
	return s.code.Handlers()
}

func (s *SubroutineDescription) ThrownExceptions() []typeref.Class {
	return append([]typeref.Class(nil), s.thrown...)
}

func (s *SubroutineDescription) permit(what string, allowed ...Variant) error {
	for _, v := range allowed {
		if s.variant == v {
			return nil
		}
	}
	return errors.Wrapf(ErrNotPermitted, "%s on %s %s", what, s.variant, s.ref)
}

func (s *SubroutineDescription) setAccess(access classfile.AccessFlags, allowed ...Variant) error {
	if err := s.permit("access change", allowed...); err != nil {
		return err
	}
	s.flags = s.flags&^classfile.AccessMask | access
	return nil
}

func (s *SubroutineDescription) SetPublic() error {
	return s.setAccess(classfile.AccPublic, VariantMethod, VariantAbstractMethod, VariantConstructor)
}

// SetPrivate is not available on abstract methods, which must be
// overridable.
func (s *SubroutineDescription) SetPrivate() error {
	return s.setAccess(classfile.AccPrivate, VariantMethod, VariantConstructor)
}

func (s *SubroutineDescription) SetProtected() error {
	return s.setAccess(classfile.AccProtected, VariantMethod, VariantAbstractMethod, VariantConstructor)
}

func (s *SubroutineDescription) SetPackageScoped() error {
	return s.setAccess(0, VariantMethod, VariantAbstractMethod, VariantConstructor)
}

func (s *SubroutineDescription) setModifier(what string, flag classfile.AccessFlags, on bool, allowed ...Variant) error {
	if err := s.permit(what, allowed...); err != nil {
		return err
	}
	s.flags = setFlag(s.flags, flag, on)
	return nil
}

func (s *SubroutineDescription) SetStatic(static bool) error {
	return s.setModifier("static change", classfile.AccStatic, static, VariantMethod)
}

func (s *SubroutineDescription) SetFinal(final bool) error {
	return s.setModifier("final change", classfile.AccFinal, final, VariantMethod)
}

func (s *SubroutineDescription) SetSynchronized(sync bool) error {
	return s.setModifier("synchronized change", classfile.AccSynchronized, sync, VariantMethod)
}

func (s *SubroutineDescription) SetStrict(strict bool) error {
	return s.setModifier("strictfp change", classfile.AccStrict, strict,
		VariantMethod, VariantConstructor, VariantClassInitializer)
}

// AddThrownException records a class in the Exceptions attribute. Class
// initializers cannot declare thrown exceptions.
func (s *SubroutineDescription) AddThrownException(class typeref.Class) error {
	if err := s.permit("thrown exception", VariantMethod, VariantAbstractMethod, VariantConstructor, VariantInterfaceMethod); err != nil {
		return err
	}
	if class.IsZero() {
		return errors.Wrap(ErrZeroClass, "thrown exception")
	}
	if len(s.thrown) >= MaxMembers {
		return errors.Wrapf(ErrListFull, "thrown exceptions of %s", s.ref)
	}
	if _, err := s.pool.Utf8(classfile.AttrExceptions); err != nil {
		return err
	}
	if _, err := s.pool.Class(class); err != nil {
		return errors.Wrapf(err, "thrown exception %s", class)
	}
	s.thrown = append(s.thrown, class)
	return nil
}

func (s *SubroutineDescription) requireCode(what string) error {
	if !s.variant.HasCode() {
		return errors.Wrapf(ErrNotPermitted, "%s on %s %s", what, s.variant, s.ref)
	}
	return nil
}

func checkRange(what string, n int) error {
	if n < 0 || n > MaxStackOrLocals {
		return errors.Wrapf(ErrOutOfRange, "%s %d", what, n)
	}
	return nil
}

func (s *SubroutineDescription) SetMaxStack(n int) error {
	if err := s.requireCode("max stack"); err != nil {
		return err
	}
	if err := checkRange("max stack", n); err != nil {
		return err
	}
	s.maxStack = n
	return nil
}

// IncreaseMaxStack raises max stack to n if it is currently lower.
func (s *SubroutineDescription) IncreaseMaxStack(n int) error {
	if err := s.requireCode("max stack"); err != nil {
		return err
	}
	if err := checkRange("max stack", n); err != nil {
		return err
	}
	s.maxStack = max(s.maxStack, n)
	return nil
}

func (s *SubroutineDescription) SetMaxLocals(n int) error {
	if err := s.requireCode("max locals"); err != nil {
		return err
	}
	if err := checkRange("max locals", n); err != nil {
		return err
	}
	s.maxLocals = n
	return nil
}

// IncreaseMaxLocals raises max locals to n if it is currently lower.
func (s *SubroutineDescription) IncreaseMaxLocals(n int) error {
	if err := s.requireCode("max locals"); err != nil {
		return err
	}
	if err := checkRange("max locals", n); err != nil {
		return err
	}
	s.maxLocals = max(s.maxLocals, n)
	return nil
}

// AddInstruction appends ins to the body. The Code attribute name is
// interned before the first instruction so a failed add never leaves a
// body without it.
func (s *SubroutineDescription) AddInstruction(ins bytecode.Instruction) error {
	if err := s.requireCode("instruction"); err != nil {
		return err
	}
	if s.code.Empty() {
		if _, err := s.pool.Utf8(classfile.AttrCode); err != nil {
			return err
		}
	}
	if err := s.code.Add(ins); err != nil {
		return errors.Wrapf(err, "in %s", s.ref)
	}
	return nil
}

func (s *SubroutineDescription) AddInstructions(insns ...bytecode.Instruction) error {
	for _, ins := range insns {
		if err := s.AddInstruction(ins); err != nil {
			return err
		}
	}
	return nil
}

// AddExceptionHandler covers [start, end) with a handler at handler. A
// zero catchType catches every exception.
func (s *SubroutineDescription) AddExceptionHandler(start, end, handler *bytecode.Location, catchType typeref.Class) error {
	if err := s.requireCode("exception handler"); err != nil {
		return err
	}
	if err := s.code.AddHandler(start, end, handler, catchType); err != nil {
		return errors.Wrapf(err, "in %s", s.ref)
	}
	return nil
}
