package bytecode

import (
	"math"

	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
)

// Frequently used operand-less instructions.
var (
	Nop          = mustSimple(OpNop)
	AconstNull   = mustSimple(OpAconstNull)
	Dup          = mustSimple(OpDup)
	DupX1        = mustSimple(OpDupX1)
	Dup2         = mustSimple(OpDup2)
	Pop          = mustSimple(OpPop)
	Pop2         = mustSimple(OpPop2)
	Swap         = mustSimple(OpSwap)
	Return       = mustSimple(OpReturn)
	Areturn      = mustSimple(OpAreturn)
	Ireturn      = mustSimple(OpIreturn)
	Athrow       = mustSimple(OpAthrow)
	Arraylength  = mustSimple(OpArraylength)
	Iadd         = mustSimple(OpIadd)
	Isub         = mustSimple(OpIsub)
	Imul         = mustSimple(OpImul)
	MonitorEnter = mustSimple(OpMonitorenter)
	MonitorExit  = mustSimple(OpMonitorexit)
)

// Simple returns the instruction for an opcode that takes no operands.
func Simple(op Opcode) (*Fixed, error) {
	if !op.HasNoOperands() {
		return nil, errors.Wrapf(ErrBadOpcode, "%s takes operands", op)
	}
	return newFixed(op), nil
}

func mustSimple(op Opcode) *Fixed {
	f, err := Simple(op)
	if err != nil {
		panic(err)
	}
	return f
}

var (
	loadOps   = [...]Opcode{typeref.FamilyInt: OpIload, typeref.FamilyLong: OpLload, typeref.FamilyFloat: OpFload, typeref.FamilyDouble: OpDload, typeref.FamilyReference: OpAload}
	load0Ops  = [...]Opcode{typeref.FamilyInt: OpIload0, typeref.FamilyLong: OpLload0, typeref.FamilyFloat: OpFload0, typeref.FamilyDouble: OpDload0, typeref.FamilyReference: OpAload0}
	storeOps  = [...]Opcode{typeref.FamilyInt: OpIstore, typeref.FamilyLong: OpLstore, typeref.FamilyFloat: OpFstore, typeref.FamilyDouble: OpDstore, typeref.FamilyReference: OpAstore}
	store0Ops = [...]Opcode{typeref.FamilyInt: OpIstore0, typeref.FamilyLong: OpLstore0, typeref.FamilyFloat: OpFstore0, typeref.FamilyDouble: OpDstore0, typeref.FamilyReference: OpAstore0}
	returnOps = [...]Opcode{typeref.FamilyInt: OpIreturn, typeref.FamilyLong: OpLreturn, typeref.FamilyFloat: OpFreturn, typeref.FamilyDouble: OpDreturn, typeref.FamilyReference: OpAreturn}
)

// local picks the shortest encoding of a local variable access: the
// one-byte _<n> form, the two-byte form or the wide four-byte form.
func local(op, op0 Opcode, index int) (*Fixed, error) {
	switch {
	case index < 0 || index > math.MaxUint16:
		return nil, errors.Wrapf(ErrOperandRange, "local variable %d", index)
	case index <= 3 && op0 != 0:
		return newFixed(op0 + Opcode(index)), nil
	case index <= math.MaxUint8:
		return newFixed(op, byte(index)), nil
	}
	return newFixed(OpWide, byte(op), byte(index>>8), byte(index)), nil
}

// Load pushes local variable index of type t.
func Load(t typeref.Type, index int) (*Fixed, error) {
	f := typeref.FamilyOf(t)
	return local(loadOps[f], load0Ops[f], index)
}

// Store pops into local variable index of type t.
func Store(t typeref.Type, index int) (*Fixed, error) {
	f := typeref.FamilyOf(t)
	return local(storeOps[f], store0Ops[f], index)
}

func Aload(index int) (*Fixed, error)  { return Load(typeref.Object, index) }
func Astore(index int) (*Fixed, error) { return Store(typeref.Object, index) }
func Iload(index int) (*Fixed, error)  { return Load(typeref.Int, index) }
func Istore(index int) (*Fixed, error) { return Store(typeref.Int, index) }

// Ret returns from a jsr subroutine through local variable index.
func Ret(index int) (*Fixed, error) {
	return local(OpRet, 0, index)
}

// Iinc adds delta to int local variable index.
func Iinc(index, delta int) (*Fixed, error) {
	if index < 0 || index > math.MaxUint16 {
		return nil, errors.Wrapf(ErrOperandRange, "local variable %d", index)
	}
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		return nil, errors.Wrapf(ErrOperandRange, "increment %d", delta)
	}
	if index <= math.MaxUint8 && delta >= math.MinInt8 && delta <= math.MaxInt8 {
		return newFixed(OpIinc, byte(index), byte(int8(delta))), nil
	}
	d := uint16(int16(delta))
	return newFixed(OpWide, byte(OpIinc), byte(index>>8), byte(index), byte(d>>8), byte(d)), nil
}

// TypedReturn returns a value of type t, or nothing when t is nil.
func TypedReturn(t typeref.Type) *Fixed {
	if t == nil {
		return Return
	}
	return newFixed(returnOps[typeref.FamilyOf(t)])
}

// ArrayLoad loads an element of an array whose elements have type t.
func ArrayLoad(t typeref.Type) *Fixed {
	return newFixed(arrayOp(t, OpIaload, OpLaload, OpFaload, OpDaload, OpAaload, OpBaload, OpCaload, OpSaload))
}

// ArrayStore stores an element into an array whose elements have type t.
func ArrayStore(t typeref.Type) *Fixed {
	return newFixed(arrayOp(t, OpIastore, OpLastore, OpFastore, OpDastore, OpAastore, OpBastore, OpCastore, OpSastore))
}

func arrayOp(t typeref.Type, i, l, f, d, a, b, c, s Opcode) Opcode {
	switch t {
	case typeref.Int:
		return i
	case typeref.Long:
		return l
	case typeref.Float:
		return f
	case typeref.Double:
		return d
	case typeref.Byte, typeref.Boolean:
		return b
	case typeref.Char:
		return c
	case typeref.Short:
		return s
	}
	return a
}

func Bipush(v int8) *Fixed {
	return newFixed(OpBipush, byte(v))
}

func Sipush(v int16) *Fixed {
	u := uint16(v)
	return newFixed(OpSipush, byte(u>>8), byte(u))
}

// PushInt picks iconst_<n>, bipush, sipush or ldc for v.
func PushInt(v int32) Instruction {
	switch {
	case v >= -1 && v <= 5:
		return newFixed(OpIconstM1 + Opcode(v+1))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return Bipush(int8(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return Sipush(int16(v))
	}
	return LdcInt(v)
}

// Newarray creates a one-dimensional array of primitive elements.
func Newarray(elem *typeref.Primitive) *Fixed {
	return newFixed(OpNewarray, elem.ArrayTypeCode())
}

// Ldc factories; the width is chosen once the pool index is known.
func LdcInt(v int32) *Ldc       { return &Ldc{kind: ldcInt, i: v} }
func LdcFloat(v float32) *Ldc   { return &Ldc{kind: ldcFloat, f: v} }
func LdcString(v string) *Ldc   { return &Ldc{kind: ldcString, s: v} }
func Ldc2Long(v int64) *Ref     { return &Ref{op: OpLdc2W, kind: refLong, long: v} }
func Ldc2Double(v float64) *Ref { return &Ref{op: OpLdc2W, kind: refDouble, double: v} }

// New and the factories below build pool-referencing instructions. A zero
// class, field or method is rejected by Code.Add with ErrNilOperand.
func New(class typeref.Class) *Ref { return classRef(OpNew, class) }

// Anewarray creates a one-dimensional array of elem, which is a class or
// an array type.
func Anewarray(elem typeref.ClassType) *Ref      { return classRef(OpAnewarray, elem) }
func Checkcast(t typeref.ClassType) *Ref         { return classRef(OpCheckcast, t) }
func Instanceof(t typeref.ClassType) *Ref        { return classRef(OpInstanceof, t) }
func Getfield(f typeref.FieldRef) *Ref           { return fieldRef(OpGetfield, f) }
func Putfield(f typeref.FieldRef) *Ref           { return fieldRef(OpPutfield, f) }
func Getstatic(f typeref.FieldRef) *Ref          { return fieldRef(OpGetstatic, f) }
func Putstatic(f typeref.FieldRef) *Ref          { return fieldRef(OpPutstatic, f) }
func Invokevirtual(m typeref.SubroutineRef) *Ref { return methodRef(OpInvokevirtual, refMethod, m) }
func Invokespecial(m typeref.SubroutineRef) *Ref { return methodRef(OpInvokespecial, refMethod, m) }
func Invokestatic(m typeref.SubroutineRef) *Ref  { return methodRef(OpInvokestatic, refMethod, m) }

// Invokeinterface calls an interface method; the count operand is
// derived from the argument words of m.
func Invokeinterface(m typeref.SubroutineRef) *Ref {
	return methodRef(OpInvokeinterface, refInterfaceMethod, m)
}

func classRef(op Opcode, t typeref.ClassType) *Ref {
	return &Ref{op: op, kind: refClass, class: t}
}

func fieldRef(op Opcode, f typeref.FieldRef) *Ref {
	return &Ref{op: op, kind: refField, field: f}
}

func methodRef(op Opcode, kind refKind, m typeref.SubroutineRef) *Ref {
	return &Ref{op: op, kind: kind, method: m}
}

// Multianewarray creates a dims-dimensional array of type a. dims may be
// smaller than the rank of a, leaving the inner arrays null.
func Multianewarray(a *typeref.Array, dims int) (*Ref, error) {
	if a == nil {
		return nil, errors.WithStack(typeref.ErrNilType)
	}
	if dims < 1 || dims > typeref.MaxDimensions {
		return nil, errors.Wrapf(ErrOperandRange, "dimensions %d", dims)
	}
	if dims > a.Dimensions() {
		return nil, errors.Wrapf(ErrTooManyDims, "%d for %s", dims, a.Name())
	}
	return &Ref{op: OpMultianewarray, kind: refClass, class: a, dims: uint8(dims)}, nil
}

// NewBranch returns a jump with a 16-bit offset: goto, jsr, an if<cond>
// or an if_<cmp> opcode.
func NewBranch(op Opcode, target *Location) (*Branch, error) {
	if !op.IsBranch() {
		return nil, errors.Wrapf(ErrBadOpcode, "%s is not a branch", op)
	}
	if target == nil {
		return nil, errors.WithStack(ErrNilTarget)
	}
	return &Branch{op: op, target: target}, nil
}

// Goto is an unconditional 16-bit jump.
func Goto(target *Location) *Branch {
	return &Branch{op: OpGoto, target: target}
}

// NewWideBranch returns goto_w or jsr_w.
func NewWideBranch(op Opcode, target *Location) (*WideBranch, error) {
	if !op.IsWideBranch() {
		return nil, errors.Wrapf(ErrBadOpcode, "%s is not a wide branch", op)
	}
	if target == nil {
		return nil, errors.WithStack(ErrNilTarget)
	}
	return &WideBranch{op: op, target: target}, nil
}

func GotoW(target *Location) *WideBranch {
	return &WideBranch{op: OpGotoW, target: target}
}
