// Package bytecode models JVM instructions and the code array they are
// assembled into.
//
// Instructions are plain values until they are added to a Code block.
// Adding one attaches it at the current end of the block and resolves the
// constant pool entries it refers to. Branch offsets are only computed
// when the block is encoded, so a branch may point at a Location that is
// added later.
package bytecode

import (
	"fmt"
	"sort"

	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
)

var (
	ErrAttached        = errkind.New(errkind.State, "instruction already attached")
	ErrNotAttached     = errkind.New(errkind.Resolution, "instruction not attached")
	ErrTargetDetached  = errkind.New(errkind.Resolution, "branch target not attached")
	ErrForeignTarget   = errkind.New(errkind.Resolution, "branch target in a different code block")
	ErrBranchRange     = errkind.New(errkind.Resolution, "branch offset out of range")
	ErrIndexUnknown    = errkind.New(errkind.Resolution, "constant pool index unknown")
	ErrBadOpcode       = errkind.New(errkind.Invalid, "opcode does not fit instruction")
	ErrOperandRange    = errkind.New(errkind.Invalid, "operand out of range")
	ErrNilInstruction  = errkind.New(errkind.Invalid, "nil instruction")
	ErrNilTarget       = errkind.New(errkind.Invalid, "nil branch target")
	ErrNilOperand      = errkind.New(errkind.Invalid, "missing class, field or method operand")
	ErrTooManyDims     = errkind.New(errkind.Invalid, "more dimensions than the array type")
	ErrCodeFull        = errkind.New(errkind.Capacity, "instruction list full")
	ErrHandlersFull    = errkind.New(errkind.Capacity, "exception handler list full")
	ErrForeignLocation = errkind.New(errkind.Invalid, "location not in this code block")
	ErrEmptyRange      = errkind.New(errkind.Invalid, "handler range is empty")
)

// Instruction is one of *Fixed, *Ref, *Ldc, *Branch, *WideBranch,
// *Location, *LookupSwitch or *TableSwitch.
type Instruction interface {
	// Len is the encoded length in bytes. Switches report 0 and Ldc
	// reports 0 until they have been added to a Code block.
	Len() int
	String() string

	isInstruction()
}

// placement records where an instruction was attached. code is 0 while
// the instruction is unattached.
type placement struct {
	code   uint64
	offset int
}

func (p *placement) place() *placement { return p }

func (p *placement) attached() bool { return p.code != 0 }

// Offset is the byte offset within the owning code block.
func (p *placement) Offset() (int, bool) {
	return p.offset, p.code != 0
}

type placed interface {
	place() *placement
}

// Fixed is an instruction whose operands are known when it is created.
// Fixed values carry no state and may be added any number of times.
type Fixed struct {
	op       Opcode
	operands []byte
}

func newFixed(op Opcode, operands ...byte) *Fixed {
	return &Fixed{op: op, operands: operands}
}

func (f *Fixed) Opcode() Opcode { return f.op }
func (f *Fixed) Len() int       { return 1 + len(f.operands) }

// Bytes is the full encoding.
func (f *Fixed) Bytes() []byte {
	return append([]byte{byte(f.op)}, f.operands...)
}

func (f *Fixed) String() string {
	if len(f.operands) == 0 {
		return f.op.String()
	}
	return fmt.Sprintf("%s % x", f.op, f.operands)
}

func (f *Fixed) isInstruction() {}

type refKind uint8

const (
	refClass refKind = iota
	refField
	refMethod
	refInterfaceMethod
	refLong
	refDouble
)

// Ref is an opcode followed by a two byte constant pool index. The
// invokeinterface and multianewarray forms carry extra trailing bytes.
type Ref struct {
	placement
	op     Opcode
	kind   refKind
	class  typeref.ClassType
	field  typeref.FieldRef
	method typeref.SubroutineRef
	long   int64
	double float64
	dims   uint8
	index  uint16
}

func (r *Ref) Opcode() Opcode { return r.op }

func (r *Ref) Len() int {
	switch r.op {
	case OpInvokeinterface:
		return 5
	case OpMultianewarray:
		return 4
	}
	return 3
}

// Index is the resolved constant pool index.
func (r *Ref) Index() (uint16, error) {
	if !r.attached() {
		return 0, errors.Wrapf(ErrIndexUnknown, "%s", r)
	}
	return r.index, nil
}

func (r *Ref) operand() string {
	switch r.kind {
	case refClass:
		return r.class.Name()
	case refField:
		return r.field.String()
	case refMethod, refInterfaceMethod:
		return r.method.String()
	case refLong:
		return fmt.Sprintf("%dL", r.long)
	}
	return fmt.Sprintf("%gD", r.double)
}

func (r *Ref) String() string {
	if r.op == OpMultianewarray {
		return fmt.Sprintf("%s %s %d", r.op, r.operand(), r.dims)
	}
	return r.op.String() + " " + r.operand()
}

func (r *Ref) isInstruction() {}

type ldcKind uint8

const (
	ldcInt ldcKind = iota
	ldcFloat
	ldcString
)

// Ldc loads an int, float or string constant. It is encoded as ldc when
// the pool index fits in one byte and as ldc_w otherwise.
type Ldc struct {
	placement
	kind   ldcKind
	i      int32
	f      float32
	s      string
	index  uint16
	length int
}

func (l *Ldc) Len() int { return l.length }

func (l *Ldc) Index() (uint16, error) {
	if l.length == 0 {
		return 0, errors.Wrapf(ErrIndexUnknown, "%s", l)
	}
	return l.index, nil
}

// setIndex fixes the index and, with it, the encoded length.
func (l *Ldc) setIndex(i uint16) {
	l.index = i
	if i >= 1 && i <= 255 {
		l.length = 2
	} else {
		l.length = 3
	}
}

func (l *Ldc) String() string {
	switch l.kind {
	case ldcInt:
		return fmt.Sprintf("ldc %d", l.i)
	case ldcFloat:
		return fmt.Sprintf("ldc %gF", l.f)
	}
	return fmt.Sprintf("ldc %q", l.s)
}

func (l *Ldc) isInstruction() {}

// Location marks a position in a code block. It encodes to nothing.
type Location struct {
	placement
	name string
}

// NewLocation returns an unnamed location.
func NewLocation() *Location { return &Location{} }

// NewLabel returns a location that prints as name.
func NewLabel(name string) *Location { return &Location{name: name} }

func (l *Location) Len() int     { return 0 }
func (l *Location) Name() string { return l.name }

func (l *Location) String() string {
	if l.name != "" {
		return l.name + ":"
	}
	if off, ok := l.Offset(); ok {
		return fmt.Sprintf("@%d:", off)
	}
	return "@?:"
}

func (l *Location) label() string {
	if l == nil {
		return "<nil>"
	}
	s := l.String()
	return s[:len(s)-1]
}

func (l *Location) isInstruction() {}

// Branch is a conditional or unconditional jump with a 16-bit offset.
type Branch struct {
	placement
	op     Opcode
	target *Location
}

func (b *Branch) Opcode() Opcode    { return b.op }
func (b *Branch) Target() *Location { return b.target }
func (b *Branch) Len() int          { return 3 }
func (b *Branch) String() string    { return b.op.String() + " " + b.target.label() }
func (b *Branch) isInstruction()    {}

// WideBranch is goto_w or jsr_w with a 32-bit offset.
type WideBranch struct {
	placement
	op     Opcode
	target *Location
}

func (b *WideBranch) Opcode() Opcode    { return b.op }
func (b *WideBranch) Target() *Location { return b.target }
func (b *WideBranch) Len() int          { return 5 }
func (b *WideBranch) String() string    { return b.op.String() + " " + b.target.label() }
func (b *WideBranch) isInstruction()    {}

type switchBase struct {
	placement
	def     *Location
	keys    []int32
	targets map[int32]*Location
}

// AddCase maps value to target. A later case for the same value replaces
// the earlier one. Cases cannot be added once the switch is attached.
func (s *switchBase) AddCase(value int32, target *Location) error {
	if target == nil {
		return errors.WithStack(ErrNilTarget)
	}
	if s.attached() {
		return errors.Wrapf(ErrAttached, "adding case %d", value)
	}
	if s.targets == nil {
		s.targets = make(map[int32]*Location)
	}
	if _, ok := s.targets[value]; !ok {
		i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= value })
		s.keys = append(s.keys, 0)
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = value
	}
	s.targets[value] = target
	return nil
}

func (s *switchBase) Default() *Location { return s.def }

// Cases returns the case values in ascending order.
func (s *switchBase) Cases() []int32 {
	keys := make([]int32, len(s.keys))
	copy(keys, s.keys)
	return keys
}

func (s *switchBase) Target(value int32) (*Location, bool) {
	t, ok := s.targets[value]
	return t, ok
}

// padding is the number of zero bytes after the opcode that align the
// operands to a multiple of four.
func (s *switchBase) padding() int {
	return 3 - s.offset%4
}

func (s *switchBase) describe(op Opcode) string {
	str := fmt.Sprintf("%s default=%s", op, s.def.label())
	for _, k := range s.keys {
		str += fmt.Sprintf(" %d:%s", k, s.targets[k].label())
	}
	return str
}

// LookupSwitch is encoded as sorted key/offset pairs.
type LookupSwitch struct {
	switchBase
}

// NewLookupSwitch returns a switch that jumps to def for unlisted keys.
// Cases must be added before it joins a code block.
func NewLookupSwitch(def *Location) *LookupSwitch {
	return &LookupSwitch{switchBase{def: def}}
}

func (s *LookupSwitch) Len() int {
	if !s.attached() {
		return 0
	}
	return 1 + s.padding() + 4 + 4 + 8*len(s.keys)
}

func (s *LookupSwitch) String() string { return s.describe(OpLookupswitch) }
func (s *LookupSwitch) isInstruction() {}

// TableSwitch is encoded as a dense jump table from the lowest to the
// highest case value; gaps jump to the default.
type TableSwitch struct {
	switchBase
}

// NewTableSwitch returns a switch that jumps to def for values outside
// its cases. Cases must be added before it joins a code block.
func NewTableSwitch(def *Location) *TableSwitch {
	return &TableSwitch{switchBase{def: def}}
}

// Bounds returns the lowest and highest case values, both 0 when the
// switch has no cases.
func (s *TableSwitch) Bounds() (low, high int32) {
	if len(s.keys) == 0 {
		return 0, 0
	}
	return s.keys[0], s.keys[len(s.keys)-1]
}

func (s *TableSwitch) entries() int64 {
	low, high := s.Bounds()
	return int64(high) - int64(low) + 1
}

func (s *TableSwitch) Len() int {
	if !s.attached() {
		return 0
	}
	return 1 + s.padding() + 4 + 8 + 4*int(s.entries())
}

func (s *TableSwitch) String() string { return s.describe(OpTableswitch) }
func (s *TableSwitch) isInstruction() {}
