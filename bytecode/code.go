package bytecode

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/dhamidi/classgen/constpool"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
)

const (
	// MaxCodeLength is the largest code array a Code block accepts.
	MaxCodeLength = 65534
	MaxHandlers   = 65535
)

var lastCodeID atomic.Uint64

// Handler is one exception table entry. A zero CatchType catches
// everything.
type Handler struct {
	Start, End, Handler *Location
	CatchType           typeref.Class
	CatchIndex          uint16
}

// Code is the instruction list of one method body. It interns the
// constant pool entries its instructions need into pool as they are added.
type Code struct {
	id       uint64
	pool     *constpool.Pool
	insns    []Instruction
	length   int
	handlers []Handler
}

func NewCode(pool *constpool.Pool) *Code {
	return &Code{id: lastCodeID.Add(1), pool: pool}
}

// Len is the current length of the code array in bytes.
func (c *Code) Len() int { return c.length }

func (c *Code) Empty() bool { return len(c.insns) == 0 }

func (c *Code) Instructions() []Instruction {
	insns := make([]Instruction, len(c.insns))
	copy(insns, c.insns)
	return insns
}

func (c *Code) Handlers() []Handler {
	hs := make([]Handler, len(c.handlers))
	copy(hs, c.handlers)
	return hs
}

// Owns reports whether loc has been added to this block.
func (c *Code) Owns(loc *Location) bool {
	return loc != nil && loc.code == c.id
}

// Add appends ins at the current end of the block. On failure the block
// is left unchanged.
func (c *Code) Add(ins Instruction) error {
	if ins == nil {
		return errors.WithStack(ErrNilInstruction)
	}
	if err := validate(ins); err != nil {
		return err
	}

	p, stateful := ins.(placed)
	if stateful {
		pl := p.place()
		if pl.attached() {
			return errors.Wrapf(ErrAttached, "%s", ins)
		}
		pl.code, pl.offset = c.id, c.length
	}

	if err := c.resolve(ins); err != nil {
		c.detach(ins)
		return err
	}

	n := ins.Len()
	if c.length+n > MaxCodeLength {
		c.detach(ins)
		return errors.Wrapf(ErrCodeFull, "%d bytes plus %s", c.length, ins)
	}
	c.insns = append(c.insns, ins)
	c.length += n
	return nil
}

// AddAll adds each instruction in turn and stops at the first failure.
func (c *Code) AddAll(insns ...Instruction) error {
	for _, ins := range insns {
		if err := c.Add(ins); err != nil {
			return err
		}
	}
	return nil
}

func validate(ins Instruction) error {
	switch v := ins.(type) {
	case *Branch:
		if v.target == nil {
			return errors.WithStack(ErrNilTarget)
		}
	case *WideBranch:
		if v.target == nil {
			return errors.WithStack(ErrNilTarget)
		}
	case *LookupSwitch:
		if v.def == nil {
			return errors.Wrap(ErrNilTarget, "lookupswitch default")
		}
	case *TableSwitch:
		if v.def == nil {
			return errors.Wrap(ErrNilTarget, "tableswitch default")
		}
	case *Ref:
		return validateRef(v)
	}
	return nil
}

func validateRef(r *Ref) error {
	switch r.kind {
	case refClass:
		if typeref.IsNilClassType(r.class) {
			return errors.Wrapf(ErrNilOperand, "%s class", r.op)
		}
	case refField:
		if r.field.IsZero() || r.field.Class().IsZero() {
			return errors.Wrapf(ErrNilOperand, "%s field", r.op)
		}
	case refMethod, refInterfaceMethod:
		if r.method.IsZero() || r.method.Class().IsZero() {
			return errors.Wrapf(ErrNilOperand, "%s method", r.op)
		}
	}
	return nil
}

func (c *Code) detach(ins Instruction) {
	if p, ok := ins.(placed); ok {
		*p.place() = placement{}
	}
	if l, ok := ins.(*Ldc); ok {
		l.index, l.length = 0, 0
	}
}

// resolve interns the pool entries ins refers to.
func (c *Code) resolve(ins Instruction) error {
	var err error
	switch v := ins.(type) {
	case *Ref:
		switch v.kind {
		case refClass:
			v.index, err = c.pool.Class(v.class)
		case refField:
			v.index, err = c.pool.FieldRef(v.field)
		case refMethod:
			v.index, err = c.pool.MethodRef(v.method)
		case refInterfaceMethod:
			v.index, err = c.pool.InterfaceMethodRef(v.method)
		case refLong:
			v.index, err = c.pool.Long(v.long)
		case refDouble:
			v.index, err = c.pool.Double(v.double)
		}
	case *Ldc:
		var i uint16
		switch v.kind {
		case ldcInt:
			i, err = c.pool.Integer(v.i)
		case ldcFloat:
			i, err = c.pool.Float(v.f)
		case ldcString:
			i, err = c.pool.String(v.s)
		}
		if err == nil {
			v.setIndex(i)
		}
	}
	if err != nil {
		return errors.Wrapf(err, "resolving %s", ins)
	}
	return nil
}

// AddHandler appends an exception table entry covering [start, end).
// All three locations must already be in this block.
func (c *Code) AddHandler(start, end, handler *Location, catchType typeref.Class) error {
	if len(c.handlers) >= MaxHandlers {
		return errors.WithStack(ErrHandlersFull)
	}
	for _, loc := range []*Location{start, end, handler} {
		if !c.Owns(loc) {
			return errors.Wrapf(ErrForeignLocation, "%s", loc.label())
		}
	}
	if start.offset >= end.offset {
		return errors.Wrapf(ErrEmptyRange, "%d..%d", start.offset, end.offset)
	}
	h := Handler{Start: start, End: end, Handler: handler, CatchType: catchType}
	if !catchType.IsZero() {
		i, err := c.pool.Class(catchType)
		if err != nil {
			return errors.Wrapf(err, "catch type %s", catchType)
		}
		h.CatchIndex = i
	}
	c.handlers = append(c.handlers, h)
	return nil
}

// Bytes encodes the code array. Branch offsets are computed here, so
// this is where unresolvable branches are reported.
func (c *Code) Bytes() ([]byte, error) {
	buf := make([]byte, 0, c.length)
	var err error
	for _, ins := range c.insns {
		start := len(buf)
		buf, err = c.encode(buf, ins)
		if err != nil {
			return nil, err
		}
		if got := len(buf) - start; got != ins.Len() {
			return nil, errors.Errorf("%s encoded to %d bytes, expected %d", ins, got, ins.Len())
		}
	}
	return buf, nil
}

func (c *Code) encode(buf []byte, ins Instruction) ([]byte, error) {
	var err error
	switch v := ins.(type) {
	case *Fixed:
		return append(buf, v.Bytes()...), nil
	case *Location:
		return buf, nil
	case *Ref:
		buf = append(buf, byte(v.op), byte(v.index>>8), byte(v.index))
		switch v.op {
		case OpInvokeinterface:
			buf = append(buf, byte(v.method.ArgumentWordCount()+1), 0)
		case OpMultianewarray:
			buf = append(buf, v.dims)
		}
		return buf, nil
	case *Ldc:
		if v.length == 2 {
			return append(buf, byte(OpLdc), byte(v.index)), nil
		}
		return append(buf, byte(OpLdcW), byte(v.index>>8), byte(v.index)), nil
	case *Branch:
		off, err := c.branchOffset(&v.placement, v.target, ins)
		if err != nil {
			return nil, err
		}
		if off < math.MinInt16 || off > math.MaxInt16 {
			return nil, errors.Wrapf(ErrBranchRange, "%s: offset %d", ins, off)
		}
		return append(buf, byte(v.op), byte(uint16(off)>>8), byte(off)), nil
	case *WideBranch:
		off, err := c.branchOffset(&v.placement, v.target, ins)
		if err != nil {
			return nil, err
		}
		buf = append(buf, byte(v.op))
		return binary.BigEndian.AppendUint32(buf, uint32(int32(off))), nil
	case *LookupSwitch:
		buf, err = c.switchHeader(buf, &v.switchBase, OpLookupswitch, ins)
		if err != nil {
			return nil, err
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v.keys)))
		for _, k := range v.keys {
			off, err := c.branchOffset(&v.placement, v.targets[k], ins)
			if err != nil {
				return nil, err
			}
			buf = binary.BigEndian.AppendUint32(buf, uint32(k))
			buf = binary.BigEndian.AppendUint32(buf, uint32(int32(off)))
		}
		return buf, nil
	case *TableSwitch:
		buf, err = c.switchHeader(buf, &v.switchBase, OpTableswitch, ins)
		if err != nil {
			return nil, err
		}
		low, high := v.Bounds()
		buf = binary.BigEndian.AppendUint32(buf, uint32(low))
		buf = binary.BigEndian.AppendUint32(buf, uint32(high))
		def, _ := c.branchOffset(&v.placement, v.def, ins)
		for k := int64(low); k <= int64(high); k++ {
			off := def
			if t, ok := v.targets[int32(k)]; ok {
				if off, err = c.branchOffset(&v.placement, t, ins); err != nil {
					return nil, err
				}
			}
			buf = binary.BigEndian.AppendUint32(buf, uint32(int32(off)))
		}
		return buf, nil
	}
	return nil, errors.Errorf("unknown instruction %T", ins)
}

// switchHeader writes the opcode, alignment padding and default offset.
func (c *Code) switchHeader(buf []byte, s *switchBase, op Opcode, ins Instruction) ([]byte, error) {
	def, err := c.branchOffset(&s.placement, s.def, ins)
	if err != nil {
		return nil, err
	}
	buf = append(buf, byte(op))
	for i := 0; i < s.padding(); i++ {
		buf = append(buf, 0)
	}
	return binary.BigEndian.AppendUint32(buf, uint32(int32(def))), nil
}

func (c *Code) branchOffset(from *placement, target *Location, ins Instruction) (int, error) {
	if from.code != c.id {
		return 0, errors.Wrapf(ErrNotAttached, "%s", ins)
	}
	if !target.attached() {
		return 0, errors.Wrapf(ErrTargetDetached, "%s", ins)
	}
	if target.code != c.id {
		return 0, errors.Wrapf(ErrForeignTarget, "%s", ins)
	}
	return target.offset - from.offset, nil
}
