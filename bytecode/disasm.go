package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dhamidi/classgen/errkind"
	"github.com/pkg/errors"
)

var (
	ErrTruncated     = errkind.New(errkind.Invalid, "truncated code array")
	ErrUnknownOpcode = errkind.New(errkind.Invalid, "unknown opcode")
)

// Decoded is one instruction read back from a code array.
type Decoded struct {
	Offset int
	Op     Opcode
	Len    int
	// Wide is set for instructions prefixed by wide; Op is then the
	// modified opcode.
	Wide bool
	// Index is a local variable or constant pool index.
	Index int
	// Value is an immediate: bipush/sipush value, iinc delta, newarray
	// type code, invokeinterface count or multianewarray dimensions.
	Value int
	// Target is the absolute offset a branch jumps to.
	Target int
	Switch *DecodedSwitch
}

// DecodedSwitch holds absolute jump offsets of a tableswitch or
// lookupswitch.
type DecodedSwitch struct {
	Default int
	Keys    []int32
	Targets []int
}

// Lookup returns where the switch jumps for key.
func (s *DecodedSwitch) Lookup(key int32) int {
	for i, k := range s.Keys {
		if k == key {
			return s.Targets[i]
		}
	}
	return s.Default
}

func (d Decoded) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%4d: ", d.Offset)
	if d.Wide {
		sb.WriteString("wide ")
	}
	sb.WriteString(d.Op.String())
	switch opcodeShapes[d.Op] {
	case shapeLocal, shapePool1, shapePool2:
		fmt.Fprintf(&sb, " #%d", d.Index)
	case shapeByte, shapeShort, shapeArrayType:
		fmt.Fprintf(&sb, " %d", d.Value)
	case shapeIinc:
		fmt.Fprintf(&sb, " %d %d", d.Index, d.Value)
	case shapeBranch, shapeWideBranch:
		fmt.Fprintf(&sb, " %d", d.Target)
	case shapeInvokeInterface, shapeMultiArray:
		fmt.Fprintf(&sb, " #%d %d", d.Index, d.Value)
	case shapeInvokeDynamic:
		fmt.Fprintf(&sb, " #%d", d.Index)
	case shapeTableSwitch, shapeLookupSwitch:
		fmt.Fprintf(&sb, " default=%d", d.Switch.Default)
		for i, k := range d.Switch.Keys {
			fmt.Fprintf(&sb, " %d:%d", k, d.Switch.Targets[i])
		}
	}
	return sb.String()
}

type codeReader struct {
	code []byte
	pos  int
	err  error
}

func (r *codeReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.code) {
		r.err = errors.Wrapf(ErrTruncated, "need %d bytes at %d", n, r.pos)
		return false
	}
	return true
}

func (r *codeReader) u1() int {
	if !r.need(1) {
		return 0
	}
	r.pos++
	return int(r.code[r.pos-1])
}

func (r *codeReader) s1() int { return int(int8(r.u1())) }

func (r *codeReader) u2() int {
	if !r.need(2) {
		return 0
	}
	r.pos += 2
	return int(binary.BigEndian.Uint16(r.code[r.pos-2:]))
}

func (r *codeReader) s2() int { return int(int16(r.u2())) }

func (r *codeReader) s4() int {
	if !r.need(4) {
		return 0
	}
	r.pos += 4
	return int(int32(binary.BigEndian.Uint32(r.code[r.pos-4:])))
}

// Disassemble decodes a code array.
func Disassemble(code []byte) ([]Decoded, error) {
	r := &codeReader{code: code}
	var out []Decoded
	for r.pos < len(code) {
		d := Decoded{Offset: r.pos, Op: Opcode(r.u1())}
		if !d.Op.Valid() {
			return out, errors.Wrapf(ErrUnknownOpcode, "0x%02x at %d", uint8(d.Op), d.Offset)
		}
		r.operands(&d)
		if r.err != nil {
			return out, r.err
		}
		d.Len = r.pos - d.Offset
		out = append(out, d)
	}
	return out, nil
}

func (r *codeReader) operands(d *Decoded) {
	switch opcodeShapes[d.Op] {
	case shapeLocal, shapePool1:
		d.Index = r.u1()
	case shapePool2:
		d.Index = r.u2()
	case shapeByte, shapeArrayType:
		d.Value = r.s1()
		if d.Op == OpNewarray {
			d.Value = int(uint8(d.Value))
		}
	case shapeShort:
		d.Value = r.s2()
	case shapeIinc:
		d.Index = r.u1()
		d.Value = r.s1()
	case shapeBranch:
		d.Target = d.Offset + r.s2()
	case shapeWideBranch:
		d.Target = d.Offset + r.s4()
	case shapeInvokeInterface:
		d.Index = r.u2()
		d.Value = r.u1()
		r.u1()
	case shapeInvokeDynamic:
		d.Index = r.u2()
		r.u2()
	case shapeMultiArray:
		d.Index = r.u2()
		d.Value = r.u1()
	case shapeWide:
		d.Wide = true
		d.Op = Opcode(r.u1())
		switch opcodeShapes[d.Op] {
		case shapeLocal:
			d.Index = r.u2()
		case shapeIinc:
			d.Index = r.u2()
			d.Value = r.s2()
		default:
			if r.err == nil {
				r.err = errors.Wrapf(ErrUnknownOpcode, "wide %s at %d", d.Op, d.Offset)
			}
		}
	case shapeTableSwitch, shapeLookupSwitch:
		r.pos += 3 - d.Offset%4
		s := &DecodedSwitch{Default: d.Offset + r.s4()}
		if d.Op == OpTableswitch {
			low, high := r.s4(), r.s4()
			for k := low; k <= high && r.err == nil; k++ {
				s.Keys = append(s.Keys, int32(k))
				s.Targets = append(s.Targets, d.Offset+r.s4())
			}
		} else {
			n := r.s4()
			for i := 0; i < n && r.err == nil; i++ {
				s.Keys = append(s.Keys, int32(r.s4()))
				s.Targets = append(s.Targets, d.Offset+r.s4())
			}
		}
		d.Switch = s
	}
}
