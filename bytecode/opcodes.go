package bytecode

import "fmt"

// shape describes the operand layout following an opcode.
type shape uint8

const (
	shapeNone shape = iota
	shapeLocal
	shapeByte
	shapeShort
	shapeArrayType
	shapePool1
	shapePool2
	shapeIinc
	shapeBranch
	shapeWideBranch
	shapeInvokeInterface
	shapeInvokeDynamic
	shapeMultiArray
	shapeTableSwitch
	shapeLookupSwitch
	shapeWide
)

var opcodesByName = map[string]Opcode{}

func init() {
	for i, name := range opcodeNames {
		if name != "" {
			opcodesByName[name] = Opcode(i)
		}
	}
}

// OpcodeByName looks up an opcode by its mnemonic, e.g. "invokevirtual".
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

func (op Opcode) String() string {
	if name := opcodeNames[op]; name != "" {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(op))
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool { return opcodeNames[op] != "" }

// IsBranch reports whether op takes a 16-bit branch offset.
func (op Opcode) IsBranch() bool { return opcodeShapes[op] == shapeBranch }

// IsWideBranch reports whether op takes a 32-bit branch offset.
func (op Opcode) IsWideBranch() bool { return opcodeShapes[op] == shapeWideBranch }

// HasNoOperands reports whether op is a complete one-byte instruction.
func (op Opcode) HasNoOperands() bool {
	return op.Valid() && opcodeShapes[op] == shapeNone
}

// UsesPool reports whether op carries a constant pool index.
func (op Opcode) UsesPool() bool {
	switch opcodeShapes[op] {
	case shapePool1, shapePool2, shapeInvokeInterface, shapeInvokeDynamic, shapeMultiArray:
		return true
	}
	return false
}

// EndsBlock reports whether control never falls through op.
func (op Opcode) EndsBlock() bool {
	switch op {
	case OpGoto, OpGotoW, OpRet, OpAthrow, OpTableswitch, OpLookupswitch,
		OpReturn, OpIreturn, OpLreturn, OpFreturn, OpDreturn, OpAreturn:
		return true
	}
	return false
}
