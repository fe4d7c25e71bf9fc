// Package asm turns a textual instruction listing into bytecode
// instructions.
//
// A listing has one instruction per line. A line may start with a label
// definition ("loop:") and may end with a comment introduced by ";" after
// whitespace. Operands are written as:
//
//	iload 1                      local variable index
//	bipush -3                    integer
//	ldc "hello"                  string, int, or float with an f suffix
//	ldc2_w 10L                   long, or double with a d suffix or a point
//	newarray int                 primitive element type
//	new java.lang.StringBuilder  class; arrays as descriptors, "[I"
//	getstatic java.lang.System.out:Ljava/io/PrintStream;
//	invokevirtual java.io.PrintStream.println(Ljava/lang/String;)V
//	multianewarray [[I 2
//	goto loop
//	tableswitch default=out 0:zero 1:one
//
// Load, store, iinc and ret pick their shortest encoding, so "iload 0"
// assembles to iload_0 and indexes above 255 get the wide form. A leading
// "wide" is accepted and ignored.
package asm

import (
	_ "embed"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dhamidi/classgen/bytecode"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
	"golang.org/x/exp/ebnf"
)

var (
	ErrSyntax          = errkind.New(errkind.Invalid, "assembly syntax error")
	ErrUnknownMnemonic = errkind.New(errkind.Invalid, "unknown mnemonic")
	ErrUnsupported     = errkind.New(errkind.Invalid, "instruction not supported by the assembler")
	ErrUndefinedLabel  = errkind.New(errkind.Invalid, "undefined label")
	ErrDuplicateLabel  = errkind.New(errkind.Duplicate, "label defined twice")
)

const (
	tokNewline = "Newline"
	tokSpace   = "Space"
	tokComment = "Comment"
	tokString  = "String"
	tokNumber  = "Number"
	tokWord    = "Word"
	tokColon   = "Colon"
	tokEquals  = "Equals"
)

//go:embed syntax.ebnf
var syntaxSource string

var (
	syntax     = mustGrammar("syntax.ebnf", syntaxSource)
	tokenKinds = []string{tokNewline, tokSpace, tokComment, tokString, tokNumber, tokWord, tokColon, tokEquals}
)

func mustGrammar(name, src string) ebnf.Grammar {
	g, err := ebnf.Parse(name, strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	return g
}

// Program is an assembled listing.
type Program struct {
	Instructions []bytecode.Instruction

	labels map[string]*bytecode.Location
	order  []string
}

// Label returns the location defined under name.
func (p *Program) Label(name string) (*bytecode.Location, bool) {
	loc, ok := p.labels[name]
	return loc, ok
}

// Labels lists label names in the order they were defined.
func (p *Program) Labels() []string {
	return append([]string(nil), p.order...)
}

// Tokenize splits src into tokens, dropping whitespace and comments.
func Tokenize(filename string, src []byte) ([]Token, error) {
	all, err := NewLexer(syntax, tokenKinds, src, filename).Tokenize()
	if err != nil {
		return nil, err
	}
	tokens := all[:0]
	for _, tok := range all {
		if tok.Kind != tokSpace && tok.Kind != tokComment {
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}

type assembler struct {
	prog    *Program
	defined map[string]bool
	used    map[string]Position
}

// Assemble parses src into a Program. Branch targets may refer to labels
// defined later in the listing; every referenced label must be defined.
func Assemble(filename string, src []byte) (*Program, error) {
	tokens, err := Tokenize(filename, src)
	if err != nil {
		return nil, err
	}
	a := &assembler{
		prog:    &Program{labels: make(map[string]*bytecode.Location)},
		defined: make(map[string]bool),
		used:    make(map[string]Position),
	}

	var line []Token
	for _, tok := range tokens {
		if tok.Kind == tokNewline || tok.Kind == "EOF" {
			if err := a.line(line); err != nil {
				return nil, err
			}
			line = line[:0]
			continue
		}
		line = append(line, tok)
	}

	var undefined []Token
	for name, at := range a.used {
		if !a.defined[name] {
			undefined = append(undefined, Token{Kind: tokWord, Literal: name, Position: at})
		}
	}
	if len(undefined) > 0 {
		sort.Slice(undefined, func(i, j int) bool {
			return undefined[i].Position.Offset < undefined[j].Position.Offset
		})
		first := undefined[0]
		return nil, errors.Wrapf(ErrUndefinedLabel, "%s: %s", first.Position, first.Literal)
	}
	return a.prog, nil
}

func (a *assembler) label(name string) *bytecode.Location {
	loc, ok := a.prog.labels[name]
	if !ok {
		loc = bytecode.NewLabel(name)
		a.prog.labels[name] = loc
	}
	return loc
}

func (a *assembler) use(tok Token) *bytecode.Location {
	if _, ok := a.used[tok.Literal]; !ok {
		a.used[tok.Literal] = tok.Position
	}
	return a.label(tok.Literal)
}

func isLabelName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func (a *assembler) line(tokens []Token) error {
	if len(tokens) == 0 {
		return nil
	}
	if first := tokens[0]; first.Kind == tokWord && strings.HasSuffix(first.Literal, ":") {
		name := strings.TrimSuffix(first.Literal, ":")
		if !isLabelName(name) {
			return errors.Wrapf(ErrSyntax, "%s: bad label %q", first.Position, name)
		}
		if a.defined[name] {
			return errors.Wrapf(ErrDuplicateLabel, "%s: %s", first.Position, name)
		}
		a.defined[name] = true
		a.prog.order = append(a.prog.order, name)
		a.prog.Instructions = append(a.prog.Instructions, a.label(name))
		tokens = tokens[1:]
		if len(tokens) == 0 {
			return nil
		}
	}

	ops := &operands{tokens: tokens[1:], at: tokens[0].Position}
	mnemonic := tokens[0]
	if mnemonic.Kind != tokWord {
		return errors.Wrapf(ErrSyntax, "%s: expected mnemonic, found %s %q", mnemonic.Position, mnemonic.Kind, mnemonic.Literal)
	}
	if mnemonic.Literal == "wide" {
		if len(ops.tokens) == 0 {
			return errors.Wrapf(ErrSyntax, "%s: wide without instruction", mnemonic.Position)
		}
		mnemonic, ops.tokens = ops.tokens[0], ops.tokens[1:]
	}
	op, ok := bytecode.OpcodeByName(mnemonic.Literal)
	if !ok {
		return errors.Wrapf(ErrUnknownMnemonic, "%s: %q", mnemonic.Position, mnemonic.Literal)
	}

	ins, err := a.instruction(op, ops)
	if err != nil {
		return errors.Wrap(err, op.String())
	}
	if err := ops.done(); err != nil {
		return err
	}
	a.prog.Instructions = append(a.prog.Instructions, ins)
	return nil
}

var localTypes = map[bytecode.Opcode]typeref.Type{
	bytecode.OpIload: typeref.Int, bytecode.OpIstore: typeref.Int,
	bytecode.OpLload: typeref.Long, bytecode.OpLstore: typeref.Long,
	bytecode.OpFload: typeref.Float, bytecode.OpFstore: typeref.Float,
	bytecode.OpDload: typeref.Double, bytecode.OpDstore: typeref.Double,
	bytecode.OpAload: typeref.Object, bytecode.OpAstore: typeref.Object,
}

func (a *assembler) instruction(op bytecode.Opcode, ops *operands) (bytecode.Instruction, error) {
	if op.HasNoOperands() {
		return bytecode.Simple(op)
	}
	if op.IsBranch() || op.IsWideBranch() {
		tok, err := ops.next(tokWord)
		if err != nil {
			return nil, err
		}
		if op.IsBranch() {
			return bytecode.NewBranch(op, a.use(tok))
		}
		return bytecode.NewWideBranch(op, a.use(tok))
	}

	switch op {
	case bytecode.OpIload, bytecode.OpLload, bytecode.OpFload, bytecode.OpDload, bytecode.OpAload:
		n, err := ops.integer(0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		return bytecode.Load(localTypes[op], int(n))

	case bytecode.OpIstore, bytecode.OpLstore, bytecode.OpFstore, bytecode.OpDstore, bytecode.OpAstore:
		n, err := ops.integer(0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		return bytecode.Store(localTypes[op], int(n))

	case bytecode.OpRet:
		n, err := ops.integer(0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		return bytecode.Ret(int(n))

	case bytecode.OpIinc:
		index, err := ops.integer(0, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		delta, err := ops.integer(math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return bytecode.Iinc(int(index), int(delta))

	case bytecode.OpBipush:
		n, err := ops.integer(math.MinInt8, math.MaxInt8)
		if err != nil {
			return nil, err
		}
		return bytecode.Bipush(int8(n)), nil

	case bytecode.OpSipush:
		n, err := ops.integer(math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return bytecode.Sipush(int16(n)), nil

	case bytecode.OpNewarray:
		tok, err := ops.next(tokWord)
		if err != nil {
			return nil, err
		}
		p, ok := typeref.PrimitiveForName(tok.Literal)
		if !ok {
			return nil, errors.Wrapf(ErrSyntax, "%s: %q is not a primitive type", tok.Position, tok.Literal)
		}
		return bytecode.Newarray(p), nil

	case bytecode.OpLdc, bytecode.OpLdcW:
		return ops.ldc()

	case bytecode.OpLdc2W:
		return ops.ldc2()

	case bytecode.OpNew:
		tok, err := ops.next(tokWord)
		if err != nil {
			return nil, err
		}
		class, err := typeref.ClassFromInternalName(tok.Literal)
		if err != nil {
			return nil, err
		}
		return bytecode.New(class), nil

	case bytecode.OpAnewarray, bytecode.OpCheckcast, bytecode.OpInstanceof:
		t, err := ops.classType()
		if err != nil {
			return nil, err
		}
		switch op {
		case bytecode.OpAnewarray:
			return bytecode.Anewarray(t), nil
		case bytecode.OpCheckcast:
			return bytecode.Checkcast(t), nil
		}
		return bytecode.Instanceof(t), nil

	case bytecode.OpMultianewarray:
		t, err := ops.classType()
		if err != nil {
			return nil, err
		}
		arr, ok := t.(*typeref.Array)
		if !ok {
			return nil, errors.Wrapf(ErrSyntax, "%s is not an array type", t.Name())
		}
		dims, err := ops.integer(1, typeref.MaxDimensions)
		if err != nil {
			return nil, err
		}
		return bytecode.Multianewarray(arr, int(dims))

	case bytecode.OpGetstatic, bytecode.OpPutstatic, bytecode.OpGetfield, bytecode.OpPutfield:
		f, err := ops.field()
		if err != nil {
			return nil, err
		}
		switch op {
		case bytecode.OpGetstatic:
			return bytecode.Getstatic(f), nil
		case bytecode.OpPutstatic:
			return bytecode.Putstatic(f), nil
		case bytecode.OpGetfield:
			return bytecode.Getfield(f), nil
		}
		return bytecode.Putfield(f), nil

	case bytecode.OpInvokevirtual, bytecode.OpInvokespecial, bytecode.OpInvokestatic, bytecode.OpInvokeinterface:
		m, err := ops.method()
		if err != nil {
			return nil, err
		}
		switch op {
		case bytecode.OpInvokevirtual:
			return bytecode.Invokevirtual(m), nil
		case bytecode.OpInvokespecial:
			return bytecode.Invokespecial(m), nil
		case bytecode.OpInvokestatic:
			return bytecode.Invokestatic(m), nil
		}
		return bytecode.Invokeinterface(m), nil

	case bytecode.OpTableswitch, bytecode.OpLookupswitch:
		def, cases, err := a.switchTable(ops)
		if err != nil {
			return nil, err
		}
		var addCase func(int32, *bytecode.Location) error
		var ins bytecode.Instruction
		if op == bytecode.OpTableswitch {
			s := bytecode.NewTableSwitch(def)
			addCase, ins = s.AddCase, s
		} else {
			s := bytecode.NewLookupSwitch(def)
			addCase, ins = s.AddCase, s
		}
		for _, c := range cases {
			if err := addCase(c.value, c.target); err != nil {
				return nil, err
			}
		}
		return ins, nil
	}
	return nil, errors.WithStack(ErrUnsupported)
}

type switchCase struct {
	value  int32
	target *bytecode.Location
}

// switchTable reads "default=L v:L ...".
func (a *assembler) switchTable(ops *operands) (*bytecode.Location, []switchCase, error) {
	key, err := ops.next(tokWord)
	if err != nil {
		return nil, nil, err
	}
	if key.Literal != "default" {
		return nil, nil, errors.Wrapf(ErrSyntax, "%s: expected default=, found %q", key.Position, key.Literal)
	}
	if _, err := ops.next(tokEquals); err != nil {
		return nil, nil, err
	}
	def, err := ops.next(tokWord)
	if err != nil {
		return nil, nil, err
	}

	var cases []switchCase
	for len(ops.tokens) > 0 {
		v, err := ops.integer(math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, nil, err
		}
		if _, err := ops.next(tokColon); err != nil {
			return nil, nil, err
		}
		target, err := ops.next(tokWord)
		if err != nil {
			return nil, nil, err
		}
		cases = append(cases, switchCase{int32(v), a.use(target)})
	}
	return a.use(def), cases, nil
}

// operands walks the tokens after a mnemonic.
type operands struct {
	tokens []Token
	at     Position
}

func (o *operands) next(kind string) (Token, error) {
	if len(o.tokens) == 0 {
		return Token{}, errors.Wrapf(ErrSyntax, "%s: missing %s operand", o.at, strings.ToLower(kind))
	}
	tok := o.tokens[0]
	if tok.Kind != kind {
		return Token{}, errors.Wrapf(ErrSyntax, "%s: expected %s, found %q", tok.Position, strings.ToLower(kind), tok.Literal)
	}
	o.tokens = o.tokens[1:]
	o.at = tok.Position
	return tok, nil
}

func (o *operands) done() error {
	if len(o.tokens) > 0 {
		tok := o.tokens[0]
		return errors.Wrapf(ErrSyntax, "%s: unexpected %q", tok.Position, tok.Literal)
	}
	return nil
}

func (o *operands) integer(lo, hi int64) (int64, error) {
	tok, err := o.next(tokNumber)
	if err != nil {
		return 0, err
	}
	n, err := parseInt(tok.Literal, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrSyntax, "%s: %q is not an integer", tok.Position, tok.Literal)
	}
	if n < lo || n > hi {
		return 0, errors.Wrapf(bytecode.ErrOperandRange, "%s: %d not in %d..%d", tok.Position, n, lo, hi)
	}
	return n, nil
}

func isHex(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

// parseInt reads decimal or 0x-prefixed hexadecimal. A leading zero does
// not mean octal.
func parseInt(s string, bits int) (int64, error) {
	if isHex(s) {
		return strconv.ParseInt(s, 0, bits)
	}
	return strconv.ParseInt(s, 10, bits)
}

func (o *operands) ldc() (bytecode.Instruction, error) {
	if len(o.tokens) > 0 && o.tokens[0].Kind == tokString {
		tok, _ := o.next(tokString)
		s, err := strconv.Unquote(tok.Literal)
		if err != nil {
			return nil, errors.Wrapf(ErrSyntax, "%s: bad string %s", tok.Position, tok.Literal)
		}
		return bytecode.LdcString(s), nil
	}
	tok, err := o.next(tokNumber)
	if err != nil {
		return nil, err
	}
	lit := tok.Literal
	if !isHex(lit) && strings.HasSuffix(strings.ToLower(lit), "f") {
		f, err := strconv.ParseFloat(lit[:len(lit)-1], 32)
		if err != nil {
			return nil, errors.Wrapf(ErrSyntax, "%s: %q is not a float", tok.Position, lit)
		}
		return bytecode.LdcFloat(float32(f)), nil
	}
	if n, err := parseInt(lit, 32); err == nil {
		return bytecode.LdcInt(int32(n)), nil
	}
	f, err := strconv.ParseFloat(lit, 32)
	if err != nil {
		return nil, errors.Wrapf(ErrSyntax, "%s: %q is not an int or float", tok.Position, lit)
	}
	return bytecode.LdcFloat(float32(f)), nil
}

func (o *operands) ldc2() (bytecode.Instruction, error) {
	tok, err := o.next(tokNumber)
	if err != nil {
		return nil, err
	}
	lit := tok.Literal
	lower := strings.ToLower(lit)
	switch {
	case strings.HasSuffix(lower, "l"):
		n, err := parseInt(lit[:len(lit)-1], 64)
		if err != nil {
			return nil, errors.Wrapf(ErrSyntax, "%s: %q is not a long", tok.Position, lit)
		}
		return bytecode.Ldc2Long(n), nil
	case !isHex(lit) && strings.HasSuffix(lower, "d"):
		lit = lit[:len(lit)-1]
	default:
		if n, err := parseInt(lit, 64); err == nil {
			return bytecode.Ldc2Long(n), nil
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, errors.Wrapf(ErrSyntax, "%s: %q is not a long or double", tok.Position, tok.Literal)
	}
	return bytecode.Ldc2Double(f), nil
}

// classType reads a class name, dotted or slashed, or an array
// descriptor.
func (o *operands) classType() (typeref.ClassType, error) {
	tok, err := o.next(tokWord)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(tok.Literal, "[") {
		return typeref.ClassFromInternalName(tok.Literal)
	}
	t, err := typeref.ParseFieldDescriptor(tok.Literal)
	if err != nil {
		return nil, err
	}
	return t.(*typeref.Array), nil
}

// member splits "Owner.name" at the last dot.
func member(tok Token, s string) (typeref.Class, string, error) {
	i := strings.LastIndexAny(s, "./")
	if i <= 0 || i == len(s)-1 {
		return typeref.Class{}, "", errors.Wrapf(ErrSyntax, "%s: %q is not Owner.name", tok.Position, s)
	}
	class, err := typeref.ClassFromInternalName(s[:i])
	return class, s[i+1:], err
}

func (o *operands) field() (typeref.FieldRef, error) {
	tok, err := o.next(tokWord)
	if err != nil {
		return typeref.FieldRef{}, err
	}
	i := strings.IndexByte(tok.Literal, ':')
	if i < 0 {
		return typeref.FieldRef{}, errors.Wrapf(ErrSyntax, "%s: field %q has no :descriptor", tok.Position, tok.Literal)
	}
	class, name, err := member(tok, tok.Literal[:i])
	if err != nil {
		return typeref.FieldRef{}, err
	}
	return typeref.FieldRefFromDescriptor(class, name, tok.Literal[i+1:])
}

func (o *operands) method() (typeref.SubroutineRef, error) {
	tok, err := o.next(tokWord)
	if err != nil {
		return typeref.SubroutineRef{}, err
	}
	i := strings.IndexByte(tok.Literal, '(')
	if i < 0 {
		return typeref.SubroutineRef{}, errors.Wrapf(ErrSyntax, "%s: method %q has no descriptor", tok.Position, tok.Literal)
	}
	class, name, err := member(tok, tok.Literal[:i])
	if err != nil {
		return typeref.SubroutineRef{}, err
	}
	return typeref.MethodRefFromDescriptor(class, name, tok.Literal[i:])
}
