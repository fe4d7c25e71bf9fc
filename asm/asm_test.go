package asm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dhamidi/classgen/bytecode"
	"github.com/dhamidi/classgen/constpool"
)

func encode(t *testing.T, prog *Program) []byte {
	t.Helper()
	code := bytecode.NewCode(constpool.New())
	if err := code.AddAll(prog.Instructions...); err != nil {
		t.Fatalf("AddAll() error = %v", err)
	}
	b, err := code.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	return b
}

const countdown = `; count down from three
        iconst_3
        istore 1          ; n
loop:   iload 1
        ifeq done
        iinc 1 -1
        goto loop
done:   ldc "bye; for now"
        pop
        tableswitch default=done 0:loop 2:done
        return
`

func TestAssemble(t *testing.T) {
	prog, err := Assemble("countdown.j", []byte(countdown))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if got, want := strings.Join(prog.Labels(), ","), "loop,done"; got != want {
		t.Errorf("Labels() = %q, want %q", got, want)
	}

	decoded, err := bytecode.Disassemble(encode(t, prog))
	if err != nil {
		t.Fatalf("Disassemble() error = %v", err)
	}

	wantOps := []bytecode.Opcode{
		bytecode.OpIconst3, bytecode.OpIstore1, bytecode.OpIload1, bytecode.OpIfeq,
		bytecode.OpIinc, bytecode.OpGoto, bytecode.OpLdc, bytecode.OpPop,
		bytecode.OpTableswitch, bytecode.OpReturn,
	}
	if len(decoded) != len(wantOps) {
		t.Fatalf("decoded %d instructions, want %d", len(decoded), len(wantOps))
	}
	for i, op := range wantOps {
		if decoded[i].Op != op {
			t.Errorf("instruction %d = %s, want %s", i, decoded[i].Op, op)
		}
	}

	if got := decoded[3].Target; got != 12 {
		t.Errorf("ifeq target = %d, want 12", got)
	}
	if got := decoded[5].Target; got != 2 {
		t.Errorf("goto target = %d, want 2", got)
	}
	sw := decoded[8].Switch
	for key, want := range map[int32]int{0: 2, 1: 12, 2: 12, 7: 12} {
		if got := sw.Lookup(key); got != want {
			t.Errorf("tableswitch Lookup(%d) = %d, want %d", key, got, want)
		}
	}

	loop, ok := prog.Label("loop")
	if !ok {
		t.Fatalf("Label(loop) not found")
	}
	if off, _ := loop.Offset(); off != 2 {
		t.Errorf("loop offset = %d, want 2", off)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"iload 1 ; comment", []string{"Word iload", "Number 1", "EOF "}},
		{`ldc "a;b\"c"`, []string{"Word ldc", `String "a;b\"c"`, "EOF "}},
		{"getstatic java.lang.System.out:Ljava/io/PrintStream;",
			[]string{"Word getstatic", "Word java.lang.System.out:Ljava/io/PrintStream;", "EOF "}},
		{"tableswitch default=x -1:y\n", []string{
			"Word tableswitch", "Word default", "Equals =", "Word x", "Number -1", "Colon :", "Word y", "Newline \n", "EOF ",
		}},
		{"ldc \"héllo\" ; ünïcode", []string{"Word ldc", `String "héllo"`, "EOF "}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			tokens, err := Tokenize("", []byte(tt.src))
			if err != nil {
				t.Fatalf("Tokenize() error = %v", err)
			}
			var got []string
			for _, tok := range tokens {
				got = append(got, tok.Kind+" "+tok.Literal)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Tokenize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenPositions(t *testing.T) {
	tokens, err := Tokenize("x.j", []byte("nop\n  goto end"))
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	end := tokens[3]
	if got, want := end.Position.String(), "x.j:2:8"; got != want {
		t.Errorf("position of %q = %s, want %s", end.Literal, got, want)
	}
}

func TestOperandEncoding(t *testing.T) {
	tests := []struct {
		src  string
		want []byte
	}{
		{"iload 0", []byte{0x1a}},
		{"aload 300", []byte{0xc4, 0x19, 0x01, 0x2c}},
		{"wide iinc 300 -2", []byte{0xc4, 0x84, 0x01, 0x2c, 0xff, 0xfe}},
		{"lstore 07", []byte{0x37, 0x07}},
		{"bipush -3", []byte{0x10, 0xfd}},
		{"sipush 1000", []byte{0x11, 0x03, 0xe8}},
		{"newarray char", []byte{0xbc, 0x05}},
		{"ldc 0x10", []byte{0x12, 0x01}},
		{"ldc_w 1.5f", []byte{0x12, 0x01}},
		{"ldc2_w 10L", []byte{0x14, 0x00, 0x01}},
		{"ldc2_w 2.5", []byte{0x14, 0x00, 0x01}},
		{"new java.lang.Object", []byte{0xbb, 0x00, 0x02}},
		{"checkcast java/lang/String", []byte{0xc0, 0x00, 0x02}},
		{"anewarray [I", []byte{0xbd, 0x00, 0x02}},
		{"multianewarray [[I 2", []byte{0xc5, 0x00, 0x02, 0x02}},
		{"arraylength", []byte{0xbe}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog, err := Assemble("", []byte(tt.src))
			if err != nil {
				t.Fatalf("Assemble() error = %v", err)
			}
			if got := encode(t, prog); !bytes.Equal(got, tt.want) {
				t.Errorf("encoded % x, want % x", got, tt.want)
			}
		})
	}
}

func TestMemberOperands(t *testing.T) {
	src := `getstatic java.lang.System.out:Ljava/io/PrintStream;
invokevirtual java/io/PrintStream.println(Ljava/lang/String;)V
invokespecial java.lang.Object.<init>()V
invokeinterface java.lang.Runnable.run()V`

	prog, err := Assemble("", []byte(src))
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	wants := []string{
		"java.lang.System.out",
		"java.io.PrintStream.println(java.lang.String)",
		"java.lang.Object",
		"java.lang.Runnable.run()",
	}
	for i, want := range wants {
		ref, ok := prog.Instructions[i].(*bytecode.Ref)
		if !ok {
			t.Fatalf("instruction %d is %T, want *bytecode.Ref", i, prog.Instructions[i])
		}
		if got := ref.String(); !strings.Contains(got, want) {
			t.Errorf("instruction %d = %q, want it to mention %q", i, got, want)
		}
	}
	encode(t, prog)
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown mnemonic", "frob 1", ErrUnknownMnemonic},
		{"missing operand", "iload", ErrSyntax},
		{"extra operand", "return 1", ErrSyntax},
		{"wrong operand kind", `bipush "x"`, ErrSyntax},
		{"operand range", "bipush 200", bytecode.ErrOperandRange},
		{"undefined label", "goto nowhere", ErrUndefinedLabel},
		{"duplicate label", "a:\na: nop", ErrDuplicateLabel},
		{"bad character", "iload @", ErrSyntax},
		{"invokedynamic", "invokedynamic x", ErrUnsupported},
		{"switch without default", "tableswitch 0:x\nx:", ErrSyntax},
		{"field without descriptor", "getfield a.B.c", ErrSyntax},
		{"bare wide", "wide", ErrSyntax},
		{"label that is not a name", "java.lang:\n", ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble("", []byte(tt.src))
			if !errors.Is(err, tt.want) {
				t.Errorf("Assemble(%q) error = %v, want %v", tt.src, err, tt.want)
			}
		})
	}
}
