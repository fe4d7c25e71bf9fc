package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/classgen/classfile"
)

func TestEmitAndDump(t *testing.T) {
	dir := t.TempDir()

	emit := newEmitCmd()
	var out bytes.Buffer
	emit.SetOut(&out)
	emit.SetArgs([]string{"-o", dir, filepath.Join("..", "..", "recipe", "testdata", "greeter.toml")})
	if err := emit.Execute(); err != nil {
		t.Fatalf("emit error = %v", err)
	}

	target := filepath.Join(dir, "com", "example", "Greeter.class")
	if got := strings.TrimSpace(out.String()); got != target {
		t.Errorf("emit output = %q, want %q", got, target)
	}
	cf, err := classfile.ParseFile(target)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if got := cf.ClassName(); got != "com/example/Greeter" {
		t.Errorf("ClassName() = %q, want %q", got, "com/example/Greeter")
	}

	disasm := newDisasmCmd()
	out.Reset()
	disasm.SetOut(&out)
	disasm.SetArgs([]string{"-m", "safeDivide", target})
	if err := disasm.Execute(); err != nil {
		t.Fatalf("disasm error = %v", err)
	}
	for _, want := range []string{"public static safeDivide(II)I", "idiv", "0 3 4 java.lang.ArithmeticException"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("disasm output missing %q\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "run()V") {
		t.Errorf("disasm -m safeDivide listed run()V\n%s", out.String())
	}

	dump := newDumpCmd()
	out.Reset()
	dump.SetOut(&out)
	dump.SetArgs([]string{"-f", "line", target})
	if err := dump.Execute(); err != nil {
		t.Fatalf("dump error = %v", err)
	}
	if first := strings.SplitN(out.String(), "\n", 2)[0]; first != "class\tcom.example.Greeter\tpublic,final\tjava.lang.Object" {
		t.Errorf("dump first line = %q", first)
	}
}

func TestEmitDryRun(t *testing.T) {
	dir := t.TempDir()
	emit := newEmitCmd()
	var out bytes.Buffer
	emit.SetOut(&out)
	emit.SetArgs([]string{"-n", "-o", dir, filepath.Join("..", "..", "recipe", "testdata", "shape.toml")})
	if err := emit.Execute(); err != nil {
		t.Fatalf("emit error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dry run wrote %d entries", len(entries))
	}
	if !strings.Contains(out.String(), "shape.toml\t") {
		t.Errorf("dry run output = %q, want the recipe path", out.String())
	}
}

func TestAsmHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.j")
	src := "top: iinc 1 -1\n     iload 1\n     ifne top\n     return\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newAsmCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"-x", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("asm error = %v", err)
	}
	// iinc 1 -1; iload_1; ifne -4; return
	if got, want := strings.TrimSpace(out.String()), "8401ff"+"1b"+"9afffc"+"b1"; got != want {
		t.Errorf("asm -x = %q, want %q", got, want)
	}
}
