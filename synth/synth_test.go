package synth

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/classgen/bytecode"
	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/typeref"
	parser "github.com/wreulicke/classfile-parser"
)

var printStream = typeref.MustClass("java.io.PrintStream")

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// newFoo builds public class com.example.Foo with a no-arg constructor
// that only calls super().
func newFoo(t *testing.T) (*ClassDescription, *SubroutineDescription) {
	t.Helper()
	foo := must(NewClass("com.example.Foo"))
	ctor := must(foo.AddConstructor(typeref.VoidSignature))
	objectInit := must(typeref.NewConstructorRef(typeref.Object, typeref.VoidSignature))
	mustDo(t, ctor.AddInstructions(
		must(bytecode.Aload(0)),
		bytecode.Invokespecial(objectInit),
		bytecode.Return,
	))
	mustDo(t, ctor.SetMaxStack(1))
	mustDo(t, ctor.SetMaxLocals(1))
	return foo, ctor
}

func TestEmitFoo(t *testing.T) {
	foo, _ := newFoo(t)

	var buf bytes.Buffer
	if err := foo.Emit(&buf); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	data := buf.Bytes()

	if got, want := data[:8], []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x03, 0x00, 0x2D}; !bytes.Equal(got, want) {
		t.Fatalf("header = % X, want % X", got, want)
	}

	t.Run("own reader", func(t *testing.T) {
		cf, err := classfile.ParseBytes(data)
		if err != nil {
			t.Fatalf("ParseBytes() error = %v", err)
		}
		if got := cf.ClassName(); got != "com/example/Foo" {
			t.Errorf("ClassName() = %q, want %q", got, "com/example/Foo")
		}
		if got := cf.SuperClassName(); got != "java/lang/Object" {
			t.Errorf("SuperClassName() = %q, want %q", got, "java/lang/Object")
		}
		if cf.AccessFlags != classfile.AccPublic|classfile.AccSuper {
			t.Errorf("AccessFlags = %#x, want %#x", cf.AccessFlags, classfile.AccPublic|classfile.AccSuper)
		}
		m := cf.GetMethod("<init>", "()V")
		if m == nil {
			t.Fatal("constructor not found")
		}
		code := m.Code()
		if code == nil {
			t.Fatal("constructor has no Code attribute")
		}
		if code.MaxStack != 1 || code.MaxLocals != 1 {
			t.Errorf("max stack/locals = %d/%d, want 1/1", code.MaxStack, code.MaxLocals)
		}
		if len(code.Code) != 5 || code.Code[0] != 0x2a || code.Code[1] != 0xb7 || code.Code[4] != 0xb1 {
			t.Fatalf("code = % x, want 2a b7 xx xx b1", code.Code)
		}
		idx := uint16(code.Code[2])<<8 | uint16(code.Code[3])
		class, name, desc := cf.ConstantPool.GetRef(idx)
		if class != "java/lang/Object" || name != "<init>" || desc != "()V" {
			t.Errorf("invokespecial target = %s.%s%s", class, name, desc)
		}
	})

	t.Run("independent parser", func(t *testing.T) {
		cf, err := parser.New(bytes.NewReader(data)).Parse()
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		name, err := cf.ThisClassName()
		if err != nil || name != "com/example/Foo" {
			t.Errorf("ThisClassName() = %q, %v", name, err)
		}
		if cf.MajorVersion != 45 || cf.MinorVersion != 3 {
			t.Errorf("version = %d.%d, want 45.3", cf.MajorVersion, cf.MinorVersion)
		}
		if !cf.AccessFlags.Is(parser.ACC_PUBLIC) || !cf.AccessFlags.Is(parser.ACC_SUPER) {
			t.Errorf("access flags missing public/super")
		}
		if len(cf.Methods) != 1 {
			t.Fatalf("len(Methods) = %d, want 1", len(cf.Methods))
		}
		m := cf.Methods[0]
		mname, _ := m.Name(cf.ConstantPool)
		mdesc, _ := m.Descriptor(cf.ConstantPool)
		if mname != "<init>" || mdesc != "()V" {
			t.Errorf("method = %s%s, want <init>()V", mname, mdesc)
		}
		code := m.Code()
		if code == nil || code.MaxStack != 1 || code.MaxLocals != 1 || len(code.Codes) != 5 {
			t.Errorf("code = %+v", code)
		}
	})

	t.Run("emit is repeatable", func(t *testing.T) {
		again, err := foo.Bytes()
		if err != nil {
			t.Fatalf("Bytes() error = %v", err)
		}
		if !bytes.Equal(again, data) {
			t.Error("second emission differs from the first")
		}
	})
}

func TestFooRunsOnJVM(t *testing.T) {
	java, err := exec.LookPath("java")
	if err != nil {
		t.Skip("java not on PATH")
	}

	foo, _ := newFoo(t)
	mainSig := must(typeref.NewSignature(nil, typeref.MustArray(typeref.String, 1)))
	mainMethod := must(foo.AddMethod("main", mainSig))
	mustDo(t, mainMethod.SetStatic(true))
	out := must(typeref.NewFieldRef(typeref.MustClass("java.lang.System"), "out", printStream))
	printlnRef := must(typeref.MethodRefFromDescriptor(printStream, "println", "(Ljava/lang/String;)V"))
	fooInit := must(typeref.NewConstructorRef(foo.Ref(), typeref.VoidSignature))
	mustDo(t, mainMethod.AddInstructions(
		bytecode.New(foo.Ref()),
		bytecode.Dup,
		bytecode.Invokespecial(fooInit),
		bytecode.Pop,
		bytecode.Getstatic(out),
		bytecode.LdcString("hello from com.example.Foo"),
		bytecode.Invokevirtual(printlnRef),
		bytecode.Return,
	))
	mustDo(t, mainMethod.SetMaxStack(2))
	mustDo(t, mainMethod.SetMaxLocals(1))

	dir := t.TempDir()
	path := filepath.Join(dir, "com", "example", "Foo.class")
	mustDo(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data := must(foo.Bytes())
	mustDo(t, os.WriteFile(path, data, 0o644))

	var stderr bytes.Buffer
	cmd := exec.Command(java, "-cp", dir, "com.example.Foo")
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		t.Fatalf("java failed: %v\n%s", err, stderr.String())
	}
	if got := strings.TrimSpace(string(output)); got != "hello from com.example.Foo" {
		t.Errorf("output = %q, want %q", got, "hello from com.example.Foo")
	}
}

func TestDuplicateMembers(t *testing.T) {
	tests := []struct {
		name  string
		build func(c *ClassDescription) error
		want  error
	}{
		{
			name: "field",
			build: func(c *ClassDescription) error {
				if _, err := c.AddField("count", typeref.Int); err != nil {
					return err
				}
				_, err := c.AddField("count", typeref.Int)
				return err
			},
			want: ErrDuplicateField,
		},
		{
			name: "constant field clashing with plain field",
			build: func(c *ClassDescription) error {
				if _, err := c.AddField("LIMIT", typeref.Long); err != nil {
					return err
				}
				_, err := c.AddConstantField("LIMIT", LongValue(10))
				return err
			},
			want: ErrDuplicateField,
		},
		{
			name: "method",
			build: func(c *ClassDescription) error {
				sig := must(typeref.ParseSignature("(I)V"))
				if _, err := c.AddAbstractMethod("run", sig); err != nil {
					return err
				}
				_, err := c.AddAbstractMethod("run", sig)
				return err
			},
			want: ErrDuplicateSubroutine,
		},
		{
			name: "class initializer",
			build: func(c *ClassDescription) error {
				if _, err := c.AddClassInitializer(); err != nil {
					return err
				}
				_, err := c.AddClassInitializer()
				return err
			},
			want: ErrDuplicateSubroutine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := must(NewClass("com.example.Dup"))
			if err := tt.build(c); err != nil {
				t.Fatalf("build error = %v", err)
			}
			var buf bytes.Buffer
			err := c.Emit(&buf)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Emit() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, errkind.Duplicate) {
				t.Errorf("Emit() error kind = %v, want Duplicate", errkind.Of(err))
			}
			if buf.Len() != 0 {
				t.Errorf("Emit() wrote %d bytes on failure", buf.Len())
			}
		})
	}
}

func TestOverloadsAreNotDuplicates(t *testing.T) {
	c := must(NewClass("com.example.Overloads"))
	must(c.AddField("value", typeref.Int))
	must(c.AddField("value", typeref.Long))
	must(c.AddAbstractMethod("run", must(typeref.ParseSignature("()V"))))
	must(c.AddAbstractMethod("run", must(typeref.ParseSignature("(I)V"))))
	if _, err := c.Bytes(); err != nil {
		t.Errorf("Bytes() error = %v", err)
	}
}

func TestVariantRestrictions(t *testing.T) {
	voidSig := typeref.VoidSignature
	intSig := must(typeref.ParseSignature("()I"))

	tests := []struct {
		name string
		try  func() error
		want error
	}{
		{"constructor on interface", func() error {
			_, err := must(NewInterface("com.example.I")).AddConstructor(voidSig)
			return err
		}, ErrNotPermitted},
		{"method on interface", func() error {
			_, err := must(NewInterface("com.example.I")).AddMethod("run", voidSig)
			return err
		}, ErrNotPermitted},
		{"interface method on class", func() error {
			_, err := must(NewClass("com.example.C")).AddInterfaceMethod("run", voidSig)
			return err
		}, ErrNotPermitted},
		{"final interface", func() error {
			return must(NewInterface("com.example.I")).SetFinal()
		}, ErrNotPermitted},
		{"code in abstract method", func() error {
			m := must(must(NewClass("com.example.C")).AddAbstractMethod("run", voidSig))
			return m.AddInstruction(bytecode.Return)
		}, ErrNotPermitted},
		{"code in interface method", func() error {
			m := must(must(NewInterface("com.example.I")).AddInterfaceMethod("run", voidSig))
			return m.SetMaxStack(1)
		}, ErrNotPermitted},
		{"private abstract method", func() error {
			m := must(must(NewClass("com.example.C")).AddAbstractMethod("run", voidSig))
			return m.SetPrivate()
		}, ErrNotPermitted},
		{"public class initializer", func() error {
			m := must(must(NewClass("com.example.C")).AddClassInitializer())
			return m.SetPublic()
		}, ErrNotPermitted},
		{"class initializer throws", func() error {
			m := must(must(NewClass("com.example.C")).AddClassInitializer())
			return m.AddThrownException(typeref.Throwable)
		}, ErrNotPermitted},
		{"static constructor", func() error {
			m := must(must(NewClass("com.example.C")).AddConstructor(voidSig))
			return m.SetStatic(true)
		}, ErrNotPermitted},
		{"interface field access", func() error {
			f := must(must(NewInterface("com.example.I")).AddField("X", typeref.Int))
			return f.SetPrivate()
		}, ErrNotPermitted},
		{"non-static constant", func() error {
			f := must(must(NewClass("com.example.C")).AddConstantField("X", IntValue(1)))
			return f.SetStatic(false)
		}, ErrNotPermitted},
		{"constructor returning int", func() error {
			_, err := must(NewClass("com.example.C")).AddConstructor(intSig)
			return err
		}, typeref.ErrNotVoid},
		{"method named <init>", func() error {
			_, err := must(NewClass("com.example.C")).AddMethod("<init>", voidSig)
			return err
		}, typeref.ErrBadName},
		{"empty class name", func() error {
			_, err := NewClass("")
			return err
		}, typeref.ErrEmptyName},
		{"zero superclass", func() error {
			_, err := NewClass("com.example.C", WithSuperclass(typeref.Class{}))
			return err
		}, ErrZeroClass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.try()
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, errkind.Invalid) {
				t.Errorf("error kind = %v, want Invalid", errkind.Of(err))
			}
		})
	}
}

func TestStackAndLocalsRange(t *testing.T) {
	m := must(must(NewClass("com.example.C")).AddMethod("run", typeref.VoidSignature))

	tests := []struct {
		name string
		set  func(int) error
		get  func() int
	}{
		{"max stack", m.SetMaxStack, m.MaxStack},
		{"max locals", m.SetMaxLocals, m.MaxLocals},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, bad := range []int{-1, MaxStackOrLocals + 1} {
				if err := tt.set(bad); !errors.Is(err, ErrOutOfRange) {
					t.Errorf("set(%d) error = %v, want ErrOutOfRange", bad, err)
				}
			}
			mustDo(t, tt.set(MaxStackOrLocals))
			if got := tt.get(); got != MaxStackOrLocals {
				t.Errorf("got %d, want %d", got, MaxStackOrLocals)
			}
		})
	}

	mustDo(t, m.SetMaxStack(4))
	mustDo(t, m.IncreaseMaxStack(2))
	mustDo(t, m.IncreaseMaxLocals(3))
	if m.MaxStack() != 4 {
		t.Errorf("MaxStack() = %d after increase to 2, want 4", m.MaxStack())
	}
	mustDo(t, m.IncreaseMaxStack(9))
	if m.MaxStack() != 9 {
		t.Errorf("MaxStack() = %d after increase to 9, want 9", m.MaxStack())
	}
}

func TestConstantFields(t *testing.T) {
	c := must(NewClass("com.example.Constants"))
	tests := []struct {
		name  string
		value Constant
		desc  string
		check func(e classfile.ConstantPoolEntry) bool
	}{
		{"I", IntValue(42), "I", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantIntegerInfo)
			return ok && v.Value == 42
		}},
		{"S", ShortValue(-7), "S", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantIntegerInfo)
			return ok && v.Value == -7
		}},
		{"C", CharValue('x'), "C", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantIntegerInfo)
			return ok && v.Value == 'x'
		}},
		{"B", ByteValue(3), "B", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantIntegerInfo)
			return ok && v.Value == 3
		}},
		{"Z", BoolValue(true), "Z", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantIntegerInfo)
			return ok && v.Value == 1
		}},
		{"F", FloatValue(1.5), "F", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantFloatInfo)
			return ok && v.Value == 1.5
		}},
		{"J", LongValue(1 << 40), "J", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantLongInfo)
			return ok && v.Value == 1<<40
		}},
		{"D", DoubleValue(2.5), "D", func(e classfile.ConstantPoolEntry) bool {
			v, ok := e.(*classfile.ConstantDoubleInfo)
			return ok && v.Value == 2.5
		}},
		{"GREETING", StringValue("hi"), "Ljava/lang/String;", func(e classfile.ConstantPoolEntry) bool {
			_, ok := e.(*classfile.ConstantStringInfo)
			return ok
		}},
	}
	for _, tt := range tests {
		f := must(c.AddConstantField(tt.name, tt.value))
		mustDo(t, f.SetFinal())
	}

	cf := must(classfile.ParseBytes(must(c.Bytes())))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := cf.GetField(tt.name)
			if f == nil {
				t.Fatalf("field %s missing", tt.name)
			}
			if got := f.Descriptor(cf.ConstantPool); got != tt.desc {
				t.Errorf("Descriptor() = %q, want %q", got, tt.desc)
			}
			if want := classfile.AccPublic | classfile.AccStatic | classfile.AccFinal; f.AccessFlags != want {
				t.Errorf("AccessFlags = %#x, want %#x", f.AccessFlags, want)
			}
			if e := cf.ConstantPool.Get(f.ConstantValue()); !tt.check(e) {
				t.Errorf("constant value entry = %#v", e)
			}
		})
	}
	if got := cf.ConstantPool.GetString(cf.GetField("GREETING").ConstantValue()); got != "hi" {
		t.Errorf("GREETING = %q, want %q", got, "hi")
	}
}

func TestInterface(t *testing.T) {
	i := must(NewInterface("com.example.Shape"))
	mustDo(t, i.AddSuperinterface(typeref.MustClass("java.lang.Comparable")))
	must(i.AddField("SIDES", typeref.Int))
	must(i.AddConstantField("NAME", StringValue("shape")))
	area := must(i.AddInterfaceMethod("area", must(typeref.ParseSignature("()D"))))
	mustDo(t, area.AddThrownException(typeref.MustClass("java.lang.ArithmeticException")))

	cf := must(classfile.ParseBytes(must(i.Bytes())))
	if want := classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract; cf.AccessFlags != want {
		t.Errorf("AccessFlags = %#x, want %#x", cf.AccessFlags, want)
	}
	if got := cf.InterfaceNames(); len(got) != 1 || got[0] != "java/lang/Comparable" {
		t.Errorf("InterfaceNames() = %v", got)
	}
	for _, name := range []string{"SIDES", "NAME"} {
		f := cf.GetField(name)
		if want := classfile.AccPublic | classfile.AccStatic | classfile.AccFinal; f.AccessFlags != want {
			t.Errorf("%s AccessFlags = %#x, want %#x", name, f.AccessFlags, want)
		}
	}
	m := cf.GetMethod("area", "()D")
	if m == nil {
		t.Fatal("area()D missing")
	}
	if m.Code() != nil {
		t.Error("interface method has a Code attribute")
	}
	if got := m.Exceptions(cf.ConstantPool); len(got) != 1 || got[0] != "java/lang/ArithmeticException" {
		t.Errorf("Exceptions() = %v", got)
	}
}

func TestExceptionHandlers(t *testing.T) {
	c := must(NewClass("com.example.Guarded"))
	m := must(c.AddMethod("guarded", typeref.VoidSignature))
	start, end, handler := bytecode.NewLabel("start"), bytecode.NewLabel("end"), bytecode.NewLabel("handler")
	mustDo(t, m.AddInstructions(start, bytecode.Nop, end, bytecode.Return, handler, bytecode.Pop, bytecode.Return))
	mustDo(t, m.AddExceptionHandler(start, end, handler, typeref.Throwable))
	mustDo(t, m.AddExceptionHandler(start, end, handler, typeref.Class{}))
	mustDo(t, m.SetMaxStack(1))
	mustDo(t, m.SetMaxLocals(1))

	other := bytecode.NewLabel("other")
	if err := m.AddExceptionHandler(start, other, handler, typeref.Class{}); !errors.Is(err, bytecode.ErrForeignLocation) {
		t.Errorf("AddExceptionHandler(unattached) error = %v, want ErrForeignLocation", err)
	}
	if err := m.AddExceptionHandler(end, start, handler, typeref.Class{}); !errors.Is(err, bytecode.ErrEmptyRange) {
		t.Errorf("AddExceptionHandler(reversed) error = %v, want ErrEmptyRange", err)
	}

	cf := must(classfile.ParseBytes(must(c.Bytes())))
	code := cf.GetMethod("guarded", "()V").Code()
	want := []classfile.ExceptionTableEntry{
		{StartPC: 0, EndPC: 1, HandlerPC: 2},
		{StartPC: 0, EndPC: 1, HandlerPC: 2},
	}
	if len(code.ExceptionTable) != len(want) {
		t.Fatalf("len(ExceptionTable) = %d, want %d", len(code.ExceptionTable), len(want))
	}
	for i, got := range code.ExceptionTable {
		if got.StartPC != want[i].StartPC || got.EndPC != want[i].EndPC || got.HandlerPC != want[i].HandlerPC {
			t.Errorf("ExceptionTable[%d] = %+v, want %+v", i, got, want[i])
		}
	}
	if got := cf.ConstantPool.GetClassName(code.ExceptionTable[0].CatchType); got != "java/lang/Throwable" {
		t.Errorf("catch type = %q, want java/lang/Throwable", got)
	}
	if code.ExceptionTable[1].CatchType != 0 {
		t.Errorf("catch-all CatchType = %d, want 0", code.ExceptionTable[1].CatchType)
	}
}

func TestUnresolvableBranchFailsEmit(t *testing.T) {
	c := must(NewClass("com.example.Broken"))
	m := must(c.AddMethod("spin", typeref.VoidSignature))
	mustDo(t, m.AddInstruction(bytecode.Goto(bytecode.NewLabel("nowhere"))))

	var buf bytes.Buffer
	err := c.Emit(&buf)
	if !errors.Is(err, bytecode.ErrTargetDetached) {
		t.Fatalf("Emit() error = %v, want ErrTargetDetached", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Emit() wrote %d bytes on failure", buf.Len())
	}
}

func TestSuperinterfaceCapacity(t *testing.T) {
	c := must(NewClass("com.example.Wide"))
	iface := typeref.MustClass("com.example.Marker")
	for i := 0; i < MaxMembers; i++ {
		if err := c.AddSuperinterface(iface); err != nil {
			t.Fatalf("AddSuperinterface #%d error = %v", i, err)
		}
	}
	err := c.AddSuperinterface(iface)
	if !errors.Is(err, ErrListFull) || !errors.Is(err, errkind.Capacity) {
		t.Errorf("AddSuperinterface over limit error = %v, want ErrListFull", err)
	}
}

func TestClassOptions(t *testing.T) {
	base := typeref.MustClass("com.example.Base")
	tests := []struct {
		name  string
		opts  []ClassOption
		flags classfile.AccessFlags
		super typeref.Class
	}{
		{"default", nil, classfile.AccPublic | classfile.AccSuper, typeref.Object},
		{"final", []ClassOption{WithFinal()}, classfile.AccPublic | classfile.AccSuper | classfile.AccFinal, typeref.Object},
		{"abstract", []ClassOption{WithAbstract()}, classfile.AccPublic | classfile.AccSuper | classfile.AccAbstract, typeref.Object},
		{"final then abstract", []ClassOption{WithFinal(), WithAbstract()}, classfile.AccPublic | classfile.AccSuper | classfile.AccAbstract, typeref.Object},
		{"package scope subclass", []ClassOption{WithPackageScope(), WithSuperclass(base)}, classfile.AccSuper, base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := must(NewClass("com.example.Sub", tt.opts...))
			if c.AccessFlags() != tt.flags {
				t.Errorf("AccessFlags() = %#x, want %#x", c.AccessFlags(), tt.flags)
			}
			if c.Superclass() != tt.super {
				t.Errorf("Superclass() = %s, want %s", c.Superclass(), tt.super)
			}
			cf := must(classfile.ParseBytes(must(c.Bytes())))
			if got, want := cf.SuperClassName(), tt.super.InternalName(); got != want {
				t.Errorf("SuperClassName() = %q, want %q", got, want)
			}
		})
	}
}
