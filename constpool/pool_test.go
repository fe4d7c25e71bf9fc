package constpool

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/typeref"
)

func TestInternIsIdempotent(t *testing.T) {
	p := New()
	foo := typeref.MustClass("com.example.Foo")
	run, _ := typeref.MethodRefFromDescriptor(foo, "run", "(I)V")
	count, _ := typeref.NewFieldRef(foo, "count", typeref.Int)

	tests := []struct {
		name   string
		intern func() (uint16, error)
	}{
		{"utf8", func() (uint16, error) { return p.Utf8("hello") }},
		{"integer", func() (uint16, error) { return p.Integer(42) }},
		{"float", func() (uint16, error) { return p.Float(1.5) }},
		{"long", func() (uint16, error) { return p.Long(1 << 40) }},
		{"double", func() (uint16, error) { return p.Double(math.Pi) }},
		{"string", func() (uint16, error) { return p.String("hello") }},
		{"class", func() (uint16, error) { return p.Class(foo) }},
		{"array class", func() (uint16, error) { return p.Class(typeref.MustArray(typeref.Int, 2)) }},
		{"name and type", func() (uint16, error) { return p.NameAndType("run", "(I)V") }},
		{"field", func() (uint16, error) { return p.FieldRef(count) }},
		{"method", func() (uint16, error) { return p.MethodRef(run) }},
		{"interface method", func() (uint16, error) { return p.InterfaceMethodRef(run) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, err := tt.intern()
			if err != nil {
				t.Fatalf("first intern error = %v", err)
			}
			used := p.UsedSlots()
			second, err := tt.intern()
			if err != nil {
				t.Fatalf("second intern error = %v", err)
			}
			if first != second {
				t.Errorf("index = %d then %d, want equal", first, second)
			}
			if p.UsedSlots() != used {
				t.Errorf("UsedSlots() = %d after re-intern, want %d", p.UsedSlots(), used)
			}
			if first == 0 {
				t.Error("entry interned at index 0")
			}
		})
	}
}

func TestMethodRefInternsDependencies(t *testing.T) {
	p := New()
	foo := typeref.MustClass("com.example.Foo")
	run, _ := typeref.MethodRefFromDescriptor(foo, "run", "()V")

	i, err := p.MethodRef(run)
	if err != nil {
		t.Fatalf("MethodRef() error = %v", err)
	}
	ref, ok := p.Entry(i).(*Ref)
	if !ok || ref.Kind != classfile.ConstantMethodref {
		t.Fatalf("Entry(%d) = %#v, want method ref", i, p.Entry(i))
	}
	cls := p.Entry(ref.ClassIndex).(*ClassInfo)
	if got := p.Entry(cls.NameIndex).(*Utf8).Value; got != "com/example/Foo" {
		t.Errorf("class name = %q, want %q", got, "com/example/Foo")
	}
	nt := p.Entry(ref.NameAndTypeIndex).(*NameAndType)
	if got := p.Entry(nt.NameIndex).(*Utf8).Value; got != "run" {
		t.Errorf("method name = %q, want %q", got, "run")
	}
	if got := p.Entry(nt.DescriptorIndex).(*Utf8).Value; got != "()V" {
		t.Errorf("descriptor = %q, want %q", got, "()V")
	}

	// slot 0, class name, class, name, descriptor, name-and-type, ref
	if got := p.UsedSlots(); got != 7 {
		t.Errorf("UsedSlots() = %d, want 7", got)
	}
}

func TestSlotAccounting(t *testing.T) {
	p := New()
	li, err := p.Long(7)
	if err != nil {
		t.Fatal(err)
	}
	di, err := p.Double(2.5)
	if err != nil {
		t.Fatal(err)
	}
	if li != 1 || di != 3 {
		t.Errorf("indexes = %d, %d, want 1, 3", li, di)
	}
	if got := p.UsedSlots(); got != 5 {
		t.Errorf("UsedSlots() = %d, want 5", got)
	}
	if got := p.UnusedSlots(); got != MaxSlots-5 {
		t.Errorf("UnusedSlots() = %d, want %d", got, MaxSlots-5)
	}
	if p.Entry(2) != nil || p.Entry(4) != nil {
		t.Error("placeholder slots should hold no entry")
	}
}

func TestFloatingPointIdentity(t *testing.T) {
	p := New()
	pos, _ := p.Double(0.0)
	neg, _ := p.Double(math.Copysign(0, -1))
	if pos == neg {
		t.Error("0.0 and -0.0 share an entry")
	}
	n1, _ := p.Float(float32(math.NaN()))
	n2, _ := p.Float(float32(math.NaN()))
	if n1 != n2 {
		t.Error("NaN interned twice")
	}
}

func fill(t *testing.T, p *Pool, leave int) {
	t.Helper()
	for v := int32(0); p.UnusedSlots() > leave; v++ {
		if _, err := p.Integer(v); err != nil {
			t.Fatalf("Integer(%d) error = %v", v, err)
		}
	}
}

func TestPoolExhaustion(t *testing.T) {
	p := New()
	fill(t, p, 0)

	used := p.UsedSlots()
	_, err := p.Utf8("one more")
	if !errors.Is(err, ErrPoolFull) {
		t.Fatalf("Utf8() error = %v, want ErrPoolFull", err)
	}
	if !errors.Is(err, errkind.Capacity) {
		t.Errorf("error kind = %v, want Capacity", errkind.Of(err))
	}
	if p.UsedSlots() != used {
		t.Errorf("UsedSlots() = %d after failure, want %d", p.UsedSlots(), used)
	}

	// Existing entries can still be looked up.
	if i, err := p.Integer(0); err != nil || i != 1 {
		t.Errorf("Integer(0) = %d, %v, want 1, nil", i, err)
	}
}

func TestTwoSlotEntryNeedsTwoSlots(t *testing.T) {
	p := New()
	fill(t, p, 1)

	if _, err := p.Long(99); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("Long() error = %v, want ErrPoolFull", err)
	}
	if _, err := p.Utf8("fits"); err != nil {
		t.Fatalf("Utf8() error = %v, want nil", err)
	}
}

func TestFailedInternRollsBack(t *testing.T) {
	p := New()
	fill(t, p, 2)

	used := p.UsedSlots()
	// Class name and class entry fit, but the ref needs two more.
	m, _ := typeref.MethodRefFromDescriptor(typeref.MustClass("a.B"), "m", "()V")
	if _, err := p.MethodRef(m); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("MethodRef() error = %v, want ErrPoolFull", err)
	}
	if p.UsedSlots() != used {
		t.Errorf("UsedSlots() = %d, want %d", p.UsedSlots(), used)
	}
	if _, ok := p.Lookup(&Utf8{Value: "a/B"}); ok {
		t.Error("rolled back entry still indexed")
	}
}

func TestStringTooLong(t *testing.T) {
	p := New()
	if _, err := p.Utf8(strings.Repeat("x", MaxUtf8Length)); err != nil {
		t.Fatalf("Utf8(65535 bytes) error = %v", err)
	}
	_, err := p.String(strings.Repeat("é", MaxUtf8Length/2+1))
	if !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("String() error = %v, want ErrStringTooLong", err)
	}
}

func TestWriteTo(t *testing.T) {
	p := New()
	p.Utf8("Foo")
	p.Long(-1)
	p.Integer(258)

	var buf bytes.Buffer
	n, err := p.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	want := []byte{
		0x00, 0x05, // count: 0, utf8, long, placeholder, int
		0x01, 0x00, 0x03, 'F', 'o', 'o',
		0x05, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0x03, 0x00, 0x00, 0x01, 0x02,
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("WriteTo() = % x, want % x", buf.Bytes(), want)
	}
	if n != int64(len(want)) {
		t.Errorf("WriteTo() n = %d, want %d", n, len(want))
	}
}

func TestEncodeModifiedUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "abc", []byte("abc")},
		{"nul", "a\x00b", []byte{'a', 0xC0, 0x80, 'b'}},
		{"two byte", "é", []byte{0xC3, 0xA9}},
		{"three byte", "€", []byte{0xE2, 0x82, 0xAC}},
		{"supplementary", "\U0001F600", []byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeModifiedUTF8(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeModifiedUTF8(%q) = % x, want % x", tt.in, got, tt.want)
			}
			if n := ModifiedUTF8Len(tt.in); n != len(tt.want) {
				t.Errorf("ModifiedUTF8Len(%q) = %d, want %d", tt.in, n, len(tt.want))
			}
		})
	}
}

func TestInvalidUTF8Rejected(t *testing.T) {
	tests := []struct {
		name   string
		intern func(p *Pool) (uint16, error)
	}{
		{"utf8", func(p *Pool) (uint16, error) { return p.Utf8("\xff") }},
		{"utf8 in the middle", func(p *Pool) (uint16, error) { return p.Utf8("ab\xfecd") }},
		{"string", func(p *Pool) (uint16, error) { return p.String("\xfe") }},
		{"name and type", func(p *Pool) (uint16, error) { return p.NameAndType("ok", "\xc0") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			_, err := tt.intern(p)
			if !errors.Is(err, ErrBadString) {
				t.Errorf("error = %v, want %v", err, ErrBadString)
			}
			if !errors.Is(err, errkind.Invalid) {
				t.Errorf("error = %v, want kind %v", err, errkind.Invalid)
			}
			if p.UsedSlots() != 1 {
				t.Errorf("UsedSlots() = %d, want 1", p.UsedSlots())
			}
		})
	}
}

func TestZeroReferencesRejected(t *testing.T) {
	var nilArray *typeref.Array
	tests := []struct {
		name   string
		intern func(p *Pool) (uint16, error)
	}{
		{"zero class", func(p *Pool) (uint16, error) { return p.Class(typeref.Class{}) }},
		{"nil array", func(p *Pool) (uint16, error) { return p.Class(nilArray) }},
		{"zero field", func(p *Pool) (uint16, error) { return p.FieldRef(typeref.FieldRef{}) }},
		{"zero method", func(p *Pool) (uint16, error) { return p.MethodRef(typeref.SubroutineRef{}) }},
		{"zero interface method", func(p *Pool) (uint16, error) { return p.InterfaceMethodRef(typeref.SubroutineRef{}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			if _, err := tt.intern(p); !errors.Is(err, errkind.Invalid) {
				t.Errorf("error = %v, want kind %v", err, errkind.Invalid)
			}
			if p.UsedSlots() != 1 {
				t.Errorf("UsedSlots() = %d, want 1", p.UsedSlots())
			}
		})
	}
}
