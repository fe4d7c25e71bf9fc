// Package constpool builds the constant pool of a class being written.
//
// Entries are interned: asking for an entry that is already present
// returns the existing index. Index 0 is never used, and long and double
// entries occupy two slots, the second of which holds no entry.
package constpool

import (
	"io"
	"unicode/utf8"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/internal/binio"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
)

// MaxSlots is the number of slots a pool can hold, counting slot 0.
const MaxSlots = 65535

// MaxUtf8Length is the longest encoded CONSTANT_Utf8 value.
const MaxUtf8Length = 65535

var (
	ErrPoolFull      = errkind.New(errkind.Capacity, "constant pool full")
	ErrStringTooLong = errkind.New(errkind.Capacity, "string constant too long")
	ErrNilEntry      = errkind.New(errkind.Invalid, "nil constant pool entry")
	ErrBadString     = errkind.New(errkind.Invalid, "string is not valid UTF-8")
)

// Pool is the constant pool of one class under construction.
type Pool struct {
	// entries[0] and the slot after every long or double are nil.
	entries []Entry
	index   map[entryKey]uint16
}

// New returns a pool holding only the unused slot 0.
func New() *Pool {
	return &Pool{
		entries: []Entry{nil},
		index:   make(map[entryKey]uint16),
	}
}

// UsedSlots counts slot 0 and placeholder slots; it is the value written
// as constant_pool_count.
func (p *Pool) UsedSlots() int { return len(p.entries) }

// UnusedSlots is how many more slots the pool can take.
func (p *Pool) UnusedSlots() int { return MaxSlots - len(p.entries) }

// Entry returns the entry at index i, or nil for index 0, placeholder
// slots and out of range indexes.
func (p *Pool) Entry(i uint16) Entry {
	if int(i) >= len(p.entries) {
		return nil
	}
	return p.entries[i]
}

// Lookup returns the index of an entry equal to e, if present.
func (p *Pool) Lookup(e Entry) (uint16, bool) {
	if e == nil {
		return 0, false
	}
	i, ok := p.index[e.key()]
	return i, ok
}

// Intern adds e unless an equal entry exists and returns its index.
// Entries that refer to other entries must carry valid indexes already;
// the typed methods below take care of that.
func (p *Pool) Intern(e Entry) (uint16, error) {
	if e == nil {
		return 0, errors.WithStack(ErrNilEntry)
	}
	k := e.key()
	if i, ok := p.index[k]; ok {
		return i, nil
	}
	if u, ok := e.(*Utf8); ok {
		if !utf8.ValidString(u.Value) {
			return 0, errors.Wrapf(ErrBadString, "%q", u.Value)
		}
		if n := ModifiedUTF8Len(u.Value); n > MaxUtf8Length {
			return 0, errors.Wrapf(ErrStringTooLong, "%d bytes", n)
		}
	}
	if p.UnusedSlots() < e.Slots() {
		return 0, errors.Wrapf(ErrPoolFull, "%d slots needed, %d unused", e.Slots(), p.UnusedSlots())
	}
	i := uint16(len(p.entries))
	p.entries = append(p.entries, e)
	if e.Slots() == 2 {
		p.entries = append(p.entries, nil)
	}
	p.index[k] = i
	return i, nil
}

// atomically runs fn and removes everything it added if it fails.
func (p *Pool) atomically(fn func() (uint16, error)) (uint16, error) {
	mark := len(p.entries)
	i, err := fn()
	if err != nil {
		for _, e := range p.entries[mark:] {
			if e != nil {
				delete(p.index, e.key())
			}
		}
		p.entries = p.entries[:mark]
		return 0, err
	}
	return i, nil
}

// Utf8 interns a CONSTANT_Utf8. s must be valid UTF-8.
func (p *Pool) Utf8(s string) (uint16, error) {
	return p.Intern(&Utf8{Value: s})
}

// Integer interns a CONSTANT_Integer.
func (p *Pool) Integer(v int32) (uint16, error) {
	return p.Intern(&Integer{Value: v})
}

// Float interns a CONSTANT_Float. Values are compared by their bits.
func (p *Pool) Float(v float32) (uint16, error) {
	return p.Intern(&Float{Value: v})
}

// Long interns a CONSTANT_Long, which takes two slots.
func (p *Pool) Long(v int64) (uint16, error) {
	return p.Intern(&Long{Value: v})
}

// Double interns a CONSTANT_Double, which takes two slots. Values are
// compared by their bits.
func (p *Pool) Double(v float64) (uint16, error) {
	return p.Intern(&Double{Value: v})
}

// String interns a CONSTANT_String together with its Utf8 value.
func (p *Pool) String(s string) (uint16, error) {
	return p.atomically(func() (uint16, error) {
		si, err := p.Utf8(s)
		if err != nil {
			return 0, err
		}
		return p.Intern(&StringInfo{StringIndex: si})
	})
}

// Class interns a CONSTANT_Class entry for a named class or an array type.
func (p *Pool) Class(t typeref.ClassType) (uint16, error) {
	if typeref.IsNilClassType(t) {
		return 0, errors.WithStack(typeref.ErrNilType)
	}
	return p.atomically(func() (uint16, error) {
		return p.class(t)
	})
}

func (p *Pool) class(t typeref.ClassType) (uint16, error) {
	if typeref.IsNilClassType(t) {
		return 0, errors.Wrap(typeref.ErrEmptyName, "class entry")
	}
	ni, err := p.Utf8(t.InternalName())
	if err != nil {
		return 0, err
	}
	return p.Intern(&ClassInfo{NameIndex: ni})
}

// NameAndType interns a CONSTANT_NameAndType and its two Utf8 entries.
func (p *Pool) NameAndType(name, desc string) (uint16, error) {
	return p.atomically(func() (uint16, error) {
		return p.nameAndType(name, desc)
	})
}

func (p *Pool) nameAndType(name, desc string) (uint16, error) {
	ni, err := p.Utf8(name)
	if err != nil {
		return 0, err
	}
	di, err := p.Utf8(desc)
	if err != nil {
		return 0, err
	}
	return p.Intern(&NameAndType{NameIndex: ni, DescriptorIndex: di})
}

func (p *Pool) ref(kind classfile.ConstantTag, class typeref.Class, name, desc string) (uint16, error) {
	return p.atomically(func() (uint16, error) {
		ci, err := p.class(class)
		if err != nil {
			return 0, err
		}
		nt, err := p.nameAndType(name, desc)
		if err != nil {
			return 0, err
		}
		return p.Intern(&Ref{Kind: kind, ClassIndex: ci, NameAndTypeIndex: nt})
	})
}

// FieldRef interns a CONSTANT_Fieldref and everything it refers to.
func (p *Pool) FieldRef(f typeref.FieldRef) (uint16, error) {
	if f.IsZero() {
		return 0, errors.Wrap(typeref.ErrEmptyName, "field reference")
	}
	return p.ref(classfile.ConstantFieldref, f.Class(), f.Name(), f.Descriptor())
}

// MethodRef interns a CONSTANT_Methodref for a method of a class.
func (p *Pool) MethodRef(m typeref.SubroutineRef) (uint16, error) {
	if m.IsZero() {
		return 0, errors.Wrap(typeref.ErrEmptyName, "method reference")
	}
	return p.ref(classfile.ConstantMethodref, m.Class(), m.Name(), m.Descriptor())
}

// InterfaceMethodRef interns a CONSTANT_InterfaceMethodref.
func (p *Pool) InterfaceMethodRef(m typeref.SubroutineRef) (uint16, error) {
	if m.IsZero() {
		return 0, errors.Wrap(typeref.ErrEmptyName, "interface method reference")
	}
	return p.ref(classfile.ConstantInterfaceMethodref, m.Class(), m.Name(), m.Descriptor())
}

// WriteTo writes constant_pool_count followed by every entry.
func (p *Pool) WriteTo(w io.Writer) (int64, error) {
	bw := binio.NewWriter(w)
	p.write(bw)
	return bw.Count(), bw.Err()
}

func (p *Pool) write(w *binio.Writer) {
	w.U2(uint16(len(p.entries)))
	for _, e := range p.entries[1:] {
		if e != nil {
			e.write(w)
		}
	}
}
