package synth

import (
	"bytes"
	"io"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/internal/binio"
	"github.com/pkg/errors"
)

// Emit writes the class file to w. Validation, pool population and
// serialization all happen before the first byte reaches w, so a failed
// Emit writes nothing.
func (c *ClassDescription) Emit(w io.Writer) error {
	data, err := c.Bytes()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "writing %s", c.ref)
	}
	return nil
}

// Bytes serializes the class file.
func (c *ClassDescription) Bytes() ([]byte, error) {
	if err := c.checkDuplicates(); err != nil {
		return nil, err
	}
	idx, err := c.populate()
	if err != nil {
		return nil, errors.Wrapf(err, "populating constant pool of %s", c.ref)
	}

	var buf bytes.Buffer
	w := binio.NewWriter(&buf)
	w.U4(classfile.Magic)
	w.U2(classfile.MinorVersion)
	w.U2(classfile.MajorVersion)
	if _, err := c.pool.WriteTo(&buf); err != nil {
		return nil, err
	}
	w.U2(uint16(c.flags))
	w.U2(idx.this)
	w.U2(idx.super)
	w.U2(uint16(len(idx.interfaces)))
	for _, i := range idx.interfaces {
		w.U2(i)
	}

	w.U2(uint16(len(c.fields)))
	for i, f := range c.fields {
		f.emit(w, idx.fields[i])
	}

	w.U2(uint16(len(c.subroutines)))
	for i, s := range c.subroutines {
		if err := s.emit(w, idx.subroutines[i]); err != nil {
			return nil, err
		}
	}

	// No class attributes.
	w.U2(0)
	if err := w.Err(); err != nil {
		return nil, err
	}

	log.Debugf("emitted %s: %d bytes, %d constant pool slots, %d fields, %d subroutines",
		c.ref, buf.Len(), c.pool.UsedSlots(), len(c.fields), len(c.subroutines))
	return buf.Bytes(), nil
}

func (c *ClassDescription) checkDuplicates() error {
	seen := make(map[string]bool, len(c.fields))
	for _, f := range c.fields {
		key := f.ref.Name() + ":" + f.ref.Descriptor()
		if seen[key] {
			return errors.Wrapf(ErrDuplicateField, "%s", f.ref)
		}
		seen[key] = true
	}
	seen = make(map[string]bool, len(c.subroutines))
	for _, s := range c.subroutines {
		key := s.ref.Name() + s.ref.Descriptor()
		if seen[key] {
			return errors.Wrapf(ErrDuplicateSubroutine, "%s", s.ref)
		}
		seen[key] = true
	}
	return nil
}

type memberIndexes struct {
	name, descriptor uint16
	// attribute name indexes; zero when the attribute is absent
	constantValue, code, exceptions uint16
	thrown                          []uint16
}

type classIndexes struct {
	this, super uint16
	interfaces  []uint16
	fields      []memberIndexes
	subroutines []memberIndexes
}

// populate interns everything the class header and member tables refer
// to, in the order they are written.
func (c *ClassDescription) populate() (*classIndexes, error) {
	p := c.pool
	idx := &classIndexes{}
	var err error
	if idx.this, err = p.Class(c.ref); err != nil {
		return nil, err
	}
	if idx.super, err = p.Class(c.super); err != nil {
		return nil, err
	}
	for _, iface := range c.interfaces {
		i, err := p.Class(iface)
		if err != nil {
			return nil, err
		}
		idx.interfaces = append(idx.interfaces, i)
	}

	member := func(name, desc string) (memberIndexes, error) {
		var m memberIndexes
		var err error
		if m.name, err = p.Utf8(name); err != nil {
			return m, err
		}
		m.descriptor, err = p.Utf8(desc)
		return m, err
	}

	for _, f := range c.fields {
		m, err := member(f.ref.Name(), f.ref.Descriptor())
		if err != nil {
			return nil, err
		}
		if f.constant != nil {
			if m.constantValue, err = p.Utf8(classfile.AttrConstantValue); err != nil {
				return nil, err
			}
		}
		idx.fields = append(idx.fields, m)
	}

	for _, s := range c.subroutines {
		m, err := member(s.ref.Name(), s.ref.Descriptor())
		if err != nil {
			return nil, err
		}
		if !s.code.Empty() {
			if m.code, err = p.Utf8(classfile.AttrCode); err != nil {
				return nil, err
			}
		}
		if len(s.thrown) > 0 {
			if m.exceptions, err = p.Utf8(classfile.AttrExceptions); err != nil {
				return nil, err
			}
			for _, t := range s.thrown {
				i, err := p.Class(t)
				if err != nil {
					return nil, err
				}
				m.thrown = append(m.thrown, i)
			}
		}
		idx.subroutines = append(idx.subroutines, m)
	}
	return idx, nil
}

func (f *FieldDescription) emit(w *binio.Writer, m memberIndexes) {
	w.U2(uint16(f.flags))
	w.U2(m.name)
	w.U2(m.descriptor)
	if f.constant == nil {
		w.U2(0)
		return
	}
	w.U2(1)
	w.U2(m.constantValue)
	w.U4(2)
	w.U2(f.constantIndex)
}

func (s *SubroutineDescription) emit(w *binio.Writer, m memberIndexes) error {
	var attrs uint16
	if m.code != 0 {
		attrs++
	}
	if m.exceptions != 0 {
		attrs++
	}
	w.U2(uint16(s.flags))
	w.U2(m.name)
	w.U2(m.descriptor)
	w.U2(attrs)

	if m.code != 0 {
		code, err := s.code.Bytes()
		if err != nil {
			return errors.Wrapf(err, "in %s", s.ref)
		}
		handlers := s.code.Handlers()
		w.U2(m.code)
		w.U4(uint32(2 + 2 + 4 + len(code) + 2 + 8*len(handlers) + 2))
		w.U2(uint16(s.maxStack))
		w.U2(uint16(s.maxLocals))
		w.U4(uint32(len(code)))
		w.Bytes(code)
		w.U2(uint16(len(handlers)))
		for _, h := range handlers {
			start, _ := h.Start.Offset()
			end, _ := h.End.Offset()
			handler, _ := h.Handler.Offset()
			w.U2(uint16(start))
			w.U2(uint16(end))
			w.U2(uint16(handler))
			w.U2(h.CatchIndex)
		}
		// No Code attributes.
		w.U2(0)
	}

	if m.exceptions != 0 {
		w.U2(m.exceptions)
		w.U4(uint32(2 + 2*len(m.thrown)))
		w.U2(uint16(len(m.thrown)))
		for _, i := range m.thrown {
			w.U2(i)
		}
	}
	return nil
}
