package typeref

import (
	"strings"

	"github.com/pkg/errors"
)

// ArrayForClassName parses the JVM name of an array class, e.g. "[I" or
// "[[Ljava/lang/String;". Class names may use either separator.
func ArrayForClassName(name string) (*Array, error) {
	dims := 0
	for dims < len(name) && name[dims] == '[' {
		dims++
	}
	if dims == 0 {
		return nil, errors.Wrapf(ErrMalformedName, "%q: no dimensions", name)
	}
	if dims > MaxDimensions {
		return nil, errors.Wrapf(ErrMalformedName, "%q: %d dimensions", name, dims)
	}
	rest := name[dims:]
	if rest == "" {
		return nil, errors.Wrapf(ErrMalformedName, "%q: missing component type", name)
	}

	var component Type
	switch rest[0] {
	case 'L':
		end := strings.IndexByte(rest, ';')
		if end < 0 {
			return nil, errors.Wrapf(ErrMalformedName, "%q: unterminated class name", name)
		}
		if end != len(rest)-1 {
			return nil, errors.Wrapf(ErrMalformedName, "%q: trailing characters after ';'", name)
		}
		c, err := ClassFromInternalName(rest[1:end])
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedName, "%q: %v", name, err)
		}
		component = c
	default:
		p, ok := PrimitiveForChar(rest[0])
		if !ok {
			return nil, errors.Wrapf(ErrMalformedName, "%q: unknown primitive %q", name, rest[0])
		}
		if len(rest) != 1 {
			return nil, errors.Wrapf(ErrMalformedName, "%q: trailing characters after %q", name, rest[0])
		}
		component = p
	}
	return NewArray(component, dims)
}

// ParseFieldDescriptor parses a single field descriptor such as "I",
// "Ljava/lang/String;" or "[[D".
func ParseFieldDescriptor(desc string) (Type, error) {
	t, n, err := parseType(desc, 0)
	if err != nil {
		return nil, err
	}
	if n != len(desc) {
		return nil, errors.Wrapf(ErrBadDescriptor, "%q: trailing characters at %d", desc, n)
	}
	return t, nil
}

// parseType reads one field type starting at pos and returns it with the
// position just past it.
func parseType(desc string, pos int) (Type, int, error) {
	start := pos
	dims := 0
	for pos < len(desc) && desc[pos] == '[' {
		dims++
		pos++
	}
	if pos >= len(desc) {
		return nil, pos, errors.Wrapf(ErrBadDescriptor, "%q: unexpected end at %d", desc, pos)
	}

	var t Type
	switch c := desc[pos]; c {
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end < 0 {
			return nil, pos, errors.Wrapf(ErrBadDescriptor, "%q: unterminated class name at %d", desc, pos)
		}
		cls, err := ClassFromInternalName(desc[pos+1 : pos+end])
		if err != nil {
			return nil, pos, errors.Wrapf(ErrBadDescriptor, "%q: %v", desc, err)
		}
		t = cls
		pos += end + 1
	default:
		p, ok := PrimitiveForChar(c)
		if !ok {
			return nil, pos, errors.Wrapf(ErrBadDescriptor, "%q: unexpected %q at %d", desc, c, pos)
		}
		t = p
		pos++
	}

	if dims > 0 {
		a, err := NewArray(t, dims)
		if err != nil {
			return nil, start, errors.Wrapf(ErrBadDescriptor, "%q: %v", desc, err)
		}
		t = a
	}
	return t, pos, nil
}
