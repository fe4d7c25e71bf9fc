package typeref

import (
	"encoding/binary"
	"io"

	"github.com/dhamidi/classgen/internal/binio"
	"github.com/pkg/errors"
)

const (
	typeCodeArray = 0
	typeCodeClass = 1
)

// WriteType serializes t: an array is 0 followed by its component and a
// dimensions byte, a class is 1 followed by a length-prefixed name, and a
// primitive is its newarray type code.
func WriteType(w io.Writer, t Type) error {
	bw := binio.NewWriter(w)
	writeType(bw, t)
	return bw.Err()
}

func writeType(w *binio.Writer, t Type) {
	switch v := t.(type) {
	case *Array:
		w.U1(typeCodeArray)
		writeType(w, v.component)
		w.U1(uint8(v.dims))
	case Class:
		w.U1(typeCodeClass)
		w.U2(uint16(len(v.name)))
		w.Bytes([]byte(v.name))
	case *Primitive:
		w.U1(v.atype)
	}
}

// ReadType is the inverse of WriteType.
func ReadType(r io.Reader) (Type, error) {
	var code [1]byte
	if _, err := io.ReadFull(r, code[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read type code")
	}
	switch code[0] {
	case typeCodeArray:
		component, err := ReadType(r)
		if err != nil {
			return nil, err
		}
		var dims [1]byte
		if _, err := io.ReadFull(r, dims[:]); err != nil {
			return nil, errors.Wrap(err, "failed to read dimensions")
		}
		return NewArray(component, int(dims[0]))
	case typeCodeClass:
		var n [2]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return nil, errors.Wrap(err, "failed to read class name length")
		}
		name := make([]byte, binary.BigEndian.Uint16(n[:]))
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, errors.Wrap(err, "failed to read class name")
		}
		return NewClass(string(name))
	}
	p, ok := PrimitiveForArrayTypeCode(code[0])
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTypeCode, "%d", code[0])
	}
	return p, nil
}
