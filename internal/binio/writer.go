// Package binio writes the big-endian unsigned quantities classfiles are
// made of.
package binio

import (
	"encoding/binary"
	"io"
)

// Writer remembers the first error it sees; later writes become no-ops.
type Writer struct {
	w   io.Writer
	n   int64
	err error
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) write(b []byte) {
	if w.err != nil {
		return
	}
	n, err := w.w.Write(b)
	w.n += int64(n)
	w.err = err
}

func (w *Writer) U1(v uint8) {
	w.write([]byte{v})
}

func (w *Writer) U2(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.write(buf[:])
}

func (w *Writer) U4(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.write(buf[:])
}

func (w *Writer) U8(v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	w.write(buf[:])
}

func (w *Writer) Bytes(b []byte) {
	w.write(b)
}

// Count is the number of bytes written so far.
func (w *Writer) Count() int64 { return w.n }

func (w *Writer) Err() error { return w.err }
