package format

import (
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/dhamidi/classgen/classfile"
)

var rawConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// RawEncoder dumps the parsed structure as is, for debugging the reader.
type RawEncoder struct {
	w     io.Writer
	class *classfile.ClassFile
}

func NewRawEncoder(w io.Writer) *RawEncoder {
	return &RawEncoder{w: w}
}

func (e *RawEncoder) Encode(cf *classfile.ClassFile) error {
	e.class = cf
	return write(e.w, e)
}

func (e *RawEncoder) MarshalText() ([]byte, error) {
	return []byte(rawConfig.Sdump(e.class)), nil
}
