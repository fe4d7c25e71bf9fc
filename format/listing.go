package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/classgen/bytecode"
	"github.com/dhamidi/classgen/classfile"
	"github.com/pkg/errors"
)

// ListingEncoder disassembles every method body, javap style. Pool
// operands are followed by a comment describing the entry.
type ListingEncoder struct {
	w     io.Writer
	class *classfile.ClassFile

	// Method restricts the listing to methods with this name when set.
	Method string
}

func NewListingEncoder(w io.Writer) *ListingEncoder {
	return &ListingEncoder{w: w}
}

func (e *ListingEncoder) Encode(cf *classfile.ClassFile) error {
	e.class = cf
	return write(e.w, e)
}

func (e *ListingEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	c := e.class
	cp := c.ConstantPool

	fmt.Fprintf(&sb, "%s %s", classKind(c), dotted(c.ClassName()))
	if super := c.SuperClassName(); super != "" {
		fmt.Fprintf(&sb, " extends %s", dotted(super))
	}
	sb.WriteString("\n")

	for i := range c.Methods {
		m := &c.Methods[i]
		name := m.Name(cp)
		if e.Method != "" && name != e.Method {
			continue
		}
		sb.WriteString("\n")
		if flags := m.AccessFlags.Format(classfile.TargetMethod); flags != "" {
			sb.WriteString(flags + " ")
		}
		fmt.Fprintf(&sb, "%s%s\n", name, m.Descriptor(cp))

		code := m.Code()
		if code == nil {
			continue
		}
		fmt.Fprintf(&sb, "  stack=%d, locals=%d, length=%d\n", code.MaxStack, code.MaxLocals, len(code.Code))
		insns, err := bytecode.Disassemble(code.Code)
		if err != nil {
			return nil, errors.Wrapf(err, "%s%s", name, m.Descriptor(cp))
		}
		for _, d := range insns {
			sb.WriteString("  ")
			sb.WriteString(d.String())
			if d.Op.UsesPool() {
				fmt.Fprintf(&sb, "\t// %s", cp.Describe(uint16(d.Index)))
			}
			sb.WriteString("\n")
		}
		if len(code.ExceptionTable) > 0 {
			sb.WriteString("  exceptions:\n")
			for _, h := range code.ExceptionTable {
				catch := "any"
				if h.CatchType != 0 {
					catch = dotted(cp.GetClassName(h.CatchType))
				}
				fmt.Fprintf(&sb, "    %d %d %d %s\n", h.StartPC, h.EndPC, h.HandlerPC, catch)
			}
		}
	}

	return []byte(sb.String()), nil
}
