package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/dhamidi/classgen/classfile"
)

// LineEncoder writes one tab-separated line for the class and for each
// of its fields and methods. Empty columns are written as "-".
type LineEncoder struct {
	w     io.Writer
	class *classfile.ClassFile
}

func NewLineEncoder(w io.Writer) *LineEncoder {
	return &LineEncoder{w: w}
}

func (e *LineEncoder) Encode(cf *classfile.ClassFile) error {
	e.class = cf
	return write(e.w, e)
}

func (e *LineEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	c := e.class
	cp := c.ConstantPool

	fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\n",
		classKind(c),
		dotted(c.ClassName()),
		e.classModifiersStr(),
		orDash(dotted(c.SuperClassName())),
	)

	for i := range c.Fields {
		f := &c.Fields[i]
		fmt.Fprintf(&sb, "field\t%s\t%s\t%s\t%s\n",
			f.Name(cp),
			typeName(f.Descriptor(cp)),
			visibility(f.AccessFlags),
			joinOrDash(modifiers(f.AccessFlags, classfile.TargetField)),
		)
	}

	for i := range c.Methods {
		m := &c.Methods[i]
		params, ret := signature(m.Descriptor(cp))
		fmt.Fprintf(&sb, "method\t%s\t%s\t%s\t%s\t%s\n",
			m.Name(cp),
			ret,
			joinOrDash(params),
			visibility(m.AccessFlags),
			joinOrDash(modifiers(m.AccessFlags, classfile.TargetMethod)),
		)
	}

	return []byte(sb.String()), nil
}

func (e *LineEncoder) classModifiersStr() string {
	mods := append([]string{visibility(e.class.AccessFlags)}, modifiers(e.class.AccessFlags, classfile.TargetClass)...)
	return strings.Join(mods, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(parts []string) string {
	return orDash(strings.Join(parts, ","))
}
