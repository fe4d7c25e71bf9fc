package classfile

import "fmt"

type ConstantPoolEntry interface {
	Tag() ConstantTag
}

type ConstantUtf8Info struct {
	Value string
}

func (c *ConstantUtf8Info) Tag() ConstantTag { return ConstantUtf8 }

type ConstantIntegerInfo struct {
	Value int32
}

func (c *ConstantIntegerInfo) Tag() ConstantTag { return ConstantInteger }

type ConstantFloatInfo struct {
	Value float32
}

func (c *ConstantFloatInfo) Tag() ConstantTag { return ConstantFloat }

type ConstantLongInfo struct {
	Value int64
}

func (c *ConstantLongInfo) Tag() ConstantTag { return ConstantLong }

type ConstantDoubleInfo struct {
	Value float64
}

func (c *ConstantDoubleInfo) Tag() ConstantTag { return ConstantDouble }

type ConstantClassInfo struct {
	NameIndex uint16
}

func (c *ConstantClassInfo) Tag() ConstantTag { return ConstantClass }

type ConstantStringInfo struct {
	StringIndex uint16
}

func (c *ConstantStringInfo) Tag() ConstantTag { return ConstantString }

// ConstantRefInfo is a field, method or interface method reference;
// Kind tells which.
type ConstantRefInfo struct {
	Kind             ConstantTag
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantRefInfo) Tag() ConstantTag { return c.Kind }

type ConstantNameAndTypeInfo struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndTypeInfo) Tag() ConstantTag { return ConstantNameAndType }

// ConstantPool holds the entries at indexes 1..n as cp[0..n-1]. The
// second slot of a long or double is nil.
type ConstantPool []ConstantPoolEntry

func (cp ConstantPool) Get(index uint16) ConstantPoolEntry {
	if index == 0 || int(index) > len(cp) {
		return nil
	}
	return cp[index-1]
}

func (cp ConstantPool) GetUtf8(index uint16) string {
	if entry, ok := cp.Get(index).(*ConstantUtf8Info); ok {
		return entry.Value
	}
	return ""
}

// GetClassName returns the internal (slash separated) name of a Class entry.
func (cp ConstantPool) GetClassName(index uint16) string {
	if entry, ok := cp.Get(index).(*ConstantClassInfo); ok {
		return cp.GetUtf8(entry.NameIndex)
	}
	return ""
}

func (cp ConstantPool) GetNameAndType(index uint16) (name, descriptor string) {
	if entry, ok := cp.Get(index).(*ConstantNameAndTypeInfo); ok {
		return cp.GetUtf8(entry.NameIndex), cp.GetUtf8(entry.DescriptorIndex)
	}
	return "", ""
}

func (cp ConstantPool) GetString(index uint16) string {
	if entry, ok := cp.Get(index).(*ConstantStringInfo); ok {
		return cp.GetUtf8(entry.StringIndex)
	}
	return ""
}

// GetRef resolves a field, method or interface method reference.
func (cp ConstantPool) GetRef(index uint16) (className, name, descriptor string) {
	if entry, ok := cp.Get(index).(*ConstantRefInfo); ok {
		className = cp.GetClassName(entry.ClassIndex)
		name, descriptor = cp.GetNameAndType(entry.NameAndTypeIndex)
	}
	return
}

// Describe renders the entry at index the way a disassembler listing shows
// an operand.
func (cp ConstantPool) Describe(index uint16) string {
	switch e := cp.Get(index).(type) {
	case *ConstantUtf8Info:
		return fmt.Sprintf("%q", e.Value)
	case *ConstantIntegerInfo:
		return fmt.Sprintf("int %d", e.Value)
	case *ConstantFloatInfo:
		return fmt.Sprintf("float %g", e.Value)
	case *ConstantLongInfo:
		return fmt.Sprintf("long %d", e.Value)
	case *ConstantDoubleInfo:
		return fmt.Sprintf("double %g", e.Value)
	case *ConstantClassInfo:
		return "class " + cp.GetUtf8(e.NameIndex)
	case *ConstantStringInfo:
		return fmt.Sprintf("String %q", cp.GetUtf8(e.StringIndex))
	case *ConstantNameAndTypeInfo:
		return cp.GetUtf8(e.NameIndex) + ":" + cp.GetUtf8(e.DescriptorIndex)
	case *ConstantRefInfo:
		class, name, desc := cp.GetRef(index)
		if e.Kind == ConstantFieldref {
			return fmt.Sprintf("Field %s.%s:%s", class, name, desc)
		}
		return fmt.Sprintf("%s %s.%s%s", e.Kind, class, name, desc)
	}
	return fmt.Sprintf("#%d", index)
}
