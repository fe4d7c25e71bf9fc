package classfile

type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool ConstantPool
	AccessFlags  AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	Attributes   []AttributeInfo
}

// ClassName returns the internal name of the class, e.g. "com/example/Foo".
func (cf *ClassFile) ClassName() string {
	return cf.ConstantPool.GetClassName(cf.ThisClass)
}

func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	return cf.ConstantPool.GetClassName(cf.SuperClass)
}

func (cf *ClassFile) InterfaceNames() []string {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		names[i] = cf.ConstantPool.GetClassName(idx)
	}
	return names
}

func (cf *ClassFile) IsInterface() bool {
	return cf.AccessFlags.IsInterface()
}

func (cf *ClassFile) GetField(name string) *FieldInfo {
	for i := range cf.Fields {
		if cf.Fields[i].Name(cf.ConstantPool) == name {
			return &cf.Fields[i]
		}
	}
	return nil
}

// GetMethod finds a method by name and, when descriptor is non-empty, by
// descriptor.
func (cf *ClassFile) GetMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name(cf.ConstantPool) == name {
			if descriptor == "" || cf.Methods[i].Descriptor(cf.ConstantPool) == descriptor {
				return &cf.Methods[i]
			}
		}
	}
	return nil
}

func (cf *ClassFile) SourceFile() string {
	for i := range cf.Attributes {
		if sf := cf.Attributes[i].AsSourceFile(); sf != nil {
			return cf.ConstantPool.GetUtf8(sf.SourceFileIndex)
		}
	}
	return ""
}

type FieldInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func (f *FieldInfo) Name(cp ConstantPool) string       { return cp.GetUtf8(f.NameIndex) }
func (f *FieldInfo) Descriptor(cp ConstantPool) string { return cp.GetUtf8(f.DescriptorIndex) }

// ConstantValue returns the pool index named by the field's ConstantValue
// attribute, or 0.
func (f *FieldInfo) ConstantValue() uint16 {
	for i := range f.Attributes {
		if cv := f.Attributes[i].AsConstantValue(); cv != nil {
			return cv.ConstantValueIndex
		}
	}
	return 0
}

type MethodInfo struct {
	AccessFlags     AccessFlags
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

func (m *MethodInfo) Name(cp ConstantPool) string       { return cp.GetUtf8(m.NameIndex) }
func (m *MethodInfo) Descriptor(cp ConstantPool) string { return cp.GetUtf8(m.DescriptorIndex) }

func (m *MethodInfo) Code() *CodeAttribute {
	for i := range m.Attributes {
		if code := m.Attributes[i].AsCode(); code != nil {
			return code
		}
	}
	return nil
}

// Exceptions returns the internal names of the declared thrown classes.
func (m *MethodInfo) Exceptions(cp ConstantPool) []string {
	for i := range m.Attributes {
		if ex := m.Attributes[i].AsExceptions(); ex != nil {
			names := make([]string, len(ex.ExceptionIndexTable))
			for j, idx := range ex.ExceptionIndexTable {
				names[j] = cp.GetClassName(idx)
			}
			return names
		}
	}
	return nil
}
