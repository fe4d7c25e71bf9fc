package format

import (
	"io"

	"github.com/dhamidi/classgen/classfile"
	"github.com/segmentio/encoding/json"
)

type JSONEncoder struct {
	w     io.Writer
	class *classfile.ClassFile
}

func NewJSONEncoder(w io.Writer) *JSONEncoder {
	return &JSONEncoder{w: w}
}

func (e *JSONEncoder) Encode(cf *classfile.ClassFile) error {
	e.class = cf
	return write(e.w, e)
}

func (e *JSONEncoder) MarshalText() ([]byte, error) {
	return json.MarshalIndent(e.buildClassData(), "", "  ")
}

type jsonClass struct {
	Name          string       `json:"name"`
	SimpleName    string       `json:"simpleName"`
	Package       string       `json:"package"`
	SuperClass    string       `json:"superClass,omitempty"`
	Interfaces    []string     `json:"interfaces,omitempty"`
	Visibility    string       `json:"visibility"`
	Kind          string       `json:"kind"`
	Modifiers     []string     `json:"modifiers,omitempty"`
	Version       jsonVersion  `json:"version"`
	ConstantCount int          `json:"constantPoolCount"`
	SourceFile    string       `json:"sourceFile,omitempty"`
	Fields        []jsonField  `json:"fields,omitempty"`
	Methods       []jsonMethod `json:"methods,omitempty"`
}

type jsonVersion struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
}

type jsonField struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Descriptor string   `json:"descriptor"`
	Visibility string   `json:"visibility"`
	Modifiers  []string `json:"modifiers,omitempty"`
	Constant   string   `json:"constant,omitempty"`
}

type jsonMethod struct {
	Name       string    `json:"name"`
	Descriptor string    `json:"descriptor"`
	ReturnType string    `json:"returnType"`
	Parameters []string  `json:"parameters,omitempty"`
	Visibility string    `json:"visibility"`
	Modifiers  []string  `json:"modifiers,omitempty"`
	Throws     []string  `json:"throws,omitempty"`
	Code       *jsonCode `json:"code,omitempty"`
}

type jsonCode struct {
	MaxStack  uint16 `json:"maxStack"`
	MaxLocals uint16 `json:"maxLocals"`
	Length    int    `json:"length"`
	Handlers  int    `json:"handlers,omitempty"`
}

func (e *JSONEncoder) buildClassData() jsonClass {
	c := e.class
	name := dotted(c.ClassName())
	pkg, simple := "", name
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			pkg, simple = name[:i], name[i+1:]
			break
		}
	}
	var ifaces []string
	for _, n := range c.InterfaceNames() {
		ifaces = append(ifaces, dotted(n))
	}
	return jsonClass{
		Name:       name,
		SimpleName: simple,
		Package:    pkg,
		SuperClass: dotted(c.SuperClassName()),
		Interfaces: ifaces,
		Visibility: visibility(c.AccessFlags),
		Kind:       classKind(c),
		Modifiers:  modifiers(c.AccessFlags, classfile.TargetClass),
		Version: jsonVersion{
			Major: c.MajorVersion,
			Minor: c.MinorVersion,
		},
		ConstantCount: len(c.ConstantPool) + 1,
		SourceFile:    c.SourceFile(),
		Fields:        e.buildFields(),
		Methods:       e.buildMethods(),
	}
}

func (e *JSONEncoder) buildFields() []jsonField {
	cp := e.class.ConstantPool
	result := make([]jsonField, len(e.class.Fields))
	for i := range e.class.Fields {
		f := &e.class.Fields[i]
		desc := f.Descriptor(cp)
		result[i] = jsonField{
			Name:       f.Name(cp),
			Type:       typeName(desc),
			Descriptor: desc,
			Visibility: visibility(f.AccessFlags),
			Modifiers:  modifiers(f.AccessFlags, classfile.TargetField),
		}
		if idx := f.ConstantValue(); idx != 0 {
			result[i].Constant = cp.Describe(idx)
		}
	}
	return result
}

func (e *JSONEncoder) buildMethods() []jsonMethod {
	cp := e.class.ConstantPool
	result := make([]jsonMethod, len(e.class.Methods))
	for i := range e.class.Methods {
		m := &e.class.Methods[i]
		desc := m.Descriptor(cp)
		params, ret := signature(desc)
		var throws []string
		for _, n := range m.Exceptions(cp) {
			throws = append(throws, dotted(n))
		}
		result[i] = jsonMethod{
			Name:       m.Name(cp),
			Descriptor: desc,
			ReturnType: ret,
			Parameters: params,
			Visibility: visibility(m.AccessFlags),
			Modifiers:  modifiers(m.AccessFlags, classfile.TargetMethod),
			Throws:     throws,
		}
		if code := m.Code(); code != nil {
			result[i].Code = &jsonCode{
				MaxStack:  code.MaxStack,
				MaxLocals: code.MaxLocals,
				Length:    len(code.Code),
				Handlers:  len(code.ExceptionTable),
			}
		}
	}
	return result
}
