// Package recipe reads TOML descriptions of classes and builds them with
// package synth.
//
//	name = "com.example.Greeter"
//	interfaces = ["java.lang.Runnable"]
//
//	[[field]]
//	name = "GREETING"
//	constant = { string = "hello" }
//
//	[[method]]
//	kind = "constructor"
//	descriptor = "()V"
//	max_stack = 1
//	max_locals = 1
//	code = """
//	    aload 0
//	    invokespecial java.lang.Object.<init>()V
//	    return
//	"""
//
// Method bodies use the listing syntax of package asm.
package recipe

import (
	"bytes"
	"io"
	"os"
	"unicode/utf16"

	"github.com/dhamidi/classgen/asm"
	"github.com/dhamidi/classgen/bytecode"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/synth"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

var ErrRecipe = errkind.New(errkind.Invalid, "invalid recipe")

// Recipe describes one class or interface.
type Recipe struct {
	Name       string   `toml:"name"`
	Kind       string   `toml:"kind"`
	Super      string   `toml:"super"`
	Interfaces []string `toml:"interfaces"`
	Access     []string `toml:"access"`
	Fields     []Field  `toml:"field"`
	Methods    []Method `toml:"method"`

	// Source names the file the recipe came from, for messages.
	Source string `toml:"-"`
}

type Field struct {
	Name      string    `toml:"name"`
	Type      string    `toml:"type"`
	Access    string    `toml:"access"`
	Static    *bool     `toml:"static"`
	Final     bool      `toml:"final"`
	Volatile  bool      `toml:"volatile"`
	Transient bool      `toml:"transient"`
	Constant  *Constant `toml:"constant"`
}

// Constant holds exactly one typed value.
type Constant struct {
	Int     *int32   `toml:"int"`
	Short   *int16   `toml:"short"`
	Byte    *int8    `toml:"byte"`
	Char    *string  `toml:"char"`
	Boolean *bool    `toml:"boolean"`
	Long    *int64   `toml:"long"`
	Float   *float32 `toml:"float"`
	Double  *float64 `toml:"double"`
	String  *string  `toml:"string"`
}

type Method struct {
	Name         string    `toml:"name"`
	Descriptor   string    `toml:"descriptor"`
	Kind         string    `toml:"kind"`
	Access       string    `toml:"access"`
	Static       bool      `toml:"static"`
	Final        bool      `toml:"final"`
	Synchronized bool      `toml:"synchronized"`
	Strict       bool      `toml:"strict"`
	MaxStack     *int      `toml:"max_stack"`
	MaxLocals    *int      `toml:"max_locals"`
	Throws       []string  `toml:"throws"`
	Code         string    `toml:"code"`
	Handlers     []Handler `toml:"handler"`
}

// Handler covers the code between the labels Start and End. An empty
// Type catches everything.
type Handler struct {
	Start   string `toml:"start"`
	End     string `toml:"end"`
	Handler string `toml:"handler"`
	Type    string `toml:"type"`
}

// Load reads the recipe in path.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading recipe")
	}
	return Parse(path, bytes.NewReader(data))
}

// Parse decodes a recipe. Keys the recipe format does not know are
// rejected.
func Parse(source string, r io.Reader) (*Recipe, error) {
	var rec Recipe
	d := toml.NewDecoder(r)
	d.DisallowUnknownFields()
	if err := d.Decode(&rec); err != nil {
		return nil, errors.Wrapf(ErrRecipe, "%s: %v", source, err)
	}
	rec.Source = source
	if rec.Name == "" {
		return nil, errors.Wrapf(ErrRecipe, "%s: missing name", source)
	}
	return &rec, nil
}

func (r *Recipe) fail(format string, args ...any) error {
	return errors.Wrapf(ErrRecipe, "%s: "+format, append([]any{r.Source}, args...)...)
}

// Build assembles the described class.
func (r *Recipe) Build() (*synth.ClassDescription, error) {
	c, err := r.newClass()
	if err != nil {
		return nil, err
	}
	for _, name := range r.Interfaces {
		iface, err := typeref.ClassFromInternalName(name)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: interface", r.Source)
		}
		if err := c.AddSuperinterface(iface); err != nil {
			return nil, err
		}
	}
	for i := range r.Fields {
		if err := r.addField(c, &r.Fields[i]); err != nil {
			return nil, errors.Wrapf(err, "%s: field %q", r.Source, r.Fields[i].Name)
		}
	}
	for i := range r.Methods {
		m := &r.Methods[i]
		if err := r.addMethod(c, m); err != nil {
			return nil, errors.Wrapf(err, "%s: method %q", r.Source, m.Name+m.Descriptor)
		}
	}
	return c, nil
}

func (r *Recipe) newClass() (*synth.ClassDescription, error) {
	switch r.Kind {
	case "", "class":
		var opts []synth.ClassOption
		if r.Super != "" {
			super, err := typeref.ClassFromInternalName(r.Super)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: superclass", r.Source)
			}
			opts = append(opts, synth.WithSuperclass(super))
		}
		for _, a := range r.Access {
			switch a {
			case "public":
			case "final":
				opts = append(opts, synth.WithFinal())
			case "abstract":
				opts = append(opts, synth.WithAbstract())
			case "package":
				opts = append(opts, synth.WithPackageScope())
			default:
				return nil, r.fail("unknown class access %q", a)
			}
		}
		return synth.NewClass(r.Name, opts...)

	case "interface":
		if r.Super != "" && r.Super != typeref.Object.Name() {
			return nil, r.fail("interface cannot extend %s", r.Super)
		}
		c, err := synth.NewInterface(r.Name)
		if err != nil {
			return nil, err
		}
		for _, a := range r.Access {
			switch a {
			case "public", "abstract":
			case "package":
				c.SetPublic(false)
			default:
				return nil, r.fail("unknown interface access %q", a)
			}
		}
		return c, nil
	}
	return nil, r.fail("unknown kind %q", r.Kind)
}

func (c *Constant) value() (synth.Constant, error) {
	var values []synth.Constant
	if c.Int != nil {
		values = append(values, synth.IntValue(*c.Int))
	}
	if c.Short != nil {
		values = append(values, synth.ShortValue(*c.Short))
	}
	if c.Byte != nil {
		values = append(values, synth.ByteValue(*c.Byte))
	}
	if c.Char != nil {
		units := utf16.Encode([]rune(*c.Char))
		if len(units) != 1 {
			return nil, errors.Wrapf(ErrRecipe, "char constant %q is not one UTF-16 unit", *c.Char)
		}
		values = append(values, synth.CharValue(units[0]))
	}
	if c.Boolean != nil {
		values = append(values, synth.BoolValue(*c.Boolean))
	}
	if c.Long != nil {
		values = append(values, synth.LongValue(*c.Long))
	}
	if c.Float != nil {
		values = append(values, synth.FloatValue(*c.Float))
	}
	if c.Double != nil {
		values = append(values, synth.DoubleValue(*c.Double))
	}
	if c.String != nil {
		values = append(values, synth.StringValue(*c.String))
	}
	if len(values) != 1 {
		return nil, errors.Wrapf(ErrRecipe, "constant needs exactly one value, has %d", len(values))
	}
	return values[0], nil
}

func (r *Recipe) addField(c *synth.ClassDescription, f *Field) error {
	var t typeref.Type
	if f.Type != "" {
		var err error
		if t, err = typeref.ParseFieldDescriptor(f.Type); err != nil {
			return err
		}
	}

	var fd *synth.FieldDescription
	if f.Constant != nil {
		v, err := f.Constant.value()
		if err != nil {
			return err
		}
		if t != nil && !typeref.Equal(t, v.Type()) {
			return errors.Wrapf(ErrRecipe, "type %s does not match %s constant", f.Type, v.Type().Name())
		}
		if fd, err = c.AddConstantField(f.Name, v); err != nil {
			return err
		}
	} else {
		if t == nil {
			return errors.Wrap(ErrRecipe, "missing type")
		}
		var err error
		if fd, err = c.AddField(f.Name, t); err != nil {
			return err
		}
	}

	if err := setAccess(f.Access, fd.SetPublic, fd.SetPrivate, fd.SetProtected, fd.SetPackageScoped); err != nil {
		return err
	}
	if f.Static != nil {
		if err := fd.SetStatic(*f.Static); err != nil {
			return err
		}
	}
	switch {
	case f.Final && f.Volatile:
		return errors.Wrap(ErrRecipe, "field cannot be both final and volatile")
	case f.Final:
		if err := fd.SetFinal(); err != nil {
			return err
		}
	case f.Volatile:
		if err := fd.SetVolatile(); err != nil {
			return err
		}
	}
	if f.Transient {
		return fd.SetTransient(true)
	}
	return nil
}

func setAccess(access string, public, private, protected, pkg func() error) error {
	switch access {
	case "":
		return nil
	case "public":
		return public()
	case "private":
		return private()
	case "protected":
		return protected()
	case "package":
		return pkg()
	}
	return errors.Wrapf(ErrRecipe, "unknown access %q", access)
}

func (r *Recipe) addSubroutine(c *synth.ClassDescription, m *Method) (*synth.SubroutineDescription, error) {
	if m.Kind == "initializer" {
		if m.Descriptor != "" && m.Descriptor != "()V" {
			return nil, errors.Wrapf(ErrRecipe, "class initializer descriptor %q", m.Descriptor)
		}
		return c.AddClassInitializer()
	}

	sig, err := typeref.ParseSignature(m.Descriptor)
	if err != nil {
		return nil, err
	}
	switch m.Kind {
	case "", "method":
		return c.AddMethod(m.Name, sig)
	case "abstract":
		return c.AddAbstractMethod(m.Name, sig)
	case "interface":
		return c.AddInterfaceMethod(m.Name, sig)
	case "constructor":
		if m.Name != "" && m.Name != typeref.ConstructorName {
			return nil, errors.Wrapf(ErrRecipe, "constructor named %q", m.Name)
		}
		return c.AddConstructor(sig)
	}
	return nil, errors.Wrapf(ErrRecipe, "unknown method kind %q", m.Kind)
}

func (r *Recipe) addMethod(c *synth.ClassDescription, m *Method) error {
	s, err := r.addSubroutine(c, m)
	if err != nil {
		return err
	}

	if err := setAccess(m.Access, s.SetPublic, s.SetPrivate, s.SetProtected, s.SetPackageScoped); err != nil {
		return err
	}
	modifiers := []struct {
		on  bool
		set func(bool) error
	}{
		{m.Static, s.SetStatic},
		{m.Final, s.SetFinal},
		{m.Synchronized, s.SetSynchronized},
		{m.Strict, s.SetStrict},
	}
	for _, mod := range modifiers {
		if mod.on {
			if err := mod.set(true); err != nil {
				return err
			}
		}
	}

	if m.MaxStack != nil {
		if err := s.SetMaxStack(*m.MaxStack); err != nil {
			return err
		}
	}
	if m.MaxLocals != nil {
		if err := s.SetMaxLocals(*m.MaxLocals); err != nil {
			return err
		}
	}
	for _, name := range m.Throws {
		class, err := typeref.ClassFromInternalName(name)
		if err != nil {
			return err
		}
		if err := s.AddThrownException(class); err != nil {
			return err
		}
	}

	if m.Code == "" {
		if len(m.Handlers) > 0 {
			return errors.Wrap(ErrRecipe, "exception handlers without code")
		}
		return nil
	}
	prog, err := asm.Assemble(r.Source+":"+s.Name(), []byte(m.Code))
	if err != nil {
		return err
	}
	if err := s.AddInstructions(prog.Instructions...); err != nil {
		return err
	}
	for _, h := range m.Handlers {
		if err := addHandler(s, prog, h); err != nil {
			return err
		}
	}
	return nil
}

func addHandler(s *synth.SubroutineDescription, prog *asm.Program, h Handler) error {
	var locs [3]*bytecode.Location
	for i, name := range []string{h.Start, h.End, h.Handler} {
		loc, ok := prog.Label(name)
		if !ok {
			return errors.Wrapf(ErrRecipe, "handler refers to unknown label %q", name)
		}
		locs[i] = loc
	}
	var catchType typeref.Class
	if h.Type != "" {
		var err error
		if catchType, err = typeref.ClassFromInternalName(h.Type); err != nil {
			return err
		}
	}
	return s.AddExceptionHandler(locs[0], locs[1], locs[2], catchType)
}
