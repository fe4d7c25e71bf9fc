// Package format renders parsed class files for people and tools.
package format

import (
	"encoding"
	"io"
	"strings"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/typeref"
	"github.com/pkg/errors"
)

var ErrUnknownFormat = errkind.New(errkind.Invalid, "unknown output format")

type Encoder interface {
	encoding.TextMarshaler
	Encode(cf *classfile.ClassFile) error
}

// Names lists the formats NewEncoder accepts.
var Names = []string{"line", "json", "listing", "raw"}

func NewEncoder(name string, w io.Writer) (Encoder, error) {
	switch name {
	case "line":
		return NewLineEncoder(w), nil
	case "json":
		return NewJSONEncoder(w), nil
	case "listing":
		return NewListingEncoder(w), nil
	case "raw":
		return NewRawEncoder(w), nil
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "%q, want one of %s", name, strings.Join(Names, ", "))
}

func write(w io.Writer, m encoding.TextMarshaler) error {
	text, err := m.MarshalText()
	if err != nil {
		return err
	}
	_, err = w.Write(text)
	return err
}

func classKind(cf *classfile.ClassFile) string {
	if cf.IsInterface() {
		return "interface"
	}
	return "class"
}

func dotted(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

func visibility(f classfile.AccessFlags) string {
	switch {
	case f.IsPublic():
		return "public"
	case f.IsPrivate():
		return "private"
	case f.IsProtected():
		return "protected"
	}
	return "package"
}

// modifiers lists the set flags other than visibility and the bits that
// only say what kind of class file it is.
func modifiers(f classfile.AccessFlags, target classfile.Target) []string {
	var mods []string
	for _, name := range f.Names(target) {
		switch name {
		case "public", "private", "protected", "super", "interface":
			continue
		}
		mods = append(mods, name)
	}
	return mods
}

// typeName renders a field descriptor as a Java type name, falling back
// to the descriptor itself when it does not parse.
func typeName(desc string) string {
	t, err := typeref.ParseFieldDescriptor(desc)
	if err != nil {
		return desc
	}
	return t.Name()
}

// signature splits a method descriptor into parameter and return type
// names.
func signature(desc string) (params []string, ret string) {
	sig, err := typeref.ParseSignature(desc)
	if err != nil {
		return nil, desc
	}
	for _, t := range sig.ArgumentTypes() {
		params = append(params, t.Name())
	}
	ret = "void"
	if t := sig.ReturnType(); t != nil {
		ret = t.Name()
	}
	return params, ret
}
