package synth

import (
	"strconv"

	"github.com/dhamidi/classgen/constpool"
	"github.com/dhamidi/classgen/typeref"
)

// Constant is the initial value of a constant field.
type Constant interface {
	Type() typeref.Type
	String() string
	intern(p *constpool.Pool) (uint16, error)
}

// intConstant covers every type stored in an Integer pool entry.
type intConstant struct {
	typ *typeref.Primitive
	v   int32
}

func IntValue(v int32) Constant   { return intConstant{typeref.Int, v} }
func ShortValue(v int16) Constant { return intConstant{typeref.Short, int32(v)} }
func CharValue(v uint16) Constant { return intConstant{typeref.Char, int32(v)} }
func ByteValue(v int8) Constant   { return intConstant{typeref.Byte, int32(v)} }

func BoolValue(v bool) Constant {
	if v {
		return intConstant{typeref.Boolean, 1}
	}
	return intConstant{typeref.Boolean, 0}
}

func (c intConstant) Type() typeref.Type { return c.typ }

func (c intConstant) String() string {
	if c.typ == typeref.Boolean {
		return strconv.FormatBool(c.v != 0)
	}
	return strconv.FormatInt(int64(c.v), 10)
}

func (c intConstant) intern(p *constpool.Pool) (uint16, error) { return p.Integer(c.v) }

type floatConstant float32

func FloatValue(v float32) Constant { return floatConstant(v) }

func (c floatConstant) Type() typeref.Type { return typeref.Float }
func (c floatConstant) String() string {
	return strconv.FormatFloat(float64(c), 'g', -1, 32) + "f"
}
func (c floatConstant) intern(p *constpool.Pool) (uint16, error) { return p.Float(float32(c)) }

type longConstant int64

func LongValue(v int64) Constant { return longConstant(v) }

func (c longConstant) Type() typeref.Type                       { return typeref.Long }
func (c longConstant) String() string                           { return strconv.FormatInt(int64(c), 10) + "L" }
func (c longConstant) intern(p *constpool.Pool) (uint16, error) { return p.Long(int64(c)) }

type doubleConstant float64

func DoubleValue(v float64) Constant { return doubleConstant(v) }

func (c doubleConstant) Type() typeref.Type { return typeref.Double }
func (c doubleConstant) String() string {
	return strconv.FormatFloat(float64(c), 'g', -1, 64)
}
func (c doubleConstant) intern(p *constpool.Pool) (uint16, error) { return p.Double(float64(c)) }

type stringConstant string

func StringValue(v string) Constant { return stringConstant(v) }

func (c stringConstant) Type() typeref.Type                       { return typeref.String }
func (c stringConstant) String() string                           { return strconv.Quote(string(c)) }
func (c stringConstant) intern(p *constpool.Pool) (uint16, error) { return p.String(string(c)) }
