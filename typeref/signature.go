package typeref

import (
	"strings"

	"github.com/pkg/errors"
)

// MaxArgumentWords is the largest number of argument words a method
// descriptor may take, leaving one word for the receiver.
const MaxArgumentWords = 254

// Signature is the immutable argument and return part of a method
// reference. A nil return type means void.
type Signature struct {
	args  []Type
	ret   Type
	words int
	desc  string
}

// SignatureBuilder collects arguments before a Signature is fixed.
type SignatureBuilder struct {
	args  []Type
	ret   Type
	words int
}

// AddArgument appends t. If the argument words would exceed
// MaxArgumentWords the builder is left unchanged.
func (b *SignatureBuilder) AddArgument(t Type) error {
	if t == nil {
		return errors.WithStack(ErrNilType)
	}
	if b.words+t.WordCount() > MaxArgumentWords {
		return errors.Wrapf(ErrArgumentsFull, "adding %s to %d words", t.Name(), b.words)
	}
	b.args = append(b.args, t)
	b.words += t.WordCount()
	return nil
}

// SetReturn sets the return type; nil means void.
func (b *SignatureBuilder) SetReturn(t Type) {
	b.ret = t
}

func (b *SignatureBuilder) Build() Signature {
	args := make([]Type, len(b.args))
	copy(args, b.args)
	return newSignature(args, b.ret, b.words)
}

func newSignature(args []Type, ret Type, words int) Signature {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, a := range args {
		sb.WriteString(a.Descriptor())
	}
	sb.WriteByte(')')
	if ret == nil {
		sb.WriteByte('V')
	} else {
		sb.WriteString(ret.Descriptor())
	}
	return Signature{args: args, ret: ret, words: words, desc: sb.String()}
}

// NewSignature builds a signature in one step.
func NewSignature(ret Type, args ...Type) (Signature, error) {
	var b SignatureBuilder
	for _, a := range args {
		if err := b.AddArgument(a); err != nil {
			return Signature{}, err
		}
	}
	b.SetReturn(ret)
	return b.Build(), nil
}

// VoidSignature is "()V".
var VoidSignature = newSignature(nil, nil, 0)

// ParseSignature parses a method descriptor such as "(ILjava/lang/String;)V".
func ParseSignature(desc string) (Signature, error) {
	if desc == "" || desc[0] != '(' {
		return Signature{}, errors.Wrapf(ErrBadDescriptor, "%q: missing '('", desc)
	}
	var b SignatureBuilder
	pos := 1
	for {
		if pos >= len(desc) {
			return Signature{}, errors.Wrapf(ErrBadDescriptor, "%q: missing ')'", desc)
		}
		if desc[pos] == ')' {
			pos++
			break
		}
		t, next, err := parseType(desc, pos)
		if err != nil {
			return Signature{}, err
		}
		if err := b.AddArgument(t); err != nil {
			return Signature{}, errors.Wrapf(ErrBadDescriptor, "%q: %v", desc, err)
		}
		pos = next
	}
	if pos < len(desc) && desc[pos] == 'V' {
		if pos+1 != len(desc) {
			return Signature{}, errors.Wrapf(ErrBadDescriptor, "%q: trailing characters", desc)
		}
		return b.Build(), nil
	}
	ret, next, err := parseType(desc, pos)
	if err != nil {
		return Signature{}, err
	}
	if next != len(desc) {
		return Signature{}, errors.Wrapf(ErrBadDescriptor, "%q: trailing characters", desc)
	}
	b.SetReturn(ret)
	return b.Build(), nil
}

func (s Signature) Descriptor() string {
	if s.desc == "" {
		return "()V"
	}
	return s.desc
}

// ArgumentTypes returns a copy of the argument list.
func (s Signature) ArgumentTypes() []Type {
	args := make([]Type, len(s.args))
	copy(args, s.args)
	return args
}

func (s Signature) ArgumentCount() int { return len(s.args) }

func (s Signature) ArgumentWordCount() int { return s.words }

// ReturnType is nil for void.
func (s Signature) ReturnType() Type { return s.ret }

func (s Signature) IsVoid() bool { return s.ret == nil }

func (s Signature) Equal(other Signature) bool {
	return s.Descriptor() == other.Descriptor()
}

func (s Signature) argumentList() string {
	names := make([]string, len(s.args))
	for i, a := range s.args {
		names[i] = a.Name()
	}
	return strings.Join(names, ",")
}
