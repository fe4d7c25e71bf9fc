// Package errkind classifies the failures reported by the classgen
// packages. Every sentinel error exported elsewhere in the module matches
// exactly one of the kinds below with errors.Is.
package errkind

import (
	"github.com/pkg/errors"
)

var (
	// Invalid marks malformed input: empty names, bad descriptors,
	// references that do not belong where they are used.
	Invalid = errors.New("invalid argument")

	// Capacity marks a JVM size limit being hit.
	Capacity = errors.New("capacity exceeded")

	// State marks an operation on an object that is no longer in a state
	// that allows it, such as adding a case to an attached switch.
	State = errors.New("illegal state")

	// Resolution marks bytecode that cannot be turned into bytes.
	Resolution = errors.New("unresolvable bytecode")

	// Duplicate marks a member declared twice.
	Duplicate = errors.New("duplicate member")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel error with the given message that matches kind.
func New(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

// Of reports which kind err belongs to, or nil.
func Of(err error) error {
	for _, k := range []error{Invalid, Capacity, State, Resolution, Duplicate} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
