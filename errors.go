package factory

import (
	"errors"
	"fmt"
)

// ErrInvalidInput matches, through errors.Is, every error caused by a malformed
// description or configuration.
var ErrInvalidInput = errors.New("invalid input")

// MissingClassError means an object description has no __class key.
type MissingClassError struct{}

func (e MissingClassError) Error() string {
	return fmt.Sprintf("object description must contain %q key", KeyClass)
}

func (e MissingClassError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidDescriptionError means a value cannot be interpreted as a description.
type InvalidDescriptionError struct {
	Reason string
}

func (e InvalidDescriptionError) Error() string {
	return "invalid object description: " + e.Reason
}

func (e InvalidDescriptionError) Is(target error) bool { return target == ErrInvalidInput }

// UnknownDirectiveError means a configuration key is neither a method call, a
// setter, nor a field of the configured object.
type UnknownDirectiveError struct {
	Type string
	Key  string
}

func (e UnknownDirectiveError) Error() string {
	return fmt.Sprintf("type %q does not have property %q", e.Type, e.Key)
}

func (e UnknownDirectiveError) Is(target error) bool { return target == ErrInvalidInput }

// TypeMismatchError means a resolved reference does not satisfy the expected type.
type TypeMismatchError struct {
	Expected string
	Actual   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("reference %q does not match type %q", e.Actual, e.Expected)
}

func (e TypeMismatchError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidStateError means a serialized Description cannot be reconstructed.
type InvalidStateError struct {
	Reason string
}

func (e InvalidStateError) Error() string {
	return "invalid description state: " + e.Reason
}

func (e InvalidStateError) Is(target error) bool { return target == ErrInvalidInput }

// DepthExceededError means descriptions are nested deeper than the Builder allows.
type DepthExceededError struct {
	Class string
	Max   int
}

func (e DepthExceededError) Error() string {
	return fmt.Sprintf("description nesting exceeds %d levels at %q", e.Max, e.Class)
}
