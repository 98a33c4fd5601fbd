package container

import "fmt"

// ClassNotFoundError means a class is not registered.
type ClassNotFoundError struct {
	Class string
}

func (e ClassNotFoundError) Error() string {
	return fmt.Sprintf("class not found: %q", e.Class)
}

// DuplicateClassError means a class is registered twice.
type DuplicateClassError struct {
	Class string
}

func (e DuplicateClassError) Error() string {
	return fmt.Sprintf("duplicate class: %q", e.Class)
}

// MethodNotFoundError means the target has no exported method of that name.
type MethodNotFoundError struct {
	Type   string
	Method string
}

func (e MethodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s.%s", e.Type, e.Method)
}

// BindError means arguments could not be bound to the parameters of a call.
type BindError struct {
	Target string
	Reason string
}

func (e BindError) Error() string {
	return fmt.Sprintf("bind arguments for %s: %s", e.Target, e.Reason)
}

// NotCallableError means a callback is not a func.
type NotCallableError struct {
	Type string
}

func (e NotCallableError) Error() string {
	return fmt.Sprintf("value of type %s is not callable", e.Type)
}
