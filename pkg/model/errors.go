package model

import (
	"fmt"
	"sort"
)

// FieldErrors maps field names to a human-readable message. A validation pass
// always produces a fresh value; callers never patch one in place.
type FieldErrors map[FieldName]string

// Has reports whether name carries an error.
func (e FieldErrors) Has(name FieldName) bool {
	_, ok := e[name]
	return ok
}

// Empty reports whether there are no errors.
func (e FieldErrors) Empty() bool { return len(e) == 0 }

// Clone returns a copy of the errors.
func (e FieldErrors) Clone() FieldErrors {
	if len(e) == 0 {
		return FieldErrors{}
	}
	out := make(FieldErrors, len(e))
	for name, message := range e {
		out[name] = message
	}
	return out
}

// Only keeps the errors attached to fields.
func (e FieldErrors) Only(fields []FieldName) FieldErrors {
	out := FieldErrors{}
	for _, name := range fields {
		if message, ok := e[name]; ok {
			out[name] = message
		}
	}
	return out
}

// Without returns a copy with the error for name removed.
func (e FieldErrors) Without(name FieldName) FieldErrors {
	out := e.Clone()
	delete(out, name)
	return out
}

// Merge returns a copy with other applied on top.
func (e FieldErrors) Merge(other FieldErrors) FieldErrors {
	out := e.Clone()
	for name, message := range other {
		out[name] = message
	}
	return out
}

// Names returns the fields with errors in sorted order.
func (e FieldErrors) Names() []FieldName {
	out := make([]FieldName, 0, len(e))
	for name := range e {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ConfigurationError reports a programmer error in the engine setup, such as
// a cyclic dependency rule or an unknown mask kind. Constructors return it so
// misconfiguration fails at build time.
type ConfigurationError struct {
	Component string
	Detail    string
	Err       error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s: configuration error: %s", e.Component, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Misconfigured constructs a ConfigurationError.
func Misconfigured(component, detail string, err error) *ConfigurationError {
	return &ConfigurationError{Component: component, Detail: detail, Err: err}
}
