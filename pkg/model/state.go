package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Values is a loose field → value mapping used for partial updates such as
// lookup results or prefills.
type Values map[FieldName]any

// State is an immutable snapshot of the form values. Every mutation returns a
// new State; the receiver is never modified. An absent key means the field is
// undefined.
type State struct {
	values map[FieldName]any
}

// NewState builds a State from initial values. Values are normalised with
// Normalize; nil entries are dropped.
func NewState(initial Values) (State, error) {
	out := State{values: make(map[FieldName]any, len(initial))}
	for name, raw := range initial {
		value, err := Normalize(raw)
		if err != nil {
			return State{}, fmt.Errorf("model: field %q: %w", name, err)
		}
		if value == nil {
			continue
		}
		out.values[name] = value
	}
	return out, nil
}

// Get returns the value stored for name.
func (s State) Get(name FieldName) (any, bool) {
	value, ok := s.values[name]
	return value, ok
}

// String returns the value as a string, formatting numbers and booleans.
func (s State) String(name FieldName) string {
	value, ok := s.values[name]
	if !ok {
		return ""
	}
	return StringOf(value)
}

// Number returns the value as float64 when it is numeric or a numeric string.
func (s State) Number(name FieldName) (float64, bool) {
	value, ok := s.values[name]
	if !ok {
		return 0, false
	}
	return NumberOf(value)
}

// Bool returns the value as a boolean.
func (s State) Bool(name FieldName) bool {
	value, ok := s.values[name]
	if !ok {
		return false
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
		return err == nil && parsed
	case float64:
		return typed != 0
	default:
		return false
	}
}

// IsEmpty reports whether name is undefined or holds a blank string.
func (s State) IsEmpty(name FieldName) bool {
	value, ok := s.values[name]
	if !ok || value == nil {
		return true
	}
	if str, isString := value.(string); isString {
		return strings.TrimSpace(str) == ""
	}
	return false
}

// With returns a copy of the state with name set to value. A nil value
// removes the field.
func (s State) With(name FieldName, value any) State {
	out := s.clone(1)
	if value == nil {
		delete(out.values, name)
		return out
	}
	out.values[name] = value
	return out
}

// WithValues applies several updates at once.
func (s State) WithValues(values Values) State {
	out := s.clone(len(values))
	for name, value := range values {
		if value == nil {
			delete(out.values, name)
			continue
		}
		out.values[name] = value
	}
	return out
}

// Without returns a copy with the given fields reset to undefined.
func (s State) Without(names ...FieldName) State {
	out := s.clone(0)
	for _, name := range names {
		delete(out.values, name)
	}
	return out
}

// Values returns a copy of the underlying map.
func (s State) Values() Values {
	out := make(Values, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}

// Map returns a copy keyed by plain strings, suitable for expression lookups
// and serialisation.
func (s State) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for name, value := range s.values {
		out[string(name)] = value
	}
	return out
}

// Names returns the defined field names in sorted order.
func (s State) Names() []FieldName {
	out := make([]FieldName, 0, len(s.values))
	for name := range s.values {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len reports how many fields are defined.
func (s State) Len() int { return len(s.values) }

// Equal reports whether both snapshots hold the same values.
func (s State) Equal(other State) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for name, value := range s.values {
		otherValue, ok := other.values[name]
		if !ok || otherValue != value {
			return false
		}
	}
	return true
}

func (s State) clone(extra int) State {
	out := State{values: make(map[FieldName]any, len(s.values)+extra)}
	for name, value := range s.values {
		out.values[name] = value
	}
	return out
}
