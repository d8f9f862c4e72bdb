package mask

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind names a mask.
type Kind string

const (
	KindTaxID      Kind = "tax-id"
	KindPostalCode Kind = "postal-code"
	KindCurrency   Kind = "currency"
	KindDuration   Kind = "duration"
	KindPhone      Kind = "phone"
)

var (
	// ErrUnknownKind is returned when no Spec is registered for a kind.
	ErrUnknownKind = errors.New("mask: unknown kind")
	// ErrRejected signals that an edit must not be applied to the field.
	ErrRejected = errors.New("mask: input rejected")
)

// Result is the outcome of applying a mask to raw input. A nil Canonical
// means the field becomes undefined.
type Result struct {
	Display   string
	Canonical any
}

// Spec is a stateless format/parse pair for one mask kind.
type Spec interface {
	Kind() Kind
	// Apply parses raw keystroke input into its display and canonical forms.
	Apply(raw string) (Result, error)
	// Format renders a stored canonical value for display.
	Format(canonical any) string
}

// Registry resolves specs by kind. The zero value is empty; use NewRegistry
// for one with the built-in kinds.
type Registry struct {
	mu    sync.RWMutex
	specs map[Kind]Spec
}

// NewRegistry returns a registry holding the built-in specs.
func NewRegistry() *Registry {
	reg := &Registry{}
	for _, spec := range builtins() {
		reg.Register(spec)
	}
	return reg
}

// Register adds or replaces the spec for its kind.
func (r *Registry) Register(spec Spec) {
	if r == nil || spec == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.specs == nil {
		r.specs = make(map[Kind]Spec)
	}
	r.specs[spec.Kind()] = spec
}

// Lookup returns the spec registered for kind.
func (r *Registry) Lookup(kind Kind) (Spec, error) {
	if r != nil {
		r.mu.RLock()
		spec, ok := r.specs[Kind(strings.TrimSpace(string(kind)))]
		r.mu.RUnlock()
		if ok {
			return spec, nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Kind, 0, len(r.specs))
	for kind := range r.specs {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Apply runs the spec for kind against raw input.
func (r *Registry) Apply(kind Kind, raw string) (Result, error) {
	spec, err := r.Lookup(kind)
	if err != nil {
		return Result{}, err
	}
	return spec.Apply(raw)
}

// Format renders canonical using the spec for kind.
func (r *Registry) Format(kind Kind, canonical any) (string, error) {
	spec, err := r.Lookup(kind)
	if err != nil {
		return "", err
	}
	return spec.Format(canonical), nil
}

var defaultRegistry = NewRegistry()

// Default returns the shared registry with the built-in specs.
func Default() *Registry { return defaultRegistry }

// Apply runs a built-in mask.
func Apply(kind Kind, raw string) (Result, error) {
	return defaultRegistry.Apply(kind, raw)
}

// Format renders a canonical value with a built-in mask.
func Format(kind Kind, canonical any) (string, error) {
	return defaultRegistry.Format(kind, canonical)
}

func builtins() []Spec {
	return []Spec{
		TaxID(),
		PostalCode(),
		Currency(),
		Duration(),
		Phone(),
	}
}
