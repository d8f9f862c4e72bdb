// Package payload assembles the submission body from the final form state.
//
// Only declared fields are sent. Undefined and disabled fields are dropped so
// a value hidden behind an inactive rule can never leak into a submission.
// Free-text fields are stripped of markup and hidden fields are merged last.
package payload

import (
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formflow/pkg/model"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

// SanitizeText removes markup from user-entered free text.
func SanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(textSanitizer().Sanitize(trimmed))
}

// Enabler reports whether a field is currently enabled. A rules.Result
// satisfies it.
type Enabler interface {
	IsEnabled(name model.FieldName) bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithHiddenFields adds server-owned fields to every payload.
func WithHiddenFields(fields ...HiddenField) Option {
	return func(b *Builder) {
		b.hidden = MergeHiddenFields(b.hidden, fields...)
	}
}

// WithExtra includes state keys that are not declared form fields, such as
// derived outputs the backend stores.
func WithExtra(names ...model.FieldName) Option {
	return func(b *Builder) {
		for _, name := range names {
			b.extra[name] = struct{}{}
		}
	}
}

// Builder turns a state snapshot into a submission body.
type Builder struct {
	fields map[model.FieldName]model.Field
	extra  map[model.FieldName]struct{}
	hidden map[string]string
}

// New creates a Builder for form.
func New(form model.FormModel, opts ...Option) (*Builder, error) {
	b := &Builder{
		fields: make(map[model.FieldName]model.Field, len(form.Fields)),
		extra:  make(map[model.FieldName]struct{}),
	}
	for _, field := range form.Fields {
		b.fields[field.Name] = field
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	for name := range b.hidden {
		if _, clash := b.fields[model.FieldName(name)]; clash {
			return nil, model.Misconfigured("payload", fmt.Sprintf("hidden field %q shadows a form field", name), nil)
		}
	}
	return b, nil
}

// Hidden returns the configured hidden fields.
func (b *Builder) Hidden() []HiddenField {
	return SortedHiddenFields(b.hidden)
}

// Build assembles the payload. enabled may be nil when no rules apply.
func (b *Builder) Build(state model.State, enabled Enabler) map[string]any {
	out := make(map[string]any, state.Len()+len(b.hidden))
	for _, name := range state.Names() {
		field, declared := b.fields[name]
		if _, extra := b.extra[name]; !declared && !extra {
			continue
		}
		if enabled != nil && !enabled.IsEnabled(name) {
			continue
		}
		value, _ := state.Get(name)
		if text, ok := value.(string); ok {
			if field.FreeText {
				text = SanitizeText(text)
			} else {
				text = strings.TrimSpace(text)
			}
			if text == "" {
				continue
			}
			value = text
		}
		out[string(name)] = value
	}
	for name, value := range b.hidden {
		out[name] = value
	}
	return out
}
