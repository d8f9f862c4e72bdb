package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Built-in prompt widgets exposed by the registry.
const (
	WidgetInput    = "input"
	WidgetMasked   = "masked"
	WidgetSelect   = "select"
	WidgetConfirm  = "confirm"
	WidgetEditor   = "editor"
	WidgetDateTime = "datetime"
)

// Matcher decides whether a widget should handle the supplied field.
type Matcher func(field model.Field) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects prompt widgets for fields based on explicit hints or
// registered matchers. Higher priority wins; ties fall back to registration
// order. An empty registry never resolves a widget.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in matchers registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a matcher with the provided name and priority.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the widget for a field. Metadata["widget"] is honoured
// before matcher evaluation.
func (r *Registry) Resolve(field model.Field) (string, bool) {
	if explicit := explicitWidget(field); explicit != "" {
		return explicit, true
	}
	if r == nil {
		return "", false
	}
	r.mu.RLock()
	if len(r.rules) == 0 {
		r.mu.RUnlock()
		return "", false
	}
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return entry.name, true
		}
	}
	return "", false
}

// ResolveOr returns the resolved widget or fallback.
func (r *Registry) ResolveOr(field model.Field, fallback string) string {
	if widget, ok := r.Resolve(field); ok {
		return widget
	}
	return fallback
}

// Decorate stores the resolved widget in Metadata["widget"] for every field
// that does not carry one yet.
func (r *Registry) Decorate(form *model.FormModel) {
	if r == nil || form == nil || len(form.Fields) == 0 {
		return
	}
	decorated := make([]model.Field, len(form.Fields))
	for idx, field := range form.Fields {
		if widget, ok := r.Resolve(field); ok {
			meta := make(map[string]string, len(field.Metadata)+1)
			for key, value := range field.Metadata {
				meta[key] = value
			}
			meta["widget"] = widget
			field.Metadata = meta
		}
		decorated[idx] = field
	}
	form.Fields = decorated
}

func explicitWidget(field model.Field) string {
	if field.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(field.Metadata["widget"])
}

func (r *Registry) registerBuiltins() {
	r.Register(WidgetConfirm, 90, func(field model.Field) bool {
		return field.Type == model.FieldTypeBoolean
	})

	r.Register(WidgetSelect, 80, func(field model.Field) bool {
		return field.Type == model.FieldTypeSelect || len(field.Options) > 0 || strings.TrimSpace(field.Catalog) != ""
	})

	r.Register(WidgetMasked, 70, func(field model.Field) bool {
		return strings.TrimSpace(field.Mask) != ""
	})

	r.Register(WidgetEditor, 60, func(field model.Field) bool {
		return field.FreeText
	})

	r.Register(WidgetDateTime, 50, func(field model.Field) bool {
		return field.Type == model.FieldTypeDateTime
	})

	r.Register(WidgetInput, 0, func(model.Field) bool { return true })
}
