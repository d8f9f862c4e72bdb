// Package schema loads declarative form definitions from YAML, JSON or JSONC
// files and compiles them into the building blocks the engine consumes:
// the field model, option catalogs, dependency rules, derived fields,
// enrichments and wizard steps.
package schema

import (
	"github.com/goliatone/go-formflow/pkg/model"
)

// Definition describes one form.
type Definition struct {
	ID          string                       `json:"id" yaml:"id"`
	Title       string                       `json:"title,omitempty" yaml:"title,omitempty"`
	Description string                       `json:"description,omitempty" yaml:"description,omitempty"`
	Locale      string                       `json:"locale,omitempty" yaml:"locale,omitempty"`
	Catalogs    map[string][]model.Option    `json:"catalogs,omitempty" yaml:"catalogs,omitempty"`
	Fields      []FieldDef                   `json:"fields" yaml:"fields"`
	Rules       []RuleDef                    `json:"rules,omitempty" yaml:"rules,omitempty"`
	Derived     DerivedDef                   `json:"derived,omitempty" yaml:"derived,omitempty"`
	Enrichments []EnrichmentDef              `json:"enrichments,omitempty" yaml:"enrichments,omitempty"`
	Steps       []StepDef                    `json:"steps,omitempty" yaml:"steps,omitempty"`
	Hidden      map[string]string            `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Messages    map[string]map[string]string `json:"messages,omitempty" yaml:"messages,omitempty"`
	Metadata    map[string]string            `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	// Source records the file the definition was read from.
	Source string `json:"-" yaml:"-"`
}

// FieldDef declares a field.
type FieldDef struct {
	Name        string            `json:"name" yaml:"name"`
	Type        string            `json:"type,omitempty" yaml:"type,omitempty"`
	Label       string            `json:"label,omitempty" yaml:"label,omitempty"`
	Placeholder string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool              `json:"required,omitempty" yaml:"required,omitempty"`
	Mask        string            `json:"mask,omitempty" yaml:"mask,omitempty"`
	Catalog     string            `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Options     []model.Option    `json:"options,omitempty" yaml:"options,omitempty"`
	FreeText    bool              `json:"freeText,omitempty" yaml:"freeText,omitempty"`
	Default     any               `json:"default,omitempty" yaml:"default,omitempty"`
	Validations []ValidationDef   `json:"validations,omitempty" yaml:"validations,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ValidationDef declares a validation rule. Value and Pattern are shorthands
// for Params["value"] and Params["pattern"].
type ValidationDef struct {
	Kind    string            `json:"kind" yaml:"kind"`
	Value   string            `json:"value,omitempty" yaml:"value,omitempty"`
	Pattern string            `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Message string            `json:"message,omitempty" yaml:"message,omitempty"`
	Params  map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// RuleDef declares a dependency rule. Exactly one of Equals or When may be
// set; with neither, the rule is active while the trigger is truthy.
type RuleDef struct {
	ID                string   `json:"id,omitempty" yaml:"id,omitempty"`
	Trigger           string   `json:"trigger" yaml:"trigger"`
	Equals            string   `json:"equals,omitempty" yaml:"equals,omitempty"`
	When              string   `json:"when,omitempty" yaml:"when,omitempty"`
	Affected          []string `json:"affected" yaml:"affected"`
	OnInactive        string   `json:"onInactive,omitempty" yaml:"onInactive,omitempty"`
	RequireWhenActive bool     `json:"requireWhenActive,omitempty" yaml:"requireWhenActive,omitempty"`
}

// DerivedDef groups derived field declarations.
type DerivedDef struct {
	Intervals []IntervalDef `json:"intervals,omitempty" yaml:"intervals,omitempty"`
	Distances []DistanceDef `json:"distances,omitempty" yaml:"distances,omitempty"`
}

// IntervalDef derives a duration from two timestamps.
type IntervalDef struct {
	Entry    string `json:"entry" yaml:"entry"`
	Exit     string `json:"exit" yaml:"exit"`
	Duration string `json:"duration" yaml:"duration"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
}

// DistanceDef derives a total from two distances.
type DistanceDef struct {
	Outbound string `json:"outbound" yaml:"outbound"`
	Return   string `json:"return" yaml:"return"`
	Total    string `json:"total" yaml:"total"`
}

// EnrichmentDef declares a lookup autofill. Lookup names a lookup registered
// with the facade; Debounce and Timeout use time.ParseDuration syntax.
type EnrichmentDef struct {
	Trigger   string   `json:"trigger" yaml:"trigger"`
	KeyLength int      `json:"keyLength" yaml:"keyLength"`
	Lookup    string   `json:"lookup" yaml:"lookup"`
	Debounce  string   `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	Timeout   string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Policy    string   `json:"policy,omitempty" yaml:"policy,omitempty"`
	Targets   []string `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// StepDef declares a wizard step.
type StepDef struct {
	ID     string   `json:"id" yaml:"id"`
	Title  string   `json:"title,omitempty" yaml:"title,omitempty"`
	Fields []string `json:"fields" yaml:"fields"`
}

func fieldNames(raw []string) []model.FieldName {
	if len(raw) == 0 {
		return nil
	}
	out := make([]model.FieldName, 0, len(raw))
	for _, name := range raw {
		out = append(out, model.FieldName(name))
	}
	return out
}
