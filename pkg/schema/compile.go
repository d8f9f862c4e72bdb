package schema

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/derive"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/mask"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/rules"
)

var fieldTypes = map[string]model.FieldType{
	"":         model.FieldTypeString,
	"string":   model.FieldTypeString,
	"number":   model.FieldTypeNumber,
	"boolean":  model.FieldTypeBoolean,
	"select":   model.FieldTypeSelect,
	"datetime": model.FieldTypeDateTime,
}

func misconfigured(def Definition, format string, args ...any) error {
	where := def.ID
	if def.Source != "" {
		where = fmt.Sprintf("%s (%s)", def.ID, def.Source)
	}
	return model.Misconfigured("schema", where+": "+fmt.Sprintf(format, args...), nil)
}

// Check validates references inside the definition: unique field names,
// known types, masks and catalogs, and that rules, derived fields,
// enrichments and steps only mention declared fields.
func (d Definition) Check() error {
	if strings.TrimSpace(d.ID) == "" {
		return misconfigured(d, "definition id is required")
	}
	if len(d.Fields) == 0 {
		return misconfigured(d, "no fields declared")
	}

	declared := make(map[string]struct{}, len(d.Fields))
	for idx, field := range d.Fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return misconfigured(d, "field %d has no name", idx)
		}
		if _, dup := declared[name]; dup {
			return misconfigured(d, "duplicate field %q", name)
		}
		declared[name] = struct{}{}
		if _, ok := fieldTypes[field.Type]; !ok {
			return misconfigured(d, "field %q has unknown type %q", name, field.Type)
		}
		if field.Mask != "" {
			if _, err := mask.Default().Lookup(mask.Kind(field.Mask)); err != nil {
				return misconfigured(d, "field %q: %v", name, err)
			}
		}
		if field.Catalog != "" {
			if _, ok := d.Catalogs[field.Catalog]; !ok {
				return misconfigured(d, "field %q references unknown catalog %q", name, field.Catalog)
			}
		}
	}

	known := func(context string, names ...string) error {
		for _, name := range names {
			if _, ok := declared[name]; !ok {
				return misconfigured(d, "%s references undeclared field %q", context, name)
			}
		}
		return nil
	}

	for idx, rule := range d.Rules {
		if rule.Equals != "" && rule.When != "" {
			return misconfigured(d, "rule %d sets both equals and when", idx)
		}
		if err := known(fmt.Sprintf("rule %d", idx), append([]string{rule.Trigger}, rule.Affected...)...); err != nil {
			return err
		}
	}
	for idx, iv := range d.Derived.Intervals {
		if err := known(fmt.Sprintf("interval %d", idx), iv.Entry, iv.Exit, iv.Duration); err != nil {
			return err
		}
	}
	for idx, dist := range d.Derived.Distances {
		if err := known(fmt.Sprintf("distance %d", idx), dist.Outbound, dist.Return, dist.Total); err != nil {
			return err
		}
	}
	for idx, en := range d.Enrichments {
		if strings.TrimSpace(en.Lookup) == "" {
			return misconfigured(d, "enrichment %d has no lookup", idx)
		}
		if err := known(fmt.Sprintf("enrichment %d", idx), append([]string{en.Trigger}, en.Targets...)...); err != nil {
			return err
		}
		if _, _, err := en.durations(); err != nil {
			return misconfigured(d, "enrichment %d: %v", idx, err)
		}
	}

	stepIDs := make(map[string]struct{}, len(d.Steps))
	for idx, step := range d.Steps {
		if strings.TrimSpace(step.ID) == "" {
			return misconfigured(d, "step %d has no id", idx)
		}
		if _, dup := stepIDs[step.ID]; dup {
			return misconfigured(d, "duplicate step %q", step.ID)
		}
		stepIDs[step.ID] = struct{}{}
		if err := known(fmt.Sprintf("step %q", step.ID), step.Fields...); err != nil {
			return err
		}
	}
	return nil
}

// FormModel converts the field declarations.
func (d Definition) FormModel() model.FormModel {
	form := model.FormModel{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Fields:      make([]model.Field, 0, len(d.Fields)),
		Metadata:    cloneStrings(d.Metadata),
	}
	for _, raw := range d.Fields {
		field := model.Field{
			Name:        model.FieldName(raw.Name),
			Type:        fieldTypes[raw.Type],
			Label:       raw.Label,
			Placeholder: raw.Placeholder,
			Description: raw.Description,
			Required:    raw.Required,
			Mask:        raw.Mask,
			Catalog:     raw.Catalog,
			Options:     append([]model.Option(nil), raw.Options...),
			FreeText:    raw.FreeText,
			Default:     raw.Default,
			Metadata:    cloneStrings(raw.Metadata),
		}
		if len(field.Options) == 0 {
			field.Options = nil
		}
		for _, v := range raw.Validations {
			field.Validations = append(field.Validations, v.rule())
		}
		form.Fields = append(form.Fields, field)
	}
	return form
}

func (v ValidationDef) rule() model.ValidationRule {
	params := cloneStrings(v.Params)
	set := func(key, value string) {
		if value == "" {
			return
		}
		if params == nil {
			params = make(map[string]string, 2)
		}
		params[key] = value
	}
	set("value", v.Value)
	set("pattern", v.Pattern)
	set("message", v.Message)
	return model.ValidationRule{Kind: v.Kind, Params: params}
}

// OptionCatalogs converts the catalogs.
func (d Definition) OptionCatalogs() model.Catalogs {
	if len(d.Catalogs) == 0 {
		return nil
	}
	out := make(model.Catalogs, len(d.Catalogs))
	for name, options := range d.Catalogs {
		out[name] = model.Catalog{Name: name, Options: append([]model.Option(nil), options...)}
	}
	return out
}

// RuleSet compiles the dependency rules.
func (d Definition) RuleSet() (*rules.Set, error) {
	compiled := make([]rules.Rule, 0, len(d.Rules))
	for idx, raw := range d.Rules {
		trigger := model.FieldName(raw.Trigger)
		var when rules.Predicate
		switch {
		case raw.When != "":
			predicate, err := rules.Expr(raw.When)
			if err != nil {
				return nil, model.Misconfigured("schema", fmt.Sprintf("%s: rule %d", d.ID, idx), err)
			}
			when = predicate
		case raw.Equals != "":
			when = rules.Equals(trigger, raw.Equals)
		default:
			when = rules.Truthy(trigger)
		}
		compiled = append(compiled, rules.Rule{
			ID:                raw.ID,
			Trigger:           trigger,
			When:              when,
			Affected:          fieldNames(raw.Affected),
			OnInactive:        rules.InactivePolicy(raw.OnInactive),
			RequireWhenActive: raw.RequireWhenActive,
		})
	}
	return rules.NewSet(compiled...)
}

// Calculator compiles the derived field declarations.
func (d Definition) Calculator() (*derive.Calculator, error) {
	intervals := make([]derive.Interval, 0, len(d.Derived.Intervals))
	for _, iv := range d.Derived.Intervals {
		intervals = append(intervals, derive.Interval{
			Entry:    model.FieldName(iv.Entry),
			Exit:     model.FieldName(iv.Exit),
			Duration: model.FieldName(iv.Duration),
			Message:  iv.Message,
		})
	}
	distances := make([]derive.Distance, 0, len(d.Derived.Distances))
	for _, dist := range d.Derived.Distances {
		distances = append(distances, derive.Distance{
			Outbound: model.FieldName(dist.Outbound),
			Return:   model.FieldName(dist.Return),
			Total:    model.FieldName(dist.Total),
		})
	}
	return derive.New(intervals, distances)
}

// EnrichmentConfigs resolves lookups by name. A missing lookup is a
// configuration error.
func (d Definition) EnrichmentConfigs(lookups map[string]enrich.Lookup) ([]enrich.Config, error) {
	out := make([]enrich.Config, 0, len(d.Enrichments))
	for _, raw := range d.Enrichments {
		lookup, ok := lookups[raw.Lookup]
		if !ok || lookup == nil {
			return nil, misconfigured(d, "enrichment on %q uses unregistered lookup %q", raw.Trigger, raw.Lookup)
		}
		debounce, timeout, err := raw.durations()
		if err != nil {
			return nil, misconfigured(d, "enrichment on %q: %v", raw.Trigger, err)
		}
		out = append(out, enrich.Config{
			Trigger:   model.FieldName(raw.Trigger),
			KeyLength: raw.KeyLength,
			Debounce:  debounce,
			Timeout:   timeout,
			Lookup:    lookup,
			Policy:    enrich.MergePolicy(raw.Policy),
			Targets:   fieldNames(raw.Targets),
		})
	}
	return out, nil
}

// StepFields returns the steps; with none declared, every field forms a
// single step named after the definition.
func (d Definition) StepFields() []StepDef {
	if len(d.Steps) > 0 {
		return append([]StepDef(nil), d.Steps...)
	}
	names := make([]string, 0, len(d.Fields))
	for _, field := range d.Fields {
		names = append(names, field.Name)
	}
	return []StepDef{{ID: d.ID, Title: d.Title, Fields: names}}
}

func (e EnrichmentDef) durations() (time.Duration, time.Duration, error) {
	parse := func(raw string) (time.Duration, error) {
		if strings.TrimSpace(raw) == "" {
			return 0, nil
		}
		return time.ParseDuration(raw)
	}
	debounce, err := parse(e.Debounce)
	if err != nil {
		return 0, 0, fmt.Errorf("debounce: %w", err)
	}
	timeout, err := parse(e.Timeout)
	if err != nil {
		return 0, 0, fmt.Errorf("timeout: %w", err)
	}
	return debounce, timeout, nil
}

func cloneStrings(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
