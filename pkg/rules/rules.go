// Package rules decides which fields are enabled, required or cleared based on
// sibling field values.
//
// A Set is validated once, at registration: rules must not chain (no rule's
// affected field may be another rule's trigger or be read by another rule's
// predicate), which rules out cycles entirely. Evaluation then reads every
// predicate against the same input snapshot, so the outcome does not depend on
// rule order and re-running it on its own output changes nothing.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/rules/expr"
)

// InactivePolicy states what happens to affected fields while a rule's
// predicate is false.
type InactivePolicy string

const (
	Clear   InactivePolicy = "clear"
	Disable InactivePolicy = "disable"
	Both    InactivePolicy = "both"
)

func (p InactivePolicy) clears() bool   { return p == Clear || p == Both }
func (p InactivePolicy) disables() bool { return p == Disable || p == Both }

// Predicate decides whether a rule is active for a state.
type Predicate interface {
	Eval(state model.State) (bool, error)
}

// PredicateFunc adapts a function into a Predicate.
type PredicateFunc func(state model.State) bool

// Eval delegates to the underlying function.
func (fn PredicateFunc) Eval(state model.State) (bool, error) {
	return fn(state), nil
}

// Equals is active while field holds value (compared as text).
func Equals(field model.FieldName, value string) Predicate {
	return PredicateFunc(func(state model.State) bool {
		return state.String(field) == value
	})
}

// Truthy is active while field holds a true-ish value.
func Truthy(field model.FieldName) Predicate {
	return PredicateFunc(func(state model.State) bool {
		return state.Bool(field)
	})
}

// ExprPredicate evaluates a compiled expression against the state.
type ExprPredicate struct {
	program *expr.Program
}

// Expr compiles src into a predicate.
func Expr(src string) (ExprPredicate, error) {
	program, err := expr.Compile(src)
	if err != nil {
		return ExprPredicate{}, err
	}
	return ExprPredicate{program: program}, nil
}

// Eval implements Predicate.
func (p ExprPredicate) Eval(state model.State) (bool, error) {
	return p.program.Eval(state.Map())
}

// Reads lists the fields the expression references.
func (p ExprPredicate) Reads() []model.FieldName {
	ids := p.program.Identifiers()
	out := make([]model.FieldName, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.FieldName(id))
	}
	return out
}

// reader is implemented by predicates that can report the fields they read.
type reader interface {
	Reads() []model.FieldName
}

// Rule ties a trigger field to the fields it governs.
type Rule struct {
	ID         string
	Trigger    model.FieldName
	When       Predicate
	Affected   []model.FieldName
	OnInactive InactivePolicy
	// RequireWhenActive marks the affected fields required while the
	// predicate holds.
	RequireWhenActive bool
}

// Set is a validated, immutable collection of rules.
type Set struct {
	rules    []Rule
	governed map[model.FieldName][]int
}

// NewSet validates rules and returns a Set. Misconfiguration is reported as a
// *model.ConfigurationError.
func NewSet(rules ...Rule) (*Set, error) {
	set := &Set{governed: make(map[model.FieldName][]int)}
	triggers := make(map[model.FieldName]string)
	reads := make(map[model.FieldName]string)

	for idx, rule := range rules {
		id := rule.ID
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("rule[%d]", idx)
			rule.ID = id
		}
		if strings.TrimSpace(string(rule.Trigger)) == "" {
			return nil, model.Misconfigured("rules", fmt.Sprintf("%s has no trigger", id), nil)
		}
		if rule.When == nil {
			return nil, model.Misconfigured("rules", fmt.Sprintf("%s has no predicate", id), nil)
		}
		if len(rule.Affected) == 0 {
			return nil, model.Misconfigured("rules", fmt.Sprintf("%s affects no fields", id), nil)
		}
		switch rule.OnInactive {
		case Clear, Disable, Both:
		case "":
			rule.OnInactive = Both
		default:
			return nil, model.Misconfigured("rules", fmt.Sprintf("%s has unknown inactive policy %q", id, rule.OnInactive), nil)
		}

		triggers[rule.Trigger] = id
		reads[rule.Trigger] = id
		if r, ok := rule.When.(reader); ok {
			for _, name := range r.Reads() {
				reads[name] = id
			}
		}
		rule.Affected = append([]model.FieldName(nil), rule.Affected...)
		set.rules = append(set.rules, rule)
	}

	for idx, rule := range set.rules {
		for _, name := range rule.Affected {
			if name == rule.Trigger {
				return nil, model.Misconfigured("rules", fmt.Sprintf("%s affects its own trigger %q (cycle)", rule.ID, name), nil)
			}
			if owner, ok := triggers[name]; ok {
				return nil, model.Misconfigured("rules", fmt.Sprintf("%s affects %q which triggers %s (chained rules form a potential cycle)", rule.ID, name, owner), nil)
			}
			if owner, ok := reads[name]; ok {
				return nil, model.Misconfigured("rules", fmt.Sprintf("%s affects %q which is read by %s (chained rules form a potential cycle)", rule.ID, name, owner), nil)
			}
			set.governed[name] = append(set.governed[name], idx)
		}
	}
	return set, nil
}

// Rules returns a copy of the registered rules.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.rules...)
}

// Triggers lists the trigger fields in sorted order.
func (s *Set) Triggers() []model.FieldName {
	if s == nil {
		return nil
	}
	seen := make(map[model.FieldName]struct{})
	for _, rule := range s.rules {
		seen[rule.Trigger] = struct{}{}
	}
	return sortedNames(seen)
}

// Governs reports whether any rule affects name.
func (s *Set) Governs(name model.FieldName) bool {
	if s == nil {
		return false
	}
	_, ok := s.governed[name]
	return ok
}

// Result is the outcome of an evaluation pass.
type Result struct {
	// Enabled holds every governed field that is currently enabled.
	Enabled map[model.FieldName]bool
	// Required holds governed fields that are required right now.
	Required map[model.FieldName]bool
	// Cleared lists fields reset to undefined by this pass.
	Cleared []model.FieldName
	State   model.State
}

// IsEnabled reports whether name may be edited and submitted. Fields no rule
// governs are always enabled.
func (r Result) IsEnabled(name model.FieldName) bool {
	enabled, governed := r.Enabled[name]
	return !governed || enabled
}

// IsRequired reports whether a rule currently requires name.
func (r Result) IsRequired(name model.FieldName) bool {
	return r.Required[name]
}

// Evaluate applies the set to state. Every predicate sees the same input
// snapshot; a field is enabled only while all rules governing it are active,
// and it is cleared when any inactive rule governing it clears.
func (s *Set) Evaluate(state model.State) (Result, error) {
	result := Result{
		Enabled:  make(map[model.FieldName]bool),
		Required: make(map[model.FieldName]bool),
		State:    state,
	}
	if s == nil || len(s.rules) == 0 {
		return result, nil
	}

	active := make([]bool, len(s.rules))
	for idx, rule := range s.rules {
		ok, err := rule.When.Eval(state)
		if err != nil {
			return Result{}, fmt.Errorf("rules: evaluate %s: %w", rule.ID, err)
		}
		active[idx] = ok
	}

	cleared := make(map[model.FieldName]struct{})
	for name, indices := range s.governed {
		enabled := true
		for _, idx := range indices {
			rule := s.rules[idx]
			if active[idx] {
				if rule.RequireWhenActive {
					result.Required[name] = true
				}
				continue
			}
			if rule.OnInactive.disables() {
				enabled = false
			}
			if rule.OnInactive.clears() {
				cleared[name] = struct{}{}
			}
		}
		result.Enabled[name] = enabled
		if !enabled {
			delete(result.Required, name)
		}
	}

	var toClear []model.FieldName
	for _, name := range sortedNames(cleared) {
		if _, defined := state.Get(name); defined {
			toClear = append(toClear, name)
		}
	}
	if len(toClear) > 0 {
		result.State = state.Without(toClear...)
		result.Cleared = toClear
	}
	return result, nil
}

func sortedNames(set map[model.FieldName]struct{}) []model.FieldName {
	out := make([]model.FieldName, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
