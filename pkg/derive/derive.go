// Package derive recomputes fields whose values follow from other fields: the
// elapsed duration between an entry and exit timestamp and distance totals.
package derive

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/model"
)

// DefaultOrderingMessage is attached to the exit field when it precedes the
// entry field.
const DefaultOrderingMessage = "exit must be after entry"

var timeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"15:04",
	"15:04:05",
}

// Interval derives Duration = Exit - Entry, formatted HH:MM:00.
type Interval struct {
	Entry    model.FieldName
	Exit     model.FieldName
	Duration model.FieldName
	// Message overrides DefaultOrderingMessage.
	Message string
}

// Distance derives Total = Outbound - Return.
type Distance struct {
	Outbound model.FieldName
	Return   model.FieldName
	Total    model.FieldName
}

// Calculator holds the derived field declarations of one form.
type Calculator struct {
	intervals []Interval
	distances []Distance
}

// Result reports the outcome of a recompute. Errors holds the ordering
// violations found for the intervals that were touched; Resolved lists exit
// fields whose ordering error no longer applies.
type Result struct {
	State    model.State
	Errors   model.FieldErrors
	Resolved []model.FieldName
}

// New validates the declarations. Every field must be named, a derived field
// must not also be one of its inputs, and no two declarations may write the
// same derived field.
func New(intervals []Interval, distances []Distance) (*Calculator, error) {
	targets := make(map[model.FieldName]struct{})
	claim := func(target model.FieldName) error {
		if _, exists := targets[target]; exists {
			return model.Misconfigured("derive", fmt.Sprintf("field %q is derived twice", target), nil)
		}
		targets[target] = struct{}{}
		return nil
	}

	for _, iv := range intervals {
		if blank(iv.Entry) || blank(iv.Exit) || blank(iv.Duration) {
			return nil, model.Misconfigured("derive", "interval requires entry, exit and duration fields", nil)
		}
		if iv.Duration == iv.Entry || iv.Duration == iv.Exit || iv.Entry == iv.Exit {
			return nil, model.Misconfigured("derive", fmt.Sprintf("interval %q/%q/%q reuses a field", iv.Entry, iv.Exit, iv.Duration), nil)
		}
		if err := claim(iv.Duration); err != nil {
			return nil, err
		}
	}
	for _, d := range distances {
		if blank(d.Outbound) || blank(d.Return) || blank(d.Total) {
			return nil, model.Misconfigured("derive", "distance requires outbound, return and total fields", nil)
		}
		if d.Total == d.Outbound || d.Total == d.Return {
			return nil, model.Misconfigured("derive", fmt.Sprintf("distance total %q is also an input", d.Total), nil)
		}
		if err := claim(d.Total); err != nil {
			return nil, err
		}
	}

	return &Calculator{
		intervals: append([]Interval(nil), intervals...),
		distances: append([]Distance(nil), distances...),
	}, nil
}

// Inputs lists every field whose change triggers a recompute.
func (c *Calculator) Inputs() []model.FieldName {
	if c == nil {
		return nil
	}
	var out []model.FieldName
	for _, iv := range c.intervals {
		out = append(out, iv.Entry, iv.Exit)
	}
	for _, d := range c.distances {
		out = append(out, d.Outbound, d.Return)
	}
	return out
}

// Outputs lists every derived field.
func (c *Calculator) Outputs() []model.FieldName {
	if c == nil {
		return nil
	}
	var out []model.FieldName
	for _, iv := range c.intervals {
		out = append(out, iv.Duration)
	}
	for _, d := range c.distances {
		out = append(out, d.Total)
	}
	return out
}

// Recompute updates the derived fields that depend on changed. A manual edit
// of a derived field is left alone; only endpoint changes recompute it.
func (c *Calculator) Recompute(state model.State, changed model.FieldName) Result {
	result := Result{State: state, Errors: model.FieldErrors{}}
	if c == nil {
		return result
	}
	for _, iv := range c.intervals {
		if changed != iv.Entry && changed != iv.Exit {
			continue
		}
		result = c.applyInterval(result, iv)
	}
	for _, d := range c.distances {
		if changed != d.Outbound && changed != d.Return {
			continue
		}
		result.State = applyDistance(result.State, d)
	}
	return result
}

// RecomputeAll refreshes every derived field, used when a session is seeded
// with prefilled values.
func (c *Calculator) RecomputeAll(state model.State) Result {
	result := Result{State: state, Errors: model.FieldErrors{}}
	if c == nil {
		return result
	}
	for _, iv := range c.intervals {
		result = c.applyInterval(result, iv)
	}
	for _, d := range c.distances {
		result.State = applyDistance(result.State, d)
	}
	return result
}

func (c *Calculator) applyInterval(result Result, iv Interval) Result {
	entry, okEntry := ParseTime(result.State.String(iv.Entry))
	exit, okExit := ParseTime(result.State.String(iv.Exit))
	if !okEntry || !okExit {
		result.Resolved = append(result.Resolved, iv.Exit)
		return result
	}
	if entry.After(exit) {
		msg := iv.Message
		if msg == "" {
			msg = DefaultOrderingMessage
		}
		// last good duration stays in place until the ordering is fixed
		result.Errors[iv.Exit] = msg
		return result
	}
	result.Resolved = append(result.Resolved, iv.Exit)
	result.State = result.State.With(iv.Duration, FormatDuration(exit.Sub(entry)))
	return result
}

func applyDistance(state model.State, d Distance) model.State {
	outbound, okOut := state.Number(d.Outbound)
	ret, okRet := state.Number(d.Return)
	if !okOut || !okRet {
		return state.Without(d.Total)
	}
	// negative totals are surfaced as-is
	return state.With(d.Total, outbound-ret)
}

// ParseTime accepts the datetime shapes produced by date/time inputs.
func ParseTime(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatDuration renders d as HH:MM:00, flooring to whole minutes.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	return fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60)
}

func blank(name model.FieldName) bool {
	return strings.TrimSpace(string(name)) == ""
}
