package enrich

import (
	"sort"

	"github.com/goliatone/go-formflow/pkg/model"
)

// MergePolicy decides whether lookup values may replace existing ones.
type MergePolicy string

const (
	// FillEmptyOnly writes a target only while it is undefined or blank, so
	// anything the user typed wins over lookup results.
	FillEmptyOnly MergePolicy = "fillEmptyOnly"
	// Overwrite always writes lookup values.
	Overwrite MergePolicy = "overwrite"
)

// MergeValues applies partial to state following policy. It returns the new
// state and the fields that were written, sorted.
func MergeValues(state model.State, partial model.Values, policy MergePolicy) (model.State, []model.FieldName) {
	updates := make(model.Values, len(partial))
	for name, raw := range partial {
		value, err := model.Normalize(raw)
		if err != nil || value == nil {
			continue
		}
		if policy != Overwrite && !state.IsEmpty(name) {
			continue
		}
		updates[name] = value
	}
	if len(updates) == 0 {
		return state, nil
	}

	written := make([]model.FieldName, 0, len(updates))
	for name := range updates {
		written = append(written, name)
	}
	sort.Slice(written, func(i, j int) bool { return written[i] < written[j] })
	return state.WithValues(updates), written
}
