package engine

import (
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

// Snapshot is a consistent read of the whole session, suitable for
// rendering.
type Snapshot struct {
	FormID       string
	State        model.State
	Display      map[model.FieldName]string
	Enabled      map[model.FieldName]bool
	Required     map[model.FieldName]bool
	Errors       model.FieldErrors
	Step         wizard.Step
	StepIndex    int
	StepCount    int
	Terminal     bool
	Status       wizard.Status
	Notification *wizard.Notification
	Enrichment   map[model.FieldName]enrich.Status
	Closed       bool
}

// StepFields lists the fields of the current step.
func (s Snapshot) StepFields() []model.FieldName {
	return append([]model.FieldName(nil), s.Step.Fields...)
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		FormID:     e.form.ID,
		State:      e.state,
		Display:    make(map[model.FieldName]string, len(e.fields)),
		Enabled:    make(map[model.FieldName]bool, len(e.fields)),
		Required:   make(map[model.FieldName]bool, len(e.fields)),
		Errors:     e.wizard.Errors(),
		Step:       e.wizard.Current(),
		StepIndex:  e.wizard.Index(),
		StepCount:  e.wizard.Len(),
		Terminal:   e.wizard.IsTerminal(),
		Status:     e.wizard.Status(),
		Enrichment: make(map[model.FieldName]enrich.Status, len(e.adapters)),
		Closed:     e.closed,
	}
	for _, field := range e.form.Fields {
		enabled := e.evaluation.IsEnabled(field.Name)
		snap.Display[field.Name] = e.display(field.Name)
		snap.Enabled[field.Name] = enabled
		snap.Required[field.Name] = enabled && (field.Required || e.evaluation.IsRequired(field.Name))
	}
	if note, ok := e.wizard.Notification(); ok {
		snap.Notification = &note
	}
	for trigger, adapter := range e.adapters {
		snap.Enrichment[trigger] = adapter.Status()
	}
	return snap
}

// State returns the current value snapshot.
func (e *Engine) State() model.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Errors returns the visible field errors.
func (e *Engine) Errors() model.FieldErrors {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wizard.Errors()
}

// IsEnabled reports whether name may currently be edited.
func (e *Engine) IsEnabled(name model.FieldName) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluation.IsEnabled(name)
}
