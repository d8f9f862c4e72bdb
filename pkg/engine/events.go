package engine

import (
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

// EventKind identifies engine events.
type EventKind string

const (
	// EventFieldsChanged fires after a change altered the state. Fields lists
	// the edited field plus fields cleared by rules.
	EventFieldsChanged EventKind = "fields_changed"
	// EventStepChanged fires after a wizard transition; collaborators reset
	// scroll and focus.
	EventStepChanged EventKind = "step_changed"
	// EventStatusChanged fires when the submission status changes.
	EventStatusChanged EventKind = "status_changed"
	// EventEnrichmentStatus reports an enrichment status transition.
	EventEnrichmentStatus EventKind = "enrichment_status"
	// EventEnrichmentApplied fires after lookup values were merged. Fields
	// lists the fields that were written.
	EventEnrichmentApplied EventKind = "enrichment_applied"
)

// Event is delivered to listeners after the engine lock is released.
type Event struct {
	Kind       EventKind
	Fields     []model.FieldName
	StepID     string
	From       int
	To         int
	Status     wizard.Status
	Enrichment enrich.Status
}

func (e *Engine) queue(event Event) {
	e.pending = append(e.pending, event)
}

// flush delivers queued events. It must be called without e.mu held.
func (e *Engine) flush() {
	e.mu.Lock()
	events := e.pending
	e.pending = nil
	listeners := e.listeners
	e.mu.Unlock()

	for _, event := range events {
		for _, fn := range listeners {
			fn(event)
		}
	}
}

func (e *Engine) onWizardEvent(event wizard.Event) {
	kind := EventStepChanged
	if event.Kind == wizard.EventStatusChanged {
		kind = EventStatusChanged
	}
	e.queue(Event{Kind: kind, StepID: event.StepID, From: event.From, To: event.To, Status: event.Status})
}

// onEnrichmentStatus receives transitions from the adapters' timer goroutines.
func (e *Engine) onEnrichmentStatus(status enrich.Status) {
	e.mu.Lock()
	e.queue(Event{Kind: EventEnrichmentStatus, Fields: []model.FieldName{status.Trigger}, Enrichment: status})
	e.mu.Unlock()
	e.flush()
}
