package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/model"
)

var (
	// ErrNotTerminal is returned when submit is invoked before the last step.
	ErrNotTerminal = errors.New("wizard: submit is only allowed on the terminal step")
	// ErrStepInvalid is returned when the current step fails validation.
	ErrStepInvalid = errors.New("wizard: step has validation errors")
	// ErrSubmitting is returned while a submission is already running.
	ErrSubmitting = errors.New("wizard: submission in progress")
	// ErrSubmitted is returned once the session has been submitted.
	ErrSubmitted = errors.New("wizard: form already submitted")
	// ErrSubmitFailed wraps the submission service error.
	ErrSubmitFailed = errors.New("wizard: submission failed")
)

// Step is one page of the form.
type Step struct {
	ID     string
	Title  string
	Fields []model.FieldName
	// Validate returns the errors for state. Only errors on Fields are kept.
	Validate func(state model.State) model.FieldErrors
}

// Status tracks the submission lifecycle.
type Status string

const (
	StatusEditing    Status = "editing"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusFailed     Status = "failed"
)

// NotificationKind classifies a Notification.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a form-level message that is not tied to a field.
type Notification struct {
	Kind    NotificationKind
	Message string
	Err     error
}

// EventKind identifies wizard events.
type EventKind string

const (
	EventStepChanged   EventKind = "step_changed"
	EventStatusChanged EventKind = "status_changed"
)

// Event is emitted after a step transition or a status change. Collaborators
// use StepChanged to reset scroll and focus.
type Event struct {
	Kind   EventKind
	From   int
	To     int
	StepID string
	Status Status
}

// Payload is the assembled submission body.
type Payload map[string]any

// Assembler builds the submission payload from the final state.
type Assembler func(state model.State) (Payload, error)

// Service is the external submission capability.
type Service interface {
	Submit(ctx context.Context, payload Payload) error
}

// ServiceFunc adapts a function into a Service.
type ServiceFunc func(ctx context.Context, payload Payload) error

// Submit delegates to the function.
func (fn ServiceFunc) Submit(ctx context.Context, payload Payload) error { return fn(ctx, payload) }

// Reasoner is implemented by submission errors that carry a user-facing
// reason.
type Reasoner interface {
	Reason() string
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wizard) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMessages sets the catalog used for notifications.
func WithMessages(catalog *messages.Catalog, locale string) Option {
	return func(w *Wizard) {
		if catalog != nil {
			w.messages = catalog
		}
		if strings.TrimSpace(locale) != "" {
			w.locale = locale
		}
	}
}

// Wizard is the step state machine.
type Wizard struct {
	steps        []Step
	index        int
	errors       model.FieldErrors
	status       Status
	notification *Notification
	listeners    []func(Event)

	logger   *slog.Logger
	messages *messages.Catalog
	locale   string
}

// New validates steps and positions the wizard on the first one.
func New(steps []Step, opts ...Option) (*Wizard, error) {
	if len(steps) == 0 {
		return nil, model.Misconfigured("wizard", "at least one step is required", nil)
	}
	seenIDs := make(map[string]struct{}, len(steps))
	owner := make(map[model.FieldName]string)
	for idx, step := range steps {
		if strings.TrimSpace(step.ID) == "" {
			return nil, model.Misconfigured("wizard", fmt.Sprintf("step %d has no id", idx), nil)
		}
		if _, dup := seenIDs[step.ID]; dup {
			return nil, model.Misconfigured("wizard", fmt.Sprintf("duplicate step id %q", step.ID), nil)
		}
		seenIDs[step.ID] = struct{}{}
		for _, name := range step.Fields {
			if prev, taken := owner[name]; taken {
				return nil, model.Misconfigured("wizard", fmt.Sprintf("field %s belongs to steps %q and %q", name, prev, step.ID), nil)
			}
			owner[name] = step.ID
		}
	}

	w := &Wizard{
		steps:    append([]Step(nil), steps...),
		errors:   model.FieldErrors{},
		status:   StatusEditing,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		messages: messages.Default(),
		locale:   messages.DefaultLocale,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// OnEvent registers a listener. Listeners run synchronously.
func (w *Wizard) OnEvent(fn func(Event)) {
	if fn != nil {
		w.listeners = append(w.listeners, fn)
	}
}

// Steps returns the step declarations.
func (w *Wizard) Steps() []Step { return append([]Step(nil), w.steps...) }

// Current returns the active step.
func (w *Wizard) Current() Step { return w.steps[w.index] }

// Index returns the zero-based position of the active step.
func (w *Wizard) Index() int { return w.index }

// Len returns the number of steps.
func (w *Wizard) Len() int { return len(w.steps) }

// IsTerminal reports whether the active step is the last one.
func (w *Wizard) IsTerminal() bool { return w.index == len(w.steps)-1 }

// StepOf returns the index of the step owning name, or -1.
func (w *Wizard) StepOf(name model.FieldName) int {
	for idx, step := range w.steps {
		for _, field := range step.Fields {
			if field == name {
				return idx
			}
		}
	}
	return -1
}

// Errors returns a copy of the current field errors.
func (w *Wizard) Errors() model.FieldErrors { return w.errors.Clone() }

// SetFieldError attaches message to name outside a validation pass, used for
// cross-field ordering errors raised while editing.
func (w *Wizard) SetFieldError(name model.FieldName, message string) {
	w.errors = w.errors.Merge(model.FieldErrors{name: message})
}

// ClearFieldError removes the error of a single field.
func (w *Wizard) ClearFieldError(name model.FieldName) {
	if w.errors.Has(name) {
		w.errors = w.errors.Without(name)
	}
}

// Locale returns the locale notifications are rendered in.
func (w *Wizard) Locale() string { return w.locale }

// Status returns the submission status.
func (w *Wizard) Status() Status { return w.status }

// Notification returns the latest form-level notification, if any.
func (w *Wizard) Notification() (Notification, bool) {
	if w.notification == nil {
		return Notification{}, false
	}
	return *w.notification, true
}

// Validate runs the current step's validation and replaces the error set.
func (w *Wizard) Validate(state model.State) model.FieldErrors {
	step := w.steps[w.index]
	errs := model.FieldErrors{}
	if step.Validate != nil {
		errs = step.Validate(state).Only(step.Fields)
	}
	w.errors = errs
	return errs.Clone()
}

// Next advances when the current step validates. It returns the step errors
// and whether the transition happened. Next on the terminal step validates
// but never moves.
func (w *Wizard) Next(state model.State) (model.FieldErrors, bool) {
	if w.status == StatusSubmitting || w.status == StatusSubmitted {
		return w.Errors(), false
	}
	errs := w.Validate(state)
	if !errs.Empty() {
		w.logger.Debug("wizard: step invalid", "step", w.steps[w.index].ID, "fields", errs.Names())
		return errs, false
	}
	if w.IsTerminal() {
		return errs, false
	}
	w.move(w.index + 1)
	return errs, true
}

// Previous moves back one step without validating.
func (w *Wizard) Previous() bool {
	if w.index == 0 || w.status == StatusSubmitting || w.status == StatusSubmitted {
		return false
	}
	w.move(w.index - 1)
	return true
}

// Reset returns to the first step and discards errors, notifications and the
// submission status. It fails with ErrSubmitting while a submission runs.
func (w *Wizard) Reset() error {
	if w.status == StatusSubmitting {
		return ErrSubmitting
	}
	w.errors = model.FieldErrors{}
	w.notification = nil
	w.setStatus(StatusEditing)
	if w.index != 0 {
		w.move(0)
	}
	return nil
}

// BeginSubmit validates the terminal step, assembles the payload and marks the
// wizard as submitting. The caller must hand the payload to the submission
// service and then call FinishSubmit exactly once.
func (w *Wizard) BeginSubmit(state model.State, assemble Assembler) (Payload, error) {
	switch w.status {
	case StatusSubmitting:
		return nil, ErrSubmitting
	case StatusSubmitted:
		return nil, ErrSubmitted
	}
	if !w.IsTerminal() {
		return nil, ErrNotTerminal
	}
	if errs := w.Validate(state); !errs.Empty() {
		return nil, ErrStepInvalid
	}

	payload := Payload(state.Map())
	if assemble != nil {
		assembled, err := assemble(state)
		if err != nil {
			return nil, fmt.Errorf("wizard: assemble payload: %w", err)
		}
		payload = assembled
	}
	w.notification = nil
	w.setStatus(StatusSubmitting)
	return payload, nil
}

// FinishSubmit records the submission outcome. A failure becomes an error
// notification and leaves the wizard retryable. Outside a running submission
// the outcome is not recorded and err is returned as is.
func (w *Wizard) FinishSubmit(err error) error {
	if w.status != StatusSubmitting {
		return err
	}
	if err != nil {
		w.notification = &Notification{
			Kind:    NotificationError,
			Message: w.messages.Message(w.locale, messages.KeySubmitError, map[string]any{"reason": reasonOf(err)}),
			Err:     err,
		}
		w.logger.Warn("wizard: submission failed", "error", err)
		w.setStatus(StatusFailed)
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	w.notification = &Notification{
		Kind:    NotificationSuccess,
		Message: w.messages.Message(w.locale, messages.KeySubmitted, nil),
	}
	w.logger.Info("wizard: submitted")
	w.setStatus(StatusSubmitted)
	return nil
}

// Submit runs BeginSubmit, the service and FinishSubmit. The service is
// called at most once and never when the wizard is not on its terminal step.
func (w *Wizard) Submit(ctx context.Context, state model.State, assemble Assembler, service Service) error {
	if service == nil {
		return model.Misconfigured("wizard", "submission service is required", nil)
	}
	payload, err := w.BeginSubmit(state, assemble)
	if err != nil {
		return err
	}
	return w.FinishSubmit(service.Submit(ctx, payload))
}

func (w *Wizard) move(to int) {
	from := w.index
	w.index = to
	w.emit(Event{Kind: EventStepChanged, From: from, To: to, StepID: w.steps[to].ID, Status: w.status})
}

func (w *Wizard) setStatus(status Status) {
	if w.status == status {
		return
	}
	w.status = status
	w.emit(Event{Kind: EventStatusChanged, From: w.index, To: w.index, StepID: w.steps[w.index].ID, Status: status})
}

func (w *Wizard) emit(event Event) {
	for _, fn := range w.listeners {
		fn(event)
	}
}

func reasonOf(err error) string {
	var reasoner Reasoner
	if errors.As(err, &reasoner) {
		return reasoner.Reason()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return ""
}
