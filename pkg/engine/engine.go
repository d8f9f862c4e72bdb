package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/derive"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/mask"
	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/payload"
	"github.com/goliatone/go-formflow/pkg/rules"
	"github.com/goliatone/go-formflow/pkg/validation"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

var (
	// ErrClosed is returned once the session has ended.
	ErrClosed = errors.New("engine: session closed")
	// ErrUnknownField is returned for fields the form does not declare.
	ErrUnknownField = errors.New("engine: unknown field")
	// ErrFieldDisabled is returned when a rule currently disables the field.
	ErrFieldDisabled = errors.New("engine: field is disabled")
	// ErrNoSubmitter is returned by Submit when no service was configured.
	ErrNoSubmitter = errors.New("engine: no submission service configured")
)

// Config declares a form session.
type Config struct {
	Form     model.FormModel
	Catalogs model.Catalogs
	// Masks resolves mask kinds. Defaults to mask.Default().
	Masks       *mask.Registry
	Rules       *rules.Set
	Calculator  *derive.Calculator
	Enrichments []enrich.Config
	// Steps lists wizard steps. Validate is optional and runs in addition to
	// the declared field validations. Empty means one step holding every
	// field.
	Steps   []wizard.Step
	Initial model.Values
	Locale  string
}

// Engine is one form session.
type Engine struct {
	mu sync.Mutex

	form      model.FormModel
	catalogs  model.Catalogs
	fields    map[model.FieldName]model.Field
	masks     *mask.Registry
	rules     *rules.Set
	calc      *derive.Calculator
	validator *validation.Validator
	builder   *payload.Builder
	wizard    *wizard.Wizard
	adapters  map[model.FieldName]*enrich.Adapter
	triggers  []model.FieldName
	ordering  map[model.FieldName]string

	initial    model.State
	state      model.State
	evaluation rules.Result
	closed     bool

	submitter wizard.Service
	messages  *messages.Catalog
	hidden    []payload.HiddenField
	clock     clock.Clock
	logger    *slog.Logger
	listeners []func(Event)
	pending   []Event
}

// New validates cfg and starts a session on the first step. Configuration
// problems (unknown masks, rules over undeclared fields, derived fields used
// as rule inputs, bad enrichments or steps) are reported as
// *model.ConfigurationError.
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		form:     cfg.Form,
		catalogs: cfg.Catalogs,
		fields:   make(map[model.FieldName]model.Field, len(cfg.Form.Fields)),
		masks:    cfg.Masks,
		rules:    cfg.Rules,
		calc:     cfg.Calculator,
		adapters: make(map[model.FieldName]*enrich.Adapter),
		ordering: make(map[model.FieldName]string),
		messages: messages.Default(),
		clock:    clock.Real(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.masks == nil {
		e.masks = mask.Default()
	}
	if e.rules == nil {
		e.rules, _ = rules.NewSet()
	}
	if e.calc == nil {
		e.calc, _ = derive.New(nil, nil)
	}

	if err := e.checkFields(); err != nil {
		return nil, err
	}
	if err := e.checkRules(); err != nil {
		return nil, err
	}

	locale := strings.TrimSpace(cfg.Locale)
	if locale == "" {
		locale = messages.DefaultLocale
	}
	validator, err := validation.New(cfg.Form,
		validation.WithCatalogs(cfg.Catalogs),
		validation.WithMessages(e.messages),
		validation.WithLocale(locale),
	)
	if err != nil {
		return nil, err
	}
	e.validator = validator

	builder, err := payload.New(cfg.Form, payload.WithHiddenFields(e.hidden...))
	if err != nil {
		return nil, err
	}
	e.builder = builder

	if err := e.buildWizard(cfg.Steps, locale); err != nil {
		return nil, err
	}
	if err := e.buildAdapters(cfg.Enrichments); err != nil {
		return nil, err
	}
	if err := e.seed(cfg.Initial); err != nil {
		return nil, err
	}
	e.pending = nil
	return e, nil
}

func (e *Engine) checkFields() error {
	if strings.TrimSpace(e.form.ID) == "" {
		return model.Misconfigured("engine", "form id is required", nil)
	}
	for _, field := range e.form.Fields {
		if _, dup := e.fields[field.Name]; dup {
			return model.Misconfigured("engine", fmt.Sprintf("duplicate field %q", field.Name), nil)
		}
		if field.Mask != "" {
			if _, err := e.masks.Lookup(mask.Kind(field.Mask)); err != nil {
				return model.Misconfigured("engine", fmt.Sprintf("field %q", field.Name), err)
			}
		}
		e.fields[field.Name] = field
	}
	return nil
}

func (e *Engine) checkRules() error {
	for _, rule := range e.rules.Rules() {
		for _, name := range append([]model.FieldName{rule.Trigger}, rule.Affected...) {
			if _, ok := e.fields[name]; !ok {
				return model.Misconfigured("engine", fmt.Sprintf("rule %s references undeclared field %q", rule.ID, name), nil)
			}
		}
	}
	for _, name := range e.calc.Inputs() {
		if _, ok := e.fields[name]; !ok {
			return model.Misconfigured("engine", fmt.Sprintf("derived input %q is not declared", name), nil)
		}
	}
	triggers := make(map[model.FieldName]struct{})
	for _, name := range e.rules.Triggers() {
		triggers[name] = struct{}{}
	}
	for _, rule := range e.rules.Rules() {
		if r, ok := rule.When.(interface{ Reads() []model.FieldName }); ok {
			for _, name := range r.Reads() {
				triggers[name] = struct{}{}
			}
		}
	}
	for _, name := range e.calc.Outputs() {
		if _, ok := e.fields[name]; !ok {
			return model.Misconfigured("engine", fmt.Sprintf("derived field %q is not declared", name), nil)
		}
		if _, ok := triggers[name]; ok {
			return model.Misconfigured("engine", fmt.Sprintf("derived field %q cannot trigger a rule", name), nil)
		}
	}
	return nil
}

func (e *Engine) buildWizard(steps []wizard.Step, locale string) error {
	if len(steps) == 0 {
		steps = []wizard.Step{{ID: e.form.ID, Title: e.form.Title, Fields: e.form.Names()}}
	}
	wired := make([]wizard.Step, 0, len(steps))
	for _, step := range steps {
		for _, name := range step.Fields {
			if _, ok := e.fields[name]; !ok {
				return model.Misconfigured("engine", fmt.Sprintf("step %q lists undeclared field %q", step.ID, name), nil)
			}
		}
		step.Validate = e.stepValidator(step.Fields, step.Validate)
		wired = append(wired, step)
	}
	w, err := wizard.New(wired,
		wizard.WithLogger(e.logger),
		wizard.WithMessages(e.messages, locale),
	)
	if err != nil {
		return err
	}
	w.OnEvent(e.onWizardEvent)
	e.wizard = w
	return nil
}

func (e *Engine) buildAdapters(configs []enrich.Config) error {
	for _, cfg := range configs {
		field, ok := e.fields[cfg.Trigger]
		if !ok {
			return model.Misconfigured("engine", fmt.Sprintf("enrichment trigger %q is not declared", cfg.Trigger), nil)
		}
		if _, dup := e.adapters[cfg.Trigger]; dup {
			return model.Misconfigured("engine", fmt.Sprintf("field %q has two enrichments", cfg.Trigger), nil)
		}
		for _, target := range cfg.Targets {
			if _, ok := e.fields[target]; !ok {
				return model.Misconfigured("engine", fmt.Sprintf("enrichment target %q is not declared", target), nil)
			}
		}
		if cfg.Normalize == nil && field.Mask != "" {
			cfg.Normalize = model.Digits
		}
		adapter, err := enrich.New(cfg, e,
			enrich.WithClock(e.clock),
			enrich.WithLogger(e.logger.With("form", e.form.ID)),
			enrich.WithStatusListener(e.onEnrichmentStatus),
		)
		if err != nil {
			return err
		}
		e.adapters[cfg.Trigger] = adapter
		e.triggers = append(e.triggers, cfg.Trigger)
	}
	sort.Slice(e.triggers, func(i, j int) bool { return e.triggers[i] < e.triggers[j] })
	return nil
}

// seed builds the initial state from field defaults and initial values.
func (e *Engine) seed(initial model.Values) error {
	values := make(model.Values, len(e.fields))
	for _, field := range e.form.Fields {
		if field.Default != nil {
			values[field.Name] = field.Default
		}
	}
	for name, value := range initial {
		if _, ok := e.fields[name]; !ok {
			return model.Misconfigured("engine", fmt.Sprintf("initial value for undeclared field %q", name), ErrUnknownField)
		}
		values[name] = value
	}
	state, err := model.NewState(values)
	if err != nil {
		return model.Misconfigured("engine", "initial values", err)
	}

	evaluation, err := e.rules.Evaluate(state)
	if err != nil {
		return model.Misconfigured("engine", "initial rule evaluation", err)
	}
	derived := e.calc.RecomputeAll(evaluation.State)
	evaluation, err = e.rules.Evaluate(derived.State)
	if err != nil {
		return model.Misconfigured("engine", "initial rule evaluation", err)
	}
	e.initial = evaluation.State
	e.state = evaluation.State
	e.evaluation = evaluation
	return nil
}

// Form returns the field model.
func (e *Engine) Form() model.FormModel { return e.form }

// Messages returns the catalog the engine renders messages from.
func (e *Engine) Messages() *messages.Catalog { return e.messages }

// Locale returns the locale messages are rendered in.
func (e *Engine) Locale() string { return e.wizard.Locale() }

// Options lists the choices offered for a select field.
func (e *Engine) Options(name model.FieldName) []model.Option {
	field, ok := e.fields[name]
	if !ok {
		return nil
	}
	return e.catalogs.OptionsFor(field)
}

// OnEvent registers a listener.
func (e *Engine) OnEvent(fn func(Event)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Change applies raw user input to a field. Masked fields go through the mask
// codec; an edit the codec rejects leaves the state untouched and returns an
// error wrapping mask.ErrRejected.
func (e *Engine) Change(name model.FieldName, raw string) error {
	err := e.change(name, raw)
	e.flush()
	return err
}

func (e *Engine) change(name model.FieldName, raw string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	field, err := e.editable(name)
	if err != nil {
		return err
	}
	var value any
	if field.Mask != "" {
		result, err := e.masks.Apply(mask.Kind(field.Mask), raw)
		if err != nil {
			return fmt.Errorf("engine: %s: %w", name, err)
		}
		value = result.Canonical
	} else {
		value = coerce(field, raw)
	}
	return e.apply(name, value)
}

// Set assigns a canonical value directly, bypassing the mask codec.
func (e *Engine) Set(name model.FieldName, value any) error {
	err := e.set(name, value)
	e.flush()
	return err
}

func (e *Engine) set(name model.FieldName, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.editable(name); err != nil {
		return err
	}
	normalized, err := model.Normalize(value)
	if err != nil {
		return fmt.Errorf("engine: %s: %w", name, err)
	}
	return e.apply(name, normalized)
}

func (e *Engine) editable(name model.FieldName) (model.Field, error) {
	if e.closed {
		return model.Field{}, ErrClosed
	}
	field, ok := e.fields[name]
	if !ok {
		return model.Field{}, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if !e.evaluation.IsEnabled(name) {
		return model.Field{}, fmt.Errorf("%w: %s", ErrFieldDisabled, name)
	}
	if status := e.wizard.Status(); status == wizard.StatusSubmitting {
		return model.Field{}, wizard.ErrSubmitting
	}
	return field, nil
}

// apply runs the field-change pipeline. Callers hold e.mu.
func (e *Engine) apply(name model.FieldName, value any) error {
	next := e.state.With(name, value)
	e.wizard.ClearFieldError(name)
	cleared, err := e.recompute(next, []model.FieldName{name})
	if err != nil {
		return err
	}

	e.queue(Event{Kind: EventFieldsChanged, Fields: append([]model.FieldName{name}, cleared...)})
	e.logger.Debug("engine: field changed", "form", e.form.ID, "field", name, "cleared", cleared)

	if adapter, ok := e.adapters[name]; ok {
		e.queueStatus(adapter.OnTriggerChange(e.state.String(name)))
	}
	for _, c := range cleared {
		if adapter, ok := e.adapters[c]; ok {
			e.queueStatus(adapter.OnTriggerChange(""))
		}
	}
	return nil
}

// recompute evaluates rules and derived fields for the changed fields and
// commits the result. It returns the fields the rules cleared.
func (e *Engine) recompute(next model.State, changed []model.FieldName) ([]model.FieldName, error) {
	evaluation, err := e.rules.Evaluate(next)
	if err != nil {
		return nil, err
	}

	touched := append(append([]model.FieldName(nil), changed...), evaluation.Cleared...)
	affected := append([]model.FieldName(nil), touched...)
	state := evaluation.State
	for _, name := range touched {
		result := e.calc.Recompute(state, name)
		state = result.State
		for _, exit := range result.Resolved {
			if msg, ok := e.ordering[exit]; ok {
				if current, has := e.wizard.Errors()[exit]; has && current == msg {
					e.wizard.ClearFieldError(exit)
				}
				delete(e.ordering, exit)
			}
		}
		for exit, msg := range result.Errors {
			msg = e.orderingMessage(msg)
			e.ordering[exit] = msg
			e.wizard.SetFieldError(exit, msg)
			affected = append(affected, exit)
		}
	}

	// derived outputs never feed rules, so a second pass only re-clears
	// governed outputs the calculator may have written
	final, err := e.rules.Evaluate(state)
	if err != nil {
		return nil, err
	}
	affected = append(affected, final.Cleared...)
	for _, name := range e.form.Names() {
		if e.evaluation.IsEnabled(name) && !final.IsEnabled(name) {
			affected = append(affected, name)
		}
	}
	for _, name := range dedupe(affected) {
		if !final.IsEnabled(name) {
			e.wizard.ClearFieldError(name)
		}
	}

	e.state = final.State
	e.evaluation = final
	return dedupe(append(evaluation.Cleared, final.Cleared...)), nil
}

func (e *Engine) orderingMessage(msg string) string {
	if msg == derive.DefaultOrderingMessage {
		return e.messages.Message(e.wizard.Locale(), messages.KeyOrdering, nil)
	}
	return msg
}

func (e *Engine) queueStatus(status enrich.Status) {
	e.queue(Event{Kind: EventEnrichmentStatus, Fields: []model.FieldName{status.Trigger}, Enrichment: status})
}

// Merge implements enrich.Sink. Lookup values only reach declared, enabled
// fields and go through the same rule and derived-field pass as user edits.
func (e *Engine) Merge(partial model.Values, policy enrich.MergePolicy, current func() bool) bool {
	applied := e.merge(partial, policy, current)
	e.flush()
	return applied
}

func (e *Engine) merge(partial model.Values, policy enrich.MergePolicy, current func() bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !current() {
		return false
	}
	filtered := make(model.Values, len(partial))
	for name, value := range partial {
		if _, ok := e.fields[name]; !ok || !e.evaluation.IsEnabled(name) {
			continue
		}
		filtered[name] = value
	}
	next, written := enrich.MergeValues(e.state, filtered, policy)
	if len(written) > 0 {
		for _, name := range written {
			e.wizard.ClearFieldError(name)
		}
		if _, err := e.recompute(next, written); err != nil {
			e.logger.Error("engine: merge recompute failed", "form", e.form.ID, "error", err)
			return false
		}
	}
	e.queue(Event{Kind: EventEnrichmentApplied, Fields: written})
	e.logger.Debug("engine: enrichment merged", "form", e.form.ID, "fields", written)
	return true
}

// Next validates the current step and advances when it is valid.
func (e *Engine) Next() bool {
	e.mu.Lock()
	moved := false
	if !e.closed {
		_, moved = e.wizard.Next(e.state)
	}
	e.mu.Unlock()
	e.flush()
	return moved
}

// Previous moves back one step without validating.
func (e *Engine) Previous() bool {
	e.mu.Lock()
	moved := false
	if !e.closed {
		moved = e.wizard.Previous()
	}
	e.mu.Unlock()
	e.flush()
	return moved
}

// Submit validates the terminal step, assembles the payload and hands it to
// the submission service exactly once. It has no effect before the terminal
// step. A service failure becomes a form-level notification; success ends
// the session.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.submitter == nil {
		e.mu.Unlock()
		return ErrNoSubmitter
	}
	body, err := e.wizard.BeginSubmit(e.state, e.assemble)
	service := e.submitter
	e.mu.Unlock()
	e.flush()
	if err != nil {
		return err
	}

	e.logger.Info("engine: submitting", "form", e.form.ID)
	submitErr := service.Submit(ctx, body)

	e.mu.Lock()
	result := e.wizard.FinishSubmit(submitErr)
	if result == nil && e.wizard.Status() == wizard.StatusSubmitted {
		e.closeLocked()
	}
	e.mu.Unlock()
	e.flush()
	return result
}

func (e *Engine) assemble(state model.State) (wizard.Payload, error) {
	return wizard.Payload(e.builder.Build(state, e.evaluation)), nil
}

// Reset discards all edits and returns to the first step. It fails with
// wizard.ErrSubmitting while a submission is in flight.
func (e *Engine) Reset() error {
	err := e.reset()
	e.flush()
	return err
}

func (e *Engine) reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.wizard.Reset(); err != nil {
		return err
	}
	for _, trigger := range e.triggers {
		e.queueStatus(e.adapters[trigger].Cancel())
	}
	e.ordering = make(map[model.FieldName]string)
	evaluation, err := e.rules.Evaluate(e.initial)
	if err != nil {
		return err
	}
	e.state = evaluation.State
	e.evaluation = evaluation
	return nil
}

// Close ends the session: pending lookups are cancelled and later changes
// fail with ErrClosed.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closeLocked()
	e.mu.Unlock()
	e.flush()
}

func (e *Engine) closeLocked() {
	if e.closed {
		return
	}
	e.closed = true
	for _, trigger := range e.triggers {
		e.queueStatus(e.adapters[trigger].Close())
	}
	e.logger.Debug("engine: session closed", "form", e.form.ID)
}

// Display renders the current value of name for an input widget.
func (e *Engine) Display(name model.FieldName) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display(name)
}

func (e *Engine) display(name model.FieldName) string {
	value, ok := e.state.Get(name)
	if !ok {
		return ""
	}
	if field := e.fields[name]; field.Mask != "" {
		if text, err := e.masks.Format(mask.Kind(field.Mask), value); err == nil {
			return text
		}
	}
	return model.StringOf(value)
}

func (e *Engine) stepValidator(fields []model.FieldName, extra func(model.State) model.FieldErrors) func(model.State) model.FieldErrors {
	return func(state model.State) model.FieldErrors {
		errs := e.validator.Validate(state, fields, e.evaluation)
		for exit, msg := range e.calc.RecomputeAll(state).Errors {
			if e.evaluation.IsEnabled(exit) && !errs.Has(exit) {
				errs[exit] = e.orderingMessage(msg)
			}
		}
		if extra != nil {
			for name, msg := range extra(state) {
				if !errs.Has(name) {
					errs[name] = msg
				}
			}
		}
		return errs
	}
}

// coerce converts raw input for unmasked fields. Unparseable numbers and
// booleans are kept as text so validation can report them.
func coerce(field model.Field, raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	switch field.Type {
	case model.FieldTypeNumber:
		if number, ok := model.NumberOf(trimmed); ok {
			return number
		}
		return trimmed
	case model.FieldTypeBoolean:
		switch strings.ToLower(trimmed) {
		case "on", "yes", "y", "sim", "s":
			return true
		case "off", "no", "n", "não", "nao":
			return false
		}
		if parsed, err := strconv.ParseBool(trimmed); err == nil {
			return parsed
		}
		return trimmed
	default:
		return raw
	}
}

func dedupe(names []model.FieldName) []model.FieldName {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[model.FieldName]struct{}, len(names))
	out := make([]model.FieldName, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
