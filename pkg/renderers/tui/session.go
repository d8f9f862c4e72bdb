package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/mask"
	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/widgets"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

const (
	noneOption     = "(none)"
	continueOption = "Continue"
	backOption     = "Back"
)

// Session walks a user through an engine's steps in the terminal. It only
// collects input: every decision (masking, rules, derived values, lookups,
// validation, submission) stays in the engine.
type Session struct {
	engine   *engine.Engine
	driver   PromptDriver
	widgets  *widgets.Registry
	theme    Theme
	messages *messages.Catalog
	locale   string
	logger   *slog.Logger
	poll     time.Duration
	stepBack bool
	statuses chan enrich.Status
}

// New constructs a session with defaults (survey driver, default theme).
func New(eng *engine.Engine, options ...Option) (*Session, error) {
	if eng == nil {
		return nil, ErrNoEngine
	}
	s := &Session{
		engine:   eng,
		widgets:  widgets.NewRegistry(),
		theme:    DefaultTheme(),
		messages: eng.Messages(),
		locale:   eng.Locale(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		poll:     100 * time.Millisecond,
		statuses: make(chan enrich.Status, 16),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}
	if s.driver == nil {
		s.driver = NewSurveyDriver(nil)
	}
	eng.OnEvent(s.onEvent)
	return s, nil
}

func (s *Session) onEvent(event engine.Event) {
	if event.Kind != engine.EventEnrichmentStatus {
		return
	}
	select {
	case s.statuses <- event.Enrichment:
	default:
	}
}

// Run prompts step by step until the engine accepts a submission. Declining
// the final confirmation returns ErrAborted.
func (s *Session) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("tui: context is required")
	}
	form := s.engine.Form()
	if form.Title != "" {
		if err := s.driver.Info(ctx, s.theme.Title.Render(form.Title)); err != nil {
			return err
		}
	}

	var focus []model.FieldName
	refocus := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := s.engine.Snapshot()
		if snap.Closed {
			return nil
		}
		fields := snap.StepFields()
		if refocus {
			fields = focus
		} else {
			back, err := s.stepHeader(ctx, snap)
			if err != nil {
				return err
			}
			if back && s.engine.Previous() {
				continue
			}
		}
		for _, name := range fields {
			if err := s.promptField(ctx, name); err != nil {
				return err
			}
		}

		if !snap.Terminal {
			if s.engine.Next() {
				focus, refocus = nil, false
				continue
			}
			var err error
			if focus, refocus, err = s.reportErrors(ctx); err != nil {
				return err
			}
			continue
		}

		submit, err := s.driver.Confirm(ctx, ConfirmConfig{Message: "Submit?", Default: true})
		if err != nil {
			return err
		}
		if !submit {
			return ErrAborted
		}
		err = s.engine.Submit(ctx)
		switch {
		case err == nil:
			return s.notify(ctx)
		case errors.Is(err, wizard.ErrStepInvalid):
			if focus, refocus, err = s.reportErrors(ctx); err != nil {
				return err
			}
		case errors.Is(err, wizard.ErrSubmitFailed):
			s.logger.Warn("tui: submission failed", "error", err)
			if err := s.notify(ctx); err != nil {
				return err
			}
			focus, refocus = nil, true
		default:
			return err
		}
	}
}

func (s *Session) promptField(ctx context.Context, name model.FieldName) error {
	snap := s.engine.Snapshot()
	if !snap.Enabled[name] {
		return nil
	}
	field, ok := s.engine.Form().Field(name)
	if !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownField, name)
	}
	label := field.DisplayLabel()
	if snap.Required[name] {
		label += " *"
	}

	switch s.widgets.ResolveOr(field, widgets.WidgetInput) {
	case widgets.WidgetSelect:
		if err := s.promptSelect(ctx, field, label, snap); err != nil {
			return err
		}
	case widgets.WidgetConfirm:
		value, err := s.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: snap.State.Bool(name), Help: field.Description})
		if err != nil {
			return err
		}
		if err := s.engine.Set(name, value); err != nil {
			return err
		}
	case widgets.WidgetEditor:
		raw, err := s.driver.TextArea(ctx, TextAreaConfig{Message: label, Default: snap.Display[name], Help: field.Description})
		if err != nil {
			return err
		}
		if err := s.engine.Change(name, raw); err != nil {
			return err
		}
	default:
		if err := s.promptInput(ctx, field, label, snap.Display[name]); err != nil {
			return err
		}
	}

	if status, tracked := s.engine.Snapshot().Enrichment[name]; tracked && status.Busy() {
		return s.awaitEnrichment(ctx, name)
	}
	return nil
}

func (s *Session) promptInput(ctx context.Context, field model.Field, label, current string) error {
	help := field.Description
	if help == "" && field.Type == model.FieldTypeDateTime {
		help = "YYYY-MM-DD HH:MM"
	}
	for {
		raw, err := s.driver.Input(ctx, InputConfig{Message: label, Default: current, Help: help})
		if err != nil {
			return err
		}
		err = s.engine.Change(field.Name, raw)
		if errors.Is(err, mask.ErrRejected) {
			msg := fmt.Sprintf("%s: %q is not accepted", field.DisplayLabel(), raw)
			if err := s.driver.Info(ctx, s.theme.Error.Render(msg)); err != nil {
				return err
			}
			continue
		}
		return err
	}
}

func (s *Session) promptSelect(ctx context.Context, field model.Field, label string, snap engine.Snapshot) error {
	options := s.engine.Options(field.Name)
	labels := make([]string, 0, len(options)+1)
	values := make([]string, 0, len(options)+1)
	if !snap.Required[field.Name] {
		labels = append(labels, noneOption)
		values = append(values, "")
	}
	current := snap.State.String(field.Name)
	defaultIndex := 0
	for _, option := range options {
		if option.Value == current {
			defaultIndex = len(values)
		}
		text := option.Label
		if text == "" {
			text = option.Value
		}
		labels = append(labels, text)
		values = append(values, option.Value)
	}

	idx, err := s.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: defaultIndex, Help: field.Description})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(values) {
		return fmt.Errorf("tui: %s: selection %d out of range", field.Name, idx)
	}
	return s.engine.Change(field.Name, values[idx])
}

// awaitEnrichment blocks until the lookup for trigger settles.
func (s *Session) awaitEnrichment(ctx context.Context, trigger model.FieldName) error {
	if err := s.driver.Info(ctx, s.theme.Muted.Render("Looking up...")); err != nil {
		return err
	}
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		status := s.engine.Snapshot().Enrichment[trigger]
		if !status.Busy() {
			return s.reportEnrichment(ctx, status)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.statuses:
		case <-ticker.C:
		}
	}
}

func (s *Session) reportEnrichment(ctx context.Context, status enrich.Status) error {
	switch status.Phase {
	case enrich.PhaseNotFound:
		msg := s.messages.Message(s.locale, messages.KeyNotFound, map[string]any{"key": status.Key})
		return s.driver.Info(ctx, s.theme.Muted.Render(msg))
	case enrich.PhaseFailed:
		msg := s.messages.Message(s.locale, messages.KeyLookupError, nil)
		return s.driver.Info(ctx, s.theme.Error.Render(msg))
	}
	return nil
}

// stepHeader announces the current step. With step-back enabled, steps after
// the first offer a choice to return to the previous one.
func (s *Session) stepHeader(ctx context.Context, snap engine.Snapshot) (bool, error) {
	header := fmt.Sprintf("Step %d/%d: %s", snap.StepIndex+1, snap.StepCount, stepTitle(snap.Step))
	if !s.stepBack || snap.StepIndex == 0 {
		return false, s.driver.Info(ctx, s.theme.Step.Render(header))
	}
	idx, err := s.driver.Select(ctx, SelectConfig{Message: header, Options: []string{continueOption, backOption}})
	if err != nil {
		return false, err
	}
	return idx == 1, nil
}

// reportErrors prints the current step errors and returns the fields to
// prompt again.
func (s *Session) reportErrors(ctx context.Context) ([]model.FieldName, bool, error) {
	snap := s.engine.Snapshot()
	var names []model.FieldName
	for _, name := range snap.StepFields() {
		if snap.Errors.Has(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, false, nil
	}
	summary := s.messages.Message(s.locale, messages.KeyStepInvalid, map[string]any{"count": len(names)})
	if err := s.driver.Info(ctx, s.theme.Error.Render(summary)); err != nil {
		return nil, false, err
	}
	for _, name := range names {
		if err := s.driver.Info(ctx, s.theme.Error.Render("  "+snap.Errors[name])); err != nil {
			return nil, false, err
		}
	}
	return names, true, nil
}

func (s *Session) notify(ctx context.Context) error {
	note := s.engine.Snapshot().Notification
	if note == nil {
		return nil
	}
	style := s.theme.Success
	if note.Kind == wizard.NotificationError {
		style = s.theme.Error
	}
	return s.driver.Info(ctx, style.Render(note.Message))
}

func stepTitle(step wizard.Step) string {
	if step.Title != "" {
		return step.Title
	}
	return step.ID
}
