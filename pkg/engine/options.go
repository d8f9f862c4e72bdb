package engine

import (
	"log/slog"

	"github.com/goliatone/go-formflow/pkg/clock"
	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/payload"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock injects the clock used by enrichment debouncing.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithSubmitter sets the submission service.
func WithSubmitter(service wizard.Service) Option {
	return func(e *Engine) {
		e.submitter = service
	}
}

// WithMessages sets the message catalog for validation and notifications.
func WithMessages(catalog *messages.Catalog) Option {
	return func(e *Engine) {
		if catalog != nil {
			e.messages = catalog
		}
	}
}

// WithHiddenFields adds server-owned fields to the submitted payload.
func WithHiddenFields(fields ...payload.HiddenField) Option {
	return func(e *Engine) {
		e.hidden = append(e.hidden, fields...)
	}
}

// WithListener registers an event listener.
func WithListener(fn func(Event)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.listeners = append(e.listeners, fn)
		}
	}
}
