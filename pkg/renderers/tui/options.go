package tui

import (
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/widgets"
)

// Option configures a Session.
type Option func(*Session)

// WithPromptDriver overrides the prompt driver used by the session.
func WithPromptDriver(driver PromptDriver) Option {
	return func(s *Session) {
		if driver != nil {
			s.driver = driver
		}
	}
}

// WithWidgets overrides the widget registry.
func WithWidgets(registry *widgets.Registry) Option {
	return func(s *Session) {
		if registry != nil {
			s.widgets = registry
		}
	}
}

// WithTheme applies message styles.
func WithTheme(theme Theme) Option {
	return func(s *Session) {
		s.theme = theme
	}
}

// WithMessages sets the catalog and locale for session messages.
func WithMessages(catalog *messages.Catalog, locale string) Option {
	return func(s *Session) {
		if catalog != nil {
			s.messages = catalog
		}
		if trimmed := strings.TrimSpace(locale); trimmed != "" {
			s.locale = trimmed
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPollInterval sets how often a pending lookup is re-checked while the
// session waits for it.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithStepBack lets the user return to the previous step from each step
// header after the first.
func WithStepBack() Option {
	return func(s *Session) {
		s.stepBack = true
	}
}
