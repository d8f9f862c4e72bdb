// Package formflow builds form engines from declarative definitions.
//
// A definition (see pkg/schema) names its fields, option catalogs,
// dependency rules, derived fields, lookups and wizard steps. New compiles it
// into an engine.Engine; lookups are supplied by name because they are
// external capabilities. Built-in definitions for the client, service
// report, contact and user forms ship embedded in the module.
package formflow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/enrich"
	"github.com/goliatone/go-formflow/pkg/messages"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/payload"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/wizard"
)

// ErrUnknownDefinition is returned when no definition matches an id.
var ErrUnknownDefinition = errors.New("formflow: unknown definition")

// Option configures New.
type Option func(*config)

type config struct {
	lookups map[string]enrich.Lookup
	locale  string
	initial model.Values
	catalog *messages.Catalog
	hidden  []payload.HiddenField
	logger  *slog.Logger
	engine  []engine.Option
}

// WithLookup registers the lookup a definition refers to by name.
func WithLookup(name string, lookup enrich.Lookup) Option {
	return func(c *config) {
		if lookup != nil {
			c.lookups[name] = lookup
		}
	}
}

// WithLocale overrides the definition locale.
func WithLocale(locale string) Option {
	return func(c *config) {
		c.locale = strings.TrimSpace(locale)
	}
}

// WithInitial prefills field values, e.g. when editing a stored record.
func WithInitial(values model.Values) Option {
	return func(c *config) {
		for name, value := range values {
			c.initial[name] = value
		}
	}
}

// WithBaseMessages sets the catalog definition messages are layered on.
// Definitions without messages use it unchanged.
func WithBaseMessages(catalog *messages.Catalog) Option {
	return func(c *config) {
		if catalog != nil {
			c.catalog = catalog
		}
	}
}

// WithHiddenFields adds server-owned fields (CSRF token, record version) to
// the payload on top of the definition's hidden fields.
func WithHiddenFields(fields ...payload.HiddenField) Option {
	return func(c *config) {
		c.hidden = append(c.hidden, fields...)
	}
}

// WithSubmitter sets the submission service.
func WithSubmitter(service wizard.Service) Option {
	return func(c *config) {
		c.engine = append(c.engine, engine.WithSubmitter(service))
	}
}

// WithLogger sets the structured logger passed to the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithEngineOptions passes options straight to engine.New.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *config) {
		c.engine = append(c.engine, opts...)
	}
}

// New compiles def into an engine. Every problem in the definition is
// reported as *model.ConfigurationError.
func New(def schema.Definition, opts ...Option) (*engine.Engine, error) {
	cfg := &config{
		lookups: make(map[string]enrich.Lookup),
		initial: make(model.Values),
		catalog: messages.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	if err := def.Check(); err != nil {
		return nil, err
	}
	ruleSet, err := def.RuleSet()
	if err != nil {
		return nil, err
	}
	calc, err := def.Calculator()
	if err != nil {
		return nil, err
	}
	enrichments, err := def.EnrichmentConfigs(cfg.lookups)
	if err != nil {
		return nil, err
	}
	catalog, err := definitionMessages(def, cfg.catalog)
	if err != nil {
		return nil, err
	}

	locale := cfg.locale
	if locale == "" {
		locale = def.Locale
	}

	steps := make([]wizard.Step, 0, len(def.Steps))
	for _, step := range def.StepFields() {
		steps = append(steps, wizard.Step{ID: step.ID, Title: step.Title, Fields: fieldNames(step.Fields)})
	}

	hidden := hiddenFields(def.Hidden)
	hidden = append(hidden, cfg.hidden...)

	engineOpts := []engine.Option{
		engine.WithMessages(catalog),
		engine.WithHiddenFields(hidden...),
	}
	if cfg.logger != nil {
		engineOpts = append(engineOpts, engine.WithLogger(cfg.logger.With("form", def.ID)))
	}
	engineOpts = append(engineOpts, cfg.engine...)

	return engine.New(engine.Config{
		Form:        def.FormModel(),
		Catalogs:    def.OptionCatalogs(),
		Rules:       ruleSet,
		Calculator:  calc,
		Enrichments: enrichments,
		Steps:       steps,
		Initial:     cfg.initial,
		Locale:      locale,
	}, engineOpts...)
}

// definitionMessages layers the definition's message overrides on a copy of
// base so one form's wording never leaks into another.
func definitionMessages(def schema.Definition, base *messages.Catalog) (*messages.Catalog, error) {
	if len(def.Messages) == 0 {
		return base, nil
	}
	catalog, err := base.Extend(def.Messages)
	if err != nil {
		return nil, model.Misconfigured("formflow", fmt.Sprintf("%s: messages", def.ID), err)
	}
	return catalog, nil
}

func hiddenFields(raw map[string]string) []payload.HiddenField {
	if len(raw) == 0 {
		return nil
	}
	return payload.SortedHiddenFields(raw)
}

func fieldNames(raw []string) []model.FieldName {
	out := make([]model.FieldName, 0, len(raw))
	for _, name := range raw {
		out = append(out, model.FieldName(name))
	}
	return out
}
