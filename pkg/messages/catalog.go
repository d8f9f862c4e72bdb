package messages

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// DefaultLocale is used when a key is missing for the requested locale.
const DefaultLocale = "en"

var (
	// ErrMissingTranslator indicates no catalog was configured.
	ErrMissingTranslator = errors.New("messages: translator not configured")
	// ErrMissingKey indicates the key has no template in any candidate locale.
	ErrMissingKey = errors.New("messages: missing key")
)

// Translator resolves a key into a message for a locale. params may carry a
// single map[string]any used as the template context.
type Translator interface {
	Translate(locale, key string, params ...any) (string, error)
}

// MissingTranslationHandler decides the text shown when translation fails.
type MissingTranslationHandler func(locale, key string, params []any, err error) string

// Option configures a Catalog.
type Option func(*Catalog)

// WithFallbackLocale overrides the locale used when a key is missing.
func WithFallbackLocale(locale string) Option {
	return func(c *Catalog) {
		if trimmed := strings.TrimSpace(locale); trimmed != "" {
			c.fallback = trimmed
		}
	}
}

// WithOnMissing customises the text returned by Message for unknown keys.
func WithOnMissing(fn MissingTranslationHandler) Option {
	return func(c *Catalog) {
		if fn != nil {
			c.onMissing = fn
		}
	}
}

// WithMessages registers extra templates for a locale on construction.
// Entries override built-in ones with the same key.
func WithMessages(locale string, entries map[string]string) Option {
	return func(c *Catalog) {
		c.pending = append(c.pending, pendingEntries{locale: locale, entries: entries})
	}
}

// WithoutBuiltins starts from an empty catalog.
func WithoutBuiltins() Option {
	return func(c *Catalog) {
		c.skipBuiltins = true
	}
}

type pendingEntries struct {
	locale  string
	entries map[string]string
}

// Catalog stores pongo2 message templates per locale.
type Catalog struct {
	mu        sync.RWMutex
	locales   map[string]map[string]*pongo2.Template
	fallback  string
	onMissing MissingTranslationHandler

	pending      []pendingEntries
	skipBuiltins bool
}

var _ Translator = (*Catalog)(nil)

// New compiles the built-in messages plus any registered through options.
func New(opts ...Option) (*Catalog, error) {
	c := &Catalog{
		locales:   make(map[string]map[string]*pongo2.Template),
		fallback:  DefaultLocale,
		onMissing: missingTranslationDefault,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if !c.skipBuiltins {
		for _, locale := range builtinLocales() {
			if err := c.Register(locale, builtin[locale]); err != nil {
				return nil, err
			}
		}
	}
	for _, p := range c.pending {
		if err := c.Register(p.locale, p.entries); err != nil {
			return nil, err
		}
	}
	c.pending = nil
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns a shared catalog holding only the built-in messages.
func Default() *Catalog {
	defaultOnce.Do(func() {
		catalog, err := New()
		if err != nil {
			panic(fmt.Sprintf("messages: built-in catalog: %v", err))
		}
		defaultCatalog = catalog
	})
	return defaultCatalog
}

// Extend returns a copy of c with overrides registered on top, keyed by
// locale. c itself is left unchanged.
func (c *Catalog) Extend(overrides map[string]map[string]string) (*Catalog, error) {
	c.mu.RLock()
	out := &Catalog{
		locales:   make(map[string]map[string]*pongo2.Template, len(c.locales)),
		fallback:  c.fallback,
		onMissing: c.onMissing,
	}
	for locale, templates := range c.locales {
		copied := make(map[string]*pongo2.Template, len(templates))
		for key, tpl := range templates {
			copied[key] = tpl
		}
		out.locales[locale] = copied
	}
	c.mu.RUnlock()

	locales := make([]string, 0, len(overrides))
	for locale := range overrides {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	for _, locale := range locales {
		if err := out.Register(locale, overrides[locale]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Register compiles entries for locale. Templates use pongo2 syntax, for
// example "{{ label }} is required".
func (c *Catalog) Register(locale string, entries map[string]string) error {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return errors.New("messages: locale is required")
	}
	compiled := make(map[string]*pongo2.Template, len(entries))
	for key, source := range entries {
		tpl, err := pongo2.FromString(source)
		if err != nil {
			return fmt.Errorf("messages: compile %s/%s: %w", locale, key, err)
		}
		compiled[key] = tpl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.locales[locale]
	if target == nil {
		target = make(map[string]*pongo2.Template, len(compiled))
		c.locales[locale] = target
	}
	for key, tpl := range compiled {
		target[key] = tpl
	}
	return nil
}

// Locales lists registered locales.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.locales))
	for locale := range c.locales {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Translate renders key for locale, trying the exact locale, its base
// language and then the fallback locale.
func (c *Catalog) Translate(locale, key string, params ...any) (string, error) {
	tpl := c.lookup(locale, key)
	if tpl == nil {
		return "", fmt.Errorf("%w: %s (%s)", ErrMissingKey, key, locale)
	}
	out, err := tpl.Execute(contextFrom(params))
	if err != nil {
		return "", fmt.Errorf("messages: render %s: %w", key, err)
	}
	return strings.TrimSpace(out), nil
}

// Message is Translate without the error: failures go through the missing
// translation handler.
func (c *Catalog) Message(locale, key string, data map[string]any) string {
	if c == nil {
		return missingTranslationDefault(locale, key, []any{data}, ErrMissingTranslator)
	}
	out, err := c.Translate(locale, key, data)
	if err != nil || out == "" {
		return c.onMissing(locale, key, []any{data}, err)
	}
	return out
}

func (c *Catalog) lookup(locale, key string) *pongo2.Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, candidate := range candidates(locale, c.fallback) {
		if tpl, ok := c.locales[candidate][key]; ok {
			return tpl
		}
	}
	return nil
}

func candidates(locale, fallback string) []string {
	locale = strings.TrimSpace(locale)
	out := make([]string, 0, 3)
	if locale != "" {
		out = append(out, locale)
		if idx := strings.IndexAny(locale, "-_"); idx > 0 {
			out = append(out, locale[:idx])
		}
	}
	return append(out, fallback)
}

func contextFrom(params []any) pongo2.Context {
	ctx := pongo2.Context{}
	for _, param := range params {
		switch typed := param.(type) {
		case map[string]any:
			for key, value := range typed {
				ctx[key] = value
			}
		case map[string]string:
			for key, value := range typed {
				ctx[key] = value
			}
		}
	}
	return ctx
}

func missingTranslationDefault(_ string, key string, params []any, _ error) string {
	for _, param := range params {
		data, ok := param.(map[string]any)
		if !ok {
			continue
		}
		if fallback, ok := data["default"].(string); ok && strings.TrimSpace(fallback) != "" {
			return fallback
		}
	}
	return key
}
