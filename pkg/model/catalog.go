package model

import "strings"

// Option is a single entry of a static option catalog.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Catalog is a fixed enumeration such as priority, status or plan tier.
type Catalog struct {
	Name    string   `json:"name" yaml:"name"`
	Options []Option `json:"options" yaml:"options"`
}

// Catalogs indexes option catalogs by name. Catalogs are configuration: they
// are injected when an engine is built and never computed by it.
type Catalogs map[string]Catalog

// Contains reports whether value is one of the catalog entries.
func (c Catalog) Contains(value string) bool {
	for _, option := range c.Options {
		if option.Value == value {
			return true
		}
	}
	return false
}

// Label resolves the display label for value.
func (c Catalog) Label(value string) string {
	for _, option := range c.Options {
		if option.Value == value {
			if option.Label != "" {
				return option.Label
			}
			return option.Value
		}
	}
	return value
}

// OptionsFor returns the options offered for field, preferring inline options
// over the named catalog.
func (c Catalogs) OptionsFor(field Field) []Option {
	if len(field.Options) > 0 {
		return field.Options
	}
	name := strings.TrimSpace(field.Catalog)
	if name == "" || c == nil {
		return nil
	}
	return c[name].Options
}
