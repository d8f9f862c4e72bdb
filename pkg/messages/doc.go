// Package messages renders user-facing text (field errors, enrichment and
// submission notifications) from pongo2 templates keyed by locale.
//
// Lookups try the exact locale, then its base language, then the fallback
// locale ("en" unless overridden):
//
//	catalog := messages.Default()
//	catalog.Message("pt-BR", messages.KeyRequired, map[string]any{"label": "CNPJ"})
//	// "CNPJ é obrigatório"
package messages
