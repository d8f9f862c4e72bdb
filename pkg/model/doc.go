// Package model holds the shared vocabulary of the form engine: field names,
// the immutable State snapshot, per-field errors, field definitions and the
// static option catalogs injected at setup.
package model
