// Package validation checks field values against the declarations of a form:
// required (static or rule driven), numeric bounds, lengths, patterns,
// catalog membership and the masked kinds (tax ID check digits, postal codes,
// durations). Messages come from the messages catalog.
//
// Keystrokes are never rejected for shape; that happens here, on step advance
// and submit.
package validation
