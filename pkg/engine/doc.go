// Package engine runs one dependent-field form session.
//
// Every field change goes through the same synchronous pipeline: the mask
// codec turns raw input into a canonical value, the state snapshot is
// replaced, the field's own error is cleared, dependency rules decide which
// fields are enabled, required or cleared, derived fields are recomputed and
// finally the enrichment adapter for the field (if any) is notified. The only
// deferred work is the debounced lookup, whose results come back through
// Merge and are discarded once superseded.
//
// All methods are safe for concurrent use. Listeners are always called with
// no engine lock held.
package engine
