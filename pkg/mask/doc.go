// Package mask implements the bidirectional formatting used by structured text
// inputs. Each Spec turns a raw keystroke buffer into a display string and the
// canonical value stored in the form state, and renders a stored canonical
// value back into its display form.
//
// Masks never reject malformed digit input at keystroke level; overlong input
// is truncated silently and shape problems are reported by validation. The
// duration mask is the exception: edits that are not a valid (partial)
// duration are rejected with ErrRejected and must not be applied.
package mask
