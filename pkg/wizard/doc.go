// Package wizard sequences the steps of a multi-step form.
//
// Transitions are strictly adjacent. Next runs the current step's validation
// and only advances on success; Previous never validates. Errors are scoped to
// the current step, so steps not yet visited are never validated ahead of
// time. Submission is reachable from the terminal step only and is split into
// Begin/Finish so callers can run the submission service without holding
// their own locks.
//
// A Wizard is not safe for concurrent use; the engine serialises access.
package wizard
