// Package enrich implements debounced lookup autofill.
//
// An Adapter watches one trigger field. Once the normalised trigger value
// reaches its fixed key length, a lookup is scheduled after the debounce
// interval. Every new trigger change cancels whatever is pending or in flight
// (latest wins, nothing is queued or coalesced) and every request carries an
// identity token: a result is merged only while its token is still the
// current one, so a slow response to a superseded request is discarded even
// when it arrives after a newer one.
//
// Lookup failures never become field errors. They are reported through the
// adapter Status, a transient side channel, because autofill is advisory.
package enrich
