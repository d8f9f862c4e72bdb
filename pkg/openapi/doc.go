// Package openapi imports form fields from the request body of an OpenAPI
// operation. It is used to scaffold definitions from an existing API contract
// and to check that a definition only declares fields the API accepts.
//
// Scalar properties map onto field types (integer/number, boolean, string with
// enum as select, date-time as datetime). Bounds, lengths, patterns and the
// email format become validations. The x-formflow extension can set label,
// mask, catalog and freeText.
package openapi
