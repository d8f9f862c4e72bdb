// Package postalcodes serves postal code to address lookups for form
// enrichment.
//
// The handler answers GET and HEAD requests with a JSON address for an 8
// digit code, 404 when the code is unknown and 400 when it is malformed.
// Client and DirectoryLookup implement enrich.Lookup over HTTP and over an
// in-memory directory. The default directory is loaded from the embedded
// list under data/postal_codes.txt.
package postalcodes
