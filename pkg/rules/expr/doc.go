// Package expr compiles the small predicate language used by declarative
// dependency rules. It is dependency-free and exposes the identifiers an
// expression reads so rule sets can reject chained or cyclic declarations
// before any evaluation happens.
package expr
