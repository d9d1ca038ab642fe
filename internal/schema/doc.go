// Package schema turns a remote JSON Schema settings document into an
// ordered tree of field definitions and evaluates it against a settings
// document.
//
// # Field types
//
// The declared JSON Schema type is mapped onto a closed set of field types:
//
//   - enum present            -> select
//   - string + format=textarea -> textarea
//   - string, number, integer, boolean, object, array -> same name
//   - anything else           -> string
//
// # Rule tokens
//
// Constraints become ordered rule tokens consumed by the validation package:
//
//	string:          min:N max:N regex:P email|url|uuid|date
//	number/integer:  numeric min:N max:N
//	boolean:         boolean
//	enum (any type): in:a,b,c
//
// BuildRules prefixes each visible field's tokens with "required" or
// "nullable". Hidden fields (see IsVisible) contribute no rules.
//
// # Paths
//
// Fields are addressed by dotted paths. Object children compose the parent
// key, array instances insert the numeric index: webhooks.0.url.
package schema
