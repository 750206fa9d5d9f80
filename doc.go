// Package utype validates and coerces loosely typed input into strongly
// typed values through declarative schemas. Fields describe per-attribute
// behavior (aliases, modes, defaults, error policy), parsers compose fields
// for structs and callables, and a per-call Runtime aggregates errors under
// a configurable policy.
//
// The root package holds the field model and runtime machinery. Type rules
// live in rule, the default coercer in transform, the struct schema builder
// in schema, and the callable adapter in funcs.
package utype
