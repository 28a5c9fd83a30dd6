// Package parser reads pattern XML documents into pattern.Pattern values.
//
// Two document shapes are accepted:
//
//   - <PatternBundle>: one or more <Context> declarations plus exactly one
//     <Pattern>. Bundles are checked against the full grammar before any
//     extraction happens.
//   - <Pattern>: the legacy single-pattern form. It is read leniently and may
//     carry an inline <Context>.
//
// Every failure is a *pattern.Error. Structural problems are
// MALFORMED_DOCUMENT; grammar violations are SCHEMA_VIOLATION and carry the
// offending element and line.
package parser
