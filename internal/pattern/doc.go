// Package pattern provides the intermediate representation of a pattern
// fragment and the error taxonomy shared by every stage of the pipeline.
//
// This package contains type definitions and small helpers only. Every other
// internal package imports pattern; pattern imports nothing internal.
//
// Key design constraints:
//   - A Pattern is never mutated once its producing stage returns it
//   - Stages that derive a new model copy first (see Clone)
//   - Guard, action and invariant bodies are opaque strings
//   - All JSON tags use snake_case
package pattern
