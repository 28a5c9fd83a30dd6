// Package combine merges events from different patterns that describe the
// same real-world occurrence into a single composite event.
//
// Matching is driven by a fixed, ordered rule table (see Rules). A rule fires
// only when every event it references is present; partial matches never fire.
//
// Output order: composite events in rule-table order, then every untouched
// event in input order.
//
// Apply is pure: it never mutates its input and shares no state between calls,
// so it is safe for concurrent use.
package combine
