// Package store keeps a SQLite history of generation runs.
//
// Each run records the project, the pattern references of every layer and
// the rendered artifacts together with their content hashes:
//   - runs: one row per Generate call, keyed by a UUIDv7
//   - run_inputs: ordered pattern references per layer
//   - artifacts: context/machine texts per refinement
//
// A run and everything under it is written in a single transaction, so a
// reader never sees a partial run. Listing order is the insertion sequence,
// newest first.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
