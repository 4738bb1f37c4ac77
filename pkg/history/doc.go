// Package history persists quota snapshots so the recent trend survives
// daemon restarts and can be rendered by the status command.
//
// The SQLite store keeps one row per model per snapshot (the prompt-credit
// pool is stored under its synthetic id) and is pruned on a schedule by the
// monitor's housekeeping. A memory store backs tests and runs with
// persistence disabled.
package history
