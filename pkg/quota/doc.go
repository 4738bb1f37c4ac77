// Package quota defines the quota data model and the client that polls the
// agent service's private status endpoint.
//
// # Overview
//
// A Snapshot is one observation of the remaining usage quota across all
// models the agent service reports, plus the shared prompt-credit pool.
// Snapshots are immutable: every poll produces a fresh one, and downstream
// consumers (the guard, history storage, presentation callbacks) only ever
// hold the latest.
//
// # Normalization rules
//
// The upstream payload is treated as untrusted:
//
//   - A missing remaining fraction stays unknown (nil percentage). It is
//     never defaulted to 0 or 100, so the guard can distinguish "unknown"
//     from "exhausted" and "healthy".
//   - A model is exhausted only when the fraction is present and exactly 0.
//   - Reset timestamps may be ISO-8601 or epoch seconds/milliseconds; a
//     reset time in the past formats as "Ready".
//   - Prompt credits are derived only when a positive monthly allotment is
//     reported.
package quota
