// Package journal keeps an append-only record of alerting decisions.
//
// Every time the guard surfaces, suppresses, or downgrades an alert, the
// outcome and the user's choice are journaled with a unique id. The
// journal answers "why did sentinel interrupt me at 14:32" and "did I
// really agree to proceed" without trusting anyone's memory.
//
// Writes are asynchronous and lossy under pressure: journaling must never
// slow down or block the decision path it observes.
package journal
