// Package monitor wires discovery, polling, the guard, and persistence
// into the long-running pipeline behind the daemon.
//
// # Overview
//
// The Monitor owns the single logical thread of control that mutates guard
// state: discover the endpoint, poll the status RPC on a fixed interval,
// feed each snapshot to the guard, persist it to history, publish metrics,
// and fan results out to registered callbacks. Poll failures keep the last
// good snapshot in place; enough consecutive failures trigger a fresh
// discovery, since the agent service restarts with a new port and token.
//
// Housekeeping (acknowledgment garbage collection and history pruning)
// runs on cron schedules, outside the poll path.
package monitor
