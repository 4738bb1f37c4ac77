// Package platform provides the per-OS recipes for locating the agent
// service process and its listening sockets.
//
// # Overview
//
// The agent service does not publish its network location or auth token.
// Both have to be recovered from OS-level introspection: the token and a
// hint port from the process's command line, and the candidate API ports
// from its listening sockets.
//
// A Strategy bundles the four operations this requires: building the
// process-list command, parsing its output into connection parameters,
// building the port-list command for a pid, and parsing that output into
// loopback port numbers. The contract is identical across operating
// systems; only the text grammars differ, which makes Strategy the seam for
// adding a platform without touching any caller.
//
// Parsers are pure functions over command output. They never execute
// anything and fail soft: unparseable output yields no result, not an
// error, because the OS guarantees no stability for these text formats.
package platform
