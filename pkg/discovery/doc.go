// Package discovery locates the agent service's working API endpoint.
//
// # Overview
//
// Discovery runs in bounded attempts. Each attempt lists candidate
// processes through the platform strategy, parses connection parameters
// from the winning process's command line, enumerates that process's
// loopback listening ports, and probes the candidates one at a time until
// one answers the expected API.
//
// The port advertised on the command line is a hint only: the process
// routinely listens on several loopback ports and the advertised one may
// belong to a different internal service. Correctness therefore depends on
// the live probe, not on static parsing.
//
// Probing is sequential and short-circuits on the first working port, both
// to avoid flooding the target process and to keep total discovery latency
// bounded.
//
// A reconnect invalidates any in-flight discovery: stale attempts finish
// but their results are discarded, so two overlapping discoveries can never
// race their endpoints into the caller.
package discovery
