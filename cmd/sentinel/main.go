// Sentinel watches the quota state of a locally running AI coding
// assistant and warns before a provider cooldown is triggered.
//
// It locates the assistant's already-running agent service process,
// extracts its private endpoint and auth token by OS-level introspection,
// polls the service's status RPC, and turns the returned quota numbers
// into graduated warnings - without ever enforcing anything itself.
//
// Usage:
//
//	# Run the watcher daemon with default configuration
//	sentinel run
//
//	# Run with a custom configuration file
//	sentinel run --config /path/to/sentinel.yaml
//
//	# One-shot quota status
//	sentinel status
//
//	# Show the discovered endpoint (token redacted)
//	sentinel discover
//
//	# List recent alert decisions
//	sentinel journal
//
//	# Show version information
//	sentinel version
package main

func main() {
	Execute()
}
