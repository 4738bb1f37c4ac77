package platform

import "fmt"

// ConnectionParams holds the parameters extracted from one candidate
// process's invocation string. Instances are immutable and discarded
// whenever downstream validation fails.
type ConnectionParams struct {
	// PID is the process the parameters were extracted from.
	PID int

	// ExtensionPort is the port advertised on the command line. It is a
	// hint only: the port that actually answers the API is established
	// separately by probing the process's listening sockets.
	ExtensionPort int

	// CSRFToken authenticates requests against the local endpoint.
	CSRFToken string
}

// Strategy is the per-OS capability set for process and port introspection.
//
// Implementations build shell commands and parse their raw text output.
// Command execution itself is the caller's concern, which keeps every
// parser unit-testable against captured tool output.
type Strategy interface {
	// ListProcessesCommand returns the shell command that lists candidate
	// processes by image name, one per line, with pid and full command line.
	ListProcessesCommand(processName string) string

	// ParseProcessInfo extracts connection parameters from the output of
	// the process-list command. It returns false when no candidate process
	// yields both a port and a token.
	ParseProcessInfo(output string) (*ConnectionParams, bool)

	// ListListeningPortsCommand returns the shell command that lists the
	// listening TCP sockets of the given pid.
	ListListeningPortsCommand(pid int) string

	// ParseListeningPorts extracts the deduplicated loopback ports the pid
	// is listening on, in the order they appear in the output.
	ParseListeningPorts(output string, pid int) []int
}

// ForOS selects the strategy for a GOOS value. It is called once at startup;
// nothing else in the codebase branches on the operating system.
func ForOS(goos string) (Strategy, error) {
	switch goos {
	case "windows":
		return newWindowsStrategy(), nil
	case "darwin":
		return newDarwinStrategy(), nil
	case "linux":
		return newLinuxStrategy(), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", goos)
	}
}
