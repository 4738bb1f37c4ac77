package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// portListTool selects the socket-listing grammar a unix strategy uses.
type portListTool int

const (
	// toolLsof lists sockets with lsof (macOS default, present everywhere).
	toolLsof portListTool = iota
	// toolSS lists sockets with iproute2's ss (Linux default).
	toolSS
)

// unixStrategy introspects processes with ps and listening sockets with
// either lsof or ss. Darwin and Linux share everything except the socket
// grammar.
type unixStrategy struct {
	tool portListTool
}

func newDarwinStrategy() *unixStrategy {
	return &unixStrategy{tool: toolLsof}
}

func newLinuxStrategy() *unixStrategy {
	return &unixStrategy{tool: toolSS}
}

// ListProcessesCommand lists matching processes as "pid command args...",
// one per line. The name is matched literally (-F) and quoted, so spaces
// and regex metacharacters in a configured name cannot break the pipeline.
// The grep -v drops the grep process itself.
func (s *unixStrategy) ListProcessesCommand(processName string) string {
	return fmt.Sprintf("ps ax -o pid=,args= | grep -F -- %s | grep -v grep", shellQuote(processName))
}

// shellQuote single-quotes a value for interpolation into a shell command.
func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

// ParseProcessInfo parses ps output lines of the form "  1234 /path/to/bin
// --flag=value ...". The first line yielding both a port and a token wins.
func (s *unixStrategy) ParseProcessInfo(output string) (*ConnectionParams, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		pidText, commandLine, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(pidText)
		if err != nil || pid <= 0 {
			continue
		}

		if params, ok := parseCommandLine(pid, strings.TrimSpace(commandLine)); ok {
			return params, true
		}
	}
	return nil, false
}

// ListListeningPortsCommand lists the pid's listening TCP sockets.
func (s *unixStrategy) ListListeningPortsCommand(pid int) string {
	if s.tool == toolSS {
		return fmt.Sprintf("ss -ltnp | grep pid=%d,", pid)
	}
	return fmt.Sprintf("lsof -nP -iTCP -sTCP:LISTEN -a -p %d", pid)
}

// ParseListeningPorts extracts deduplicated loopback ports from the socket
// lister's output, in order of appearance.
func (s *unixStrategy) ParseListeningPorts(output string, pid int) []int {
	if s.tool == toolSS {
		return parseSSOutput(output, pid)
	}
	return parseLsofOutput(output, pid)
}

// parseLsofOutput handles rows of the form:
//
//	language_ 5678 user 23u IPv6 0x1a2b3c 0t0 TCP 127.0.0.1:42100 (LISTEN)
//
// lsof is already pid-filtered via -p, but the pid column is still checked
// to stay safe against unexpected output.
func parseLsofOutput(output string, pid int) []int {
	pidText := strconv.Itoa(pid)
	var ports []int
	seen := make(map[int]bool)

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 9 || fields[1] != pidText {
			continue
		}
		if !strings.Contains(line, "(LISTEN)") {
			continue
		}
		// The local address is the second-to-last field, before "(LISTEN)".
		port, ok := loopbackPort(fields[len(fields)-2])
		if !ok || seen[port] {
			continue
		}
		seen[port] = true
		ports = append(ports, port)
	}

	return ports
}

// parseSSOutput handles rows of the form:
//
//	LISTEN 0 4096 127.0.0.1:42100 0.0.0.0:* users:(("language_server",pid=5678,fd=23))
//
// The shell-side grep already narrows to the pid; the pid= marker is still
// verified here because "grep pid=567" would also match pid 5678.
func parseSSOutput(output string, pid int) []int {
	marker := fmt.Sprintf("pid=%d,", pid)
	var ports []int
	seen := make(map[int]bool)

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, marker) {
			continue
		}
		if !strings.Contains(line, "LISTEN") {
			continue
		}
		// The local address is the first field that parses as host:port with
		// a numeric port; the peer address ("0.0.0.0:*") never does.
		for _, field := range strings.Fields(line) {
			port, ok := loopbackPort(field)
			if !ok {
				continue
			}
			if !seen[port] {
				seen[port] = true
				ports = append(ports, port)
			}
			break
		}
	}

	return ports
}
