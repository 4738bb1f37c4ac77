package platform

import (
	"fmt"
	"strconv"
	"strings"
)

// windowsStrategy introspects processes through a WMI process query and
// listening sockets through netstat.
type windowsStrategy struct{}

func newWindowsStrategy() *windowsStrategy {
	return &windowsStrategy{}
}

// ListProcessesCommand queries WMI for processes whose image name contains
// processName, in list format (Key=Value lines grouped per process).
func (s *windowsStrategy) ListProcessesCommand(processName string) string {
	return fmt.Sprintf(`wmic process where "name like '%%%s%%'" get ProcessId,CommandLine /format:list`, processName)
}

// ParseProcessInfo parses WMI list-format output. Each process block carries
// CommandLine= and ProcessId= lines; blocks are separated by blank lines.
// The first block that yields both a port and a token wins.
func (s *windowsStrategy) ParseProcessInfo(output string) (*ConnectionParams, bool) {
	var commandLine string
	pid := -1

	flush := func() (*ConnectionParams, bool) {
		if pid <= 0 || commandLine == "" {
			return nil, false
		}
		return parseCommandLine(pid, commandLine)
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "CommandLine="):
			commandLine = strings.TrimPrefix(line, "CommandLine=")
		case strings.HasPrefix(line, "ProcessId="):
			value := strings.TrimSpace(strings.TrimPrefix(line, "ProcessId="))
			if parsed, err := strconv.Atoi(value); err == nil {
				pid = parsed
			}
			// ProcessId closes a block (WMI emits keys alphabetically).
			if params, ok := flush(); ok {
				return params, true
			}
			commandLine = ""
			pid = -1
		}
	}

	return flush()
}

// ListListeningPortsCommand lists all TCP sockets with owning pids.
// Filtering happens in the parser, not the shell.
func (s *windowsStrategy) ListListeningPortsCommand(pid int) string {
	return "netstat -ano -p TCP"
}

// ParseListeningPorts extracts loopback listening ports for the pid from
// netstat output. Expected row shape:
//
//	TCP    127.0.0.1:42100    0.0.0.0:0    LISTENING    5678
func (s *windowsStrategy) ParseListeningPorts(output string, pid int) []int {
	pidText := strconv.Itoa(pid)
	var ports []int
	seen := make(map[int]bool)

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(strings.TrimRight(line, "\r"))
		if len(fields) < 5 || fields[0] != "TCP" {
			continue
		}
		if !strings.EqualFold(fields[3], "LISTENING") || fields[4] != pidText {
			continue
		}
		port, ok := loopbackPort(fields[1])
		if !ok || seen[port] {
			continue
		}
		seen[port] = true
		ports = append(ports, port)
	}

	return ports
}

// loopbackPort splits a local address of the form host:port and returns the
// port when the host is loopback or a wildcard (wildcard binds answer on
// loopback too).
func loopbackPort(address string) (int, bool) {
	idx := strings.LastIndex(address, ":")
	if idx < 0 {
		return 0, false
	}
	host, portText := address[:idx], address[idx+1:]

	switch strings.Trim(host, "[]") {
	case "127.0.0.1", "::1", "localhost", "*", "0.0.0.0", "::":
	default:
		return 0, false
	}

	port, err := strconv.Atoi(portText)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
