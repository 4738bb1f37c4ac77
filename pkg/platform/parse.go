package platform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Flag and token grammars shared by every platform. The agent service is
// launched with gflags-style arguments, so both "--flag=value" and
// "--flag value" spellings occur in the wild.
var (
	extensionPortPattern = regexp.MustCompile(`--?extension_server_port[=\s]+(\d+)`)
	grpcPortPattern      = regexp.MustCompile(`--?grpc_server_port[=\s]+(\d+)`)
	csrfTokenPattern     = regexp.MustCompile(`--?csrf_token[=\s]+([0-9a-fA-F-]{36})`)
	apiServerURLPattern  = regexp.MustCompile(`--?api_server_url[=\s]+(\S+)`)
	uuidPattern          = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// extractPort finds the server port in a command line. The extension server
// port is authoritative; the gRPC port is accepted as a fallback.
func extractPort(commandLine string) (int, bool) {
	for _, pattern := range []*regexp.Regexp{extensionPortPattern, grpcPortPattern} {
		if m := pattern.FindStringSubmatch(commandLine); m != nil {
			port, err := strconv.Atoi(m[1])
			if err == nil && port > 0 && port <= 65535 {
				return port, true
			}
		}
	}
	return 0, false
}

// extractToken finds the CSRF token in a command line. Sources are tried in
// priority order, first match wins:
//
//  1. The explicit --csrf_token flag. Authoritative.
//  2. A UUID-shaped path segment of the --api_server_url flag value.
//  3. The first UUID-shaped substring anywhere in the command line.
//
// The last fallback is inherently ambiguous when several UUID-shaped values
// are present, so it is best effort only; a wrong pick surfaces later as a
// failed probe and the discovery attempt is retried.
func extractToken(commandLine string) (string, bool) {
	if m := csrfTokenPattern.FindStringSubmatch(commandLine); m != nil {
		if token, ok := validUUID(m[1]); ok {
			return token, true
		}
	}

	if m := apiServerURLPattern.FindStringSubmatch(commandLine); m != nil {
		for _, segment := range strings.Split(m[1], "/") {
			if token, ok := validUUID(segment); ok {
				return token, true
			}
		}
	}

	if m := uuidPattern.FindString(commandLine); m != "" {
		if token, ok := validUUID(m); ok {
			return token, true
		}
	}

	return "", false
}

// validUUID reports whether the candidate is a well-formed UUID and returns
// its canonical lower-case form.
func validUUID(candidate string) (string, bool) {
	if len(candidate) != 36 {
		return "", false
	}
	parsed, err := uuid.Parse(candidate)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// parseCommandLine extracts connection parameters from one process's
// command line. Both the port and the token are mandatory.
func parseCommandLine(pid int, commandLine string) (*ConnectionParams, bool) {
	port, ok := extractPort(commandLine)
	if !ok {
		return nil, false
	}
	token, ok := extractToken(commandLine)
	if !ok {
		return nil, false
	}
	return &ConnectionParams{PID: pid, ExtensionPort: port, CSRFToken: token}, true
}
