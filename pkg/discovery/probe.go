package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gravityhq/sentinel/pkg/quota"
)

// ProbeRPCPath is the capability-listing RPC used to verify that a
// candidate port actually answers the agent service's API. It is cheap,
// side-effect free, and requires the same CSRF auth as the status RPC.
const ProbeRPCPath = "/exa.language_server_pb.LanguageServerService/GetCapabilities"

// Prober checks whether a candidate port answers the expected API.
type Prober interface {
	Probe(ctx context.Context, port int, csrfToken string) bool
}

// HTTPProber validates candidate ports with an authenticated POST against
// the capability-listing RPC. A port counts as working only when it returns
// HTTP 200 with a parseable JSON body.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober with the given per-probe timeout.
// If timeout is 0, defaults to 5 seconds.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{
		client: &http.Client{Timeout: timeout},
	}
}

// Probe performs a single validation request against one port.
func (p *HTTPProber) Probe(ctx context.Context, port int, csrfToken string) bool {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", port, ProbeRPCPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(quota.HeaderProtocolVersion, quota.ProtocolVersion)
	req.Header.Set(quota.HeaderCSRFToken, csrfToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false
	}
	return json.Valid(body)
}
