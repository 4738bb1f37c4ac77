package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// StatusRPCPath is the fixed path of the user-status RPC on the agent
	// service's connect port.
	StatusRPCPath = "/exa.language_server_pb.LanguageServerService/GetUserStatus"

	// HeaderProtocolVersion marks the connect-RPC protocol revision.
	HeaderProtocolVersion = "Connect-Protocol-Version"

	// HeaderCSRFToken carries the token extracted during discovery.
	HeaderCSRFToken = "X-Csrf-Token"

	// ProtocolVersion is the protocol revision the service expects.
	ProtocolVersion = "1"
)

// SourceConfig configures a Source.
type SourceConfig struct {
	// Port is the validated connect port discovered for the agent service.
	Port int

	// CSRFToken authenticates requests against the local endpoint.
	CSRFToken string

	// Timeout bounds a single status request.
	// Default: 10s
	Timeout time.Duration

	// BaseURL overrides the target ("http://127.0.0.1:<port>" when empty).
	// Used by tests to point at a fixture server.
	BaseURL string
}

// Source issues the periodic status request against the discovered endpoint
// and normalizes the response into Snapshots.
type Source struct {
	config SourceConfig
	client *http.Client
	logger *slog.Logger
}

// NewSource creates a quota source for a discovered endpoint.
func NewSource(config SourceConfig) *Source {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.BaseURL == "" {
		config.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", config.Port)
	}

	return &Source{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: slog.Default().With("component", "quota.source"),
	}
}

// statusRequest is the metadata body sent with every status query.
type statusRequest struct {
	Metadata requestMetadata `json:"metadata"`
}

type requestMetadata struct {
	IdeName    string `json:"ideName"`
	APIVersion string `json:"apiVersion"`
}

// Fetch polls the status endpoint once and returns a normalized Snapshot.
// Transport failures and non-JSON bodies are returned as errors; the caller
// keeps its last good snapshot in that case.
func (s *Source) Fetch(ctx context.Context) (*Snapshot, error) {
	body, err := json.Marshal(statusRequest{
		Metadata: requestMetadata{IdeName: "sentinel", APIVersion: ProtocolVersion},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode status request: %w", err)
	}

	url := s.config.BaseURL + StatusRPCPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderProtocolVersion, ProtocolVersion)
	req.Header.Set(HeaderCSRFToken, s.config.CSRFToken)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status request returned HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read status response: %w", err)
	}

	var payload statusResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse status response: %w", err)
	}

	snapshot := Normalize(&payload, time.Now())

	s.logger.Debug("status poll completed",
		"models", len(snapshot.Models),
		"prompt_credits", snapshot.PromptCredits != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return snapshot, nil
}
