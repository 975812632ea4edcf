// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package collaborator implements the HTTP clients for the two
// interface-only collaborators that have a concrete endpoint in
// configuration: the drafting model and the transcription model. Both
// follow the same shape: a signed bearer token, a JSON request body, and a
// bounded response read.
package collaborator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/drafter"
	"github.com/dailyrecap/pipeline/internal/security"
)

const maxResponseBytes = 1 << 20 // 1 MiB

// DrafterClient calls an HTTP drafting collaborator, satisfying
// drafter.Collaborator.
type DrafterClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
	signer   *security.CollaboratorTokenSigner
}

// NewDrafterClient builds a DrafterClient. signer may be nil to send no
// bearer token beyond apiKey.
func NewDrafterClient(endpoint, apiKey string, timeout time.Duration, signer *security.CollaboratorTokenSigner) *DrafterClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DrafterClient{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		signer:   signer,
	}
}

type draftRequestBody struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Seed        int64   `json:"seed"`
	MaxTokens   int     `json:"max_tokens"`
}

type draftResponseBody struct {
	Content string `json:"content"`
}

// Draft posts the prompt and sampling parameters to the configured
// endpoint and returns the raw model content for drafter.Drafter to parse.
func (c *DrafterClient) Draft(ctx context.Context, req drafter.Request) (string, error) {
	body, err := json.Marshal(draftRequestBody{
		Prompt:      req.Prompt,
		Model:       req.Params.Model,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		Seed:        req.Params.Seed,
		MaxTokens:   req.Params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("collaborator: marshal draft request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("collaborator: build draft request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "DailyRecap-Drafter/1.0")
	if err := c.authorize(httpReq, "drafter"); err != nil {
		return "", err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("collaborator: draft request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("collaborator: read draft response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("collaborator: drafter returned %d: %s", resp.StatusCode, clampBody(respBody))
	}

	var parsed draftResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("collaborator: unmarshal draft response: %w", err)
	}
	return parsed.Content, nil
}

// Ping checks collaborator reachability for GET /validate-drafter, backing
// api.CollaboratorProbe.
func (c *DrafterClient) Ping(ctx context.Context) error {
	return pingEndpoint(ctx, c.client, c.endpoint, c.signer, "drafter")
}

func (c *DrafterClient) authorize(req *http.Request, collaborator string) error {
	return authorize(req, c.apiKey, c.signer, collaborator)
}

func clampBody(b []byte) string {
	const max = 500
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
