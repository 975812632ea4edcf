// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package collaborator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/security"
	"github.com/dailyrecap/pipeline/internal/transcribe"
)

// TranscriberClient calls an HTTP transcription collaborator, satisfying
// transcribe.Collaborator.
type TranscriberClient struct {
	client   *http.Client
	endpoint string
	apiKey   string
	signer   *security.CollaboratorTokenSigner
}

// NewTranscriberClient builds a TranscriberClient. signer may be nil to
// send no bearer token beyond apiKey.
func NewTranscriberClient(endpoint, apiKey string, timeout time.Duration, signer *security.CollaboratorTokenSigner) *TranscriberClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TranscriberClient{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		signer:   signer,
	}
}

type transcribeRequestBody struct {
	AudioBase64 string `json:"audio_base64"`
}

type transcribeResponseBody struct {
	Model    string                      `json:"model"`
	Language string                      `json:"language"`
	Segments []models.TranscriptSegment `json:"segments"`
}

// Transcribe posts base64 audio to the configured endpoint and returns the
// collaborator's segmented transcript.
func (c *TranscriberClient) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Response, error) {
	body, err := json.Marshal(transcribeRequestBody{AudioBase64: req.AudioBase64})
	if err != nil {
		return nil, fmt.Errorf("collaborator: marshal transcribe request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("collaborator: build transcribe request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "DailyRecap-Transcriber/1.0")
	if err := authorize(httpReq, c.apiKey, c.signer, "transcriber"); err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("collaborator: transcribe request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("collaborator: read transcribe response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("collaborator: transcriber returned %d: %s", resp.StatusCode, clampBody(respBody))
	}

	var parsed transcribeResponseBody
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("collaborator: unmarshal transcribe response: %w", err)
	}
	return &transcribe.Response{Model: parsed.Model, Language: parsed.Language, Segments: parsed.Segments}, nil
}

// Ping checks collaborator reachability for GET /validate-transcriber.
func (c *TranscriberClient) Ping(ctx context.Context) error {
	return pingEndpoint(ctx, c.client, c.endpoint, c.signer, "transcriber")
}
