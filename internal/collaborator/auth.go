// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package collaborator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dailyrecap/pipeline/internal/security"
)

// authorize attaches the static API key (if any) and a short-lived signed
// bearer token (if a signer is configured) to an outbound collaborator
// request.
func authorize(req *http.Request, apiKey string, signer *security.CollaboratorTokenSigner, collaborator string) error {
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if signer == nil {
		return nil
	}
	token, err := signer.Sign(collaborator, time.Now())
	if err != nil {
		return fmt.Errorf("collaborator: sign %s token: %w", collaborator, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// pingEndpoint issues a HEAD request against the collaborator's endpoint to
// back GET /validate-{name}. A non-2xx/3xx response is treated as
// unreachable.
func pingEndpoint(ctx context.Context, client *http.Client, endpoint string, signer *security.CollaboratorTokenSigner, collaborator string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return fmt.Errorf("collaborator: build ping request: %w", err)
	}
	if err := authorize(req, "", signer, collaborator); err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("collaborator: %s unreachable: %w", collaborator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("collaborator: %s returned %d", collaborator, resp.StatusCode)
	}
	return nil
}
