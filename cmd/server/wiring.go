// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/collaborator"
	"github.com/dailyrecap/pipeline/internal/config"
	"github.com/dailyrecap/pipeline/internal/drafter"
	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/security"
	"github.com/dailyrecap/pipeline/internal/selector"
	"github.com/dailyrecap/pipeline/internal/transcribe"
)

var errMissingCredentials = errors.New("cmd/server: collaborator credentials not configured")

func selectorPolicy(cfg *config.Config) selector.Policy {
	return selector.Policy{
		Weights: selector.Weights{
			ContentScore:     cfg.Selector.ContentScoreWeight,
			GitHubConfidence: cfg.Selector.GitHubConfidenceWeight,
			Duration:         cfg.Selector.DurationWeight,
			Views:            cfg.Selector.ViewsWeight,
			TranscriptLength: cfg.Selector.TranscriptLengthWeight,
		},
		MaxDuration:   float64(cfg.Selector.MaxDurationSeconds),
		MaxViews:      float64(cfg.Selector.MaxViews),
		MaxWords:      float64(cfg.Selector.MaxTranscriptWords),
		PerHourCap:    cfg.Selector.PerHourCap,
		ClipBudgetMin: cfg.Selector.ClipBudgetMin,
		ClipBudgetMax: cfg.Selector.ClipBudgetMax,
	}
}

func drafterParams(cfg *config.Config) drafter.Params {
	params := drafter.DefaultParams
	if cfg.Drafter.Model != "" {
		params.Model = cfg.Drafter.Model
	}
	params.Temperature = cfg.Drafter.Temperature
	params.TopP = cfg.Drafter.TopP
	params.Seed = cfg.Drafter.Seed
	params.MaxTokens = cfg.Drafter.MaxTokens
	return params
}

// marshalManifest is worker.MarshalManifest: the JSON library choice the
// dispatcher is deliberately decoupled from.
func marshalManifest(m models.Manifest) ([]byte, error) {
	return json.Marshal(m)
}

// newDraftCollaborator returns a live HTTP drafter client when an endpoint
// is configured, nil otherwise. Both drafter.New and the collaborator probe
// map must receive a genuinely nil interface in the unconfigured case (not
// a non-nil interface wrapping a nil *DrafterClient), so callers check
// draftCollaborator == nil directly on this concrete pointer before
// converting to either interface.
func newDraftCollaborator(cfg *config.Config, signer *security.CollaboratorTokenSigner) *collaborator.DrafterClient {
	if cfg.Drafter.Endpoint == "" {
		return nil
	}
	return collaborator.NewDrafterClient(cfg.Drafter.Endpoint, cfg.Drafter.APIKey, cfg.Drafter.RequestTimeout, signer)
}

func newTranscribeCollaborator(cfg *config.Config, signer *security.CollaboratorTokenSigner) *collaborator.TranscriberClient {
	if cfg.Transcriber.Endpoint == "" {
		return nil
	}
	return collaborator.NewTranscriberClient(cfg.Transcriber.Endpoint, cfg.Transcriber.APIKey, cfg.Transcriber.RequestTimeout, signer)
}

// asDrafterCollaborator converts a possibly-nil *DrafterClient to
// drafter.Collaborator without the typed-nil-interface trap.
func asDrafterCollaborator(c *collaborator.DrafterClient) drafter.Collaborator {
	if c == nil {
		return nil
	}
	return c
}

// asTranscribeCollaborator converts a possibly-nil *TranscriberClient to
// transcribe.Collaborator without the typed-nil-interface trap.
func asTranscribeCollaborator(c *collaborator.TranscriberClient) transcribe.Collaborator {
	if c == nil {
		return nil
	}
	return c
}
