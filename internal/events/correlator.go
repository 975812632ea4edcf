// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package events implements the Event Correlator (C6): stores platform
// events by their derived event-time and finds events within a window of a
// clip, assigning a confidence tier by temporal proximity.
package events

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/models"
)

// DefaultWindow is the default correlation half-window around a clip's
// created_at instant.
const DefaultWindow = 2 * time.Hour

const (
	highConfidenceMinutes   = 30
	mediumConfidenceMinutes = 60
)

// ArtifactStore is the subset of the artifact store this package needs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error
	List(ctx context.Context, prefix, cursor string, limit int) (items []ListedKey, truncated bool, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// ListedKey is the minimal shape List needs to return.
type ListedKey struct {
	Key string
}

// Correlator stores and queries repository events.
type Correlator struct {
	store  ArtifactStore
	window time.Duration
}

// NewCorrelator builds a Correlator using the default ±2h window.
func NewCorrelator(store ArtifactStore) *Correlator {
	return &Correlator{store: store, window: DefaultWindow}
}

// StoreEvent normalizes the event's delivery time to UTC per its type's
// per-type extraction rule and persists it under events/YYYY/MM/DD/{id}.
func (c *Correlator) StoreEvent(ctx context.Context, id string, eventType models.EventType, repository, action string, payload json.RawMessage) error {
	eventTime, err := extractEventTime(eventType, payload)
	if err != nil {
		return fmt.Errorf("events: extract event time: %w", err)
	}

	event := models.RepoEvent{
		ID:         id,
		EventType:  eventType,
		Repository: repository,
		EventTime:  eventTime.UTC(),
		Action:     action,
		Payload:    payload,
		Processed:  false,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}

	return c.store.Put(ctx, event.Key(), body, "application/json", map[string]string{
		"event-type": string(eventType),
		"repository": repository,
	})
}

// FindEventsForClip enumerates the day buckets overlapping
// [clip.created_at-W, clip.created_at+W], filters by repo if supplied, and
// classifies each contributing event into prs/commits/issues with a
// confidence tier.
func (c *Correlator) FindEventsForClip(ctx context.Context, clip models.Clip, repo string) (*models.GitHubContext, error) {
	center := clip.CreatedAt.UTC()
	windowStart := center.Add(-c.window)
	windowEnd := center.Add(c.window)

	ctxResult := &models.GitHubContext{ClipID: clip.ClipID}

	for _, day := range dayBucketsBetween(windowStart, windowEnd) {
		prefix := fmt.Sprintf("events/%04d/%02d/%02d/", day.Year(), int(day.Month()), day.Day())
		var cursor string
		for {
			items, truncated, err := c.store.List(ctx, prefix, cursor, 100)
			if err != nil {
				return nil, fmt.Errorf("events: list %s: %w", prefix, err)
			}
			for _, item := range items {
				body, err := c.store.Get(ctx, item.Key)
				if err != nil {
					continue
				}
				var event models.RepoEvent
				if err := json.Unmarshal(body, &event); err != nil {
					continue
				}
				if repo != "" && event.Repository != repo {
					continue
				}
				if event.EventTime.Before(windowStart) || event.EventTime.After(windowEnd) {
					continue
				}
				contributeEvent(ctxResult, event, center)
			}
			if !truncated || len(items) == 0 {
				break
			}
			cursor = items[len(items)-1].Key
		}
	}

	if ctxResult.HasLinks() {
		ctxResult.ConfidenceScore = 0.8
	}
	return ctxResult, nil
}

func dayBucketsBetween(start, end time.Time) []time.Time {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func confidenceFor(center, eventTime time.Time) models.Confidence {
	delta := math.Abs(eventTime.Sub(center).Minutes())
	switch {
	case delta <= highConfidenceMinutes:
		return models.ConfidenceHigh
	case delta <= mediumConfidenceMinutes:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// payloadFields is the minimal shape needed to classify and extract links
// from an event's raw webhook payload.
type payloadFields struct {
	Action         string `json:"action"`
	Ref            string `json:"ref"`
	Repository     struct {
		DefaultBranch string `json:"default_branch"`
	} `json:"repository"`
	PullRequest struct {
		Title    string    `json:"title"`
		HTMLURL  string    `json:"html_url"`
		Merged   bool      `json:"merged"`
		MergedAt time.Time `json:"merged_at"`
	} `json:"pull_request"`
	Issue struct {
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		State   string `json:"state"`
	} `json:"issue"`
	HeadCommit struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		URL     string `json:"url"`
	} `json:"head_commit"`
}

func contributeEvent(ctxResult *models.GitHubContext, event models.RepoEvent, center time.Time) {
	var fields payloadFields
	if err := json.Unmarshal(event.Payload, &fields); err != nil {
		return
	}

	confidence := confidenceFor(center, event.EventTime)
	link := models.GitHubLink{
		Timestamp:   event.EventTime,
		Confidence:  confidence,
		MatchReason: "temporal_proximity",
	}

	switch event.EventType {
	case models.EventPush:
		defaultBranch := fields.Repository.DefaultBranch
		if defaultBranch == "" {
			defaultBranch = "main"
		}
		if fields.Ref != "refs/heads/"+defaultBranch {
			return
		}
		link.Title = fields.HeadCommit.Message
		link.URL = fields.HeadCommit.URL
		ctxResult.LinkedCommits = append(ctxResult.LinkedCommits, link)

	case models.EventPullRequest, models.EventPullRequestReview:
		if !fields.PullRequest.Merged || strings.ToLower(fields.Action) != "closed" {
			return
		}
		link.Title = fields.PullRequest.Title
		link.URL = fields.PullRequest.HTMLURL
		ctxResult.LinkedPRs = append(ctxResult.LinkedPRs, link)

	case models.EventIssues, models.EventIssueComment:
		if strings.ToLower(fields.Issue.State) != "closed" {
			return
		}
		link.Title = fields.Issue.Title
		link.URL = fields.Issue.HTMLURL
		ctxResult.LinkedIssues = append(ctxResult.LinkedIssues, link)
	}
}

func extractEventTime(eventType models.EventType, payload json.RawMessage) (time.Time, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return time.Time{}, err
	}

	switch eventType {
	case models.EventPullRequest, models.EventPullRequestReview:
		var pr struct {
			MergedAt  *time.Time `json:"merged_at"`
			ClosedAt  *time.Time `json:"closed_at"`
			UpdatedAt *time.Time `json:"updated_at"`
			CreatedAt *time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(raw["pull_request"], &pr); err == nil {
			if t := firstNonNil(pr.MergedAt, pr.ClosedAt, pr.UpdatedAt, pr.CreatedAt); t != nil {
				return *t, nil
			}
		}
	case models.EventPush:
		var commit struct {
			Timestamp *time.Time `json:"timestamp"`
		}
		if err := json.Unmarshal(raw["head_commit"], &commit); err == nil && commit.Timestamp != nil {
			return *commit.Timestamp, nil
		}
	case models.EventIssues, models.EventIssueComment:
		var issue struct {
			ClosedAt  *time.Time `json:"closed_at"`
			UpdatedAt *time.Time `json:"updated_at"`
			CreatedAt *time.Time `json:"created_at"`
		}
		if err := json.Unmarshal(raw["issue"], &issue); err == nil {
			if t := firstNonNil(issue.ClosedAt, issue.UpdatedAt, issue.CreatedAt); t != nil {
				return *t, nil
			}
		}
	}

	return time.Time{}, fmt.Errorf("events: no usable timestamp for event type %s", eventType)
}

func firstNonNil(times ...*time.Time) *time.Time {
	for _, t := range times {
		if t != nil && !t.IsZero() {
			return t
		}
	}
	return nil
}
