// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType enumerates the repository event kinds the correlator understands.
// pull_request and push are the primary correlation targets; the rest are
// the common GitHub webhook event types worth recognizing.
type EventType string

const (
	EventPullRequest       EventType = "pull_request"
	EventPush              EventType = "push"
	EventIssues            EventType = "issues"
	EventIssueComment      EventType = "issue_comment"
	EventPullRequestReview EventType = "pull_request_review"
)

// RepoEvent is a single delivered platform event, stored by its derived
// event time.
type RepoEvent struct {
	ID         string          `json:"id"`
	EventType  EventType       `json:"event_type"`
	Repository string          `json:"repository"`
	EventTime  time.Time       `json:"event_time"`
	Action     string          `json:"action,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Processed  bool            `json:"processed"`
}

// Key returns the artifact-store key "events/YYYY/MM/DD/{id}", with the date
// derived from EventTime.
func (e RepoEvent) Key() string {
	t := e.EventTime.UTC()
	return fmt.Sprintf("events/%04d/%02d/%02d/%s", t.Year(), int(t.Month()), t.Day(), e.ID)
}

// Confidence is the correlation-tier assigned to a matched event.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// GitHubLink is one correlated event entry within a GitHubContext.
type GitHubLink struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Timestamp   time.Time  `json:"timestamp"`
	Confidence  Confidence `json:"confidence"`
	MatchReason string     `json:"match_reason"`
}

// GitHubContext is the per-clip correlation record.
type GitHubContext struct {
	ClipID          string       `json:"clip_id"`
	LinkedPRs       []GitHubLink `json:"linked_prs"`
	LinkedCommits   []GitHubLink `json:"linked_commits"`
	LinkedIssues    []GitHubLink `json:"linked_issues"`
	ConfidenceScore float64      `json:"confidence_score"`
}

// Key returns the artifact-store key for the GitHubContext of clipID.
func GitHubContextKey(clipID string) string {
	return fmt.Sprintf("github-context/%s", clipID)
}

// HasLinks reports whether any correlation was found.
func (g GitHubContext) HasLinks() bool {
	return len(g.LinkedPRs) > 0 || len(g.LinkedCommits) > 0 || len(g.LinkedIssues) > 0
}
