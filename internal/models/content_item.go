// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"fmt"
	"time"
)

// ProcessingStatus is the lifecycle state of a ContentItem.
type ProcessingStatus string

const (
	StatusPending          ProcessingStatus = "pending"
	StatusAudioReady       ProcessingStatus = "audio_ready"
	StatusTranscribed      ProcessingStatus = "transcribed"
	StatusEnhanced         ProcessingStatus = "enhanced"
	StatusReadyForContent  ProcessingStatus = "ready_for_content"
	StatusFailed           ProcessingStatus = "failed"
)

// statusRank orders the non-failed lifecycle for monotonic-advance checks.
// StatusFailed is reachable from any state and is not ranked.
var statusRank = map[ProcessingStatus]int{
	StatusPending:         0,
	StatusAudioReady:      1,
	StatusTranscribed:     2,
	StatusEnhanced:        3,
	StatusReadyForContent: 4,
}

// ValidStatus reports whether s is one of the recognized processing states.
func ValidStatus(s ProcessingStatus) bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanAdvance reports whether the transition from -> to is permitted: either
// a move to StatusFailed from anywhere, or a monotonic step (or no-op) along
// the ranked lifecycle. It never permits moving backward along the ranked
// lifecycle once at `from`.
func CanAdvance(from, to ProcessingStatus) bool {
	if to == StatusFailed {
		return true
	}
	fr, ok := statusRank[from]
	if !ok {
		// from == StatusFailed: terminal, no further advance permitted.
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr >= fr
}

// ContentCategory classifies a ContentItem once enhanced.
type ContentCategory string

const (
	CategoryDevelopment ContentCategory = "development"
	CategoryGaming      ContentCategory = "gaming"
	CategoryTutorial    ContentCategory = "tutorial"
	CategoryReview      ContentCategory = "review"
	CategoryOther       ContentCategory = "other"
)

// ValidCategory reports whether c is a recognized content category.
func ValidCategory(c ContentCategory) bool {
	switch c {
	case CategoryDevelopment, CategoryGaming, CategoryTutorial, CategoryReview, CategoryOther:
		return true
	}
	return false
}

// ContentItem is the per-clip aggregate that advances through a lifecycle.
// Large sub-objects (transcript, github context) live in separate artifacts
// referenced by URL, keeping this record small.
type ContentItem struct {
	SchemaVersion int `json:"schema_version"`

	ClipID          string    `json:"clip_id"`
	ClipTitle       string    `json:"clip_title"`
	ClipURL         string    `json:"clip_url"`
	ClipEmbedURL    string    `json:"clip_embed_url,omitempty"`
	ClipDuration    int       `json:"clip_duration"`
	ClipViewCount   int       `json:"clip_view_count"`
	ClipCreatedAt   time.Time `json:"clip_created_at"`
	ClipBroadcaster string    `json:"clip_broadcaster,omitempty"`
	ClipCreator     string    `json:"clip_creator,omitempty"`

	ProcessingStatus ProcessingStatus `json:"processing_status"`

	TranscriptURL         string `json:"transcript_url,omitempty"`
	TranscriptSummary     string `json:"transcript_summary,omitempty"`
	TranscriptSizeBytes   int64  `json:"transcript_size_bytes,omitempty"`

	GitHubContextURL string `json:"github_context_url,omitempty"`
	GitHubSummary    string `json:"github_summary,omitempty"`

	ContentScore    *float64        `json:"content_score,omitempty"`
	ContentCategory ContentCategory `json:"content_category,omitempty"`

	StoredAt   time.Time  `json:"stored_at"`
	EnhancedAt *time.Time `json:"enhanced_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// CurrentSchemaVersion is stamped on newly stored ContentItems.
const CurrentSchemaVersion = 2

// ImmutableFields lists the ContentItem fields a partial update must never
// change.
var ImmutableFields = []string{
	"schema_version", "clip_id", "clip_title", "clip_url", "clip_duration", "clip_created_at",
}

// Key returns the artifact-store key for this item:
// content-items/YYYY/MM/{clip_id}, with YYYY/MM derived from ClipCreatedAt
// in UTC.
func (c ContentItem) Key() string {
	t := c.ClipCreatedAt.UTC()
	return fmt.Sprintf("content-items/%04d/%02d/%s", t.Year(), int(t.Month()), c.ClipID)
}

// Validate checks the ContentItem's structural invariants.
func (c ContentItem) Validate() error {
	if !ValidClipID(c.ClipID) {
		return ErrInvalidClipID
	}
	if c.ClipCreatedAt.IsZero() {
		return ErrMissingCreatedAt
	}
	if !ValidStatus(c.ProcessingStatus) {
		return ErrInvalidStatus
	}
	if len(c.TranscriptSummary) > 200 {
		return fmt.Errorf("transcript_summary exceeds 200 chars")
	}
	if c.ContentScore != nil && (*c.ContentScore < 0 || *c.ContentScore > 1) {
		return ErrInvalidScore
	}
	if c.ContentCategory != "" && !ValidCategory(c.ContentCategory) {
		return ErrInvalidCategory
	}
	return nil
}

// MigrateContentItem upgrades an older-schema ContentItem in place. There is
// currently exactly one schema version in circulation (2); this function
// exists so a future schema bump has somewhere to land, mirroring the
// teacher's (currently empty) post-release migration path in
// internal/database/migrations.go.
func MigrateContentItem(c *ContentItem) {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = CurrentSchemaVersion
	}
}
