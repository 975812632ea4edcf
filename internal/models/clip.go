// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models holds the domain types shared across the pipeline:
// clips, content items, transcripts, repository events, GitHub context,
// manifests, and jobs.
package models

import (
	"regexp"
	"time"
)

// ClipIDPattern is the lexicon every clip_id must satisfy.
var ClipIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

// ValidClipID reports whether id matches the clip-id lexicon and contains
// none of the path-traversal characters forbidden when composing store keys.
func ValidClipID(id string) bool {
	if !ClipIDPattern.MatchString(id) {
		return false
	}
	for _, r := range id {
		switch r {
		case '/', '\\', '.', 0:
			return false
		}
	}
	return true
}

// Clip is an immutable record of a broadcast clip. Created when ingested,
// never mutated afterward.
type Clip struct {
	ClipID          string    `json:"clip_id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	EmbedURL        string    `json:"embed_url"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	DurationSeconds int       `json:"duration_seconds"`
	ViewCount       int       `json:"view_count"`
	CreatedAt       time.Time `json:"created_at"`
	Broadcaster     string    `json:"broadcaster"`
	Creator         string    `json:"creator"`
}

// Validate checks the structural invariants on a Clip.
func (c Clip) Validate() error {
	if !ValidClipID(c.ClipID) {
		return ErrInvalidClipID
	}
	if c.DurationSeconds < 0 || c.DurationSeconds > 3600 {
		return ErrInvalidDuration
	}
	if c.ViewCount < 0 {
		return ErrInvalidViewCount
	}
	if c.CreatedAt.IsZero() {
		return ErrMissingCreatedAt
	}
	return nil
}
