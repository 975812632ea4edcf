// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"fmt"
	"time"
)

// PostKind enumerates the editorial shapes a Manifest can take.
type PostKind string

const (
	PostDailyRecap      PostKind = "daily-recap"
	PostProductionRecap PostKind = "production-recap"
	PostWeeklySummary   PostKind = "weekly-summary"
	PostTopicFocus      PostKind = "topic-focus"
)

// ManifestStatus is the editorial review state of a Manifest.
type ManifestStatus string

const (
	ManifestDraft    ManifestStatus = "draft"
	ManifestApproved ManifestStatus = "approved"
)

// AlignmentStatus describes how firmly a section's timing is tied to its clip.
type AlignmentStatus string

const (
	AlignmentExact     AlignmentStatus = "exact"
	AlignmentEstimated AlignmentStatus = "estimated"
	AlignmentMissing   AlignmentStatus = "missing"
)

// GenerationInfo records the parameters and hashes used to produce a Draft,
// enabling the idempotency check in draft generation.
type GenerationInfo struct {
	Model        string    `json:"model"`
	Temperature  float64   `json:"temperature"`
	TopP         float64   `json:"top_p"`
	Seed         int64     `json:"seed"`
	MaxTokens    int       `json:"max_tokens"`
	PromptHash   string    `json:"prompt_hash"`
	ContentHash  string    `json:"content_hash"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Draft is the model-generated prose attached to a Manifest.
type Draft struct {
	Intro    string          `json:"intro"`
	Sections []DraftSection  `json:"sections"`
	Outro    string          `json:"outro"`
}

// DraftSection is one generated paragraph, aligned by index to the
// Manifest's Sections slice.
type DraftSection struct {
	Paragraph string `json:"paragraph"`
}

// ManifestSection is one selected item's editorial section.
type ManifestSection struct {
	SectionID       string          `json:"section_id"`
	ClipID          string          `json:"clip_id"`
	Title           string          `json:"title"`
	Bullets         []string        `json:"bullets"`
	Paragraph       string          `json:"paragraph"`
	Score           int             `json:"score"`
	Repo            string          `json:"repo,omitempty"`
	PRLinks         []string        `json:"pr_links,omitempty"`
	ClipURL         string          `json:"clip_url"`
	AlignmentStatus AlignmentStatus `json:"alignment_status"`
	Start           float64         `json:"start"`
	End             float64         `json:"end"`
	Entities        []string        `json:"entities"`
}

// Manifest is the day's structured editorial contract.
type Manifest struct {
	SchemaVersion int            `json:"schema_version"`
	PostID        string         `json:"post_id"`
	PostKind      PostKind       `json:"post_kind"`
	DateUTC       time.Time      `json:"date_utc"`
	TZ            string         `json:"tz"`
	Title         string         `json:"title"`
	HeadlineShort string         `json:"headline_short"`
	Summary       string         `json:"summary"`
	Category      string         `json:"category"`
	Tags          []string       `json:"tags"`
	Repos         []string       `json:"repos"`
	ClipIDs       []string       `json:"clip_ids"`
	Sections      []ManifestSection `json:"sections"`
	CanonicalVOD  string         `json:"canonical_vod,omitempty"`
	MDPath        string         `json:"md_path"`
	TargetBranch  string         `json:"target_branch"`
	Status        ManifestStatus `json:"status"`
	Judge         map[string]any `json:"judge,omitempty"`
	Draft         *Draft         `json:"draft,omitempty"`
	Gen           *GenerationInfo `json:"gen,omitempty"`
}

// CurrentManifestSchemaVersion is stamped on newly built manifests.
const CurrentManifestSchemaVersion = 1

// Key returns the artifact-store key "manifests/YYYY/MM/{post_id}".
func (m Manifest) Key() string {
	t := m.DateUTC.UTC()
	return fmt.Sprintf("manifests/%04d/%02d/%s", t.Year(), int(t.Month()), m.PostID)
}
