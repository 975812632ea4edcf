// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "errors"

// Validation errors for domain types. These map to the "validation" error
// category and are never wrapped with request internals before being
// surfaced to a caller.
var (
	ErrInvalidClipID      = errors.New("clip_id must match ^[A-Za-z0-9_-]{1,50}$ and contain no path separators")
	ErrInvalidDuration    = errors.New("duration_seconds must be between 0 and 3600")
	ErrInvalidViewCount   = errors.New("view_count must be non-negative")
	ErrMissingCreatedAt   = errors.New("created_at is required")
	ErrInvalidStatus      = errors.New("processing_status is not a recognized value")
	ErrStatusRegression   = errors.New("processing_status cannot move backward")
	ErrImmutableField     = errors.New("field is immutable and cannot be updated")
	ErrInvalidScore       = errors.New("score must be between 0 and 1")
	ErrInvalidCategory    = errors.New("content_category is not a recognized value")
	ErrTranscriptTooShort = errors.New("transcript text is empty or too short")
	ErrSegmentOrder       = errors.New("segment start_s must be less than end_s")
)
