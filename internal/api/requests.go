// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Request structs carrying go-playground/validator/v10 tags, validated
// before a handler touches the artifact store, job store, or any
// collaborator. Unknown JSON fields are not rejected: handlers decode with
// the default decoder, which ignores them. String fields are stored as
// received; none is passed through internal/redact.
package api

// ClipRequest is a single clip accepted by POST /api/twitch/clips.
type ClipRequest struct {
	ClipID          string `json:"clip_id" validate:"required,max=50"`
	Title           string `json:"title" validate:"required,max=300"`
	URL             string `json:"url" validate:"required,url,max=2048"`
	EmbedURL        string `json:"embed_url" validate:"omitempty,url,max=2048"`
	ThumbnailURL    string `json:"thumbnail_url" validate:"omitempty,url,max=2048"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0,max=3600"`
	ViewCount       int    `json:"view_count" validate:"min=0"`
	CreatedAt       string `json:"created_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Broadcaster     string `json:"broadcaster" validate:"required,max=100"`
	Creator         string `json:"creator" validate:"omitempty,max=100"`
}

// StoreClipsRequest is the body of POST /api/twitch/clips: a batch of at
// most 100 clips, duplicate clip_id rejected before any store call.
type StoreClipsRequest struct {
	Clips []ClipRequest `json:"clips" validate:"required,min=1,max=100,dive"`
}

// UpdateClipRequest is the body of PUT /api/twitch/clips: only the
// whitelisted fields may be set; everything else is immutable.
type UpdateClipRequest struct {
	ClipID    string  `json:"clip_id" validate:"required,max=50"`
	Title     *string `json:"title,omitempty" validate:"omitempty,max=300"`
	ViewCount *int    `json:"view_count,omitempty" validate:"omitempty,min=0"`
}

// ListStoredClipsRequest is the query parameters for
// GET /api/twitch/clips/stored.
type ListStoredClipsRequest struct {
	ID     string `validate:"omitempty,max=50"`
	Cursor string `validate:"omitempty,max=512"`
	Limit  int    `validate:"omitempty,min=1,max=100"`
}

// TranscribeClipRequest is the body of POST /api/transcribe/clip.
type TranscribeClipRequest struct {
	ClipID string `json:"clip_id" validate:"required,max=50"`
}

// TranscribeBatchRequest is the body of POST /api/transcribe/batch: at
// most 50 clips per call.
type TranscribeBatchRequest struct {
	ClipIDs []string `json:"clip_ids" validate:"required,min=1,max=50,dive,max=50"`
}

// DeduplicationCheckRequest is the body of POST /api/deduplication/check.
type DeduplicationCheckRequest struct {
	ClipID   string `json:"clip_id" validate:"required,max=50"`
	FileHash string `json:"file_hash" validate:"required,len=64,hexadecimal"`
}

// GenerateContentRequest is the body of POST /api/content/generate.
type GenerateContentRequest struct {
	Day    string `json:"day" validate:"required,datetime=2006-01-02"`
	PostID string `json:"post_id" validate:"required,max=100"`
	Async  bool   `json:"async"`
}

// JobRequest is the payload persisted in models.Job.RequestData so an
// asynchronously dequeued job can be replayed without its original HTTP
// request: the day/post_id pair ProcessJob needs.
type JobRequest struct {
	Day    string `json:"day"`
	PostID string `json:"post_id"`
}

// ListJobsRequest is the query parameters for GET /api/jobs.
type ListJobsRequest struct {
	Cursor string `validate:"omitempty,max=512"`
	Order  string `validate:"omitempty,oneof=asc desc"`
	Status string `validate:"omitempty,oneof=queued processing completed failed"`
	Limit  int    `validate:"omitempty,min=1,max=100"`
}

// GitHubWebhookHeaders are the headers GitHub attaches to every delivery;
// validated before the payload is parsed.
type GitHubWebhookHeaders struct {
	Event      string `validate:"required"`
	DeliveryID string `validate:"required"`
	Signature  string `validate:"required"`
}
