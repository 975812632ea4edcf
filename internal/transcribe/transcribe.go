// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transcribe implements the Transcription Orchestrator (C5): fetch
// the clip's audio artifact, validate it, hand it to the transcription
// collaborator, redact the result, validate it, and persist the sibling
// transcript artifacts.
package transcribe

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/redact"
)

// Failure modes surfaced to the caller as recoverable-failure indicators.
var (
	ErrAudioMissing    = errors.New("transcribe: audio-missing")
	ErrAudioTooLarge   = errors.New("transcribe: audio-too-large")
	ErrInvalidWAV      = errors.New("transcribe: invalid-wav")
	ErrTranscriptEmpty = errors.New("transcribe: empty-transcript")
	ErrModelFailed     = errors.New("transcribe: transcription-failed")
)

const maxAudioBytes = 25 * 1024 * 1024 // 25 MiB
const base64ChunkBytes = 32 * 1024     // 32 KiB, bounded memory while encoding

var denylist = []string{
	"no speech detected", "silence", "no audio", "error", "failed", "null", "undefined",
}

// ArtifactStore is the subset of the artifact store this orchestrator needs.
type ArtifactStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (body []byte, err error)
	Put(ctx context.Context, key string, body []byte, contentType string, custom map[string]string) error
}

// Request is what the transcription collaborator is asked to do.
type Request struct {
	AudioBase64 string
}

// Response is the collaborator's successful transcription result.
type Response struct {
	Model    string
	Language string
	Segments []models.TranscriptSegment
}

// Collaborator is the out-of-scope transcription model, called over HTTP or
// an equivalent RPC transport by its concrete implementation.
type Collaborator interface {
	Transcribe(ctx context.Context, req Request) (*Response, error)
}

// Result is what TranscribeClip returns on success.
type Result struct {
	URL       string
	Summary   string
	SizeBytes int
}

// Orchestrator drives C5's transcription pipeline for one clip at a time.
type Orchestrator struct {
	store          ArtifactStore
	collaborator   Collaborator
	circuitBreaker *gobreaker.CircuitBreaker[*Response]
}

// New builds an Orchestrator. cb may be nil to call the collaborator
// directly without circuit-breaker protection.
func New(store ArtifactStore, collaborator Collaborator, cb *gobreaker.CircuitBreaker[*Response]) *Orchestrator {
	return &Orchestrator{store: store, collaborator: collaborator, circuitBreaker: cb}
}

// NewCircuitBreaker builds the breaker used to wrap collaborator calls,
// tripping after a run of consecutive failures.
func NewCircuitBreaker(name string, failureThreshold uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[*Response] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, int(from), int(to))
		},
	}
	return gobreaker.NewCircuitBreaker[*Response](settings)
}

// TranscribeClip runs the full C5 pipeline for clipID.
func (o *Orchestrator) TranscribeClip(ctx context.Context, clipID string) (*Result, error) {
	jsonKey := transcriptKey(clipID, "json")

	if exists, err := o.store.Exists(ctx, jsonKey); err != nil {
		return nil, fmt.Errorf("transcribe: check existing: %w", err)
	} else if exists {
		body, err := o.store.Get(ctx, jsonKey)
		if err != nil {
			return nil, fmt.Errorf("transcribe: fetch existing: %w", err)
		}
		return &Result{URL: jsonKey, Summary: summarize(string(body)), SizeBytes: len(body)}, nil
	}

	audio, err := o.store.Get(ctx, "audio/"+clipID+".wav")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAudioMissing, clipID, err)
	}
	if len(audio) > maxAudioBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrAudioTooLarge, len(audio))
	}
	if len(audio) < 4 || string(audio[:4]) != "RIFF" {
		return nil, ErrInvalidWAV
	}

	encoded := encodeBase64Chunked(audio)

	start := time.Now()
	var resp *Response
	if o.circuitBreaker != nil {
		resp, err = o.circuitBreaker.Execute(func() (*Response, error) {
			return o.collaborator.Transcribe(ctx, Request{AudioBase64: encoded})
		})
	} else {
		resp, err = o.collaborator.Transcribe(ctx, Request{AudioBase64: encoded})
	}
	metrics.RecordTranscription(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelFailed, err)
	}

	segments := make([]models.TranscriptSegment, len(resp.Segments))
	var fullText strings.Builder
	for i, seg := range resp.Segments {
		seg.Text = redact.Text(seg.Text)
		segments[i] = seg
		if i > 0 {
			fullText.WriteByte(' ')
		}
		fullText.WriteString(seg.Text)
	}
	text := redact.Text(fullText.String())

	if err := validateTranscript(text, segments); err != nil {
		return nil, err
	}

	transcript := models.Transcript{
		ClipID:    clipID,
		CreatedAt: time.Now().UTC(),
		Model:     resp.Model,
		Language:  resp.Language,
		Segments:  segments,
		Text:      text,
		Redacted:  true,
	}

	size, err := o.persist(ctx, transcript)
	if err != nil {
		return nil, err
	}

	return &Result{URL: jsonKey, Summary: summarize(text), SizeBytes: size}, nil
}

func (o *Orchestrator) persist(ctx context.Context, t models.Transcript) (int, error) {
	jsonBody, err := marshalTranscript(t)
	if err != nil {
		return 0, fmt.Errorf("transcribe: marshal json artifact: %w", err)
	}
	if err := o.store.Put(ctx, transcriptKey(t.ClipID, "json"), jsonBody, "application/json", map[string]string{"clip-id": t.ClipID}); err != nil {
		return 0, fmt.Errorf("transcribe: persist json: %w", err)
	}
	if err := o.store.Put(ctx, transcriptKey(t.ClipID, "txt"), []byte(t.Text), "text/plain", nil); err != nil {
		return 0, fmt.Errorf("transcribe: persist txt: %w", err)
	}
	if len(t.Segments) > 0 {
		vtt := renderVTT(t.Segments)
		if err := o.store.Put(ctx, transcriptKey(t.ClipID, "vtt"), []byte(vtt), "text/vtt", nil); err != nil {
			return 0, fmt.Errorf("transcribe: persist vtt: %w", err)
		}
	}
	if err := o.store.Put(ctx, transcriptKey(t.ClipID, "ok"), []byte("ok"), "text/plain", nil); err != nil {
		return 0, fmt.Errorf("transcribe: persist ok marker: %w", err)
	}
	return len(jsonBody), nil
}

func marshalTranscript(t models.Transcript) ([]byte, error) {
	return json.Marshal(t)
}

func transcriptKey(clipID, ext string) string {
	return fmt.Sprintf("transcripts/%s.%s", clipID, ext)
}

func encodeBase64Chunked(data []byte) string {
	var b strings.Builder
	b.Grow(base64.StdEncoding.EncodedLen(len(data)))
	enc := base64.NewEncoder(base64.StdEncoding, &b)
	for i := 0; i < len(data); i += base64ChunkBytes {
		end := i + base64ChunkBytes
		if end > len(data) {
			end = len(data)
		}
		_, _ = enc.Write(data[i:end])
	}
	_ = enc.Close()
	return b.String()
}

func validateTranscript(text string, segments []models.TranscriptSegment) error {
	if len(strings.TrimSpace(text)) < 10 {
		return ErrTranscriptEmpty
	}
	hasNonEmptySegment := len(segments) == 0
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) != "" {
			hasNonEmptySegment = true
			break
		}
	}
	if !hasNonEmptySegment {
		return ErrTranscriptEmpty
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range denylist {
		if lower == phrase {
			return ErrTranscriptEmpty
		}
	}

	if alphanumericRatio(text) < 0.3 {
		return ErrTranscriptEmpty
	}
	return nil
}

func alphanumericRatio(s string) float64 {
	if s == "" {
		return 0
	}
	var alnum int
	var total int
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			continue
		}
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}

// summarize returns the first 200 chars of text with an ellipsis if
// truncated. For empty text it returns the fixed string "0 segments"; it is
// not given the transcript's segment count or language.
func summarize(text string) string {
	const maxLen = 200
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return "0 segments"
	}
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen]) + "…"
}

// renderVTT formats segments as WebVTT cue text with HH:MM:SS.mmm
// timestamps. Non-finite or negative inputs are treated as 0; milliseconds
// are truncated (not rounded) and clamped to 999 to avoid carry errors.
func renderVTT(segments []models.TranscriptSegment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, seg := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", formatVTTTime(seg.StartS), formatVTTTime(seg.EndS), seg.Text)
	}
	return b.String()
}

func formatVTTTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds * 1000) // truncation, not rounding
	hours := totalMillis / 3600000
	minutes := (totalMillis % 3600000) / 60000
	secs := (totalMillis % 60000) / 1000
	millis := totalMillis % 1000
	if millis > 999 {
		millis = 999
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
