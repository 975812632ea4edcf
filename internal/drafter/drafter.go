// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package drafter implements the Drafter (C10): deterministic prompt
// construction, a collaborator model call, JSON parsing with a
// deterministic fallback, and hash-based idempotency.
package drafter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/models"
)

// Params are the model-call parameters used both in the prompt hash and the
// collaborator request.
type Params struct {
	Model       string
	Temperature float64
	TopP        float64
	Seed        int64
	MaxTokens   int
}

// DefaultParams holds the near-deterministic sampling defaults.
var DefaultParams = Params{
	Temperature: 0.3,
	TopP:        0.9,
	Seed:        42,
	MaxTokens:   2000,
}

// Request is sent to the drafting collaborator.
type Request struct {
	Prompt string
	Params Params
}

// Collaborator is the out-of-process drafting model.
type Collaborator interface {
	Draft(ctx context.Context, req Request) (string, error)
}

// FallbackDrafter is an empty type with no methods. The deterministic,
// collaborator-free draft is built by fallbackDraft, which GenerateDraft
// uses when the model is absent, fails, or returns a malformed response.
type FallbackDrafter struct{}

// Drafter orchestrates manifest drafting.
type Drafter struct {
	collaborator Collaborator
	params       Params
}

// New builds a Drafter. If collaborator is nil, every call falls back to
// deterministic generation.
func New(collaborator Collaborator, params Params) *Drafter {
	if params.Model == "" {
		params.Model = "default"
	}
	return &Drafter{collaborator: collaborator, params: params}
}

// Result is generateDraft's return value.
type Result struct {
	Draft       models.Draft
	Gen         models.GenerationInfo
	ContentHash string
	PromptHash  string
	Reused      bool
}

// GenerateDraft produces a draft for the manifest. If the manifest already
// carries matching prompt_hash and content_hash, the existing draft is
// returned unchanged (no collaborator call, generated_at preserved).
// Otherwise a prompt is built, the collaborator invoked, its response
// parsed (JSON from a fenced block, else first balanced braces), and on any
// failure or schema mismatch a deterministic fallback is generated instead.
func (d *Drafter) GenerateDraft(ctx context.Context, m models.Manifest, generatedAt time.Time) (*Result, error) {
	contentHash := ContentHash(m)
	prompt := buildPrompt(m)
	promptHash := PromptHash(prompt, d.params)

	if m.Gen != nil && m.Gen.PromptHash == promptHash && m.Gen.ContentHash == contentHash && m.Draft != nil {
		return &Result{
			Draft:       *m.Draft,
			Gen:         *m.Gen,
			ContentHash: contentHash,
			PromptHash:  promptHash,
			Reused:      true,
		}, nil
	}

	draft := d.draftFrom(ctx, prompt, m)

	gen := models.GenerationInfo{
		Model:       d.params.Model,
		Temperature: d.params.Temperature,
		TopP:        d.params.TopP,
		Seed:        d.params.Seed,
		MaxTokens:   d.params.MaxTokens,
		PromptHash:  promptHash,
		ContentHash: contentHash,
		GeneratedAt: generatedAt,
	}

	return &Result{Draft: draft, Gen: gen, ContentHash: contentHash, PromptHash: promptHash}, nil
}

func (d *Drafter) draftFrom(ctx context.Context, prompt string, m models.Manifest) models.Draft {
	if d.collaborator != nil {
		start := time.Now()
		raw, err := d.collaborator.Draft(ctx, Request{Prompt: prompt, Params: d.params})
		if err == nil {
			if draft, ok := parseDraftResponse(raw, len(m.Sections)); ok {
				metrics.RecordDraftGeneration(time.Since(start), estimateTokens(raw), nil, "")
				return sanitizeDraft(draft)
			}
			metrics.RecordDraftGeneration(time.Since(start), estimateTokens(raw), errMalformedResponse, "malformed_response")
		} else {
			metrics.RecordDraftGeneration(time.Since(start), 0, err, "collaborator_error")
		}
	}
	return sanitizeDraft(fallbackDraft(m))
}

var errMalformedResponse = fmt.Errorf("drafter: malformed collaborator response")

// estimateTokens approximates token count at 4 characters per token, the
// common rule of thumb absent a collaborator-reported usage figure.
func estimateTokens(raw string) int {
	return len(raw) / 4
}

// ContentHash computes SHA-256 over the deterministic projection:
// post_id, title, summary, category, tags, and per-section
// {title, bullets, repo, pr_links, entities}.
func ContentHash(m models.Manifest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", m.PostID, m.Title, m.Summary, m.Category)
	for _, tag := range m.Tags {
		fmt.Fprintf(h, "%s\x00", tag)
	}
	for _, s := range m.Sections {
		fmt.Fprintf(h, "%s\x00%s\x00", s.Title, s.Repo)
		for _, b := range s.Bullets {
			fmt.Fprintf(h, "%s\x00", b)
		}
		for _, pr := range s.PRLinks {
			fmt.Fprintf(h, "%s\x00", pr)
		}
		for _, e := range s.Entities {
			fmt.Fprintf(h, "%s\x00", e)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PromptHash computes SHA-256 over {prompt, model, temperature, top_p,
// seed, max_tokens}.
func PromptHash(prompt string, p Params) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d\x00%d",
		prompt, p.Model,
		strconv.FormatFloat(p.Temperature, 'f', -1, 64),
		strconv.FormatFloat(p.TopP, 'f', -1, 64),
		p.Seed, p.MaxTokens)
	return hex.EncodeToString(h.Sum(nil))
}

func buildPrompt(m models.Manifest) string {
	var b strings.Builder
	b.WriteString("You are drafting the prose for a daily development recap post.\n")
	fmt.Fprintf(&b, "Title: %s\nSummary: %s\nCategory: %s\n", m.Title, m.Summary, m.Category)
	b.WriteString("Sections:\n")
	for i, s := range m.Sections {
		fmt.Fprintf(&b, "%d. %s (repo=%s)\n", i+1, s.Title, s.Repo)
		for _, bullet := range s.Bullets {
			fmt.Fprintf(&b, "   - %s\n", bullet)
		}
		if len(s.PRLinks) > 0 {
			fmt.Fprintf(&b, "   PRs: %s\n", strings.Join(s.PRLinks, ", "))
		}
		if len(s.Entities) > 0 {
			fmt.Fprintf(&b, "   Entities: %s\n", strings.Join(s.Entities, ", "))
		}
	}
	fmt.Fprintf(&b, "Respond with a JSON object {intro, sections:[{paragraph}...], outro} containing exactly %d section paragraphs, in order.\n", len(m.Sections))
	return b.String()
}

var fencedBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseDraftResponse extracts a JSON object from raw (a fenced code block
// first, else the first balanced-brace substring), validates it has
// exactly wantSections paragraphs, and returns the parsed Draft.
func parseDraftResponse(raw string, wantSections int) (models.Draft, bool) {
	candidate := raw
	if m := fencedBlockPattern.FindStringSubmatch(raw); m != nil {
		candidate = m[1]
	} else if b, ok := firstBalancedBraces(raw); ok {
		candidate = b
	}

	var parsed struct {
		Intro    string `json:"intro"`
		Sections []struct {
			Paragraph string `json:"paragraph"`
		} `json:"sections"`
		Outro string `json:"outro"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return models.Draft{}, false
	}
	if len(parsed.Sections) != wantSections {
		return models.Draft{}, false
	}

	draft := models.Draft{Intro: parsed.Intro, Outro: parsed.Outro}
	for _, s := range parsed.Sections {
		draft.Sections = append(draft.Sections, models.DraftSection{Paragraph: s.Paragraph})
	}
	return draft, true
}

func firstBalancedBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// fallbackDraft builds deterministic prose directly from the manifest's
// section titles and bullets, used when the collaborator is absent, fails,
// or returns a malformed response.
func fallbackDraft(m models.Manifest) models.Draft {
	draft := models.Draft{
		Intro: fmt.Sprintf("Here is a recap of %d updates from today's stream.", len(m.Sections)),
		Outro: "That wraps up today's recap.",
	}
	for _, s := range m.Sections {
		paragraph := s.Title
		if len(s.Bullets) > 0 {
			paragraph = s.Title + ": " + strings.Join(s.Bullets, " ")
		}
		draft.Sections = append(draft.Sections, models.DraftSection{Paragraph: paragraph})
	}
	return draft
}

var fancyPunctuation = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", "\"", "”", "\"",
	"–", "-", "—", "-",
	"…", "...",
)

var allowedPunctuation = map[rune]struct{}{
	'.': {}, ',': {}, '!': {}, '?': {}, ':': {}, ';': {}, '-': {}, '\'': {}, '"': {},
	'(': {}, ')': {}, ' ': {}, '\n': {}, '/': {}, '_': {},
}

// sanitizeString normalizes fancy punctuation to ASCII, collapses
// whitespace, allows Unicode letters/digits plus a fixed punctuation set,
// and clamps to 500 characters.
func sanitizeString(s string) string {
	s = fancyPunctuation.Replace(s)
	s = strings.Join(strings.Fields(s), " ")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if _, ok := allowedPunctuation[r]; ok {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if runes := []rune(out); len(runes) > 500 {
		out = string(runes[:500])
	}
	return out
}

func sanitizeDraft(d models.Draft) models.Draft {
	d.Intro = sanitizeString(d.Intro)
	d.Outro = sanitizeString(d.Outro)
	for i := range d.Sections {
		d.Sections[i].Paragraph = sanitizeString(d.Sections[i].Paragraph)
	}
	return d
}
