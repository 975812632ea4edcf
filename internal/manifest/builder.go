// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package manifest implements the Manifest Builder (C9): it turns a day's
// selected ContentItems into the structured editorial contract that the
// Drafter and Renderer consume downstream.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dailyrecap/pipeline/internal/models"
	"github.com/dailyrecap/pipeline/internal/selector"
)

// ContentItemLister is the subset of the content-item manager the builder
// needs: a date-range, status-filtered query.
type ContentItemLister interface {
	ListReady(ctx context.Context, from, to time.Time) ([]models.ContentItem, error)
}

// Builder assembles a day's Manifest.
type Builder struct {
	lister   ContentItemLister
	policy   selector.Policy
	timezone *time.Location
}

// New builds a Builder for the given local timezone (editorial "day" runs
// midnight-to-midnight in this zone).
func New(lister ContentItemLister, policy selector.Policy, tz *time.Location) *Builder {
	if tz == nil {
		tz = time.UTC
	}
	return &Builder{lister: lister, policy: policy, timezone: tz}
}

var fillerPattern = regexp.MustCompile(`(?i)^(um+|uh+|okay|so|like|alright|well)[,.\s]+`)

// Build computes the editorial day window for `day` (interpreted in the
// builder's timezone), selects and scores that day's ready ContentItems,
// and assembles the resulting Manifest. It does not persist the manifest;
// callers own storage via artifactstore.
func (b *Builder) Build(ctx context.Context, day time.Time, postID string) (*models.Manifest, error) {
	localDay := day.In(b.timezone)
	startLocal := time.Date(localDay.Year(), localDay.Month(), localDay.Day(), 0, 0, 0, 0, b.timezone)
	endLocal := startLocal.Add(24 * time.Hour)

	items, err := b.lister.ListReady(ctx, startLocal.UTC(), endLocal.UTC())
	if err != nil {
		return nil, fmt.Errorf("manifest: list ready items: %w", err)
	}

	scored := selector.Select(items, b.policy)
	if len(scored) == 0 {
		return nil, ErrNoEligibleContent
	}

	noon := time.Date(localDay.Year(), localDay.Month(), localDay.Day(), 12, 0, 0, 0, b.timezone)

	m := &models.Manifest{
		SchemaVersion: models.CurrentManifestSchemaVersion,
		PostID:        postID,
		PostKind:      models.PostDailyRecap,
		DateUTC:       noon.UTC(),
		TZ:            b.timezone.String(),
		TargetBranch:  "staging",
		Status:        models.ManifestDraft,
	}

	repoSet := map[string]struct{}{}
	clipIDs := make([]string, 0, len(scored))

	for i, s := range scored {
		section := buildSection(i, s)
		m.Sections = append(m.Sections, section)
		clipIDs = append(clipIDs, s.Item.ClipID)
		if section.Repo != "" {
			repoSet[section.Repo] = struct{}{}
		}
	}

	m.ClipIDs = clipIDs
	m.Repos = sortedKeys(repoSet)
	m.Title = buildTitle(localDay)
	m.HeadlineShort = buildHeadline(m.Sections)
	m.Summary = buildSummary(m.Sections)
	m.MDPath = fmt.Sprintf("content/recaps/%04d/%02d/%s.md", localDay.Year(), int(localDay.Month()), postID)

	return m, nil
}

// ErrNoEligibleContent is returned when a day has no candidates surviving
// selection.
var ErrNoEligibleContent = fmt.Errorf("manifest: no eligible content for day")

func buildSection(index int, s selector.Scored) models.ManifestSection {
	item := s.Item
	alignment := models.AlignmentMissing
	if item.TranscriptURL != "" {
		alignment = models.AlignmentExact
	} else if item.TranscriptSummary != "" {
		alignment = models.AlignmentEstimated
	}

	section := models.ManifestSection{
		SectionID:       fmt.Sprintf("section-%d", index+1),
		ClipID:          item.ClipID,
		Title:           normalizeTitle(item.ClipTitle),
		Bullets:         buildBullets(item),
		Paragraph:       buildParagraph(item),
		Score:           s.Score,
		ClipURL:         item.ClipURL,
		AlignmentStatus: alignment,
		Start:           0,
		End:             float64(item.ClipDuration),
		Entities:        s.Entities,
	}

	if item.GitHubContextURL != "" {
		section.Repo = repoFromGitHubSummary(item.GitHubSummary)
		section.PRLinks = extractPRLinks(item.GitHubSummary)
	}

	return section
}

// normalizeTitle strips a leading filler/interjection, title-cases the
// remainder, and clamps to 80 characters.
func normalizeTitle(title string) string {
	trimmed := strings.TrimSpace(title)
	stripped := trimmed
	for {
		next := fillerPattern.ReplaceAllString(stripped, "")
		if next == stripped {
			break
		}
		stripped = next
	}
	if stripped == "" {
		stripped = trimmed
	}
	cased := titleCase(stripped)
	return clamp(cased, 80)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes[0]) + strings.ToLower(string(runes[1:]))
	}
	return strings.Join(words, " ")
}

func clamp(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}

// buildBullets derives up to 4 bullets from transcript sentences of at
// least 10 characters, each clamped to 140 characters, plus a trailing
// GitHub-activity bullet when available and fewer than 4 exist. When fewer
// than 2 result, the clip title is added once, so a section can still end
// up with a single bullet (or none, when the title is empty too).
func buildBullets(item models.ContentItem) []string {
	sentences := splitSentences(item.TranscriptSummary)
	var bullets []string
	for _, s := range sentences {
		if len(bullets) >= 4 {
			break
		}
		if len(s) < 10 {
			continue
		}
		bullets = append(bullets, clamp(s, 140))
	}

	if item.GitHubSummary != "" && len(bullets) < 4 {
		bullets = append(bullets, clamp("GitHub activity: "+item.GitHubSummary, 140))
	}

	for len(bullets) < 2 && item.ClipTitle != "" {
		bullets = append(bullets, clamp(item.ClipTitle, 140))
		break
	}

	return bullets
}

// buildParagraph joins the first two meaningful sentences plus a closing
// GitHub-reference clause when a correlated repo context exists.
func buildParagraph(item models.ContentItem) string {
	sentences := splitSentences(item.TranscriptSummary)
	var meaningful []string
	for _, s := range sentences {
		if len(s) < 10 {
			continue
		}
		meaningful = append(meaningful, s)
		if len(meaningful) == 2 {
			break
		}
	}

	paragraph := strings.Join(meaningful, " ")
	if paragraph == "" {
		paragraph = item.ClipTitle
	}

	if item.GitHubSummary != "" {
		paragraph = strings.TrimSpace(paragraph) + " This ties into recent GitHub activity: " + item.GitHubSummary + "."
	}

	return paragraph
}

func splitSentences(text string) []string {
	raw := regexp.MustCompile(`[.!?]+\s*`).Split(text, -1)
	var sentences []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

var prLinkPattern = regexp.MustCompile(`https?://\S+/pull/\d+`)

func extractPRLinks(summary string) []string {
	return prLinkPattern.FindAllString(summary, -1)
}

func repoFromGitHubSummary(summary string) string {
	repoPattern := regexp.MustCompile(`\b[\w.-]+/[\w.-]+\b`)
	if m := repoPattern.FindString(summary); m != "" {
		return m
	}
	return ""
}

func buildTitle(day time.Time) string {
	return fmt.Sprintf("Daily Recap: %s", day.Format("January 2, 2006"))
}

func buildHeadline(sections []models.ManifestSection) string {
	if len(sections) == 0 {
		return ""
	}
	return clamp(sections[0].Title, 100)
}

func buildSummary(sections []models.ManifestSection) string {
	var titles []string
	for i, s := range sections {
		if i >= 3 {
			break
		}
		titles = append(titles, s.Title)
	}
	return clamp(strings.Join(titles, "; "), 200)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ContentHash computes a stable SHA-256 over a Manifest's title and each
// section's id, title, paragraph and bullets. The Drafter's idempotency
// check does not call it; it uses drafter.ContentHash.
func ContentHash(m models.Manifest) string {
	h := sha256.New()
	h.Write([]byte(m.Title))
	for _, s := range m.Sections {
		h.Write([]byte(s.SectionID))
		h.Write([]byte(s.Title))
		h.Write([]byte(s.Paragraph))
		for _, b := range s.Bullets {
			h.Write([]byte(b))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
