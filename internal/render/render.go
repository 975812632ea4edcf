// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render implements the Renderer (C11): YAML front-matter plus
// Markdown body construction from a Manifest and its Draft.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dailyrecap/pipeline/internal/models"
)

// TrustedEmbedHosts lists hosts permitted in rendered clip-embed blocks.
// Any clip URL whose host is not in this set is rendered as a plain link
// instead of an embed.
var TrustedEmbedHosts = map[string]struct{}{
	"clips.twitch.tv": {},
	"www.twitch.tv":   {},
	"twitch.tv":        {},
}

// FrontMatter is the YAML document preceding the rendered Markdown body.
type FrontMatter struct {
	Title          string   `yaml:"title"`
	Date           string   `yaml:"date"`
	Description    string   `yaml:"description"`
	Category       string   `yaml:"category"`
	Tags           []string `yaml:"tags"`
	Image          string   `yaml:"image,omitempty"`
	Canonical      string   `yaml:"canonical,omitempty"`
	Layout         string   `yaml:"layout"`
	Published      bool     `yaml:"published"`
	Keywords       []string `yaml:"keywords,omitempty"`
	Repos          []string `yaml:"repos,omitempty"`
	SocialTitle    string   `yaml:"social_title,omitempty"`
	SocialImage    string   `yaml:"social_image,omitempty"`
	JudgeScore     *int     `yaml:"judge_score,omitempty"`
	AIGenerated    bool     `yaml:"ai_generated,omitempty"`
	AIModel        string   `yaml:"ai_model,omitempty"`
	AIGeneratedAt  string   `yaml:"ai_generated_at,omitempty"`
	AIPromptHash   string   `yaml:"ai_prompt_hash,omitempty"`
	AIContentHash  string   `yaml:"ai_content_hash,omitempty"`
}

// Result is a fully rendered post: the front-matter, the Markdown body, and
// their concatenation as the file that would be written to MDPath.
type Result struct {
	FrontMatter FrontMatter
	Body        string
	File        string
}

// Render builds the front-matter and Markdown body for m, using m.Draft when
// the post is AI-authored (m.Draft may be nil for a deterministic-only render).
func Render(m models.Manifest, layout string) (*Result, error) {
	body := renderBody(m)

	fm := FrontMatter{
		Title:       clampLen(m.Title, 80),
		Date:        m.DateUTC.UTC().Format(time.RFC3339),
		Description: clampLen(m.Summary, 160),
		Category:    m.Category,
		Tags:        m.Tags,
		Canonical:   m.CanonicalVOD,
		Layout:      layout,
		Published:   false,
		Repos:       m.Repos,
	}
	if layout == "" {
		fm.Layout = "post"
	}

	if m.Gen != nil && m.Draft != nil {
		fm.AIGenerated = true
		fm.AIModel = m.Gen.Model
		fm.AIGeneratedAt = m.Gen.GeneratedAt.UTC().Format(time.RFC3339)
		fm.AIPromptHash = m.Gen.PromptHash
		fm.AIContentHash = ContentHash(body)
	}

	if m.Judge != nil {
		if score, ok := m.Judge["score"].(int); ok {
			fm.JudgeScore = &score
		}
	}

	yamlBytes, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("render: marshal front matter: %w", err)
	}

	var file strings.Builder
	file.WriteString("---\n")
	file.Write(yamlBytes)
	file.WriteString("---\n\n")
	file.WriteString(body)

	return &Result{FrontMatter: fm, Body: body, File: file.String()}, nil
}

// ContentHash is the SHA-256 of the rendered Markdown body, stamped as
// ai_content_hash when the post is AI-authored.
func ContentHash(body string) string {
	h := sha256.Sum256([]byte(body))
	return hex.EncodeToString(h[:])
}

func renderBody(m models.Manifest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", m.Title)

	intro := introParagraph(m)
	b.WriteString(intro)
	b.WriteString("\n\n")

	githubContextCount := 0
	for _, s := range m.Sections {
		if s.Repo != "" || len(s.PRLinks) > 0 {
			githubContextCount++
		}
	}
	fmt.Fprintf(&b, "This recap covers %d clips, %d with correlated GitHub activity.\n\n", len(m.Sections), githubContextCount)

	if len(m.Sections) > 3 {
		b.WriteString("## Table of Contents\n\n")
		for i, s := range m.Sections {
			fmt.Fprintf(&b, "%d. [%s](#section-%d)\n", i+1, s.Title, i+1)
		}
		b.WriteString("\n")
	}

	for i, s := range m.Sections {
		renderSection(&b, i, s, m.Draft)
	}

	b.WriteString("---\n\n")
	b.WriteString(outroParagraph(m))
	b.WriteString("\n")

	return b.String()
}

func introParagraph(m models.Manifest) string {
	if m.Draft != nil && m.Draft.Intro != "" {
		return m.Draft.Intro
	}
	return fmt.Sprintf("Today's stream covered %d topics worth highlighting.", len(m.Sections))
}

func outroParagraph(m models.Manifest) string {
	if m.Draft != nil && m.Draft.Outro != "" {
		return m.Draft.Outro
	}
	return "That's everything for today — see you in the next stream."
}

func renderSection(b *strings.Builder, index int, s models.ManifestSection, draft *models.Draft) {
	fmt.Fprintf(b, "## %d. %s {#section-%d}\n\n", index+1, s.Title, index+1)

	if embed := clipEmbedBlock(s.ClipURL, s.ClipID); embed != "" {
		b.WriteString(embed)
		b.WriteString("\n\n")
	}

	if len(s.Bullets) > 0 {
		b.WriteString("**Key Points**\n\n")
		for _, bullet := range s.Bullets {
			fmt.Fprintf(b, "- %s\n", bullet)
		}
		b.WriteString("\n")
	}

	paragraph := s.Paragraph
	if draft != nil && index < len(draft.Sections) && draft.Sections[index].Paragraph != "" {
		paragraph = draft.Sections[index].Paragraph
	}
	if paragraph != "" {
		b.WriteString(paragraph)
		b.WriteString("\n\n")
	}

	if s.Repo != "" || len(s.PRLinks) > 0 {
		b.WriteString("**Related GitHub Activity**\n\n")
		if s.Repo != "" {
			fmt.Fprintf(b, "- Repository: `%s`\n", s.Repo)
		}
		for _, pr := range s.PRLinks {
			fmt.Fprintf(b, "- %s\n", pr)
		}
		b.WriteString("\n")
	}
}

// clipEmbedBlock renders a trusted-host embed iframe, or a plain Markdown
// link when the clip's host is not in TrustedEmbedHosts. It returns an empty
// string when the clip ID is invalid or the clip URL does not parse.
func clipEmbedBlock(clipURL, clipID string) string {
	if !models.ValidClipID(clipID) {
		return ""
	}
	parsed, err := url.Parse(clipURL)
	if err != nil {
		return ""
	}
	if _, trusted := TrustedEmbedHosts[parsed.Host]; !trusted {
		return fmt.Sprintf("[Watch clip](%s)", clipURL)
	}
	embedSrc := fmt.Sprintf("https://clips.twitch.tv/embed?clip=%s&parent=dailyrecap", url.QueryEscape(clipID))
	return fmt.Sprintf(`<iframe src="%s" frameborder="0" allowfullscreen></iframe>`, embedSrc)
}

func clampLen(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max])
}
