// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package selector implements the Selector/Ranker (C8): a normalized
// multi-component scorer plus a greedy, diversity-capped admission policy
// over a day's candidate ContentItems.
package selector

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dailyrecap/pipeline/internal/metrics"
	"github.com/dailyrecap/pipeline/internal/models"
)

// Weights configures the five scoring components. Normalized (sum=1±ε) or
// renormalized by Normalize.
type Weights struct {
	ContentScore       float64
	GitHubConfidence   float64
	Duration           float64
	Views              float64
	TranscriptLength   float64
}

const epsilon = 0.01

// DefaultWeights mirror an even-ish split favoring content_score and
// github_confidence, the two strongest relevance signals.
var DefaultWeights = Weights{
	ContentScore:     0.35,
	GitHubConfidence: 0.25,
	Duration:         0.15,
	Views:            0.15,
	TranscriptLength: 0.10,
}

// Normalize validates that w sums to 1±epsilon, renormalizing it otherwise.
func (w Weights) Normalize() Weights {
	sum := w.ContentScore + w.GitHubConfidence + w.Duration + w.Views + w.TranscriptLength
	if sum == 0 {
		return DefaultWeights
	}
	if sum >= 1-epsilon && sum <= 1+epsilon {
		return w
	}
	return Weights{
		ContentScore:     w.ContentScore / sum,
		GitHubConfidence: w.GitHubConfidence / sum,
		Duration:         w.Duration / sum,
		Views:            w.Views / sum,
		TranscriptLength: w.TranscriptLength / sum,
	}
}

// Policy bounds the diversity-capped greedy admission.
type Policy struct {
	Weights        Weights
	MaxDuration    float64
	MaxViews       float64
	MaxWords       float64
	PerHourCap     int
	ClipBudgetMin  int
	ClipBudgetMax  int
}

// DefaultPolicy holds the default scoring weights and clip budget.
var DefaultPolicy = Policy{
	Weights:       DefaultWeights,
	MaxDuration:   600,
	MaxViews:      10000,
	MaxWords:      1000,
	PerHourCap:    2,
	ClipBudgetMin: 6,
	ClipBudgetMax: 12,
}

// Candidate is one item eligible for scoring: a ContentItem plus its
// extracted entities.
type Candidate struct {
	Item     models.ContentItem
	Entities []string
}

// Scored is a Candidate plus its final integer score (0..100).
type Scored struct {
	Candidate
	Score int
}

// Select filters, scores, and admits candidates for the day, applying the
// diversity caps in order (per-hour, then entity-novelty), stopping at
// ClipBudgetMax.
func Select(candidates []models.ContentItem, policy Policy) []Scored {
	weights := policy.Weights.Normalize()

	var eligible []Candidate
	for _, item := range candidates {
		if !passesFilter(item) {
			continue
		}
		eligible = append(eligible, Candidate{Item: item, Entities: ExtractEntities(item)})
	}

	scored := make([]Scored, len(eligible))
	for i, c := range eligible {
		scored[i] = Scored{Candidate: c, Score: score(c.Item, weights, policy)}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	admitted := admit(scored, policy)
	metrics.RecordSelectorRun(len(eligible), len(admitted), len(admitted) >= policy.ClipBudgetMax)
	return admitted
}

func passesFilter(item models.ContentItem) bool {
	hasTranscript := len(item.TranscriptSummary) >= 20 || item.TranscriptURL != ""
	return hasTranscript && item.ClipDuration >= 10
}

func score(item models.ContentItem, w Weights, p Policy) int {
	contentScore := 0.0
	if item.ContentScore != nil {
		contentScore = clamp01(*item.ContentScore)
	}
	githubConfidence := 0.0
	if item.GitHubContextURL != "" {
		githubConfidence = 1
	}
	duration := minRatio(float64(item.ClipDuration), p.MaxDuration)
	views := minRatio(float64(item.ClipViewCount), p.MaxViews)

	approxWords := float64(item.TranscriptSizeBytes) / 6
	if item.TranscriptSizeBytes == 0 {
		approxWords = float64(wordCount(item.TranscriptSummary))
	}
	transcriptLength := minRatio(approxWords, p.MaxWords)

	total := w.ContentScore*contentScore +
		w.GitHubConfidence*githubConfidence +
		w.Duration*duration +
		w.Views*views +
		w.TranscriptLength*transcriptLength

	return int(round(100 * total))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minRatio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	r := v / max
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

func round(v float64) float64 {
	if v < 0 {
		return float64(int(v - 0.5))
	}
	return float64(int(v + 0.5))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// admit runs the greedy, diversity-capped selection algorithm: sort is
// already applied by the caller; here we enforce per-UTC-hour caps and,
// once the minimum budget is met, an entity-novelty requirement.
func admit(scored []Scored, p Policy) []Scored {
	var result []Scored
	hourCounts := map[int]int{}
	seenEntities := map[string]struct{}{}

	for _, s := range scored {
		if len(result) >= p.ClipBudgetMax {
			break
		}

		hour := s.Item.ClipCreatedAt.UTC().Hour()
		if hourCounts[hour] >= p.PerHourCap {
			continue
		}

		if len(result) >= p.ClipBudgetMin && !introducesNewEntity(s.Entities, seenEntities) {
			continue
		}

		result = append(result, s)
		hourCounts[hour]++
		for _, e := range s.Entities {
			seenEntities[e] = struct{}{}
		}
	}

	return result
}

func introducesNewEntity(entities []string, seen map[string]struct{}) bool {
	for _, e := range entities {
		if _, ok := seen[e]; !ok {
			return true
		}
	}
	return false
}

var (
	nonWordPattern  = regexp.MustCompile(`[^\w]+`)
	allDigitsPattern = regexp.MustCompile(`^\d+$`)
	repeatedCharPattern = regexp.MustCompile(`^(.)\1*$`)
)

// stoplist is the fixed English + technical stoplist used to drop common
// words before entity-frequency counting.
var stoplist = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "at": {}, "by": {}, "from": {}, "this": {}, "that": {}, "it": {},
	"we": {}, "i": {}, "you": {}, "he": {}, "she": {}, "they": {}, "so": {}, "just": {},
	"like": {}, "got": {}, "get": {}, "going": {}, "gonna": {}, "okay": {}, "now": {},
	"code": {}, "function": {}, "file": {}, "line": {}, "thing": {}, "stuff": {},
}

// ExtractEntities tokenizes an item's title and transcript summary:
// lowercase, split on non-word runs, drop stoplist/numeric/
// repeated-character/too-short/too-long tokens, count frequencies, take the
// top 5 from the title and top 20 from the transcript, prepend fixed
// context tags, dedupe preserving order, cap at 10.
func ExtractEntities(item models.ContentItem) []string {
	var tags []string
	if item.GitHubContextURL != "" {
		tags = append(tags, "github-context")
	}

	titleTokens := topTokens(item.ClipTitle, 5)
	transcriptTokens := topTokens(item.TranscriptSummary, 20)

	entities := append(tags, titleTokens...)
	entities = append(entities, transcriptTokens...)

	seen := map[string]struct{}{}
	var deduped []string
	for _, e := range entities {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		deduped = append(deduped, e)
		if len(deduped) == 10 {
			break
		}
	}
	return deduped
}

func topTokens(text string, n int) []string {
	tokens := tokenize(text)
	freq := map[string]int{}
	var order []string
	for _, tok := range tokens {
		if _, ok := freq[tok]; !ok {
			order = append(order, tok)
		}
		freq[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

func tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := nonWordPattern.Split(lower, -1)
	var tokens []string
	for _, tok := range raw {
		if tok == "" {
			continue
		}
		if len(tok) < 3 || len(tok) > 20 {
			continue
		}
		if _, ok := stoplist[tok]; ok {
			continue
		}
		if allDigitsPattern.MatchString(tok) {
			continue
		}
		if repeatedCharPattern.MatchString(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}
