// Package matching implements the cross-source matching engine (C9): an
// inverted-index candidate generator plus weighted scoring, avoiding the
// quadratic |A|*|B| scan the spec rules out for large corpora.
package matching

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
)

const (
	weightIDMention    = 0.6
	weightURLXref      = 0.2
	weightTitleJaccard = 0.15
	weightEntityCoocc  = 0.05
	titleJaccardMin    = 0.4
	defaultMinScore    = 0.5
)

// Engine implements interfaces.MatchingEngine with plain Go maps as the
// inverted index (id-token buckets, URL shingles, title-token shingles). No
// example repo carries a ready-made inverted-index library, so this
// component is built directly on the standard library, documented in
// DESIGN.md.
type Engine struct{}

var _ interfaces.MatchingEngine = (*Engine)(nil)

// New creates a matching Engine.
func New() *Engine {
	return &Engine{}
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

// idTokenPattern extracts id-shaped runs (alphanumeric with internal dots,
// hyphens, underscores — e.g. "JIRA-99", "abc-123") from free text, so
// candidatesFor can look candidate ids up in idx.idToItems by exact token
// match instead of scanning every known id against every item's content.
var idTokenPattern = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9._-]*`)

func idTokens(text string) []string {
	return idTokenPattern.FindAllString(text, -1)
}

// Match scores every candidate pair sharing at least one inverted-index
// bucket between a and b, emits Matches at or above minScore (defaulting to
// 0.5 when minScore is zero, per spec section 4.9), and writes the
// resulting Relationships back onto both endpoints.
func (e *Engine) Match(a, b []*models.NormalizedItem, minScore float64) ([]models.Match, error) {
	if minScore <= 0 {
		minScore = defaultMinScore
	}
	if len(a) == 0 || len(b) == 0 {
		return nil, nil
	}

	idx := buildIndex(b)

	var matches []models.Match
	for _, itemA := range a {
		candidates := idx.candidatesFor(itemA)
		for _, itemB := range candidates {
			score, evidence := scorePair(itemA, itemB)
			if score < minScore {
				continue
			}
			matches = append(matches, models.Match{
				SourceKind: "a",
				SourceID:   itemA.ID,
				TargetKind: "b",
				TargetID:   itemB.ID,
				Score:      score,
				Evidence:   evidence,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].SourceID != matches[j].SourceID {
			return matches[i].SourceID < matches[j].SourceID
		}
		return matches[i].TargetID < matches[j].TargetID
	})

	writeRelationships(a, b, matches)

	return matches, nil
}

// invertedIndex maps candidate-generating tokens (ids, url shingles, title
// shingles) to the set B items that contain them.
type invertedIndex struct {
	idToItems    map[string][]*models.NormalizedItem
	urlToItems   map[string][]*models.NormalizedItem
	titleToItems map[string][]*models.NormalizedItem
}

func buildIndex(b []*models.NormalizedItem) *invertedIndex {
	idx := &invertedIndex{
		idToItems:    make(map[string][]*models.NormalizedItem),
		urlToItems:   make(map[string][]*models.NormalizedItem),
		titleToItems: make(map[string][]*models.NormalizedItem),
	}

	for _, item := range b {
		for _, token := range idBucketTokens(item) {
			idx.idToItems[token] = append(idx.idToItems[token], item)
		}

		text := flattenContent(item)
		for _, url := range urlPattern.FindAllString(text, -1) {
			idx.urlToItems[url] = append(idx.urlToItems[url], item)
		}

		for _, token := range titleTokens(item.Title) {
			idx.titleToItems[token] = append(idx.titleToItems[token], item)
		}
	}

	return idx
}

// idBucketTokens returns the set of tokens that should make item
// discoverable through the id-mention bucket: its own id (so some other
// item's content mentioning it is matched) plus every id-shaped token in
// its own content (so it is matched when it mentions some other item's
// id). Indexing both directions under the same map lets a single lookup
// per token catch an id mention made by either side.
func idBucketTokens(item *models.NormalizedItem) []string {
	seen := map[string]struct{}{item.ID: {}}
	for _, token := range idTokens(flattenContent(item)) {
		seen[token] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for token := range seen {
		out = append(out, token)
	}
	return out
}

// candidatesFor returns the de-duplicated set of B items sharing any bucket
// with a (an id-mention in either direction, a URL to a B item, or a shared
// title token). Each bucket is an O(1) map lookup per token extracted from
// a, not a scan over every bucket in the index — with |A| items each
// contributing a bounded number of tokens, this stays sub-quadratic in
// |A|*|B| as required.
func (idx *invertedIndex) candidatesFor(a *models.NormalizedItem) []*models.NormalizedItem {
	seen := make(map[string]*models.NormalizedItem)

	textA := flattenContent(a)
	for _, token := range idBucketTokens(a) {
		for _, it := range idx.idToItems[token] {
			seen[it.ID] = it
		}
	}
	for _, url := range urlPattern.FindAllString(textA, -1) {
		for _, it := range idx.urlToItems[url] {
			seen[it.ID] = it
		}
	}
	for _, token := range titleTokens(a.Title) {
		for _, it := range idx.titleToItems[token] {
			seen[it.ID] = it
		}
	}

	out := make([]*models.NormalizedItem, 0, len(seen))
	for _, it := range seen {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func scorePair(a, b *models.NormalizedItem) (float64, []string) {
	var score float64
	var evidence []string

	textA := flattenContent(a)
	textB := flattenContent(b)

	if strings.Contains(textB, a.ID) || strings.Contains(textA, b.ID) {
		score += weightIDMention
		evidence = append(evidence, fmt.Sprintf("id-mention:%s<->%s", a.ID, b.ID))
	}

	if sharesURLXref(textA, textB, a.ID, b.ID) {
		score += weightURLXref
		evidence = append(evidence, "url-cross-reference")
	}

	if jaccard := titleJaccard(a.Title, b.Title); jaccard > titleJaccardMin {
		score += weightTitleJaccard
		evidence = append(evidence, fmt.Sprintf("title-jaccard:%.2f", jaccard))
	}

	if coOccurringEntities(a, b) {
		score += weightEntityCoocc
		evidence = append(evidence, "co-occurring-entities")
	}

	return score, evidence
}

func flattenContent(item *models.NormalizedItem) string {
	var b strings.Builder
	b.WriteString(item.Title)
	b.WriteString(" ")
	for _, v := range item.Content {
		b.WriteString(v)
		b.WriteString(" ")
	}
	return b.String()
}

func sharesURLXref(textA, textB, idA, idB string) bool {
	for _, url := range urlPattern.FindAllString(textA, -1) {
		if strings.Contains(url, idB) {
			return true
		}
	}
	for _, url := range urlPattern.FindAllString(textB, -1) {
		if strings.Contains(url, idA) {
			return true
		}
	}
	return false
}

func titleTokens(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,:;!?()[]{}\"'")
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func titleJaccard(a, b string) float64 {
	setA := toSet(titleTokens(a))
	setB := toSet(titleTokens(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func coOccurringEntities(a, b *models.NormalizedItem) bool {
	if a.Analysis == nil || b.Analysis == nil {
		return false
	}
	entsA := allEntities(a.Analysis.Entities)
	entsB := toSet(allEntities(b.Analysis.Entities))
	for _, e := range entsA {
		if entsB[e] {
			return true
		}
	}
	return false
}

func allEntities(e models.Entities) []string {
	out := make([]string, 0, len(e.People)+len(e.Organizations)+len(e.Technical))
	out = append(out, e.People...)
	out = append(out, e.Organizations...)
	out = append(out, e.Technical...)
	return out
}

func writeRelationships(a, b []*models.NormalizedItem, matches []models.Match) {
	aByID := make(map[string]*models.NormalizedItem, len(a))
	for _, item := range a {
		aByID[item.ID] = item
	}
	bByID := make(map[string]*models.NormalizedItem, len(b))
	for _, item := range b {
		bByID[item.ID] = item
	}

	for _, m := range matches {
		reason := strings.Join(m.Evidence, ",")

		if src, ok := aByID[m.SourceID]; ok {
			if src.Relationships == nil {
				src.Relationships = &models.Relationships{}
			}
			src.Relationships.Outbound = append(src.Relationships.Outbound, models.RelatedItem{
				TargetID: m.TargetID,
				Score:    m.Score,
				Reason:   reason,
			})
		}

		if dst, ok := bByID[m.TargetID]; ok {
			if dst.Relationships == nil {
				dst.Relationships = &models.Relationships{}
			}
			dst.Relationships.Inbound = append(dst.Relationships.Inbound, models.RelatedItem{
				TargetID: m.SourceID,
				Score:    m.Score,
				Reason:   reason,
			})
		}
	}
}
