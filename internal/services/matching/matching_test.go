package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antigravity-dev/ragforge/internal/models"
)

func item(id, title string, content map[string]string) *models.NormalizedItem {
	return &models.NormalizedItem{ID: id, Title: title, Content: content}
}

func TestMatch_EmptyInputsProduceNoMatches(t *testing.T) {
	e := New()

	tests := []struct {
		name string
		a, b []*models.NormalizedItem
	}{
		{"both empty", nil, nil},
		{"a empty", nil, []*models.NormalizedItem{item("b1", "Something", nil)}},
		{"b empty", []*models.NormalizedItem{item("a1", "Something", nil)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := e.Match(tt.a, tt.b, 0.5)
			require.NoError(t, err)
			assert.Empty(t, matches)
		})
	}
}

func TestMatch_IDMentionScoresAboveDefaultThreshold(t *testing.T) {
	e := New()

	a := []*models.NormalizedItem{item("JIRA-100", "Outage in payments service", nil)}
	b := []*models.NormalizedItem{item("wiki-42", "Postmortem", map[string]string{
		"body": "Root cause traced back to JIRA-100 deployment.",
	})}

	matches, err := e.Match(a, b, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "JIRA-100", matches[0].SourceID)
	assert.Equal(t, "wiki-42", matches[0].TargetID)
	assert.GreaterOrEqual(t, matches[0].Score, weightIDMention)
	assert.Contains(t, matches[0].Evidence, "id-mention:JIRA-100<->wiki-42")
}

func TestMatch_BelowMinScoreIsDropped(t *testing.T) {
	e := New()

	a := []*models.NormalizedItem{item("a1", "Completely unrelated title", nil)}
	b := []*models.NormalizedItem{item("b1", "Totally different subject", nil)}

	matches, err := e.Match(a, b, 0.5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatch_WritesRelationshipsBothWays(t *testing.T) {
	e := New()

	a := []*models.NormalizedItem{item("JIRA-7", "Login failure", nil)}
	b := []*models.NormalizedItem{item("wiki-1", "Incident report", map[string]string{
		"body": "See JIRA-7 for the original ticket.",
	})}

	_, err := e.Match(a, b, 0)
	require.NoError(t, err)

	require.NotNil(t, a[0].Relationships)
	require.Len(t, a[0].Relationships.Outbound, 1)
	assert.Equal(t, "wiki-1", a[0].Relationships.Outbound[0].TargetID)

	require.NotNil(t, b[0].Relationships)
	require.Len(t, b[0].Relationships.Inbound, 1)
	assert.Equal(t, "JIRA-7", b[0].Relationships.Inbound[0].TargetID)
}

func TestTitleJaccard(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical titles", "Payments outage report", "Payments outage report", 1.0},
		{"disjoint titles", "Alpha beta gamma", "Delta epsilon zeta", 0.0},
		{"empty title", "", "Something", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, titleJaccard(tt.a, tt.b), 0.01)
		})
	}
}

func TestCandidatesFor_IDBucketMatchesBothDirections(t *testing.T) {
	b := []*models.NormalizedItem{
		item("wiki-1", "Postmortem", map[string]string{"body": "Root cause: JIRA-100 deployment."}),
		item("wiki-2", "Unrelated page", nil),
	}
	idx := buildIndex(b)

	// B mentions A's id.
	aMentioned := item("JIRA-100", "Outage in payments service", nil)
	candidates := idx.candidatesFor(aMentioned)
	require.Len(t, candidates, 1)
	assert.Equal(t, "wiki-1", candidates[0].ID)

	// A mentions B's id.
	aMentions := item("ticket-9", "See wiki-1 for context", nil)
	candidates = idx.candidatesFor(aMentions)
	require.Len(t, candidates, 1)
	assert.Equal(t, "wiki-1", candidates[0].ID)
}

func TestCandidatesFor_OnlySharesBuckets(t *testing.T) {
	b := []*models.NormalizedItem{
		item("b1", "Database migration plan", nil),
		item("b2", "Unrelated office policy", nil),
	}
	idx := buildIndex(b)

	a := item("a1", "Database migration plan", nil)
	candidates := idx.candidatesFor(a)

	require.Len(t, candidates, 1)
	assert.Equal(t, "b1", candidates[0].ID)
}
