package unified

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
	"github.com/antigravity-dev/ragforge/internal/services/jsonreader"
	"github.com/antigravity-dev/ragforge/internal/services/mapper"
	"github.com/antigravity-dev/ragforge/internal/services/matching"
	"github.com/antigravity-dev/ragforge/internal/storage/blob/localfs"
)

const jiraFixture = `[{"key":"JIRA-100","fields":{"summary":"Outage in payments","issuetype":"Bug","status":"Open"}}]`
const wikiFixture = `[{"id":"42","title":"Postmortem","body":{"storage":{"value":"Root cause traced back to JIRA-100 deployment."}}}]`

// malformedFixture is not valid JSON by any of the reader's repair passes
// (missing comma between sibling keys); ReadItems runs best-effort in this
// pipeline, so it degrades to zero parsed items rather than a hard error.
const malformedFixture = `not even the start of a json document`

func newTestPipeline(t *testing.T) (*Pipeline, interfaces.BlobStore) {
	t.Helper()
	store, err := localfs.New(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)

	reader := jsonreader.New(nil, arbor.NewLogger())
	detector := mapper.NewDetector()
	fieldMapper := mapper.New()
	matcher := matching.New()

	p := New(store, reader, detector, fieldMapper, nil, nil, matcher, mapper.BuiltinMapping, arbor.NewLogger())
	return p, store
}

func putSource(t *testing.T, store interfaces.BlobStore, key, content string) {
	t.Helper()
	_, err := store.Put(context.Background(), key, bytes.NewReader([]byte(content)), "application/json")
	require.NoError(t, err)
}

func TestRun_CrossSourceMatching(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	putSource(t, store, "job_1/input/jira.json", jiraFixture)
	putSource(t, store, "job_1/input/wiki.json", wikiFixture)

	inputs := []interfaces.UnifiedPipelineInput{
		{SourceKind: "jira", BlobKeys: []string{"job_1/input/jira.json"}},
		{SourceKind: "wiki", BlobKeys: []string{"job_1/input/wiki.json"}},
	}

	var events []models.ProgressEvent
	result, err := p.Run(ctx, "job_1", inputs, interfaces.UnifiedPipelineOptions{}, func(ev models.ProgressEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	require.Len(t, result.NormalizedKeys["jira"], 1)
	require.Len(t, result.NormalizedKeys["wiki"], 1)
	require.NotEmpty(t, result.MatchesKey)
	assert.NotEmpty(t, result.ReportKey)
	assert.NotEmpty(t, result.MarkdownReportKey)
	assert.NotEmpty(t, result.HTMLReportKey)

	matchesRaw, _, err := store.Get(ctx, result.MatchesKey)
	require.NoError(t, err)
	var matches []models.Match
	require.NoError(t, json.Unmarshal(matchesRaw, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "JIRA-100", matches[0].SourceID)

	htmlRaw, contentType, err := store.Get(ctx, result.HTMLReportKey)
	require.NoError(t, err)
	assert.Equal(t, "text/html", contentType)
	assert.Contains(t, string(htmlRaw), "<h1>")

	var sawMatchPhase bool
	for _, ev := range events {
		if ev.Phase == "match" {
			sawMatchPhase = true
		}
	}
	assert.True(t, sawMatchPhase)
}

func TestRun_MalformedJSONSourceDoesNotAbortJob(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	putSource(t, store, "job_2/input/jira.json", jiraFixture)
	putSource(t, store, "job_2/input/broken.json", malformedFixture)

	inputs := []interfaces.UnifiedPipelineInput{
		{SourceKind: "jira", BlobKeys: []string{"job_2/input/jira.json"}},
		{SourceKind: "broken", BlobKeys: []string{"job_2/input/broken.json"}},
	}

	result, err := p.Run(ctx, "job_2", inputs, interfaces.UnifiedPipelineOptions{}, nil)
	require.NoError(t, err)

	assert.Len(t, result.NormalizedKeys["jira"], 1)
	assert.NotContains(t, result.NormalizedKeys, "broken", "a source with no parseable items is dropped, not recorded as a parse failure, since ReadItems runs best-effort here")
}

func TestRun_MissingBlobIsRecordedAsParseFailure(t *testing.T) {
	p, _ := newTestPipeline(t)

	inputs := []interfaces.UnifiedPipelineInput{
		{SourceKind: "jira", BlobKeys: []string{"job_3/input/does-not-exist.json"}},
	}

	result, err := p.Run(context.Background(), "job_3", inputs, interfaces.UnifiedPipelineOptions{}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.ParseFailed, "job_3/input/does-not-exist.json")
	assert.Empty(t, result.NormalizedKeys)
}

func TestRun_SingleSourceProducesNoMatches(t *testing.T) {
	p, store := newTestPipeline(t)
	ctx := context.Background()

	putSource(t, store, "job_4/input/jira.json", jiraFixture)

	inputs := []interfaces.UnifiedPipelineInput{
		{SourceKind: "jira", BlobKeys: []string{"job_4/input/jira.json"}},
	}

	result, err := p.Run(ctx, "job_4", inputs, interfaces.UnifiedPipelineOptions{}, nil)
	require.NoError(t, err)
	assert.Empty(t, result.MatchesKey)
	assert.Len(t, result.NormalizedKeys["jira"], 1)
}
