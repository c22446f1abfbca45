// Package unified implements the Unified Pipeline (C10): composing the
// robust JSON reader, structure mapper, optional secret scrubber, optional
// LLM enrichment, and the matching engine into one json-unified job run.
//
// Concurrency is grounded on the teacher's internal/queue/worker.go ticker
// and context-cancellation idiom, generalized here from a polling queue
// worker to a bounded in-memory fan-out over one job's input files: a fixed
// worker pool reads from a channel of work items and every goroutine
// respects ctx cancellation at the top of its loop.
package unified

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
)

const defaultEnrichmentConcurrency = 8

// Pipeline implements interfaces.UnifiedPipeline.
type Pipeline struct {
	blobStore interfaces.BlobStore
	reader    interfaces.JSONReader
	detector  interfaces.Detector
	mapper    interfaces.Mapper
	scrubber  interfaces.SecretScrubber // optional
	gateway   interfaces.Gateway        // optional
	matcher   interfaces.MatchingEngine
	logger    arbor.ILogger
	builtin   func(interfaces.StructureTemplate) models.Mapping
}

var _ interfaces.UnifiedPipeline = (*Pipeline)(nil)

// New creates a Pipeline. scrubber and gateway may be nil to skip scrubbing
// and enrichment respectively; builtinMapping supplies the default field
// mapping for a detected structure template.
func New(
	blobStore interfaces.BlobStore,
	reader interfaces.JSONReader,
	detector interfaces.Detector,
	mapper interfaces.Mapper,
	scrubber interfaces.SecretScrubber,
	gateway interfaces.Gateway,
	matcher interfaces.MatchingEngine,
	builtinMapping func(interfaces.StructureTemplate) models.Mapping,
	logger arbor.ILogger,
) *Pipeline {
	return &Pipeline{
		blobStore: blobStore,
		reader:    reader,
		detector:  detector,
		mapper:    mapper,
		scrubber:  scrubber,
		gateway:   gateway,
		matcher:   matcher,
		builtin:   builtinMapping,
		logger:    logger,
	}
}

type sourceItems struct {
	sourceKind string
	items      []*models.NormalizedItem
}

// Run composes C3->C4->C6(optional)->C5(optional)->C9. Per-item enrichment
// failures degrade to missing Analysis; per-file parse failures mark that
// file failed without aborting the job; matching runs on whatever
// succeeded.
func (p *Pipeline) Run(ctx context.Context, jobID string, inputs []interfaces.UnifiedPipelineInput, opts interfaces.UnifiedPipelineOptions, onProgress func(models.ProgressEvent)) (*interfaces.UnifiedPipelineResult, error) {
	result := &interfaces.UnifiedPipelineResult{
		NormalizedKeys: make(map[string][]string),
	}

	emit := func(phase, step string, progress int) {
		if onProgress != nil {
			onProgress(models.ProgressEvent{
				JobID:     jobID,
				Timestamp: time.Now(),
				Phase:     phase,
				Step:      step,
				Progress:  progress,
				Status:    models.JobStatusRunning,
			})
		}
	}

	emit("parse", "reading sources", 5)

	var parsed []sourceItems
	for _, input := range inputs {
		items, failed := p.parseSource(ctx, jobID, input)
		result.ParseFailed = append(result.ParseFailed, failed...)
		if len(items) > 0 {
			parsed = append(parsed, sourceItems{sourceKind: input.SourceKind, items: items})
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	emit("enrich", "enriching normalised items", 40)

	if opts.LLMEnrichment && p.gateway != nil {
		failed := p.enrichAll(ctx, parsed)
		result.EnrichmentFailed = failed
	}

	emit("match", "cross-source matching", 70)

	var matches []models.Match
	if len(parsed) >= 2 && p.matcher != nil {
		a := parsed[0].items
		for _, group := range parsed[1:] {
			m, err := p.matcher.Match(a, group.items, opts.MinMatchScore)
			if err != nil {
				p.logger.Warn().Err(err).Msg("matching failed for source pair, continuing")
				continue
			}
			matches = append(matches, m...)
		}
	}

	emit("upload", "persisting results", 85)

	for _, group := range parsed {
		keys, err := p.persistNormalized(ctx, jobID, group)
		if err != nil {
			return nil, fmt.Errorf("storage-transient: persist normalized items for %q: %w", group.sourceKind, err)
		}
		result.NormalizedKeys[group.sourceKind] = keys
		if opts.LLMEnrichment {
			result.EnrichedKeys = append(result.EnrichedKeys, keys...)
		}
	}

	if len(matches) > 0 {
		matchesKey := fmt.Sprintf("%s/result/matches.json", jobID)
		if err := p.putJSON(ctx, matchesKey, matches); err != nil {
			return nil, fmt.Errorf("storage-transient: persist matches: %w", err)
		}
		result.MatchesKey = matchesKey
	}

	reportKey := fmt.Sprintf("%s/result/report.json", jobID)
	report := map[string]interface{}{
		"sources_processed": len(parsed),
		"parse_failed":      result.ParseFailed,
		"enrichment_failed": result.EnrichmentFailed,
		"matches_found":     len(matches),
	}
	if err := p.putJSON(ctx, reportKey, report); err != nil {
		return nil, fmt.Errorf("storage-transient: persist report: %w", err)
	}
	result.ReportKey = reportKey

	if err := p.putMarkdownReport(ctx, jobID, parsed, matches, result); err != nil {
		p.logger.Warn().Err(err).Msg("failed to render markdown report, continuing without it")
	}

	emit("success", "unified pipeline complete", 100)

	return result, nil
}

// parseSource reads every input blob for one source, returning successfully
// mapped items and the subset of blob keys whose parse failed outright.
func (p *Pipeline) parseSource(ctx context.Context, jobID string, input interfaces.UnifiedPipelineInput) ([]*models.NormalizedItem, []string) {
	var items []*models.NormalizedItem
	var failed []string

	for _, blobKey := range input.BlobKeys {
		raw, _, err := p.blobStore.Get(ctx, blobKey)
		if err != nil {
			p.logger.Warn().Err(err).Str("blob_key", blobKey).Msg("failed to read input blob")
			failed = append(failed, blobKey)
			continue
		}

		var decoded []interface{}
		readOpts := interfaces.JSONReadOptions{BestEffort: true, AllowLLMRepair: p.gateway != nil}
		_, err = p.reader.ReadItems(ctx, raw, readOpts, func(item interface{}) error {
			decoded = append(decoded, item)
			return nil
		})
		if err != nil {
			p.logger.Warn().Err(err).Str("blob_key", blobKey).Msg("json parse failed beyond repair")
			failed = append(failed, blobKey)
			continue
		}

		template := p.detector.Detect(decoded)
		mapping := p.builtin(template)

		for _, rec := range decoded {
			item, err := p.mapper.Apply(mapping, rec)
			if err != nil {
				p.logger.Debug().Err(err).Str("blob_key", blobKey).Msg("record failed mapping, skipped")
				continue
			}
			item.Metadata.SourceFile = blobKey
			item.Metadata.Type = input.SourceKind

			if p.scrubber != nil {
				item.Content = scrubContent(p.scrubber, item.Content)
			}

			items = append(items, item)
		}
	}

	return items, failed
}

func scrubContent(scrubber interfaces.SecretScrubber, content map[string]string) map[string]string {
	asMap := make(map[string]interface{}, len(content))
	for k, v := range content {
		asMap[k] = v
	}
	scrubbed, ok := scrubber.Scrub(asMap).(map[string]interface{})
	if !ok {
		return content
	}
	out := make(map[string]string, len(scrubbed))
	for k, v := range scrubbed {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// enrichAll enriches every item across every source in bounded concurrency
// (default 8 in-flight), returning the count of per-item failures.
func (p *Pipeline) enrichAll(ctx context.Context, parsed []sourceItems) int {
	var all []*models.NormalizedItem
	for _, group := range parsed {
		all = append(all, group.items...)
	}

	sem := make(chan struct{}, defaultEnrichmentConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, item := range all {
		select {
		case <-ctx.Done():
			wg.Wait()
			return failed
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(item *models.NormalizedItem) {
			defer wg.Done()
			defer func() { <-sem }()

			analysis, err := p.enrichOne(ctx, item)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				p.logger.Debug().Err(err).Str("item_id", item.ID).Msg("enrichment failed, item left unanalysed")
				return
			}
			item.Analysis = analysis
		}(item)
	}

	wg.Wait()
	return failed
}

func (p *Pipeline) enrichOne(ctx context.Context, item *models.NormalizedItem) (*models.Analysis, error) {
	schema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"summary", "keywords", "entities", "sentiment"},
		"properties": map[string]interface{}{
			"summary":   map[string]interface{}{"type": "string"},
			"keywords":  map[string]interface{}{"type": "array"},
			"entities":  map[string]interface{}{"type": "object"},
			"sentiment": map[string]interface{}{"type": "string"},
		},
	}

	var body string
	for _, v := range item.Content {
		body += v + "\n"
	}

	prompt := fmt.Sprintf("Summarize, extract keywords, named entities, and sentiment for:\nTitle: %s\n%s", item.Title, body)

	result, err := p.gateway.GenerateStructured(ctx, prompt, schema, interfaces.GenerateOptions{})
	if err != nil {
		return nil, err
	}

	return analysisFromResult(result), nil
}

func analysisFromResult(result map[string]interface{}) *models.Analysis {
	a := &models.Analysis{}
	if s, ok := result["summary"].(string); ok {
		a.Summary = s
	}
	if arr, ok := result["keywords"].([]interface{}); ok {
		for _, k := range arr {
			if s, ok := k.(string); ok {
				a.Keywords = append(a.Keywords, s)
			}
		}
	}
	if s, ok := result["sentiment"].(string); ok {
		a.Sentiment = models.Sentiment(s)
	}
	if ents, ok := result["entities"].(map[string]interface{}); ok {
		a.Entities.People = stringSlice(ents["people"])
		a.Entities.Organizations = stringSlice(ents["organizations"])
		a.Entities.Technical = stringSlice(ents["technical_terms"])
	}
	return a
}

func stringSlice(v interface{}) []string {
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *Pipeline) persistNormalized(ctx context.Context, jobID string, group sourceItems) ([]string, error) {
	keys := make([]string, 0, len(group.items))
	for i, item := range group.items {
		key := fmt.Sprintf("%s/result/normalized/%s/%d.json", jobID, group.sourceKind, i)
		if err := p.putJSON(ctx, key, item); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Pipeline) putJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = p.blobStore.Put(ctx, key, bytes.NewReader(data), "application/json")
	return err
}

// putMarkdownReport renders a human-readable run summary as markdown and,
// alongside it, the goldmark-rendered HTML equivalent. This mirrors the
// teacher's markdown-to-HTML conversion idiom for job output, repurposed
// here for an ingestion run summary rather than an email body.
func (p *Pipeline) putMarkdownReport(ctx context.Context, jobID string, parsed []sourceItems, matches []models.Match, result *interfaces.UnifiedPipelineResult) error {
	markdown := renderReportMarkdown(jobID, parsed, matches, result)

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var htmlBuf bytes.Buffer
	if err := md.Convert([]byte(markdown), &htmlBuf); err != nil {
		return fmt.Errorf("render report html: %w", err)
	}

	markdownKey := fmt.Sprintf("%s/result/report.md", jobID)
	if _, err := p.blobStore.Put(ctx, markdownKey, bytes.NewReader([]byte(markdown)), "text/markdown"); err != nil {
		return fmt.Errorf("storage-transient: persist markdown report: %w", err)
	}

	htmlKey := fmt.Sprintf("%s/result/report.html", jobID)
	if _, err := p.blobStore.Put(ctx, htmlKey, bytes.NewReader(htmlBuf.Bytes()), "text/html"); err != nil {
		return fmt.Errorf("storage-transient: persist report html: %w", err)
	}

	result.MarkdownReportKey = markdownKey
	result.HTMLReportKey = htmlKey
	return nil
}

func renderReportMarkdown(jobID string, parsed []sourceItems, matches []models.Match, result *interfaces.UnifiedPipelineResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Ingestion report: %s\n\n", jobID)
	fmt.Fprintf(&b, "- Sources processed: **%d**\n", len(parsed))
	fmt.Fprintf(&b, "- Matches found: **%d**\n", len(matches))
	fmt.Fprintf(&b, "- Parse failures: **%d**\n", len(result.ParseFailed))
	fmt.Fprintf(&b, "- Enrichment failures: **%d**\n\n", result.EnrichmentFailed)

	if len(parsed) > 0 {
		b.WriteString("## Sources\n\n")
		b.WriteString("| Source | Items |\n")
		b.WriteString("| --- | --- |\n")
		for _, group := range parsed {
			fmt.Fprintf(&b, "| %s | %d |\n", group.sourceKind, len(group.items))
		}
		b.WriteString("\n")
	}

	if len(result.ParseFailed) > 0 {
		b.WriteString("## Parse failures\n\n")
		for _, key := range result.ParseFailed {
			fmt.Fprintf(&b, "- %s\n", key)
		}
		b.WriteString("\n")
	}

	return b.String()
}
