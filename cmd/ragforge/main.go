// -----------------------------------------------------------------------
// Last Modified: Wednesday, 29th July 2026 9:00:00 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/common"
	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
	"github.com/antigravity-dev/ragforge/internal/orchestrator"
	"github.com/antigravity-dev/ragforge/internal/services/jsonreader"
	"github.com/antigravity-dev/ragforge/internal/services/ledger"
	"github.com/antigravity-dev/ragforge/internal/services/llm"
	"github.com/antigravity-dev/ragforge/internal/services/mapper"
	"github.com/antigravity-dev/ragforge/internal/services/matching"
	"github.com/antigravity-dev/ragforge/internal/services/pdfextract"
	"github.com/antigravity-dev/ragforge/internal/services/scrub"
	"github.com/antigravity-dev/ragforge/internal/services/unified"
	"github.com/antigravity-dev/ragforge/internal/services/vision"
	"github.com/antigravity-dev/ragforge/internal/storage/blob/localfs"
	"github.com/antigravity-dev/ragforge/internal/storage/blob/s3"
	"github.com/antigravity-dev/ragforge/internal/storage/kvfile"
)

// configPaths is a custom flag type that allows multiple -config flags.
type configPaths []string

func (c *configPaths) String() string { return fmt.Sprintf("%v", *c) }
func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	showVersion = flag.Bool("version", false, "Print version information")

	submitKind  = flag.String("kind", "", "Job kind to submit (pdf|json-unified); submit mode only")
	submitInput multiFlag
	submitWait  = flag.Bool("wait", true, "Block and poll job status until terminal; submit mode only")
)

type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprintf("%v", *m) }
func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (repeatable, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
	flag.Var(&submitInput, "input", "Local file to submit as job input (repeatable); submit mode only")
}

func main() {
	mode := "serve"
	if len(os.Args) > 1 && !isFlag(os.Args[1]) {
		mode = os.Args[1]
		os.Args = append(os.Args[:1], os.Args[2:]...)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("ragforge version %s\n", common.GetVersion())
		os.Exit(0)
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("ragforge.toml"); err == nil {
			configFiles = append(configFiles, "ragforge.toml")
		} else if _, err := os.Stat("deployments/local/ragforge.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/ragforge.toml")
		}
	}

	// Bootstrap is two-phase: LoadFromFiles accepts a nil KeyValueStorage
	// (skipping {key-name} substitution), so the first pass only resolves
	// where the key store itself lives, then a second pass re-parses with
	// substitution wired in.
	bootstrapCfg, err := common.LoadFromFiles(nil, configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("failed to load configuration")
	}

	kvStore, err := kvfile.New(bootstrapCfg.Variables.Dir)
	if err != nil {
		arbor.NewLogger().Fatal().Str("dir", bootstrapCfg.Variables.Dir).Err(err).Msg("failed to open key/value directory")
	}

	config, err := common.LoadFromFiles(kvStore, configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("failed to load configuration")
	}

	logger := common.SetupLogger(config)
	common.InitLogger(logger)

	blobStore, err := newBlobStore(context.Background(), config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	gateway, err := llm.NewGateway(context.Background(), config, kvStore, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM gateway")
	}

	progressLedger := ledger.New(blobStore, logger)
	orch := orchestrator.New(config.Orchestrator, progressLedger, blobStore, logger)
	registerHandlers(orch, blobStore, gateway, config, logger)

	switch mode {
	case "serve":
		runServe(orch, progressLedger, config.Orchestrator, logger)
	case "submit":
		runSubmit(orch, blobStore, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (expected serve|submit)\n", mode)
		os.Exit(1)
	}
}

func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-'
}

func newBlobStore(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.BlobStore, error) {
	switch config.Storage.Backend {
	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:  config.Storage.S3.Endpoint,
			Bucket:    config.Storage.S3.Bucket,
			Region:    config.Storage.S3.Region,
			AccessKey: config.Storage.S3.AccessKey,
			SecretKey: config.Storage.S3.SecretKey,
			UseSSL:    config.Storage.S3.UseSSL,
		}, logger)
	case "local", "":
		return localfs.New(config.Storage.Local.Root, logger)
	default:
		return nil, fmt.Errorf("unrecognised storage backend %q", config.Storage.Backend)
	}
}

// registerHandlers wires the PDF extraction and unified-pipeline handlers
// onto the orchestrator, each writing its output manifest and returning a
// models.ResultDescriptor pointing at it.
func registerHandlers(orch *orchestrator.Orchestrator, blobStore interfaces.BlobStore, gateway interfaces.Gateway, config *common.Config, logger arbor.ILogger) {
	visionDescriber := vision.New(gateway, logger)
	extractor := pdfextract.New(blobStore, visionDescriber, config.PDF, logger)

	reader := jsonreader.New(gateway, logger)
	detector := mapper.NewDetector()
	fieldMapper := mapper.New()
	scrubber := scrub.New()
	matcher := matching.New()
	pipeline := unified.New(blobStore, reader, detector, fieldMapper, scrubber, gateway, matcher, mapper.BuiltinMapping, logger)

	orch.RegisterHandler(models.JobKindPDF, func(ctx context.Context, job *models.Job, emit func(phase, step string, progress int)) (*models.ResultDescriptor, error) {
		if len(job.Inputs) == 0 {
			return nil, fmt.Errorf("submission-rejected: pdf job has no inputs")
		}
		input := job.Inputs[0]
		emit("extract", "reading pdf blob", 5)

		pdfBytes, _, err := blobStore.Get(ctx, input.BlobKey)
		if err != nil {
			return nil, fmt.Errorf("storage-transient: read pdf blob %q: %w", input.BlobKey, err)
		}

		opts := interfaces.PDFExtractOptions{
			// -1: option absent, let the extractor apply its configured
			// default. job.OptionInt passes an explicit 0 straight through,
			// which the extractor treats as "vision disabled", not "unset".
			MaxImages:  job.OptionInt("max_images", -1),
			RasterMode: models.RasterMode(job.OptionString("raster_mode", string(models.RasterModeAuto))),
			Language:   job.OptionString("language", "en"),
			SaveImages: job.OptionBool("save_images", false),
		}

		emit("extract", "extracting pages and images", 30)
		artifact, err := extractor.Extract(ctx, job.ID, pdfBytes, opts)
		if err != nil {
			return nil, err
		}

		emit("upload", "persisting artifact manifest", 85)
		manifestKey := fmt.Sprintf("%s/result/artifact.json", job.ID)
		if err := putJSON(ctx, blobStore, manifestKey, artifact); err != nil {
			return nil, fmt.Errorf("storage-transient: persist pdf artifact: %w", err)
		}

		emit("success", "pdf extraction complete", 100)
		return &models.ResultDescriptor{ManifestKey: manifestKey}, nil
	})

	orch.RegisterHandler(models.JobKindJSONUnified, func(ctx context.Context, job *models.Job, emit func(phase, step string, progress int)) (*models.ResultDescriptor, error) {
		if len(job.Inputs) == 0 {
			return nil, fmt.Errorf("submission-rejected: json-unified job has no inputs")
		}

		bySource := make(map[string][]string)
		var order []string
		for _, in := range job.Inputs {
			kind := sourceKindFor(in.FileName)
			if kind == "" {
				kind = "default"
			}
			if _, seen := bySource[kind]; !seen {
				order = append(order, kind)
			}
			bySource[kind] = append(bySource[kind], in.BlobKey)
		}

		inputs := make([]interfaces.UnifiedPipelineInput, 0, len(order))
		for _, kind := range order {
			inputs = append(inputs, interfaces.UnifiedPipelineInput{SourceKind: kind, BlobKeys: bySource[kind]})
		}

		opts := interfaces.UnifiedPipelineOptions{
			LLMEnrichment:  job.OptionBool("llm_enrichment", true),
			MinMatchScore:  job.OptionFloat("min_match_score", config.Matching.MinScoreDefault),
			PreserveSource: job.OptionBool("preserve_source", false),
		}

		result, err := pipeline.Run(ctx, job.ID, inputs, opts, func(ev models.ProgressEvent) {
			emit(ev.Phase, ev.Step, ev.Progress)
		})
		if err != nil {
			return nil, err
		}

		return &models.ResultDescriptor{ManifestKey: result.ReportKey}, nil
	})
}

func putJSON(ctx context.Context, blobStore interfaces.BlobStore, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = blobStore.Put(ctx, key, bytes.NewReader(data), "application/json")
	return err
}

func runServe(orch *orchestrator.Orchestrator, progressLedger *ledger.Ledger, cfg common.OrchestratorConfig, logger arbor.ILogger) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("interrupt signal received, shutting down")
		cancel()
	}()

	gcCron := startLedgerGC(ctx, progressLedger, cfg, logger)
	if gcCron != nil {
		defer gcCron.Stop()
	}

	logger.Info().Msg("orchestrator starting, press Ctrl+C to stop")
	if err := orch.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("orchestrator stopped with error")
	}
	logger.Info().Msg("orchestrator stopped")
}

// startLedgerGC schedules a periodic sweep of terminal-job progress records
// older than cfg.TerminalJobTTL, per cfg.LedgerGCSchedule (a standard cron
// expression). Both fields empty disables the sweep. Returns nil when
// disabled so callers can skip the Stop() defer.
func startLedgerGC(ctx context.Context, progressLedger *ledger.Ledger, cfg common.OrchestratorConfig, logger arbor.ILogger) *cron.Cron {
	if cfg.LedgerGCSchedule == "" {
		return nil
	}
	ttl, err := time.ParseDuration(cfg.TerminalJobTTL)
	if err != nil {
		logger.Warn().Err(err).Str("ttl", cfg.TerminalJobTTL).Msg("invalid terminal_job_ttl, ledger gc disabled")
		return nil
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.LedgerGCSchedule, func() {
		swept, err := progressLedger.GC(ctx, ttl)
		if err != nil {
			logger.Error().Err(err).Msg("ledger gc sweep failed")
			return
		}
		logger.Debug().Int("swept", len(swept)).Msg("ledger gc sweep complete")
	})
	if err != nil {
		logger.Warn().Err(err).Str("schedule", cfg.LedgerGCSchedule).Msg("invalid ledger_gc_schedule, ledger gc disabled")
		return nil
	}

	c.Start()
	logger.Info().Str("schedule", cfg.LedgerGCSchedule).Str("ttl", cfg.TerminalJobTTL).Msg("ledger gc scheduled")
	return c
}

// runSubmit uploads -input files as one job's blobs, submits it, and
// optionally polls until the job reaches a terminal state. It exists so the
// binary is independently operable without the (unspecified) HTTP/UI
// surface layered on top of this package's Orchestrator.
func runSubmit(orch *orchestrator.Orchestrator, blobStore interfaces.BlobStore, logger arbor.ILogger) {
	if *submitKind == "" || len(submitInput) == 0 {
		fmt.Fprintln(os.Stderr, "submit mode requires -kind and at least one -input")
		os.Exit(1)
	}

	stagingID := common.NewBlobID()
	ctx := context.Background()
	inputs := make([]models.InputDescriptor, 0, len(submitInput))

	for i, path := range submitInput {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("failed to read input file")
		}
		blobKey := fmt.Sprintf("staging/%s/input/%d-%s", stagingID, i, filepath.Base(path))
		if _, err := blobStore.Put(ctx, blobKey, bytes.NewReader(data), contentTypeFor(path)); err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("failed to upload input file")
		}
		inputs = append(inputs, models.InputDescriptor{
			BlobKey:     blobKey,
			FileName:    filepath.Base(path),
			ContentType: contentTypeFor(path),
		})
	}

	submittedID, err := orch.Submit(ctx, interfaces.SubmitRequest{
		Kind:   models.JobKind(*submitKind),
		Inputs: inputs,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("job submission failed")
	}

	fmt.Println(submittedID)

	if !*submitWait {
		return
	}

	go func() {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := orch.Start(runCtx); err != nil && runCtx.Err() == nil {
			logger.Error().Err(err).Msg("orchestrator stopped with error")
		}
	}()

	for {
		snapshot, err := orch.State(ctx, submittedID)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to read job state")
		}
		if snapshot.Status == models.JobStatusCompleted || snapshot.Status == models.JobStatusFailed {
			fmt.Printf("job %s finished with status %s\n", submittedID, snapshot.Status)
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}

func contentTypeFor(path string) string {
	if filepath.Ext(path) == ".pdf" {
		return "application/pdf"
	}
	return "application/json"
}

// sourceKindFor derives a best-effort source-kind label from the input
// file's base name (e.g. "jira-export.json" -> "jira"), used to group
// json-unified inputs by source for cross-source matching.
func sourceKindFor(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	if idx := indexOfDash(name); idx > 0 {
		return name[:idx]
	}
	return name
}

func indexOfDash(s string) int {
	for i, r := range s {
		if r == '-' || r == '_' {
			return i
		}
	}
	return -1
}
