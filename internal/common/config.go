package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

// Config represents the application configuration for the ragforge ingestion service.
type Config struct {
	Environment  string             `toml:"environment"` // "development" or "production"
	Logging      LoggingConfig      `toml:"logging"`
	Storage      StorageConfig      `toml:"storage"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Gemini       GeminiConfig       `toml:"gemini"`
	Claude       ClaudeConfig       `toml:"claude"`
	LLM          LLMConfig          `toml:"llm"`
	PDF          PDFConfig          `toml:"pdf"`
	Matching     MatchingConfig     `toml:"matching"`
	Compressor   CompressorConfig   `toml:"compressor"`
	Variables    KeysDirConfig      `toml:"variables"` // Directory of key/value files for {key-name} resolution
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // e.g. "15:04:05.000"
}

// StorageConfig selects and configures the blob store backend.
type StorageConfig struct {
	Backend string          `toml:"backend"` // "local" or "s3"
	Local   LocalBlobConfig `toml:"local"`
	S3      S3BlobConfig    `toml:"s3"`
}

type LocalBlobConfig struct {
	Root string `toml:"root"` // directory root all blob keys are relative to
}

type S3BlobConfig struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	UseSSL    bool   `toml:"use_ssl"`
}

// OrchestratorConfig configures job worker pools and the progress ledger.
type OrchestratorConfig struct {
	PDFConcurrency         int    `toml:"pdf_concurrency"`
	JSONUnifiedConcurrency int    `toml:"json_unified_concurrency"`
	OtherConcurrency       int    `toml:"other_concurrency"`
	QueueDepthPerKind      int    `toml:"queue_depth_per_kind"`
	DefaultMaxRetries      int    `toml:"default_max_retries"`
	PollInterval           string `toml:"poll_interval"`      // e.g. "250ms"
	TerminalJobTTL         string `toml:"terminal_job_ttl"`   // e.g. "168h"
	LedgerGCSchedule       string `toml:"ledger_gc_schedule"` // cron expression
}

// GeminiConfig contains Google Gemini API configuration.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the default provider used by the gateway's degradation ladder.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
	MaxConcurrency  int         `toml:"max_concurrency"` // in-flight request semaphore
	Disabled        bool        `toml:"disabled"`        // force the no-credentials rung regardless of keys present
}

// PDFConfig configures page extraction, auto-rasterization, and vision captioning.
type PDFConfig struct {
	MaxImagesDefault  int     `toml:"max_images_default"`
	RasterDPI         int     `toml:"raster_dpi"`
	AutoRasterAreaPct float64 `toml:"auto_raster_area_pct"` // fraction of page area covered by images, default 0.30
	TempDir           string  `toml:"temp_dir"`
}

// MatchingConfig configures the cross-source candidate matching engine.
type MatchingConfig struct {
	MinScoreDefault float64 `toml:"min_score_default"`
}

// CompressorConfig configures archive compression.
type CompressorConfig struct {
	DefaultLevel string `toml:"default_level"` // fast|balanced|max
}

// KeysDirConfig points at a directory of TOML key/value files used for
// {key-name} substitution in the rest of the config.
type KeysDirConfig struct {
	Dir string `toml:"dir"`
}

// NewDefaultConfig creates a configuration with production-safe defaults.
// Only user-facing settings should be exposed in a ragforge.toml override file.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05.000",
		},
		Storage: StorageConfig{
			Backend: "local",
			Local: LocalBlobConfig{
				Root: "./data/blobs",
			},
		},
		Orchestrator: OrchestratorConfig{
			PDFConcurrency:         4,
			JSONUnifiedConcurrency: 2,
			OtherConcurrency:       4,
			QueueDepthPerKind:      64,
			DefaultMaxRetries:      3,
			PollInterval:           "250ms",
			TerminalJobTTL:         "168h", // 7 days
			LedgerGCSchedule:       "0 0 * * * *",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Timeout:     "5m",
			RateLimit:   "4s",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Timeout:     "5m",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			MaxConcurrency:  8,
		},
		PDF: PDFConfig{
			MaxImagesDefault:  10,
			RasterDPI:         150,
			AutoRasterAreaPct: 0.30,
			TempDir:           os.TempDir(),
		},
		Matching: MatchingConfig{
			MinScoreDefault: 0.5,
		},
		Compressor: CompressorConfig{
			DefaultLevel: "balanced",
		},
		Variables: KeysDirConfig{
			Dir: "./",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env.
// kvStorage can be nil, in which case {key-name} replacement is skipped.
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files, later files
// overriding earlier ones, then applies {key-name} replacement and finally
// environment variable overrides (highest priority).
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if kvStorage != nil {
		ctx := context.Background()
		logger := arbor.NewLogger()
		kvMap, err := kvStorage.GetAll(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to fetch KV map for config replacement, skipping replacement")
		} else if err := ReplaceInStruct(config, kvMap, logger); err != nil {
			logger.Warn().Err(err).Msg("failed to replace key references in config")
		} else {
			logger.Info().Int("keys", len(kvMap)).Msg("applied key/value replacements to config")
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RAGFORGE_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if level := os.Getenv("RAGFORGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("RAGFORGE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}

	if backend := os.Getenv("RAGFORGE_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if root := os.Getenv("RAGFORGE_STORAGE_LOCAL_ROOT"); root != "" {
		config.Storage.Local.Root = root
	}
	if bucket := os.Getenv("RAGFORGE_STORAGE_S3_BUCKET"); bucket != "" {
		config.Storage.S3.Bucket = bucket
	}
	if endpoint := os.Getenv("RAGFORGE_STORAGE_S3_ENDPOINT"); endpoint != "" {
		config.Storage.S3.Endpoint = endpoint
	}

	if pdfConc := os.Getenv("RAGFORGE_ORCHESTRATOR_PDF_CONCURRENCY"); pdfConc != "" {
		if c, err := strconv.Atoi(pdfConc); err == nil {
			config.Orchestrator.PDFConcurrency = c
		}
	}
	if jsonConc := os.Getenv("RAGFORGE_ORCHESTRATOR_JSON_CONCURRENCY"); jsonConc != "" {
		if c, err := strconv.Atoi(jsonConc); err == nil {
			config.Orchestrator.JSONUnifiedConcurrency = c
		}
	}
	if maxRetries := os.Getenv("RAGFORGE_ORCHESTRATOR_MAX_RETRIES"); maxRetries != "" {
		if r, err := strconv.Atoi(maxRetries); err == nil {
			config.Orchestrator.DefaultMaxRetries = r
		}
	}

	if apiKey := os.Getenv("RAGFORGE_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("RAGFORGE_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if temperature := os.Getenv("RAGFORGE_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("RAGFORGE_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("RAGFORGE_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("RAGFORGE_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if disabled := os.Getenv("RAGFORGE_LLM_DISABLED"); disabled != "" {
		if b, err := strconv.ParseBool(disabled); err == nil {
			config.LLM.Disabled = b
		}
	}

	if variablesDir := os.Getenv("RAGFORGE_VARIABLES_DIR"); variablesDir != "" {
		config.Variables.Dir = variablesDir
	}
}

// ValidateLedgerGCSchedule validates a cron schedule expression for the
// ledger garbage-collection sweep and enforces a minimum 5-minute interval.
func ValidateLedgerGCSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		intervalStr := strings.TrimPrefix(minuteField, "*/")
		if interval, err := strconv.Atoi(intervalStr); err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}
	return nil
}

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// PollIntervalDuration parses Orchestrator.PollInterval, falling back to 250ms.
func (c *OrchestratorConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 250 * time.Millisecond
	}
	return d
}

// TerminalJobTTLDuration parses Orchestrator.TerminalJobTTL, falling back to 7 days.
func (c *OrchestratorConfig) TerminalJobTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TerminalJobTTL)
	if err != nil || d <= 0 {
		return 7 * 24 * time.Hour
	}
	return d
}

// DeepCloneConfig creates a deep copy of the Config struct so callers can
// mutate a copy without affecting the shared instance.
func DeepCloneConfig(c *Config) *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if len(c.Logging.Output) > 0 {
		clone.Logging.Output = make([]string, len(c.Logging.Output))
		copy(clone.Logging.Output, c.Logging.Output)
	}
	return &clone
}

// ResolveAPIKey resolves an API key by logical name with priority:
// environment variable > KV store > config fallback > error.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	envMapping := map[string]string{
		"gemini_api_key":    "RAGFORGE_GEMINI_API_KEY",
		"anthropic_api_key": "RAGFORGE_CLAUDE_API_KEY",
	}

	if name == "anthropic_api_key" {
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			return v, nil
		}
	}
	if envVar, ok := envMapping[name]; ok {
		if v := os.Getenv(envVar); v != "" {
			return v, nil
		}
	}

	if kvStorage != nil {
		if v, err := kvStorage.Get(ctx, name); err == nil && v != "" {
			return v, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}
