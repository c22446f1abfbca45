package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig_HasSaneOrchestratorDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, 4, cfg.Orchestrator.PDFConcurrency)
	assert.Equal(t, 2, cfg.Orchestrator.JSONUnifiedConcurrency)
	assert.Equal(t, 3, cfg.Orchestrator.DefaultMaxRetries)
	assert.NotEmpty(t, cfg.Orchestrator.LedgerGCSchedule)
}

func TestLoadFromFiles_NilKVStorageSkipsSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragforge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
backend = "local"

[storage.local]
root = "{storage-root}"
`), 0644))

	cfg, err := LoadFromFiles(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "{storage-root}", cfg.Storage.Local.Root, "with a nil kv store, {key-name} tokens pass through unresolved")
}

type fakeKV struct {
	values map[string]string
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeKV) GetAll(ctx context.Context) (map[string]string, error) {
	return f.values, nil
}

func TestLoadFromFiles_WithKVStorageSubstitutesKeyReferences(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragforge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[storage]
backend = "local"

[storage.local]
root = "{storage-root}"
`), 0644))

	kv := &fakeKV{values: map[string]string{"storage-root": "/data/blobs"}}
	cfg, err := LoadFromFiles(kv, path)
	require.NoError(t, err)
	assert.Equal(t, "/data/blobs", cfg.Storage.Local.Root)
}

func TestLoadFromFiles_LaterFileOverridesEarlier(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "base.toml")
	second := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(first, []byte("environment = \"development\"\n"), 0644))
	require.NoError(t, os.WriteFile(second, []byte("environment = \"production\"\n"), 0644))

	cfg, err := LoadFromFiles(nil, first, second)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}

func TestLoadFromFiles_MissingFileErrors(t *testing.T) {
	_, err := LoadFromFiles(nil, "/does/not/exist.toml")
	assert.Error(t, err)
}

func TestApplyEnvOverrides_OverridesOrchestratorConcurrency(t *testing.T) {
	t.Setenv("RAGFORGE_ORCHESTRATOR_PDF_CONCURRENCY", "9")
	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)
	assert.Equal(t, 9, cfg.Orchestrator.PDFConcurrency)
}

func TestResolveAPIKey_PriorityOrder(t *testing.T) {
	kv := &fakeKV{values: map[string]string{"gemini_api_key": "from-kv"}}

	v, err := ResolveAPIKey(context.Background(), kv, "gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-kv", v, "kv store should win over config fallback")

	v, err = ResolveAPIKey(context.Background(), nil, "gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", v, "config fallback used when kv store is absent")
}

func TestResolveAPIKey_NoneResolvedErrors(t *testing.T) {
	_, err := ResolveAPIKey(context.Background(), nil, "gemini_api_key", "")
	assert.Error(t, err)
}
