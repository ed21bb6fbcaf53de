package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.yaml"))
	require.NoError(t, err)
	return s
}

func TestFileStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "b", "2"))
	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "a", "one"))

	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete(ctx, "b"))
	require.NoError(t, s.Delete(ctx, "b"))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "one"}, all)

	require.NoError(t, s.Clear(ctx))
	all, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "k", "v"))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [1, 2]\n"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = s.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestAIConfig_Defaults(t *testing.T) {
	cfg, err := LoadAIConfig(context.Background(), newTestStore(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultAIConfig(), cfg)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.APIEndpoint)
	assert.Equal(t, "google/gemini-2.5-flash-image", cfg.ModelName)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.False(t, cfg.IsValid(), "no api key yet")
}

func TestAIConfig_SaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := AIConfig{
		APIEndpoint: "http://localhost:9999/v1/chat/completions",
		APIKey:      "sk-secret-1234",
		ModelName:   "test/model",
		Temperature: 0.25,
		MaxTokens:   512,
	}
	require.NoError(t, SaveAIConfig(ctx, s, in))

	out, err := LoadAIConfig(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.True(t, out.IsValid())

	require.NoError(t, s.Set(ctx, "unrelated", "keep"))
	require.NoError(t, ClearAIConfig(ctx, s))

	out, err = LoadAIConfig(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, DefaultAIConfig(), out)

	v, ok, err := s.Get(ctx, "unrelated")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "keep", v)
}

func TestAIConfig_BadNumbersFallBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, KeyTemperature, "warm"))
	require.NoError(t, s.Set(ctx, KeyMaxTokens, "lots"))

	cfg, err := LoadAIConfig(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, cfg.Temperature)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
}

func TestAIConfig_IsValidAndMask(t *testing.T) {
	cfg := DefaultAIConfig()
	cfg.APIKey = "   "
	assert.False(t, cfg.IsValid())

	cfg.APIKey = "abcdef123"
	assert.True(t, cfg.IsValid())
	assert.Equal(t, "*****f123", cfg.MaskedKey())

	cfg.ModelName = ""
	assert.False(t, cfg.IsValid())

	assert.Equal(t, "***", AIConfig{APIKey: "abc"}.MaskedKey())
}
