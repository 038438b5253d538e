package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/storage/xbcache"
)

const sampleYAML = `
log:
  level: debug
  format: json
pressure:
  source: host
  threshold: 0.9
  interval: 5s
caches:
  financial:
    preset: financial
  ui:
    preset: ui
    max_entries: 800
    aggressive_cleanup: false
    weights:
      high: 5
      recency_unit: 30s
`

func TestParse_YAML(t *testing.T) {
	f, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, xlog.LevelDebug, f.Log.Level)
	assert.Equal(t, "json", f.Log.Format)
	assert.Equal(t, SourceHost, f.Pressure.Source)
	assert.InDelta(t, 0.9, f.Pressure.Threshold, 1e-9)
	assert.Equal(t, 5*time.Second, f.Pressure.Interval)
	assert.Equal(t, 30*time.Second, f.Pressure.Cooldown, "default kept")
	assert.Equal(t, []string{"financial", "ui"}, f.CacheNames())

	cfgs, err := f.CacheConfigs()
	require.NoError(t, err)
	assert.Equal(t, xbcache.FinancialConfig(), cfgs["financial"])

	ui := cfgs["ui"]
	assert.Equal(t, 800, ui.MaxEntries)
	assert.Equal(t, 2*time.Minute, ui.DefaultTTL)
	assert.True(t, ui.DisableAggressiveCleanup)
	assert.InDelta(t, 5, ui.Weights.High, 1e-9)
	assert.InDelta(t, 2, ui.Weights.Medium, 1e-9)
	assert.Equal(t, 30*time.Second, ui.Weights.RecencyUnit)
}

func TestParse_JSON(t *testing.T) {
	data := []byte(`{"caches":{"quotes":{"max_size_bytes":1048576,"default_ttl":"45s","aggressive_cleanup":true}}}`)
	f, err := Parse(data, FormatJSON)
	require.NoError(t, err)

	cfgs, err := f.CacheConfigs()
	require.NoError(t, err)
	q := cfgs["quotes"]
	assert.Equal(t, int64(1<<20), q.MaxSizeBytes)
	assert.Equal(t, 45*time.Second, q.DefaultTTL)
	assert.Equal(t, xbcache.DefaultMaxEntries, q.MaxEntries)
	assert.False(t, q.DisableAggressiveCleanup)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, DefaultFile(), f)

	_, err = Parse(nil, Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"syntax", "log: [", ErrParseFailed},
		{"log format", "log: {format: xml}", ErrInvalidValue},
		{"log level", "log: {level: loud}", ErrUnmarshalFailed},
		{"pressure source", "pressure: {source: swap}", ErrInvalidValue},
		{"threshold", "pressure: {threshold: 1.5}", ErrInvalidValue},
		{"interval", "pressure: {interval: -1s}", ErrInvalidValue},
		{"preset", "caches: {a: {preset: huge}}", ErrInvalidValue},
		{"cache config", "caches: {a: {max_entries: -3}}", xbcache.ErrInvalidConfig},
		{"type", "pressure: {interval: soon}", ErrUnmarshalFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), FormatYAML)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xbcache.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Caches, 2)

	_, err = Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)
	_, err = Load(filepath.Join(dir, "config.toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.yaml": FormatYAML,
		"a.YML":  FormatYAML,
		"a.json": FormatJSON,
	} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatOf("a.ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
