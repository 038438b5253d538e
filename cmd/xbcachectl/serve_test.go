package main

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcachekit/pkg/config/xconf"
	"github.com/omeyang/xcachekit/pkg/observability/xlog"
	"github.com/omeyang/xcachekit/pkg/util/xpressure"
)

const serveYAML = `
log:
  level: info
pressure:
  threshold: 0.9
  interval: 1s
caches:
  quotes:
    preset: financial
    max_size_bytes: 1000
  ui:
    preset: ui
`

func writeServeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xbcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(serveYAML), 0o600))
	return path
}

func newTestService(t *testing.T) *service {
	t.Helper()
	s, err := newService(serveOptions{
		configPath: writeServeConfig(t),
		addr:       "127.0.0.1:0",
		report:     defaultReport,
	}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.close()) })
	return s
}

func TestNewService(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, []string{"quotes", "ui"}, s.names)
	assert.Equal(t, int64(1000), s.caches["quotes"].Config().MaxSizeBytes)
	assert.Equal(t, 300, s.caches["quotes"].Config().MaxEntries)
	assert.InDelta(t, 0.9, s.monitor.Threshold(), 1e-9)
	assert.NotNil(t, s.reporter)
	assert.Nil(t, s.watcher, "watch disabled")
	// HTTP、压力监视、报告
	assert.Len(t, s.services(), 3)
}

func TestService_Reload(t *testing.T) {
	s := newTestService(t)

	f := xconf.DefaultFile()
	f.Pressure.Threshold = 0.55
	f.Log.Level = xlog.LevelDebug
	s.reload(f, nil)
	assert.InDelta(t, 0.55, s.monitor.Threshold(), 1e-9)
	assert.Equal(t, "DEBUG", s.logger.GetLevel().String())

	// 加载失败时保持原配置
	s.reload(nil, assert.AnError)
	assert.InDelta(t, 0.55, s.monitor.Threshold(), 1e-9)
}

func TestService_Report(t *testing.T) {
	s := newTestService(t)
	s.caches["ui"].Set("k", []byte(`1`))
	assert.NotPanics(t, s.report)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer(t *testing.T) {
	s := newTestService(t)
	h := s.server.Handler

	rec := do(t, h, http.MethodPut, "/caches/ui/entries/theme?ttl=1m&priority=high", `{"dark":true}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/caches/ui/entries/theme", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dark":true}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/caches", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Name":"ui"`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `xcachekit_cache_entries{cache="ui"} 1`)

	rec = do(t, h, http.MethodPost, "/caches/ui/optimize", "")
	assert.JSONEq(t, `{"removed":0}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/caches/ui/cleanup", "")
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/caches/ui/entries/theme", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodGet, "/caches/ui/entries/theme", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_Errors(t *testing.T) {
	s := newTestService(t)
	h := s.server.Handler

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown cache", http.MethodGet, "/caches/nope/entries/k", "", http.StatusNotFound},
		{"bad ttl", http.MethodPut, "/caches/ui/entries/k?ttl=-1s", `1`, http.StatusBadRequest},
		{"bad priority", http.MethodPut, "/caches/ui/entries/k?priority=urgent", `1`, http.StatusBadRequest},
		{"bad json", http.MethodPut, "/caches/ui/entries/k", `{`, http.StatusBadRequest},
		// quotes 的单条目上限为 1000 * 0.1 = 100 字节
		{"too large", http.MethodPut, "/caches/quotes/entries/k", `"` + strings.Repeat("x", 200) + `"`, http.StatusRequestEntityTooLarge},
		{"delete missing", http.MethodDelete, "/caches/ui/entries/k", "", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/caches/ui/entries/k", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSetOptionsFrom(t *testing.T) {
	req := httptest.NewRequestWithContext(context.Background(), http.MethodPut, "/x?ttl=30s&priority=low", nil)
	opts, err := setOptionsFrom(req)
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	req = httptest.NewRequestWithContext(context.Background(), http.MethodPut, "/x", nil)
	opts, err = setOptionsFrom(req)
	require.NoError(t, err)
	assert.Len(t, opts, 1)
}

func TestNewSampler(t *testing.T) {
	prev := debug.SetMemoryLimit(math.MaxInt64)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)
	ctx := context.Background()

	s := newSampler(ctx, xconf.PressureSection{Source: xconf.SourceRuntime, FallbackLimitBytes: 1 << 30}, logger)
	assert.IsType(t, &xpressure.RuntimeSampler{}, s)
	assert.Empty(t, buf.String())

	s = newSampler(ctx, xconf.PressureSection{Source: xconf.SourceHost}, logger)
	assert.IsType(t, &xpressure.HostSampler{}, s)

	// 没有任何上限时只在启动时告警一次，改用主机内存
	s = newSampler(ctx, xconf.PressureSection{Source: xconf.SourceRuntime}, logger)
	assert.IsType(t, &xpressure.HostSampler{}, s)
	assert.Equal(t, 1, strings.Count(buf.String(), "runtime memory limit unknown"))
}
