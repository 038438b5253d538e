package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xcachekit/internal/policysim"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, append([]string{"xbcachectl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSimulate_Presets(t *testing.T) {
	code, out, errOut := runCLI(t, context.Background(),
		"simulate", "--keys", "2000", "--ops", "5000", "--seed", "3")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "keys=2000 ops=5000")
	for _, name := range []string{"default", "financial", "ui"} {
		assert.Contains(t, out, name)
	}
}

func TestSimulate_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("caches: {tiny: {max_entries: 10}}\n"), 0o600))

	code, out, errOut := runCLI(t, context.Background(),
		"simulate", "--config", path, "--keys", "500", "--ops", "2000")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "tiny")
	assert.Contains(t, out, "10/10")
	assert.NotContains(t, out, "financial")
}

func TestSimulateFunc(t *testing.T) {
	file, err := simulationFile("")
	require.NoError(t, err)
	w := policysim.Workload{Keys: 100, Requests: 1000, Skew: 1.3, ValueSize: 8, Seed: 1}

	stats, err := simulate(context.Background(), file, w)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	for _, s := range stats {
		assert.Equal(t, uint64(1000), s.Hits+s.Misses, s.Name)
		assert.LessOrEqual(t, s.Entries, s.MaxEntries)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = simulate(ctx, file, w)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	code, out, errOut := runCLI(t, context.Background(),
		"compare", "--keys", "300", "--ops", "3000", "--entries", "30")
	require.Equal(t, 0, code, errOut)
	for _, name := range []string{"xbcache", "lru", "ristretto"} {
		assert.Contains(t, out, name)
	}
	// 表头 + 三行结果
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 5)
}

func TestUsageErrors(t *testing.T) {
	code, _, errOut := runCLI(t, context.Background(), "simulate", "--skew", "0.5")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "参数错误")

	code, _, _ = runCLI(t, context.Background(), "compare", "--policy", "fifo")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, context.Background(), "serve", "--metrics-addr", "127.0.0.1:0", "--report", "every tuesday")
	assert.Equal(t, 2, code)
}

func TestServe_ConfigErrors(t *testing.T) {
	code, _, errOut := runCLI(t, context.Background(), "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "错误")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pressure: {threshold: 2}\n"), 0o600))
	code, _, _ = runCLI(t, context.Background(), "serve", "--config", path)
	assert.Equal(t, 1, code)
}

func TestServe_StopsOnCancel(t *testing.T) {
	path := writeServeConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 超时取消会以 DeadlineExceeded 退出，这里模拟普通取消。
	time.AfterFunc(200*time.Millisecond, cancel)

	code, _, errOut := runCLI(t, ctx, "serve", "--config", path, "--metrics-addr", "127.0.0.1:0", "--log-level", "error")
	assert.Equal(t, 0, code, errOut)
}

func TestCreateApp(t *testing.T) {
	app := createApp(&bytes.Buffer{})
	names := make([]string, 0, len(app.Commands))
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"serve", "simulate", "compare"}, names)
}
