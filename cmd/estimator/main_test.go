package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvLogLevel, "error")
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.DebugLevel) })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	err := cmd.Execute()
	return out.String(), err
}

func TestCountFromStdin(t *testing.T) {
	out, err := execute(t, "a b a\nc a b\n", "count", "--key", "a", "-k", "b", "-k", "z")
	require.NoError(t, err)

	assert.Equal(t, "a\t3\nb\t2\nz\t0\n", out)
}

func TestCountFromFileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("x y x"), 0o644))

	out, err := execute(t, "", "count", path, "--hashes", "2", "--slots", "1024", "--hash", "xxh64", "-k", "x")
	require.NoError(t, err)

	assert.Equal(t, "x\t2\n", out)
}

func TestCountRejectsBadSketch(t *testing.T) {
	_, err := execute(t, "a", "count", "--slots", "0", "-k", "a")
	assert.Error(t, err)
}

func TestCountMissingFile(t *testing.T) {
	_, err := execute(t, "", "count", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestRate(t *testing.T) {
	out, err := execute(t, "a\na 4\n\nb 2\n", "rate", "--interval", "1h", "-k", "a", "-k", "b")
	require.NoError(t, err)

	assert.Equal(t, "a\t5\t0.00/s\nb\t2\t0.00/s\n", out)
}

func TestRateBadEvents(t *testing.T) {
	_, err := execute(t, "a many\n", "rate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestBench(t *testing.T) {
	out, err := execute(t, "", "bench", "--workers", "2", "--iterations", "2000", "--slots", "256")
	require.NoError(t, err)

	assert.Contains(t, out, "run ")
	assert.Contains(t, out, "single")
	assert.Contains(t, out, "parallel_get")
	assert.Contains(t, out, "mixed")
}

func TestConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "estimator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("estimator:\n  sketch:\n    hashes: 0\n"), 0o644))

	_, err := execute(t, "a", "--config", path, "count", "-k", "a")
	assert.Error(t, err)
}
