package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/humpty/internal/app"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"HUMPTY_CONFIG", "HUMPTY_CHUNK_SIZE", "HUMPTY_CATALOG", "LOGGING_LEVEL", "LOGGING_OUTPUT"} {
		t.Setenv(key, "")
	}
}

// chdir is a Go 1.21-compatible stand-in for testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func cli(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeSource(t *testing.T, dir string, size int) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	path := filepath.Join(dir, "src.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, data
}

func TestHelpAndVersion(t *testing.T) {
	isolateEnv(t)
	for _, args := range [][]string{nil, {"--help"}, {"-h"}, {"split", "--help"}} {
		code, stdout, _ := cli(t, args...)
		assert.Equal(t, 0, code, "%v", args)
		assert.Contains(t, stdout, "Usage:", "%v", args)
	}
	code, stdout, _ := cli(t, "--version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, app.Version)
}

func TestUsageErrorsExitOne(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	src, _ := writeSource(t, dir, 100)
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"explode"}, "unknown command: explode"},
		{"split without chunk size", []string{"split", "-i", src, "-o", dir}, "split requires"},
		{"split zero chunk size", []string{"split", "-i", src, "-o", dir, "-c", "0"}, "invalid chunk size"},
		{"split bad suffix", []string{"split", "-i", src, "-o", dir, "-c", "4X"}, "invalid chunk size"},
		{"split without input", []string{"split", "-c", "1K"}, "split requires"},
		{"split two inputs", []string{"split", "-i", src, "other", "-c", "1K"}, "unexpected argument: other"},
		{"join without output", []string{"join", "-m", "x.manifest"}, "join requires"},
		{"verify without manifest", []string{"verify"}, "manifest required"},
		{"unknown flag", []string{"join", "--bogus"}, "unknown flag"},
		{"catalog not configured", []string{"catalog"}, "catalog not configured"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := cli(t, tc.args...)
			assert.Equal(t, exitUsage, code, "stderr %q", stderr)
			assert.Contains(t, stderr, tc.want)
		})
	}
}

func TestSplitJoinRoundTrip(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	src, data := writeSource(t, dir, 5000)
	outDir := filepath.Join(dir, "parts")

	code, stdout, stderr := cli(t, "split", "--input", src, "--out", outDir, "--chunk-size", "1K")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "split complete")
	assert.Contains(t, stdout, "chunks: 5")
	assert.Contains(t, stdout, "bytes: 5000")

	manifestPath := filepath.Join(outDir, "src.bin.manifest")
	restored := filepath.Join(dir, "restored.bin")
	code, stdout, stderr = cli(t, "join", manifestPath, "-o", restored)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "join complete")
	assert.Contains(t, stdout, "verified: true")
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	code, stdout, _ = cli(t, "verify", "-m", manifestPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "verify ok")

	code, stdout, _ = cli(t, "inspect", manifestPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "src.bin.part0004")
}

func TestSplitDefaultsFromWorkingDirAndConfig(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	writeSource(t, dir, 3000)
	configPath := filepath.Join(dir, "humpty.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("chunk_size: 1K\n"), 0o644))
	chdir(t, dir)

	code, stdout, stderr := cli(t, "split", "src.bin", "--config", configPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "chunks: 3")
	assert.FileExists(t, filepath.Join(dir, "src.bin-humpty", "src.bin.manifest"))
}

func TestOperationFailuresExitTwo(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	src, _ := writeSource(t, dir, 4096)
	outDir := filepath.Join(dir, "parts")

	code, _, stderr := cli(t, "split", "-i", filepath.Join(dir, "missing.bin"), "-o", outDir, "-c", "1K")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "split failed")

	code, _, stderr = cli(t, "split", "-i", src, "-o", outDir, "-c", "1K")
	require.Equal(t, 0, code, stderr)
	manifestPath := filepath.Join(outDir, "src.bin.manifest")
	chunkPath := filepath.Join(outDir, "src.bin.part0001")
	raw, err := os.ReadFile(chunkPath)
	require.NoError(t, err)
	raw[10] ^= 0xff
	require.NoError(t, os.WriteFile(chunkPath, raw, 0o644))

	code, _, stderr = cli(t, "join", "-m", manifestPath, "-o", filepath.Join(dir, "out.bin"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "join failed: chunk checksum mismatch")

	code, stdout, stderr := cli(t, "verify", "-m", manifestPath)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "verify FAILED")
	assert.Contains(t, stderr, "verification found problems")

	code, _, _ = cli(t, "join", "-m", manifestPath, "-o", filepath.Join(dir, "out.bin"), "--no-verify")
	assert.Equal(t, 0, code)

	require.NoError(t, os.Remove(chunkPath))
	code, stdout, _ = cli(t, "inspect", "-m", manifestPath)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "missing")
}

func TestJSONOutputAndCatalog(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	src, _ := writeSource(t, dir, 2048)
	outDir := filepath.Join(dir, "parts")
	catalogPath := filepath.Join(dir, "catalog.db")

	code, stdout, stderr := cli(t, "split", "-i", src, "-o", outDir, "-c", "1K", "--json", "--catalog", catalogPath)
	require.Equal(t, 0, code, stderr)
	var split map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &split), stdout)
	assert.Equal(t, float64(2), split["chunk_count"])
	assert.Equal(t, filepath.Join(outDir, "src.bin.manifest"), split["manifest_path"])

	manifestPath := filepath.Join(outDir, "src.bin.manifest")
	code, _, stderr = cli(t, "join", "-m", manifestPath, "-o", filepath.Join(dir, "out.bin"), "--catalog", catalogPath)
	require.Equal(t, 0, code, stderr)

	t.Setenv("HUMPTY_CATALOG", catalogPath)
	code, stdout, stderr = cli(t, "catalog", "--json")
	require.Equal(t, 0, code, stderr)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs), stdout)
	require.Len(t, runs, 2)
	assert.Equal(t, "join", runs[0]["kind"])
	assert.Equal(t, "split", runs[1]["kind"])
	assert.Equal(t, true, runs[0]["verified"])

	code, stdout, _ = cli(t, "catalog", "--limit", "1")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "join")
	assert.NotContains(t, stdout, "split")
}

func TestCatalogImport(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	src, _ := writeSource(t, dir, 3000)
	outDir := filepath.Join(dir, "parts")
	code, _, stderr := cli(t, "split", "-i", src, "-o", outDir, "-c", "1K")
	require.Equal(t, 0, code, stderr)

	catalogPath := filepath.Join(dir, "catalog.db")
	code, stdout, stderr := cli(t, "catalog", "--catalog", catalogPath, "--import", dir)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "imported 1 of 1 manifests")

	code, stdout, _ = cli(t, "catalog", "--catalog", catalogPath)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "src.bin")
}
