package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeTestData returns deterministic pseudo-random bytes.
func makeTestData(size int) []byte {
	data := make([]byte, size)
	state := uint32(0x12345678)
	for i := range data {
		state = state*1664525 + 1013904223
		data[i] = byte(state)
	}
	return data
}

type fixture struct {
	dir       string
	input     string
	chunksDir string
	joined    string
	data      []byte
}

func newFixture(t *testing.T, size int) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		input:     filepath.Join(dir, "input.bin"),
		chunksDir: filepath.Join(dir, "chunks"),
		joined:    filepath.Join(dir, "joined.bin"),
		data:      makeTestData(size),
	}
	require.NoError(t, os.WriteFile(f.input, f.data, 0o644))
	return f
}

func (f *fixture) split(t *testing.T, chunkSize uint64, opts Options) *SplitResult {
	t.Helper()
	res, err := Split(context.Background(), SplitRequest{InputPath: f.input, OutputDir: f.chunksDir, ChunkSize: chunkSize}, opts)
	require.NoError(t, err)
	return res
}

func (f *fixture) chunkPath(name string) string {
	return filepath.Join(f.chunksDir, name)
}

// corruptByte flips one byte of the named chunk file in place.
func corruptByte(t *testing.T, path string, offset int64) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	defer file.Close()
	var b [1]byte
	_, err = file.ReadAt(b[:], offset)
	require.NoError(t, err)
	b[0] ^= 0x7f
	_, err = file.WriteAt(b[:], offset)
	require.NoError(t, err)
}
