package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/humpty/internal/storage/chunk"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

func TestSplitProducesFourChunks(t *testing.T) {
	f := newFixture(t, 200000)
	res := f.split(t, 65536, Options{})

	assert.Equal(t, filepath.Join(f.chunksDir, "input.bin.manifest"), res.ManifestPath)
	assert.Equal(t, 4, res.ChunkCount)
	assert.Equal(t, uint64(200000), res.TotalBytes)
	assert.Equal(t, chunk.SumHex(f.data, chunk.OffsetBasis), res.SourceChecksum)
	assert.Len(t, res.Fingerprint, 64)

	man, err := manifest.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	require.Len(t, man.Chunks, 4)
	assert.Equal(t, "input.bin", man.SourceFileName)
	assert.Equal(t, uint64(65536), man.ChunkSize)

	wantSizes := []uint64{65536, 65536, 65536, 3392}
	for i, ch := range man.Chunks {
		assert.Equal(t, uint32(i), ch.Index)
		assert.Equal(t, wantSizes[i], ch.Size)
		assert.Equal(t, chunk.FileName("input.bin", uint32(i)), ch.FileName)

		data, err := os.ReadFile(f.chunkPath(ch.FileName))
		require.NoError(t, err)
		assert.Equal(t, f.data[ch.Offset:ch.Offset+ch.Size], data)
		assert.Equal(t, chunk.SumHex(data, chunk.OffsetBasis), ch.Checksum)
	}
}

func TestSplitSmallBuffer(t *testing.T) {
	f := newFixture(t, 10000)
	res := f.split(t, 3000, Options{BufferSize: 7})
	assert.Equal(t, 4, res.ChunkCount)
	assert.Equal(t, chunk.SumHex(f.data, chunk.OffsetBasis), res.SourceChecksum)
}

func TestSplitPreconditions(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := Split(ctx, SplitRequest{InputPath: f.input, OutputDir: f.chunksDir, ChunkSize: 0}, Options{})
	assert.ErrorIs(t, err, ErrChunkSizeZero)
	assert.Equal(t, KindPrecondition, KindOf(err))

	_, err = Split(ctx, SplitRequest{InputPath: filepath.Join(f.dir, "missing"), OutputDir: f.chunksDir, ChunkSize: 4}, Options{})
	assert.ErrorIs(t, err, ErrSourceMissing)

	_, err = Split(ctx, SplitRequest{InputPath: f.dir, OutputDir: f.chunksDir, ChunkSize: 4}, Options{})
	assert.ErrorIs(t, err, ErrSourceNotRegular)

	dangling := filepath.Join(f.dir, "dangling")
	require.NoError(t, os.Symlink(filepath.Join(f.dir, "nowhere"), dangling))
	_, err = Split(ctx, SplitRequest{InputPath: dangling, OutputDir: f.chunksDir, ChunkSize: 4}, Options{})
	assert.ErrorIs(t, err, ErrSourceMissing)

	blocker := filepath.Join(f.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err = Split(ctx, SplitRequest{InputPath: f.input, OutputDir: filepath.Join(blocker, "sub"), ChunkSize: 4}, Options{})
	assert.ErrorIs(t, err, ErrCreateOutputDir)
	assert.Equal(t, KindPrecondition, KindOf(err))
}

func TestSplitEmptyFileIsRejected(t *testing.T) {
	f := newFixture(t, 0)
	_, err := Split(context.Background(), SplitRequest{InputPath: f.input, OutputDir: f.chunksDir, ChunkSize: 1024}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.ErrorIs(t, err, manifest.ErrNoChunks)
	assert.Equal(t, KindFormat, KindOf(err))

	_, statErr := os.Stat(filepath.Join(f.chunksDir, "input.bin.manifest"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestSplitRejectsLineBreakInSourceNameBeforeWriting(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bad\nname.bin")
	require.NoError(t, os.WriteFile(input, makeTestData(100), 0o644))
	outDir := filepath.Join(dir, "chunks")

	_, err := Split(context.Background(), SplitRequest{InputPath: input, OutputDir: outDir, ChunkSize: 10}, Options{})
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.ErrorIs(t, err, manifest.ErrLineBreak)
	assert.Equal(t, KindFormat, KindOf(err))

	_, statErr := os.Stat(outDir)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestSplitSingleChunkWhenChunkSizeExceedsFile(t *testing.T) {
	f := newFixture(t, 100)
	res := f.split(t, 1<<20, Options{})
	assert.Equal(t, 1, res.ChunkCount)
}
