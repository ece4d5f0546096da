package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kk-code-lab/humpty/internal/storage/chunk"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		chunkSize uint64
	}{
		{name: "multi", size: 400000, chunkSize: 65536},
		{name: "exact multiple", size: 65536 * 3, chunkSize: 65536},
		{name: "one byte", size: 1, chunkSize: 65536},
		{name: "tiny chunks", size: 1000, chunkSize: 7},
		{name: "chunk larger than buffer", size: 300000, chunkSize: 200000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.size)
			res := f.split(t, tc.chunkSize, Options{})

			joined, err := Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: true}, Options{})
			require.NoError(t, err)
			assert.Equal(t, uint64(tc.size), joined.TotalBytesWritten)
			assert.Equal(t, res.SourceChecksum, joined.SourceChecksum)
			assert.Equal(t, res.Fingerprint, joined.Fingerprint)
			assert.True(t, joined.Verified)

			got, err := os.ReadFile(f.joined)
			require.NoError(t, err)
			assert.Equal(t, f.data, got)

			inputHash, err := chunk.HashFile(f.input)
			require.NoError(t, err)
			joinedHash, err := chunk.HashFile(f.joined)
			require.NoError(t, err)
			assert.Equal(t, inputHash, joinedHash)
		})
	}
}

func TestJoinDetectsCorruptChunk(t *testing.T) {
	f := newFixture(t, 130000)
	res := f.split(t, 32768, Options{})
	corruptByte(t, f.chunkPath("input.bin.part0001"), 10)

	joined, err := Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: true}, Options{})
	require.Error(t, err)
	assert.Nil(t, joined)
	assert.ErrorIs(t, err, ErrChunkChecksum)
	assert.Contains(t, err.Error(), "checksum mismatch")
	assert.Contains(t, err.Error(), "input.bin.part0001")
	assert.Equal(t, KindIntegrity, KindOf(err))

	info, statErr := os.Stat(f.joined)
	require.NoError(t, statErr)
	assert.Less(t, info.Size(), int64(len(f.data)))
}

func TestJoinNoVerifyBypassesCorruption(t *testing.T) {
	f := newFixture(t, 130000)
	res := f.split(t, 32768, Options{})
	corruptByte(t, f.chunkPath("input.bin.part0002"), 0)

	joined, err := Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: false}, Options{})
	require.NoError(t, err)
	assert.False(t, joined.Verified)
	assert.Equal(t, uint64(len(f.data)), joined.TotalBytesWritten)

	got, err := os.ReadFile(f.joined)
	require.NoError(t, err)
	assert.Len(t, got, len(f.data))
	assert.NotEqual(t, f.data, got)
}

func TestJoinSourceChecksumMismatch(t *testing.T) {
	f := newFixture(t, 5000)
	res := f.split(t, 1000, Options{})

	man, err := manifest.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	// Swap two equal-sized chunk files and drop per-chunk sums so only the
	// whole-file checksum can notice.
	a, b := f.chunkPath(man.Chunks[0].FileName), f.chunkPath(man.Chunks[1].FileName)
	tmp := filepath.Join(f.dir, "swap")
	require.NoError(t, os.Rename(a, tmp))
	require.NoError(t, os.Rename(b, a))
	require.NoError(t, os.Rename(tmp, b))
	for i := range man.Chunks {
		man.Chunks[i].Checksum = ""
	}
	require.NoError(t, manifest.WriteFile(res.ManifestPath, man))

	_, err = Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: true}, Options{})
	assert.ErrorIs(t, err, ErrSourceChecksum)
	assert.Equal(t, KindIntegrity, KindOf(err))
}

func TestJoinTruncatedChunk(t *testing.T) {
	f := newFixture(t, 5000)
	res := f.split(t, 1000, Options{})
	require.NoError(t, os.Truncate(f.chunkPath("input.bin.part0003"), 999))

	_, err := Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: false}, Options{})
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
	assert.Equal(t, KindIO, KindOf(err))
}

func TestJoinMissingChunk(t *testing.T) {
	f := newFixture(t, 5000)
	res := f.split(t, 1000, Options{})
	require.NoError(t, os.Remove(f.chunkPath("input.bin.part0004")))

	_, err := Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: true}, Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestJoinRejectsBadManifest(t *testing.T) {
	f := newFixture(t, 5000)
	res := f.split(t, 1000, Options{})
	data, err := os.ReadFile(res.ManifestPath)
	require.NoError(t, err)
	bad := strings.Replace(string(data), "chunks 5", "chunks 6", 1)
	require.NoError(t, os.WriteFile(res.ManifestPath, []byte(bad), 0o644))

	_, err = Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: true}, Options{})
	assert.ErrorIs(t, err, manifest.ErrFormat)
	assert.Equal(t, KindFormat, KindOf(err))

	_, statErr := os.Stat(f.joined)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestJoinMissingManifest(t *testing.T) {
	_, err := Join(context.Background(), JoinRequest{ManifestPath: filepath.Join(t.TempDir(), "x.manifest"), OutputPath: filepath.Join(t.TempDir(), "out")}, Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, KindIO, KindOf(err))
}

func TestJoinIgnoresTrailingBytesInChunk(t *testing.T) {
	f := newFixture(t, 3000)
	res := f.split(t, 1000, Options{})
	file, err := os.OpenFile(f.chunkPath("input.bin.part0000"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = file.Write([]byte("extra"))
	require.NoError(t, err)
	require.NoError(t, file.Close())

	joined, err := Join(context.Background(), JoinRequest{ManifestPath: res.ManifestPath, OutputPath: f.joined, Verify: true}, Options{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3000), joined.TotalBytesWritten)
}
