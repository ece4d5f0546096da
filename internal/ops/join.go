package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kk-code-lab/humpty/internal/meta"
	"github.com/kk-code-lab/humpty/internal/storage/chunk"
	"github.com/kk-code-lab/humpty/internal/storage/fs"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

// JoinRequest names the manifest, the output file and whether checksums are verified.
type JoinRequest struct {
	ManifestPath string
	OutputPath   string
	Verify       bool
}

// JoinResult summarizes a completed join.
type JoinResult struct {
	OutputPath        string    `json:"output_path"`
	TotalBytesWritten uint64    `json:"total_bytes_written"`
	ChunkCount        int       `json:"chunk_count"`
	SourceChecksum    string    `json:"source_checksum"`
	Fingerprint       string    `json:"fingerprint"`
	Verified          bool      `json:"verified"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Join concatenates the chunks named by a manifest into one output file.
// Chunks are resolved next to the manifest and streamed in index order.
// On failure the output file is left as far as it was written.
func Join(ctx context.Context, req JoinRequest, opts Options) (*JoinResult, error) {
	log := opts.logger().With(zap.String("op", "join"), zap.String("manifest", req.ManifestPath))
	res, err := join(req, opts, log)
	if err == nil && req.Verify && opts.Catalog != nil {
		err = checkFingerprint(ctx, opts.Catalog, req.ManifestPath, res, log)
	}
	if err != nil {
		log.Info("join aborted", zap.String("kind", string(KindOf(err))), zap.Error(err))
		return nil, err
	}
	if opts.Catalog != nil {
		_, cerr := opts.Catalog.RecordRun(ctx, meta.Run{
			Kind:           meta.KindJoin,
			ManifestPath:   absPath(req.ManifestPath),
			SourceName:     res.sourceName,
			OutputPath:     absPath(req.OutputPath),
			Bytes:          res.TotalBytesWritten,
			Chunks:         res.ChunkCount,
			SourceChecksum: res.SourceChecksum,
			Fingerprint:    res.Fingerprint,
			Verified:       res.Verified,
		})
		if cerr != nil {
			log.Warn("catalog record failed", zap.Error(cerr))
		}
	}
	log.Info("join complete",
		zap.String("output", req.OutputPath),
		zap.Int("chunks", res.ChunkCount),
		zap.Uint64("bytes", res.TotalBytesWritten),
		zap.Bool("verified", res.Verified))
	return &res.JoinResult, nil
}

type joinOutcome struct {
	JoinResult
	sourceName       string
	manifestChecksum string
}

func join(req JoinRequest, opts Options, log *zap.Logger) (*joinOutcome, error) {
	started := opts.now().Now()
	man, err := manifest.ReadFile(req.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	layout := fs.LayoutFor(req.ManifestPath)

	out, err := os.Create(req.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("open output file %s: %w", req.OutputPath, err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = out.Close()
		}
	}()

	sourceSum := chunk.NewDefaultDigest()
	finger := newFingerprint()
	buf := opts.buffer()
	var total uint64

	for _, ch := range man.Chunks {
		chunkSum, err := readChunk(layout, ch, io.MultiWriter(out, sourceSum, finger), buf)
		total += chunkSum.n
		if err != nil {
			return nil, err
		}
		if req.Verify && ch.Checksum != "" && chunkSum.Hex() != ch.Checksum {
			return nil, fmt.Errorf("%w for %s (chunk %d): manifest %s, computed %s",
				ErrChunkChecksum, ch.FileName, ch.Index, ch.Checksum, chunkSum.Hex())
		}
		log.Debug("chunk joined", zap.Uint32("index", ch.Index), zap.Uint64("size", ch.Size))
	}

	if req.Verify && man.SourceChecksum != "" && sourceSum.Hex() != man.SourceChecksum {
		return nil, fmt.Errorf("%w: manifest %s, computed %s", ErrSourceChecksum, man.SourceChecksum, sourceSum.Hex())
	}
	if man.SourceSize != 0 && total != man.SourceSize {
		return nil, fmt.Errorf("%w: wrote %d, manifest %d", ErrSizeMismatch, total, man.SourceSize)
	}

	closed = true
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close output file %s: %w", req.OutputPath, err)
	}
	return &joinOutcome{
		JoinResult: JoinResult{
			OutputPath:        req.OutputPath,
			TotalBytesWritten: total,
			ChunkCount:        len(man.Chunks),
			SourceChecksum:    sourceSum.Hex(),
			Fingerprint:       finger.Hex(),
			Verified:          req.Verify,
			StartedAt:         started,
			FinishedAt:        opts.now().Now(),
		},
		sourceName:       man.SourceFileName,
		manifestChecksum: man.SourceChecksum,
	}, nil
}

type countedDigest struct {
	*chunk.Digest
	n uint64
}

// readChunk streams exactly ch.Size bytes of the chunk file into dst and
// returns the per-chunk digest with the number of bytes that reached dst.
func readChunk(layout fs.Layout, ch manifest.Chunk, dst io.Writer, buf []byte) (countedDigest, error) {
	sum := countedDigest{Digest: chunk.NewDefaultDigest()}
	path := layout.ChunkPath(ch.FileName)
	file, err := os.Open(path)
	if err != nil {
		return sum, fmt.Errorf("open chunk file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	n, err := copyExact(io.MultiWriter(dst, sum.Digest), file, ch.Size, buf)
	sum.n = n
	switch {
	case errors.Is(err, errShortStream):
		return sum, fmt.Errorf("%w: %s (%d of %d bytes)", ErrUnexpectedEOF, path, n, ch.Size)
	case err != nil:
		return sum, fmt.Errorf("chunk %s: %w", path, err)
	}
	return sum, nil
}

// checkFingerprint compares the joined fingerprint with the last split
// cataloged for the manifest path. A record whose source checksum differs
// from the manifest's describes an earlier split to the same place and is
// not compared.
func checkFingerprint(ctx context.Context, catalog Catalog, manifestPath string, res *joinOutcome, log *zap.Logger) error {
	run, err := catalog.LastSplit(ctx, absPath(manifestPath))
	if errors.Is(err, meta.ErrNotFound) {
		return nil
	}
	if err != nil {
		log.Warn("catalog lookup failed", zap.Error(err))
		return nil
	}
	if run.SourceChecksum != "" && res.manifestChecksum != "" && run.SourceChecksum != res.manifestChecksum {
		log.Info("catalog record is for another split, fingerprint not compared",
			zap.String("run", run.ID),
			zap.String("recorded_checksum", run.SourceChecksum),
			zap.String("manifest_checksum", res.manifestChecksum))
		return nil
	}
	if run.Fingerprint != "" && run.Fingerprint != res.Fingerprint {
		return fmt.Errorf("%w: split %s recorded %s, joined %s", ErrFingerprintMismatch, run.ID, run.Fingerprint, res.Fingerprint)
	}
	return nil
}
