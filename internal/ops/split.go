package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kk-code-lab/humpty/internal/meta"
	"github.com/kk-code-lab/humpty/internal/storage/chunk"
	"github.com/kk-code-lab/humpty/internal/storage/fs"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

// SplitRequest names the source, the output directory and the chunk size in bytes.
type SplitRequest struct {
	InputPath string
	OutputDir string
	ChunkSize uint64
}

// SplitResult summarizes a completed split.
type SplitResult struct {
	ManifestPath   string    `json:"manifest_path"`
	ChunkCount     int       `json:"chunk_count"`
	TotalBytes     uint64    `json:"total_bytes"`
	SourceChecksum string    `json:"source_checksum"`
	Fingerprint    string    `json:"fingerprint"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Split reads the source once and writes bounded-size chunk files plus a
// manifest into the output directory. Any failure aborts the run before the
// manifest is written; chunk files already written stay on disk.
func Split(ctx context.Context, req SplitRequest, opts Options) (*SplitResult, error) {
	log := opts.logger().With(zap.String("op", "split"), zap.String("input", req.InputPath))
	res, err := split(req, opts, log)
	if err != nil {
		log.Info("split aborted", zap.String("kind", string(KindOf(err))), zap.Error(err))
		return nil, err
	}
	if opts.Catalog != nil {
		_, cerr := opts.Catalog.RecordRun(ctx, meta.Run{
			Kind:           meta.KindSplit,
			ManifestPath:   absPath(res.ManifestPath),
			SourceName:     filepath.Base(req.InputPath),
			Bytes:          res.TotalBytes,
			Chunks:         res.ChunkCount,
			SourceChecksum: res.SourceChecksum,
			Fingerprint:    res.Fingerprint,
		})
		if cerr != nil {
			log.Warn("catalog record failed", zap.Error(cerr))
		}
	}
	log.Info("split complete",
		zap.String("manifest", res.ManifestPath),
		zap.Int("chunks", res.ChunkCount),
		zap.Uint64("bytes", res.TotalBytes))
	return res, nil
}

func split(req SplitRequest, opts Options, log *zap.Logger) (*SplitResult, error) {
	started := opts.now().Now()
	if req.ChunkSize == 0 {
		return nil, ErrChunkSizeZero
	}
	info, err := os.Stat(req.InputPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, req.InputPath)
	}
	if err != nil {
		return nil, fmt.Errorf("stat input %s: %w", req.InputPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotRegular, req.InputPath)
	}
	sourceName := filepath.Base(req.InputPath)
	if err := manifest.ValidSourceFileName(sourceName); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreateOutputDir, req.OutputDir, err)
	}

	src, err := os.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", req.InputPath, err)
	}
	defer func() { _ = src.Close() }()
	info, err = src.Stat()
	if err != nil {
		return nil, fmt.Errorf("read input size %s: %w", req.InputPath, err)
	}
	sourceSize := uint64(info.Size())

	plan, err := chunk.NewPlan(sourceSize, req.ChunkSize)
	if err != nil {
		return nil, err
	}

	layout := fs.NewLayout(req.OutputDir)
	man := manifest.New(sourceName, sourceSize, req.ChunkSize)
	man.Chunks = make([]manifest.Chunk, 0, min(plan.Count(), 1<<16))
	sourceSum := chunk.NewDefaultDigest()
	finger := newFingerprint()
	buf := opts.buffer()

	err = plan.Spans(func(span chunk.Span) error {
		ch, err := writeChunk(layout, man.SourceFileName, span, src, buf, sourceSum, finger)
		if err != nil {
			return err
		}
		log.Debug("chunk written",
			zap.Uint32("index", ch.Index),
			zap.Uint64("offset", ch.Offset),
			zap.Uint64("size", ch.Size),
			zap.String("checksum", ch.Checksum))
		man.Chunks = append(man.Chunks, ch)
		return nil
	})
	if err != nil {
		return nil, err
	}

	man.SourceChecksum = sourceSum.Hex()
	if err := man.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	manifestPath := layout.ManifestPath(man.SourceFileName)
	if err := manifest.WriteFile(manifestPath, man); err != nil {
		return nil, err
	}
	return &SplitResult{
		ManifestPath:   manifestPath,
		ChunkCount:     len(man.Chunks),
		TotalBytes:     man.SourceSize,
		SourceChecksum: man.SourceChecksum,
		Fingerprint:    finger.Hex(),
		StartedAt:      started,
		FinishedAt:     opts.now().Now(),
	}, nil
}

// writeChunk copies one span of src into its own file. The bytes are folded
// into a fresh per-chunk digest and the running source digest and fingerprint
// in the same pass.
func writeChunk(layout fs.Layout, sourceName string, span chunk.Span, src io.Reader, buf []byte, sourceSum *chunk.Digest, finger *fingerprint) (manifest.Chunk, error) {
	ch := manifest.Chunk{
		Index:    span.Index,
		Offset:   span.Offset,
		Size:     span.Len,
		FileName: chunk.FileName(sourceName, span.Index),
	}
	path := layout.ChunkPathFor(sourceName, span.Index)
	out, err := os.Create(path)
	if err != nil {
		return ch, fmt.Errorf("open chunk for writing %s: %w", path, err)
	}
	chunkSum := chunk.NewDefaultDigest()
	_, err = copyExact(io.MultiWriter(out, chunkSum, sourceSum, finger), src, span.Len, buf)
	if err != nil {
		_ = out.Close()
		if errors.Is(err, errShortStream) {
			return ch, fmt.Errorf("%w: chunk %d", ErrSourceShrank, span.Index)
		}
		return ch, fmt.Errorf("chunk %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return ch, fmt.Errorf("close chunk %s: %w", path, err)
	}
	ch.Checksum = chunkSum.Hex()
	return ch, nil
}
