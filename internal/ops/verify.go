package ops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kk-code-lab/humpty/internal/storage/chunk"
	"github.com/kk-code-lab/humpty/internal/storage/fs"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

const maxErrorSample = 5

// Report summarizes a verify run.
type Report struct {
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
	Mode               string    `json:"mode"`
	Manifest           string    `json:"manifest"`
	Chunks             int       `json:"chunks"`
	Bytes              uint64    `json:"bytes"`
	Errors             int       `json:"errors"`
	ErrorSample        []string  `json:"error_sample,omitempty"`
	MissingChunks      int       `json:"missing_chunks,omitempty"`
	ShortChunks        int       `json:"short_chunks,omitempty"`
	OversizedChunks    int       `json:"oversized_chunks,omitempty"`
	ChecksumMismatches int       `json:"checksum_mismatches,omitempty"`
	SourceChecked      bool      `json:"source_checked"`
	SourceChecksum     string    `json:"source_checksum,omitempty"`
	Fingerprint        string    `json:"fingerprint,omitempty"`
}

// OK reports whether the run found no problems.
func (r *Report) OK() bool {
	return r != nil && r.Errors == 0
}

func (r *Report) addError(err error) {
	r.Errors++
	if len(r.ErrorSample) < maxErrorSample {
		r.ErrorSample = append(r.ErrorSample, err.Error())
	}
}

// Verify checks every chunk named by the manifest in place, without writing
// an output file. Unlike Join it keeps going after a bad chunk and collects
// the problems in the report. The whole-file checksum is only checked when
// every chunk could be read in full. The returned error is non-nil only when
// the manifest itself cannot be read.
func Verify(ctx context.Context, manifestPath string, opts Options) (*Report, error) {
	log := opts.logger().With(zap.String("op", "verify"), zap.String("manifest", manifestPath))
	report := &Report{Mode: "verify", Manifest: manifestPath, StartedAt: opts.now().Now()}

	man, err := manifest.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	report.Chunks = len(man.Chunks)
	layout := fs.LayoutFor(manifestPath)

	sourceSum := chunk.NewDefaultDigest()
	finger := newFingerprint()
	buf := opts.buffer()
	complete := true

	for _, ch := range man.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := verifyChunk(report, layout, ch, io.MultiWriter(sourceSum, finger), buf)
		report.Bytes += n
		if !ok {
			complete = false
		}
		log.Debug("chunk verified", zap.Uint32("index", ch.Index), zap.Bool("ok", ok))
	}

	if complete {
		report.SourceChecked = true
		report.SourceChecksum = sourceSum.Hex()
		report.Fingerprint = finger.Hex()
		if man.SourceChecksum != "" && report.SourceChecksum != man.SourceChecksum {
			report.addError(fmt.Errorf("%w: manifest %s, computed %s", ErrSourceChecksum, man.SourceChecksum, report.SourceChecksum))
		}
	}
	report.FinishedAt = opts.now().Now()
	if report.OK() {
		log.Info("verify complete", zap.Int("chunks", report.Chunks), zap.Uint64("bytes", report.Bytes))
	} else {
		log.Info("verify found problems", zap.Int("errors", report.Errors))
	}
	return report, nil
}

// verifyChunk reads one chunk into sink and records any problem in report.
// ok is false when the chunk could not be read in full.
func verifyChunk(report *Report, layout fs.Layout, ch manifest.Chunk, sink io.Writer, buf []byte) (uint64, bool) {
	path := layout.ChunkPath(ch.FileName)
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		report.MissingChunks++
		report.addError(fmt.Errorf("missing chunk %d: %s", ch.Index, path))
		return 0, false
	}
	if err != nil {
		report.addError(fmt.Errorf("open chunk file %s: %w", path, err))
		return 0, false
	}
	defer func() { _ = file.Close() }()

	sum := chunk.NewDefaultDigest()
	n, err := copyExact(io.MultiWriter(sink, sum), file, ch.Size, buf)
	if errors.Is(err, errShortStream) {
		report.ShortChunks++
		report.addError(fmt.Errorf("%w: %s (%d of %d bytes)", ErrUnexpectedEOF, path, n, ch.Size))
		return n, false
	}
	if err != nil {
		report.addError(fmt.Errorf("chunk %s: %w", path, err))
		return n, false
	}

	var probe [1]byte
	if extra, _ := file.Read(probe[:]); extra > 0 {
		report.OversizedChunks++
		report.addError(fmt.Errorf("chunk %d has bytes beyond its recorded size %d: %s", ch.Index, ch.Size, path))
	}
	if ch.Checksum != "" && sum.Hex() != ch.Checksum {
		report.ChecksumMismatches++
		report.addError(fmt.Errorf("%w for %s (chunk %d): manifest %s, computed %s",
			ErrChunkChecksum, ch.FileName, ch.Index, ch.Checksum, sum.Hex()))
	}
	return n, true
}
