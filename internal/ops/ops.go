package ops

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path/filepath"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/kk-code-lab/humpty/internal/clock"
	"github.com/kk-code-lab/humpty/internal/meta"
	"github.com/kk-code-lab/humpty/internal/storage/chunk"
)

// Catalog records runs. *meta.Store implements it.
type Catalog interface {
	RecordRun(ctx context.Context, run meta.Run) (meta.Run, error)
	LastSplit(ctx context.Context, manifestPath string) (*meta.Run, error)
}

// Options carries the collaborators shared by all operations.
// The zero value is usable.
type Options struct {
	Logger     *zap.Logger
	BufferSize int
	Catalog    Catalog
	Clock      clock.Clock
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) buffer() []byte {
	size := o.BufferSize
	if size <= 0 {
		size = chunk.BufferSize
	}
	return make([]byte, size)
}

func (o Options) now() clock.Clock {
	if o.Clock == nil {
		return clock.RealClock{}
	}
	return o.Clock
}

// fingerprint is the BLAKE3-256 fold kept alongside the FNV checksums. It is
// reported and cataloged but never written to the manifest.
type fingerprint struct {
	h hash.Hash
}

func newFingerprint() *fingerprint {
	return &fingerprint{h: blake3.New()}
}

func (f *fingerprint) Write(p []byte) (int, error) { return f.h.Write(p) }

func (f *fingerprint) Hex() string { return hex.EncodeToString(f.h.Sum(nil)) }

var errShortStream = errors.New("short stream")

// copyExact streams exactly n bytes from src to dst using buf. A source that
// ends early yields errShortStream with the number of bytes copied so far.
// Read and write failures are wrapped so callers can tell them apart.
func copyExact(dst io.Writer, src io.Reader, n uint64, buf []byte) (uint64, error) {
	var copied uint64
	for copied < n {
		want := min(uint64(len(buf)), n-copied)
		got, err := src.Read(buf[:want])
		if got > 0 {
			if _, werr := dst.Write(buf[:got]); werr != nil {
				return copied, fmt.Errorf("write: %w", werr)
			}
			copied += uint64(got)
		}
		if err == io.EOF {
			if copied < n {
				return copied, errShortStream
			}
			break
		}
		if err != nil {
			return copied, fmt.Errorf("read: %w", err)
		}
	}
	return copied, nil
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
