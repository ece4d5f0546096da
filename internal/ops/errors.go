package ops

import (
	"errors"

	"github.com/kk-code-lab/humpty/internal/storage/chunk"
	"github.com/kk-code-lab/humpty/internal/storage/manifest"
)

// Precondition failures, checked before any chunk is written.
var (
	ErrChunkSizeZero    = errors.New("chunk size must be greater than zero")
	ErrSourceMissing    = errors.New("input file does not exist")
	ErrSourceNotRegular = errors.New("input path is not a regular file")
	ErrCreateOutputDir  = errors.New("failed to create output directory")
)

// Stream failures.
var (
	ErrUnexpectedEOF = errors.New("unexpected end of chunk")
	ErrSourceShrank  = errors.New("unexpected end of input while splitting file")
)

// ErrInvalidManifest wraps manifest validation failures of a generated manifest.
var ErrInvalidManifest = errors.New("generated manifest is invalid")

// Integrity failures.
var (
	ErrChunkChecksum       = errors.New("chunk checksum mismatch")
	ErrSourceChecksum      = errors.New("source checksum mismatch after join")
	ErrSizeMismatch        = errors.New("output size does not match manifest source_size")
	ErrFingerprintMismatch = errors.New("fingerprint mismatch against catalog")
)

// ErrorKind classifies an operation failure.
type ErrorKind string

const (
	KindPrecondition ErrorKind = "precondition"
	KindIO           ErrorKind = "io"
	KindFormat       ErrorKind = "format"
	KindIntegrity    ErrorKind = "integrity"
)

// KindOf reports the class of err. Anything unrecognized is an I/O failure.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrChunkSizeZero),
		errors.Is(err, ErrSourceMissing),
		errors.Is(err, ErrSourceNotRegular),
		errors.Is(err, ErrCreateOutputDir),
		errors.Is(err, chunk.ErrZeroChunkSize),
		errors.Is(err, chunk.ErrTooManyChunks):
		return KindPrecondition
	case errors.Is(err, ErrInvalidManifest), errors.Is(err, manifest.ErrFormat):
		return KindFormat
	case errors.Is(err, ErrChunkChecksum),
		errors.Is(err, ErrSourceChecksum),
		errors.Is(err, ErrSizeMismatch),
		errors.Is(err, ErrFingerprintMismatch):
		return KindIntegrity
	default:
		return KindIO
	}
}
