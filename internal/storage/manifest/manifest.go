package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// FormatVersion is the only manifest version this package reads and writes.
const FormatVersion = "1"

// Validation failures. Decode wraps these together with ErrFormat.
var (
	ErrNilManifest        = errors.New("manifest: nil manifest")
	ErrMissingVersion     = errors.New("manifest: missing version")
	ErrUnsupportedVersion = errors.New("manifest: unsupported version")
	ErrMissingSourceFile  = errors.New("manifest: missing source file name")
	ErrLineBreak          = errors.New("manifest: name contains a line break")
	ErrZeroChunkSize      = errors.New("manifest: chunk size must be greater than zero")
	ErrNoChunks           = errors.New("manifest: no chunks")
	ErrDuplicateIndex     = errors.New("manifest: duplicate chunk index")
	ErrIndexOrder         = errors.New("manifest: chunk indices not dense and ascending")
	ErrOffset             = errors.New("manifest: chunk offset does not follow previous chunk")
	ErrEmptyChunk         = errors.New("manifest: chunk size must be greater than zero")
	ErrChunkFileName      = errors.New("manifest: invalid chunk file name")
	ErrChecksum           = errors.New("manifest: invalid checksum")
	ErrSizeMismatch       = errors.New("manifest: chunk sizes do not sum to source size")
)

// Chunk is one contiguous byte range of the source stored in its own file.
type Chunk struct {
	Index    uint32 `json:"index"`
	Offset   uint64 `json:"offset"`
	Size     uint64 `json:"size"`
	FileName string `json:"file_name"`
	Checksum string `json:"checksum"`
}

// Manifest describes how a source file was divided into chunks.
type Manifest struct {
	FormatVersion  string  `json:"format_version"`
	SourceFileName string  `json:"source_file_name"`
	SourceSize     uint64  `json:"source_size"`
	ChunkSize      uint64  `json:"chunk_size"`
	SourceChecksum string  `json:"source_checksum"`
	Chunks         []Chunk `json:"chunks"`
}

// New returns an empty manifest stamped with the current format version.
func New(sourceFileName string, sourceSize, chunkSize uint64) *Manifest {
	return &Manifest{
		FormatVersion:  FormatVersion,
		SourceFileName: sourceFileName,
		SourceSize:     sourceSize,
		ChunkSize:      chunkSize,
	}
}

// Validate checks the structural invariants. Chunks must be stored in dense
// ascending index order starting at 0 with contiguous offsets, so a valid
// manifest can be joined in stored order.
func (m *Manifest) Validate() error {
	if m == nil {
		return ErrNilManifest
	}
	if m.FormatVersion == "" {
		return ErrMissingVersion
	}
	if m.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, m.FormatVersion)
	}
	if err := ValidSourceFileName(m.SourceFileName); err != nil {
		return err
	}
	if m.ChunkSize == 0 {
		return ErrZeroChunkSize
	}
	if err := validChecksum(m.SourceChecksum); err != nil {
		return fmt.Errorf("source checksum: %w", err)
	}
	if len(m.Chunks) == 0 {
		return ErrNoChunks
	}

	seen := make(map[uint32]struct{}, len(m.Chunks))
	var offset uint64
	for i, ch := range m.Chunks {
		if _, ok := seen[ch.Index]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, ch.Index)
		}
		seen[ch.Index] = struct{}{}
		if uint64(ch.Index) != uint64(i) {
			return fmt.Errorf("%w: position %d holds index %d", ErrIndexOrder, i, ch.Index)
		}
		if err := validFileName(ch.FileName); err != nil {
			return fmt.Errorf("chunk %d: %w", ch.Index, err)
		}
		if ch.Size == 0 {
			return fmt.Errorf("chunk %d: %w", ch.Index, ErrEmptyChunk)
		}
		if ch.Offset != offset {
			return fmt.Errorf("%w: chunk %d at %d, want %d", ErrOffset, ch.Index, ch.Offset, offset)
		}
		if err := validChecksum(ch.Checksum); err != nil {
			return fmt.Errorf("chunk %d: %w", ch.Index, err)
		}
		if ch.Size > ^uint64(0)-offset {
			return fmt.Errorf("%w: overflow at chunk %d", ErrSizeMismatch, ch.Index)
		}
		offset += ch.Size
	}
	if offset != m.SourceSize {
		return fmt.Errorf("%w: chunks cover %d bytes, source_size is %d", ErrSizeMismatch, offset, m.SourceSize)
	}
	return nil
}

// ValidSourceFileName reports whether name can be stored as a manifest's
// source file name. The text format is line-oriented, so names holding a
// line break could be written but never read back.
func ValidSourceFileName(name string) error {
	if name == "" {
		return ErrMissingSourceFile
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: source file %q", ErrLineBreak, name)
	}
	return nil
}

// Chunk names are resolved next to the manifest, so they must be bare names.
func validFileName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrChunkFileName, name)
	case strings.ContainsRune(name, '/'), filepath.Base(name) != name:
		return fmt.Errorf("%w: %q contains a path separator", ErrChunkFileName, name)
	case strings.ContainsAny(name, "\r\n"):
		return fmt.Errorf("%w: %w: %q", ErrChunkFileName, ErrLineBreak, name)
	}
	return nil
}

// An empty checksum means "not recorded" and disables verification for that entry.
func validChecksum(sum string) error {
	if sum == "" {
		return nil
	}
	if len(sum) != 16 {
		return fmt.Errorf("%w: %q", ErrChecksum, sum)
	}
	for i := 0; i < len(sum); i++ {
		c := sum[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: %q", ErrChecksum, sum)
		}
	}
	return nil
}
