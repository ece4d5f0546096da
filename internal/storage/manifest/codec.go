package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrFormat marks every manifest read failure, whether the text could not be
// parsed or the parsed value broke a structural invariant.
var ErrFormat = errors.New("manifest: format error")

// Codec serializes and deserializes manifests.
type Codec interface {
	Encode(w io.Writer, m *Manifest) error
	Decode(r io.Reader) (*Manifest, error)
}

// TextCodec implements the line-oriented manifest format:
//
//	version 1
//	source_file "input.bin"
//	source_size 200000
//	chunk_size 65536
//	source_checksum "0123456789abcdef"
//	chunks 4
//	chunk 0 0 65536 "input.bin.part0000" "0123456789abcdef"
//
// String fields are double-quoted with '"' and '\' escaped by a backslash.
type TextCodec struct{}

const (
	keyVersion        = "version"
	keySourceFile     = "source_file"
	keySourceSize     = "source_size"
	keyChunkSize      = "chunk_size"
	keySourceChecksum = "source_checksum"
	keyChunks         = "chunks"
	keyChunk          = "chunk"
)

// Encode validates m and writes it.
func (c *TextCodec) Encode(w io.Writer, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s %s\n", keyVersion, m.FormatVersion)
	fmt.Fprintf(bw, "%s %s\n", keySourceFile, quote(m.SourceFileName))
	fmt.Fprintf(bw, "%s %d\n", keySourceSize, m.SourceSize)
	fmt.Fprintf(bw, "%s %d\n", keyChunkSize, m.ChunkSize)
	fmt.Fprintf(bw, "%s %s\n", keySourceChecksum, quote(m.SourceChecksum))
	fmt.Fprintf(bw, "%s %d\n", keyChunks, len(m.Chunks))
	for _, ch := range m.Chunks {
		fmt.Fprintf(bw, "%s %d %d %d %s %s\n", keyChunk, ch.Index, ch.Offset, ch.Size, quote(ch.FileName), quote(ch.Checksum))
	}
	return bw.Flush()
}

// Decode parses and validates a manifest. It never returns a partially valid value.
func (c *TextCodec) Decode(r io.Reader) (*Manifest, error) {
	var (
		m        Manifest
		declared uint64
		lineNo   int
	)
	seen := make(map[string]bool)
	br := bufio.NewReader(r)
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, fmt.Errorf("manifest: read: %w", readErr)
		}
		if line != "" {
			lineNo++
			if err := c.decodeLine(&m, &declared, seen, line); err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrFormat, lineNo, err)
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	if declared != 0 && declared != uint64(len(m.Chunks)) {
		return nil, fmt.Errorf("%w: declared %d chunks, found %d", ErrFormat, declared, len(m.Chunks))
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	return &m, nil
}

func (c *TextCodec) decodeLine(m *Manifest, declared *uint64, seen map[string]bool, line string) error {
	s := &lineScanner{line: line}
	key := s.word()
	if key == "" {
		return nil
	}
	if key != keyChunk {
		if seen[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true
	}

	var err error
	switch key {
	case keyVersion:
		m.FormatVersion = s.word()
	case keySourceFile:
		m.SourceFileName, err = s.quoted()
	case keySourceSize:
		m.SourceSize, err = parseUint(keySourceSize, s.word(), 64)
	case keyChunkSize:
		m.ChunkSize, err = parseUint(keyChunkSize, s.word(), 64)
	case keySourceChecksum:
		m.SourceChecksum, err = s.quoted()
	case keyChunks:
		*declared, err = parseUint(keyChunks, s.word(), 64)
	case keyChunk:
		var ch Chunk
		ch, err = decodeChunk(s)
		if err == nil {
			m.Chunks = append(m.Chunks, ch)
		}
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	if err != nil {
		return err
	}
	if s.more() {
		return fmt.Errorf("trailing data after %q", key)
	}
	return nil
}

func decodeChunk(s *lineScanner) (Chunk, error) {
	var ch Chunk
	index, err := parseUint("chunk index", s.word(), 32)
	if err != nil {
		return ch, err
	}
	ch.Index = uint32(index)
	if ch.Offset, err = parseUint("chunk offset", s.word(), 64); err != nil {
		return ch, err
	}
	if ch.Size, err = parseUint("chunk size", s.word(), 64); err != nil {
		return ch, err
	}
	if ch.FileName, err = s.quoted(); err != nil {
		return ch, err
	}
	if ch.FileName == "" {
		return ch, fmt.Errorf("chunk %d: %w", ch.Index, ErrChunkFileName)
	}
	if ch.Checksum, err = s.quoted(); err != nil {
		return ch, err
	}
	return ch, nil
}

// parseUint accepts only plain decimal digits that fit in bits.
func parseUint(field, token string, bits int) (uint64, error) {
	if token == "" {
		return 0, fmt.Errorf("missing %s", field)
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return 0, fmt.Errorf("invalid %s %q", field, token)
		}
	}
	v, err := strconv.ParseUint(token, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: out of range", field, token)
	}
	return v, nil
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

type lineScanner struct {
	line string
	pos  int
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func (s *lineScanner) skipSpace() {
	for s.pos < len(s.line) && isSpace(s.line[s.pos]) {
		s.pos++
	}
}

func (s *lineScanner) more() bool {
	s.skipSpace()
	return s.pos < len(s.line)
}

// word returns the next whitespace-delimited token, or "" at end of line.
func (s *lineScanner) word() string {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.line) && !isSpace(s.line[s.pos]) {
		s.pos++
	}
	return s.line[start:s.pos]
}

// quoted reads a quoted string. An unquoted token is accepted as-is.
func (s *lineScanner) quoted() (string, error) {
	s.skipSpace()
	if s.pos >= len(s.line) || s.line[s.pos] != '"' {
		return s.word(), nil
	}
	s.pos++
	var b strings.Builder
	for s.pos < len(s.line) {
		c := s.line[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.line) {
				return "", errors.New("unterminated escape")
			}
			b.WriteByte(s.line[s.pos])
			s.pos++
		case '"':
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", errors.New("unterminated quoted string")
}

// ReadFile decodes the manifest stored at path.
func ReadFile(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	return (&TextCodec{}).Decode(file)
}

// WriteFile validates m and writes it to path, replacing any existing file.
func WriteFile(path string, m *Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("manifest: create %s: %w", path, err)
	}
	if err := (&TextCodec{}).Encode(file, m); err != nil {
		_ = file.Close()
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("manifest: close %s: %w", path, err)
	}
	return nil
}
