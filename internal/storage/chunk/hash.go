package chunk

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// FNV-1a 64-bit parameters.
const (
	OffsetBasis uint64 = 0xcbf29ce484222325
	Prime       uint64 = 0x100000001b3
)

// BufferSize is the streaming buffer used for chunk and file I/O (64 KiB).
const BufferSize = 64 << 10

// Sum folds data into seed with FNV-1a and returns the new accumulator.
// Sum(b, Sum(a, seed)) == Sum(a||b, seed).
func Sum(data []byte, seed uint64) uint64 {
	h := seed
	for _, b := range data {
		h ^= uint64(b)
		h *= Prime
	}
	return h
}

// Hex renders an accumulator as 16 lowercase hex digits.
func Hex(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// SumHex is Hex(Sum(data, seed)).
func SumHex(data []byte, seed uint64) string {
	return Hex(Sum(data, seed))
}

// Digest is a streaming FNV-1a accumulator implementing hash.Hash64.
// It never returns a write error, so it can sit behind io.MultiWriter
// next to the file being written.
type Digest struct {
	seed uint64
	sum  uint64
}

// NewDigest returns a digest starting from seed.
func NewDigest(seed uint64) *Digest {
	return &Digest{seed: seed, sum: seed}
}

// NewDefaultDigest returns a digest seeded with OffsetBasis.
func NewDefaultDigest() *Digest {
	return NewDigest(OffsetBasis)
}

func (d *Digest) Write(p []byte) (int, error) {
	d.sum = Sum(p, d.sum)
	return len(p), nil
}

// Sum64 returns the current accumulator.
func (d *Digest) Sum64() uint64 { return d.sum }

// Sum appends the big-endian accumulator to b.
func (d *Digest) Sum(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, d.sum)
}

// Hex renders the current accumulator.
func (d *Digest) Hex() string { return Hex(d.sum) }

// Reset restores the seed.
func (d *Digest) Reset() { d.sum = d.seed }

func (d *Digest) Size() int { return 8 }

func (d *Digest) BlockSize() int { return 1 }

// HashFile streams the file at path through the fold and returns its hex digest.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("chunk: open for hashing: %w", err)
	}
	defer func() { _ = file.Close() }()

	d := NewDefaultDigest()
	buf := make([]byte, BufferSize)
	for {
		n, err := file.Read(buf)
		if n > 0 {
			_, _ = d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("chunk: hashing %s: %w", path, err)
		}
	}
	return d.Hex(), nil
}
