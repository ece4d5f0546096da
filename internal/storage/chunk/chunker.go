package chunk

import (
	"errors"
	"fmt"
	"math"
)

// IndexWidth is the zero-padded width of the index in chunk file names.
const IndexWidth = 4

var (
	ErrZeroChunkSize = errors.New("chunk: chunk size must be greater than zero")
	ErrTooManyChunks = errors.New("chunk: chunk count exceeds 32-bit index space")
)

// Plan computes fixed-size chunk boundaries over a source of known length.
// Every span has size min(ChunkSize, SourceSize-offset); the last one may be smaller.
type Plan struct {
	SourceSize uint64
	ChunkSize  uint64
}

// NewPlan validates the sizes and returns a plan.
func NewPlan(sourceSize, chunkSize uint64) (Plan, error) {
	if chunkSize == 0 {
		return Plan{}, ErrZeroChunkSize
	}
	p := Plan{SourceSize: sourceSize, ChunkSize: chunkSize}
	if p.Count() > math.MaxUint32+1 {
		return Plan{}, ErrTooManyChunks
	}
	return p, nil
}

// Count returns the number of spans in the plan.
func (p Plan) Count() uint64 {
	if p.ChunkSize == 0 {
		return 0
	}
	n := p.SourceSize / p.ChunkSize
	if p.SourceSize%p.ChunkSize != 0 {
		n++
	}
	return n
}

// Spans calls fn for every span in increasing index order and stops at the first error.
func (p Plan) Spans(fn func(Span) error) error {
	if p.ChunkSize == 0 {
		return ErrZeroChunkSize
	}
	var (
		offset uint64
		index  uint32
	)
	for offset < p.SourceSize {
		span := Span{Index: index, Offset: offset, Len: min(p.ChunkSize, p.SourceSize-offset)}
		if err := fn(span); err != nil {
			return err
		}
		offset = span.End()
		index++
	}
	return nil
}

// FileName returns the deterministic chunk file name for base and index.
func FileName(base string, index uint32) string {
	return fmt.Sprintf("%s.part%0*d", base, IndexWidth, index)
}
