package chunk

// Span describes a byte range within a source file.
type Span struct {
	Index  uint32
	Offset uint64
	Len    uint64
}

// End returns the offset one past the last byte of the span.
func (s Span) End() uint64 {
	return s.Offset + s.Len
}
