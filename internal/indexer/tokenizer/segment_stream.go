package tokenizer

import (
	"fmt"
	"iter"
	"unsafe"
)

// SegmentStream turns words produced by an external segmenter into tokens.
// Every segment must be a sub-slice of src (sharing its backing bytes), so
// offsets are recovered from where the segment sits in memory rather than
// by searching for its text. Positions are the segment indexes.
//
// A SegmentStream is single pass: once Advance returns false it stays
// exhausted.
type SegmentStream struct {
	src      string
	segments []string
	offsets  []int
	index    int
	token    Token
}

// NewSegmentStream validates that each segment lies inside src and records
// its byte offset.
func NewSegmentStream(src string, segments []string) (*SegmentStream, error) {
	if len(segments) > 0 && len(src) == 0 {
		return nil, fmt.Errorf("segments given for empty source")
	}
	base := stringAddr(src)
	for i, seg := range segments {
		if len(seg) == 0 {
			return nil, fmt.Errorf("segment %d is empty", i)
		}
		start := stringAddr(seg)
		if start < base || start-base+uintptr(len(seg)) > uintptr(len(src)) {
			return nil, fmt.Errorf("segment %d (%q) is not a sub-slice of the source", i, seg)
		}
	}
	return newSegmentStream(src, segments), nil
}

// newSegmentStream is NewSegmentStream for segments already known to be
// sub-slices of src, such as the output of Segment.
func newSegmentStream(src string, segments []string) *SegmentStream {
	base := stringAddr(src)
	offsets := make([]int, len(segments))
	for i, seg := range segments {
		offsets[i] = int(stringAddr(seg) - base)
	}
	return &SegmentStream{
		src:      src,
		segments: segments,
		offsets:  offsets,
	}
}

func stringAddr(s string) uintptr {
	if len(s) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.StringData(s)))
}

func (s *SegmentStream) Advance() bool {
	if s.index >= len(s.segments) {
		return false
	}
	word := s.segments[s.index]
	from := s.offsets[s.index]
	s.token = Token{
		OffsetFrom:     from,
		OffsetTo:       from + len(word),
		Position:       s.index,
		Text:           word,
		PositionLength: 1,
	}
	s.index++
	return true
}

func (s *SegmentStream) Token() Token {
	return s.token
}

// All yields the remaining tokens.
func (s *SegmentStream) All() iter.Seq[Token] {
	return Seq(s)
}
