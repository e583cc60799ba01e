package entity

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrEmptyChunkContent = errors.New("chunk content cannot be empty")
	ErrInvalidChunkRange = errors.New("chunk range end must not precede start")
	ErrEmptySplitPlan    = errors.New("split plan must contain at least one chunk")
)

// OriginalRange records the pre-trim rune offsets of a chunk within the
// source text. Ranges of adjacent chunks may overlap when overlap is
// configured.
type OriginalRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk is one immutable bounded-size unit of a split text document.
type Chunk struct {
	id            uuid.UUID
	content       string
	originalRange OriginalRange
	length        int
	isFinal       bool
}

// NewChunk creates a chunk from already-trimmed content. The id is generated
// fresh and is opaque; ordering is carried by the split plan, never by id.
func NewChunk(content string, originalRange OriginalRange, isFinal bool) (Chunk, error) {
	if content == "" {
		return Chunk{}, ErrEmptyChunkContent
	}
	if originalRange.End < originalRange.Start {
		return Chunk{}, ErrInvalidChunkRange
	}
	return Chunk{
		id:            uuid.New(),
		content:       content,
		originalRange: originalRange,
		length:        utf8.RuneCountInString(content),
		isFinal:       isFinal,
	}, nil
}

// ID returns the chunk's opaque identifier.
func (c Chunk) ID() uuid.UUID {
	return c.id
}

// Content returns the chunk's trimmed text payload.
func (c Chunk) Content() string {
	return c.content
}

// OriginalRange returns the pre-trim offsets into the source text.
func (c Chunk) OriginalRange() OriginalRange {
	return c.originalRange
}

// Length returns the rune count of the trimmed content. It may differ
// slightly from End-Start because of edge trimming.
func (c Chunk) Length() int {
	return c.length
}

// IsFinal reports whether this is the last chunk in the plan.
func (c Chunk) IsFinal() bool {
	return c.isFinal
}

// SplitPlan is the immutable result of one split operation.
type SplitPlan struct {
	chunks          []Chunk
	totalCharacters int
	maxChunkSize    int
}

// NewSplitPlan assembles a plan from chunks in source order.
func NewSplitPlan(chunks []Chunk, totalCharacters, maxChunkSize int) (*SplitPlan, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptySplitPlan
	}
	owned := make([]Chunk, len(chunks))
	copy(owned, chunks)
	return &SplitPlan{
		chunks:          owned,
		totalCharacters: totalCharacters,
		maxChunkSize:    maxChunkSize,
	}, nil
}

// Chunks returns the ordered chunks. The returned slice is a copy; the plan
// itself is never mutated after creation.
func (p *SplitPlan) Chunks() []Chunk {
	chunks := make([]Chunk, len(p.chunks))
	copy(chunks, p.chunks)
	return chunks
}

// ChunkCount returns the number of chunks in the plan.
func (p *SplitPlan) ChunkCount() int {
	return len(p.chunks)
}

// TotalCharacters returns the rune count of the source text.
func (p *SplitPlan) TotalCharacters() int {
	return p.totalCharacters
}

// MaxChunkSize returns the size constraint the plan was produced under.
func (p *SplitPlan) MaxChunkSize() int {
	return p.maxChunkSize
}
