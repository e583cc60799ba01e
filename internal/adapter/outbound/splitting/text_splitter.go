// Package splitting implements the boundary-aware text splitter that
// partitions documents into bounded-size chunks for the correction engine.
package splitting

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"textchunking/internal/application/common/slogger"
	"textchunking/internal/domain/entity"
	domainerrors "textchunking/internal/domain/errors/domain"
	"textchunking/internal/domain/valueobject"
)

// sentenceRunes are sentence-ending punctuation marks, Latin and CJK.
var sentenceRunes = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// clauseRunes are clause punctuation marks, Latin and CJK.
var clauseRunes = map[rune]bool{
	',': true, ';': true, ':': true,
	'，': true, '；': true, '：': true,
}

// TextSplitter implements size-bounded splitting at preferred semantic
// boundaries. It is stateless and safe for concurrent use.
type TextSplitter struct{}

// NewTextSplitter creates a new text splitter.
func NewTextSplitter() *TextSplitter {
	return &TextSplitter{}
}

// segment is a half-open rune range [start, end) of the source text before
// trimming.
type segment struct {
	start int
	end   int
}

// Split partitions text into an ordered chunk plan under cfg's constraints.
// All sizes and offsets are in runes.
func (s *TextSplitter) Split(
	ctx context.Context,
	text string,
	cfg valueobject.SplitConfig,
) (*entity.SplitPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty or whitespace only", domainerrors.ErrInvalidInput)
	}

	runes := []rune(text)
	total := len(runes)
	if total > cfg.MaxInputSize {
		return nil, fmt.Errorf("%w: %d runes exceeds limit of %d",
			domainerrors.ErrInputTooLarge, total, cfg.MaxInputSize)
	}

	slogger.Debug(ctx, "Starting text split", slogger.Fields{
		"total_characters": total,
		"max_chunk_size":   cfg.MaxChunkSize,
		"overlap_size":     cfg.OverlapSize,
	})

	segments := s.planSegments(runes, cfg)
	chunks, err := s.packageSegments(runes, segments)
	if err != nil {
		return nil, err
	}

	plan, err := entity.NewSplitPlan(chunks, total, cfg.MaxChunkSize)
	if err != nil {
		return nil, err
	}

	slogger.Debug(ctx, "Text split completed", slogger.Fields{
		"total_characters": total,
		"chunk_count":      plan.ChunkCount(),
	})
	return plan, nil
}

// planSegments walks the text from position 0 choosing raw chunk boundaries.
func (s *TextSplitter) planSegments(runes []rune, cfg valueobject.SplitConfig) []segment {
	total := len(runes)
	if total <= cfg.MaxChunkSize {
		return []segment{{start: 0, end: total}}
	}

	var segments []segment
	pos := 0
	for pos < total {
		// The final chunk always runs to the end of the text.
		if total-pos <= cfg.MaxChunkSize {
			segments = append(segments, segment{start: pos, end: total})
			break
		}

		end := s.selectBoundary(runes, pos, cfg)
		segments = append(segments, segment{start: pos, end: end})

		next := end
		if cfg.OverlapSize > 0 {
			next = end - cfg.OverlapSize
		}
		// The rewound start must still advance past the previous start or a
		// short chunk would loop forever.
		if next <= pos {
			next = end
		}
		pos = next
	}
	return segments
}

// selectBoundary finds the end of the chunk starting at start: the strongest
// breakpoint within the look-back window from the hard limit, then the
// whitespace fallback around the hard limit, then the hard cut itself.
func (s *TextSplitter) selectBoundary(runes []rune, start int, cfg valueobject.SplitConfig) int {
	hardLimit := start + cfg.MaxChunkSize

	lo := hardLimit - valueobject.DefaultLookBackWindow
	if lo <= start {
		lo = start + 1
	}
	for _, class := range cfg.PreferredBreakpoints {
		// Scan backward so the cut lands as close to the size limit as the
		// class allows. The breakpoint rune stays in the emitted chunk.
		for i := hardLimit - 1; i >= lo; i-- {
			if matchesBreakpoint(runes, i, class) {
				return i + 1
			}
		}
	}

	if end, ok := s.whitespaceFallback(runes, start, hardLimit); ok {
		return end
	}

	// Hard cut with no natural break.
	return hardLimit
}

// whitespaceFallback looks for the nearest whitespace within the fallback
// radius on either side of the hard limit, preferring the earlier side on
// ties so the chunk stays within the size constraint.
func (s *TextSplitter) whitespaceFallback(runes []rune, start, hardLimit int) (int, bool) {
	total := len(runes)
	for d := 0; d <= valueobject.WhitespaceFallbackRadius; d++ {
		before := hardLimit - 1 - d
		if before > start && unicode.IsSpace(runes[before]) {
			return before + 1, true
		}
		after := hardLimit - 1 + d
		if d > 0 && after < total && unicode.IsSpace(runes[after]) {
			return after + 1, true
		}
	}
	return 0, false
}

// packageSegments trims each raw segment and builds chunk entities.
// Whitespace-only segments are dropped; exactly the last packaged chunk is
// marked final.
func (s *TextSplitter) packageSegments(runes []rune, segments []segment) ([]entity.Chunk, error) {
	type trimmed struct {
		content string
		rang    entity.OriginalRange
	}
	kept := make([]trimmed, 0, len(segments))
	for _, seg := range segments {
		content := strings.TrimSpace(string(runes[seg.start:seg.end]))
		if content == "" {
			continue
		}
		kept = append(kept, trimmed{
			content: content,
			rang:    entity.OriginalRange{Start: seg.start, End: seg.end},
		})
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no splittable content", domainerrors.ErrInvalidInput)
	}

	chunks := make([]entity.Chunk, 0, len(kept))
	for i, t := range kept {
		chunk, err := entity.NewChunk(t.content, t.rang, i == len(kept)-1)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// matchesBreakpoint reports whether position i is a boundary of the given
// class. A paragraph break is the second newline of a blank line.
func matchesBreakpoint(runes []rune, i int, class valueobject.BreakpointClass) bool {
	switch class {
	case valueobject.BreakpointParagraph:
		return runes[i] == '\n' && i >= 1 && runes[i-1] == '\n'
	case valueobject.BreakpointLine:
		return runes[i] == '\n'
	case valueobject.BreakpointSentence:
		return sentenceRunes[runes[i]]
	case valueobject.BreakpointClause:
		return clauseRunes[runes[i]]
	case valueobject.BreakpointSpace:
		return runes[i] == ' '
	default:
		return false
	}
}
