package splitting

import (
	"context"
	"strings"
	"testing"

	domainerrors "textchunking/internal/domain/errors/domain"
	"textchunking/internal/domain/valueobject"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_SingleChunkWhenInputFits(t *testing.T) {
	splitter := NewTextSplitter()

	plan, err := splitter.Split(context.Background(), "  hello world  ", valueobject.DefaultSplitConfig())
	require.NoError(t, err)

	require.Equal(t, 1, plan.ChunkCount())
	chunk := plan.Chunks()[0]
	assert.Equal(t, "hello world", chunk.Content())
	assert.True(t, chunk.IsFinal())
	assert.Equal(t, 15, plan.TotalCharacters())
}

func TestSplit_WhitespaceOnlyInput(t *testing.T) {
	splitter := NewTextSplitter()

	inputs := []string{"", "   ", "\n\n\t  \n"}
	for _, input := range inputs {
		_, err := splitter.Split(context.Background(), input, valueobject.DefaultSplitConfig())
		require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	}
}

func TestSplit_InputTooLarge(t *testing.T) {
	splitter := NewTextSplitter()
	cfg := valueobject.DefaultSplitConfig()
	cfg.MaxInputSize = 100
	cfg.MaxChunkSize = 50
	cfg.OverlapSize = 0

	_, err := splitter.Split(context.Background(), strings.Repeat("a", 101), cfg)
	require.ErrorIs(t, err, domainerrors.ErrInputTooLarge)
}

func TestSplit_InvalidConfig(t *testing.T) {
	splitter := NewTextSplitter()
	cfg := valueobject.DefaultSplitConfig()
	cfg.OverlapSize = cfg.MaxChunkSize

	_, err := splitter.Split(context.Background(), "hello", cfg)
	require.ErrorIs(t, err, domainerrors.ErrInvalidSplitConfig)
}

func TestSplit_HardCutWithoutBoundaries(t *testing.T) {
	splitter := NewTextSplitter()

	// 1600 identical letters: no breakpoints, no whitespace. The first cut
	// lands on the hard limit and the overlap rewinds 50 runes.
	plan, err := splitter.Split(context.Background(), strings.Repeat("a", 1600), valueobject.DefaultSplitConfig())
	require.NoError(t, err)

	require.Equal(t, 2, plan.ChunkCount())
	chunks := plan.Chunks()

	assert.Equal(t, 1000, chunks[0].Length())
	assert.Equal(t, 0, chunks[0].OriginalRange().Start)
	assert.Equal(t, 1000, chunks[0].OriginalRange().End)

	assert.Equal(t, 650, chunks[1].Length())
	assert.Equal(t, 950, chunks[1].OriginalRange().Start)
	assert.Equal(t, 1600, chunks[1].OriginalRange().End)

	assert.False(t, chunks[0].IsFinal())
	assert.True(t, chunks[1].IsFinal())
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	splitter := NewTextSplitter()

	// The period at rune 900 sits inside the look-back window from the hard
	// limit at 1000, so the first chunk ends just after it.
	text := strings.Repeat("a", 900) + ". " + strings.Repeat("b", 300)
	plan, err := splitter.Split(context.Background(), text, valueobject.DefaultSplitConfig())
	require.NoError(t, err)

	require.Equal(t, 2, plan.ChunkCount())
	chunks := plan.Chunks()

	assert.True(t, strings.HasSuffix(chunks[0].Content(), "."))
	assert.Equal(t, 901, chunks[0].OriginalRange().End)

	// Overlap: the second chunk starts 50 runes before the first ended.
	assert.Equal(t, 851, chunks[1].OriginalRange().Start)
}

func TestSplit_ParagraphBreakBeatsWeakerBoundaries(t *testing.T) {
	splitter := NewTextSplitter()

	// Both a blank line and sentence periods are in the window; the
	// paragraph break wins.
	text := strings.Repeat("a", 840) + ". More text.\n\n" + strings.Repeat("b", 400)
	plan, err := splitter.Split(context.Background(), text, valueobject.DefaultSplitConfig())
	require.NoError(t, err)

	require.Equal(t, 2, plan.ChunkCount())
	first := plan.Chunks()[0]

	// Trimming drops the blank line itself but the raw range covers it.
	assert.True(t, strings.HasSuffix(first.Content(), "More text."))
	assert.Equal(t, 854, first.OriginalRange().End)
}

func TestSplit_WhitespaceFallbackPastHardLimit(t *testing.T) {
	splitter := NewTextSplitter()

	// No breakpoint in the look-back window; the only space sits just past
	// the hard limit, within the fallback radius.
	text := strings.Repeat("x", 1000) + " " + strings.Repeat("y", 200)
	plan, err := splitter.Split(context.Background(), text, valueobject.DefaultSplitConfig())
	require.NoError(t, err)

	require.Equal(t, 2, plan.ChunkCount())
	chunks := plan.Chunks()

	assert.Equal(t, 1001, chunks[0].OriginalRange().End)
	assert.Equal(t, 1000, chunks[0].Length()) // trailing space trimmed
	assert.Equal(t, strings.Repeat("y", 200), chunks[1].Content()[50:])
}

func TestSplit_CJKSentenceBoundary(t *testing.T) {
	splitter := NewTextSplitter()
	cfg := valueobject.DefaultSplitConfig()
	cfg.MaxChunkSize = 6
	cfg.OverlapSize = 0
	cfg.MaxInputSize = 100

	plan, err := splitter.Split(context.Background(), "第一段。第二段。", cfg)
	require.NoError(t, err)

	require.Equal(t, 2, plan.ChunkCount())
	chunks := plan.Chunks()
	assert.Equal(t, "第一段。", chunks[0].Content())
	assert.Equal(t, "第二段。", chunks[1].Content())
	assert.Equal(t, 4, chunks[0].Length())
}

func TestSplit_ChunkSizeInvariantOnProse(t *testing.T) {
	splitter := NewTextSplitter()
	cfg := valueobject.DefaultSplitConfig()
	cfg.MaxChunkSize = 100
	cfg.OverlapSize = 10
	cfg.MaxInputSize = 100000

	sentence := "The quick brown fox jumps over the lazy dog. "
	text := strings.TrimSpace(strings.Repeat(sentence, 80))
	totalRunes := len([]rune(text))

	plan, err := splitter.Split(context.Background(), text, cfg)
	require.NoError(t, err)

	minChunks := (totalRunes + cfg.MaxChunkSize - 1) / cfg.MaxChunkSize
	assert.GreaterOrEqual(t, plan.ChunkCount(), minChunks)

	chunks := plan.Chunks()
	for i, chunk := range chunks {
		assert.LessOrEqual(t, chunk.Length(), cfg.MaxChunkSize, "chunk %d over size limit", i)
		assert.NotEqual(t, "", strings.TrimSpace(chunk.Content()), "chunk %d is blank", i)
		assert.Equal(t, i == len(chunks)-1, chunk.IsFinal(), "chunk %d final flag", i)

		if i > 0 {
			assert.GreaterOrEqual(t, chunk.OriginalRange().Start, chunks[i-1].OriginalRange().Start,
				"chunk %d out of source order", i)
		}
	}
}

func TestSplit_ZeroOverlapAdvancesWithoutRevisiting(t *testing.T) {
	splitter := NewTextSplitter()
	cfg := valueobject.DefaultSplitConfig()
	cfg.MaxChunkSize = 100
	cfg.OverlapSize = 0

	plan, err := splitter.Split(context.Background(), strings.Repeat("z", 250), cfg)
	require.NoError(t, err)

	chunks := plan.Chunks()
	require.Equal(t, 3, plan.ChunkCount())
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].OriginalRange().End, chunks[i].OriginalRange().Start)
	}
}
