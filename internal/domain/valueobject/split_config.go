package valueobject

import (
	"fmt"

	domainerrors "textchunking/internal/domain/errors/domain"
)

// Default splitting constraints.
const (
	DefaultMaxChunkSize = 1000
	DefaultOverlapSize  = 50
	DefaultMaxInputSize = 100000

	// DefaultLookBackWindow bounds how far the splitter scans backward from the
	// hard size limit when searching for a preferred breakpoint.
	DefaultLookBackWindow = 200

	// WhitespaceFallbackRadius bounds the whitespace fallback search around the
	// hard size limit when no preferred breakpoint is found.
	WhitespaceFallbackRadius = 50
)

// BreakpointClass identifies one class of preferred chunk boundary markers,
// ordered from strongest (paragraph break) to weakest (plain space).
type BreakpointClass string

// Breakpoint classes in default strength order.
const (
	BreakpointParagraph BreakpointClass = "paragraph"
	BreakpointLine      BreakpointClass = "line"
	BreakpointSentence  BreakpointClass = "sentence"
	BreakpointClause    BreakpointClass = "clause"
	BreakpointSpace     BreakpointClass = "space"
)

// validBreakpointClasses contains all valid breakpoint classes.
var validBreakpointClasses = map[BreakpointClass]bool{
	BreakpointParagraph: true,
	BreakpointLine:      true,
	BreakpointSentence:  true,
	BreakpointClause:    true,
	BreakpointSpace:     true,
}

// NewBreakpointClass creates a BreakpointClass with validation.
func NewBreakpointClass(class string) (BreakpointClass, error) {
	c := BreakpointClass(class)
	if !validBreakpointClasses[c] {
		return "", fmt.Errorf("invalid breakpoint class: %s", class)
	}
	return c, nil
}

// String returns the string representation of the breakpoint class.
func (c BreakpointClass) String() string {
	return string(c)
}

// DefaultBreakpointOrder returns the breakpoint classes tried from strongest
// to weakest when selecting a chunk boundary.
func DefaultBreakpointOrder() []BreakpointClass {
	return []BreakpointClass{
		BreakpointParagraph,
		BreakpointLine,
		BreakpointSentence,
		BreakpointClause,
		BreakpointSpace,
	}
}

// SplitConfig holds the constraints for one split operation. Sizes are
// measured in runes so multi-byte scripts are bounded correctly.
type SplitConfig struct {
	MaxChunkSize         int               `mapstructure:"max_chunk_size"        yaml:"max_chunk_size"`
	OverlapSize          int               `mapstructure:"overlap_size"          yaml:"overlap_size"`
	MaxInputSize         int               `mapstructure:"max_input_size"        yaml:"max_input_size"`
	PreferredBreakpoints []BreakpointClass `mapstructure:"preferred_breakpoints" yaml:"preferred_breakpoints"`
	PreserveParagraphs   bool              `mapstructure:"preserve_paragraphs"   yaml:"preserve_paragraphs"`
}

// DefaultSplitConfig returns the default splitting configuration.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		MaxChunkSize:         DefaultMaxChunkSize,
		OverlapSize:          DefaultOverlapSize,
		MaxInputSize:         DefaultMaxInputSize,
		PreferredBreakpoints: DefaultBreakpointOrder(),
		PreserveParagraphs:   true,
	}
}

// Validate ensures the split configuration is usable.
func (c SplitConfig) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d",
			domainerrors.ErrInvalidSplitConfig, c.MaxChunkSize)
	}
	if c.OverlapSize < 0 {
		return fmt.Errorf("%w: overlap size cannot be negative, got %d",
			domainerrors.ErrInvalidSplitConfig, c.OverlapSize)
	}
	if c.OverlapSize >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap size %d must be strictly less than max chunk size %d",
			domainerrors.ErrInvalidSplitConfig, c.OverlapSize, c.MaxChunkSize)
	}
	if c.MaxInputSize < c.MaxChunkSize {
		return fmt.Errorf("%w: max input size %d cannot be smaller than max chunk size %d",
			domainerrors.ErrInvalidSplitConfig, c.MaxInputSize, c.MaxChunkSize)
	}
	for _, class := range c.PreferredBreakpoints {
		if !validBreakpointClasses[class] {
			return fmt.Errorf("%w: unknown breakpoint class %q",
				domainerrors.ErrInvalidSplitConfig, string(class))
		}
	}
	return nil
}
