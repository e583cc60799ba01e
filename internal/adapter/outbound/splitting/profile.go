package splitting

import (
	"fmt"
	"os"

	"textchunking/internal/domain/valueobject"

	"gopkg.in/yaml.v3"
)

// SplitterProfile is an optional YAML document overriding the default split
// configuration, e.g. a profile tuned for CJK prose or for plain-text logs.
type SplitterProfile struct {
	MaxChunkSize         int      `yaml:"max_chunk_size"`
	OverlapSize          *int     `yaml:"overlap_size"`
	MaxInputSize         int      `yaml:"max_input_size"`
	PreferredBreakpoints []string `yaml:"preferred_breakpoints"`
	PreserveParagraphs   *bool    `yaml:"preserve_paragraphs"`
}

// LoadSplitterProfile reads a YAML profile file and merges it over the
// default split configuration. Unset fields keep their defaults.
func LoadSplitterProfile(path string) (valueobject.SplitConfig, error) {
	cfg := valueobject.DefaultSplitConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read splitter profile: %w", err)
	}

	var profile SplitterProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return cfg, fmt.Errorf("failed to parse splitter profile: %w", err)
	}

	merged, err := profile.Apply(cfg)
	if err != nil {
		return cfg, err
	}
	return merged, nil
}

// Apply merges the profile over a base configuration and validates the
// result.
func (p SplitterProfile) Apply(base valueobject.SplitConfig) (valueobject.SplitConfig, error) {
	cfg := base
	if p.MaxChunkSize > 0 {
		cfg.MaxChunkSize = p.MaxChunkSize
	}
	if p.OverlapSize != nil {
		cfg.OverlapSize = *p.OverlapSize
	}
	if p.MaxInputSize > 0 {
		cfg.MaxInputSize = p.MaxInputSize
	}
	if len(p.PreferredBreakpoints) > 0 {
		classes := make([]valueobject.BreakpointClass, 0, len(p.PreferredBreakpoints))
		for _, name := range p.PreferredBreakpoints {
			class, err := valueobject.NewBreakpointClass(name)
			if err != nil {
				return base, fmt.Errorf("invalid splitter profile: %w", err)
			}
			classes = append(classes, class)
		}
		cfg.PreferredBreakpoints = classes
	}
	if p.PreserveParagraphs != nil {
		cfg.PreserveParagraphs = *p.PreserveParagraphs
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}
