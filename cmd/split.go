package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"textchunking/internal/adapter/outbound/splitting"
	"textchunking/internal/domain/entity"
	"textchunking/internal/domain/valueobject"

	"github.com/spf13/cobra"
)

// splitCmd implements: textchunking split --file doc.txt [--profile profile.yaml] [--out out.json].
func newSplitCmd() *cobra.Command {
	var filePath string
	var profilePath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split a single text document into a chunk plan",
		RunE: func(_ *cobra.Command, _ []string) error {
			if strings.TrimSpace(filePath) == "" {
				return errors.New("--file is required")
			}
			return runSplit(filePath, profilePath, outPath)
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "Path to text file (required)")
	cmd.Flags().StringVar(&profilePath, "profile", "", "Optional splitter profile YAML")
	cmd.Flags().StringVar(&outPath, "out", "", "Optional path to write JSON output")

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// chunkOutput is the JSON shape of one chunk in the command output.
type chunkOutput struct {
	ID            string               `json:"id"`
	Content       string               `json:"content"`
	OriginalRange entity.OriginalRange `json:"original_range"`
	Length        int                  `json:"length"`
	IsFinal       bool                 `json:"is_final"`
}

// planOutput is the JSON shape of the command output.
type planOutput struct {
	File            string        `json:"file"`
	TotalCharacters int           `json:"total_characters"`
	ChunkCount      int           `json:"chunk_count"`
	MaxChunkSize    int           `json:"max_chunk_size"`
	Chunks          []chunkOutput `json:"chunks"`
}

func runSplit(filePath, profilePath, outPath string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	src, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	splitCfg, err := resolveSplitConfig(profilePath)
	if err != nil {
		return err
	}

	plan, err := splitting.NewTextSplitter().Split(ctx, string(src), splitCfg)
	if err != nil {
		return fmt.Errorf("split text: %w", err)
	}

	return outputPlan(filePath, plan, outPath)
}

// resolveSplitConfig layers the optional profile over the loaded app config.
func resolveSplitConfig(profilePath string) (valueobject.SplitConfig, error) {
	if profilePath != "" {
		splitCfg, err := splitting.LoadSplitterProfile(profilePath)
		if err != nil {
			return valueobject.SplitConfig{}, fmt.Errorf("load profile: %w", err)
		}
		return splitCfg, nil
	}
	if appCfg := GetConfig(); appCfg != nil {
		return appCfg.Splitter.ToSplitConfig(), nil
	}
	return valueobject.DefaultSplitConfig(), nil
}

func outputPlan(filePath string, plan *entity.SplitPlan, outPath string) error {
	out := planOutput{
		File:            filePath,
		TotalCharacters: plan.TotalCharacters(),
		ChunkCount:      plan.ChunkCount(),
		MaxChunkSize:    plan.MaxChunkSize(),
	}
	for _, chunk := range plan.Chunks() {
		out.Chunks = append(out.Chunks, chunkOutput{
			ID:            chunk.ID().String(),
			Content:       chunk.Content(),
			OriginalRange: chunk.OriginalRange(),
			Length:        chunk.Length(),
			IsFinal:       chunk.IsFinal(),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, data, 0o600); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}

	fmt.Println(string(data))
	return nil
}

func init() {
	rootCmd.AddCommand(newSplitCmd())
}
