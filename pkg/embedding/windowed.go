// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ragkit/textchunk/pkg/chunking"
)

// WindowedConfig controls sliding-window embedding of token sequences longer
// than the model's maximum input length.
type WindowedConfig struct {
	// MaxSeqLength is the model's maximum input length in tokens.
	MaxSeqLength int `yaml:"max_seq_length" json:"max_seq_length"`
	// WindowStride is the token offset between consecutive window starts;
	// defaults to half of MaxSeqLength.
	WindowStride int `yaml:"window_stride" json:"window_stride"`
	// MinWindowSize drops a trailing window smaller than this.
	MinWindowSize int `yaml:"min_window_size" json:"min_window_size"`
	// Instruction is an optional prefix prepended to every window, as used
	// by instruction-tuned embedding models.
	Instruction string `yaml:"instruction" json:"instruction"`
	// MergeStrategy combines the per-window vectors.
	MergeStrategy chunking.MergeStrategy `yaml:"merge_strategy" json:"merge_strategy"`
}

func (c *WindowedConfig) applyDefaults() {
	if c.MaxSeqLength <= 0 {
		c.MaxSeqLength = 512
	}
	if c.WindowStride <= 0 {
		c.WindowStride = c.MaxSeqLength / 2
	}
	if c.MinWindowSize <= 0 {
		c.MinWindowSize = 64
	}
	if c.MergeStrategy == "" {
		c.MergeStrategy = chunking.MergeWeightedAverage
	}
}

// WindowedEmbedder embeds texts of any token length by windowing oversized
// token sequences and merging the window vectors. The token provider must
// support detokenization so window token ranges can be turned back into text.
type WindowedEmbedder struct {
	client   Client
	provider chunking.TokenProvider
	detok    chunking.Detokenizer
	config   WindowedConfig
	log      *slog.Logger
}

// NewWindowedEmbedder wires an embedding client to a detokenizing token
// provider.
func NewWindowedEmbedder(client Client, provider chunking.TokenProvider, cfg WindowedConfig, log *slog.Logger) (*WindowedEmbedder, error) {
	detok, ok := provider.(chunking.Detokenizer)
	if !ok {
		return nil, fmt.Errorf("token provider %T does not support detokenization", provider)
	}
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &WindowedEmbedder{
		client:   client,
		provider: provider,
		detok:    detok,
		config:   cfg,
		log:      log,
	}, nil
}

// EmbedText returns one vector for text, windowing when the token sequence
// exceeds the model's input length.
func (e *WindowedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	tokens, err := e.provider.Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("tokenize text for windowing: %w", err)
	}

	instructionLength := 0
	if e.config.Instruction != "" {
		instrTokens, err := e.provider.Tokenize(e.config.Instruction)
		if err != nil {
			return nil, fmt.Errorf("tokenize instruction: %w", err)
		}
		instructionLength = len(instrTokens)
	}

	windows, err := chunking.SlidingWindows(len(tokens), instructionLength,
		e.config.MaxSeqLength, e.config.WindowStride, e.config.MinWindowSize)
	if err != nil {
		return nil, err
	}

	if len(windows) == 1 {
		vectors, err := e.client.Embed(ctx, []string{e.config.Instruction + text})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, fmt.Errorf("expected 1 embedding, got %d", len(vectors))
		}
		return vectors[0], nil
	}

	e.log.Debug("embedding with sliding windows",
		"tokens", len(tokens), "windows", len(windows))

	inputs := make([]string, len(windows))
	for i, w := range windows {
		windowText, err := e.detok.Detokenize(tokens[w.Start:w.End])
		if err != nil {
			return nil, fmt.Errorf("detokenize window %d: %w", i, err)
		}
		inputs[i] = e.config.Instruction + windowText
	}

	vectors, err := e.client.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(windows) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(windows), len(vectors))
	}

	return chunking.MergeEmbeddings(vectors, e.config.MergeStrategy)
}

// EmbedChunks embeds each chunk's content in order, one vector per chunk.
func (e *WindowedEmbedder) EmbedChunks(ctx context.Context, chunks []chunking.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vec, err := e.EmbedText(ctx, chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
