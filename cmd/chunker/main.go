// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ragkit/textchunk/pkg/chunking"
	"github.com/ragkit/textchunk/pkg/core/config"
	"github.com/ragkit/textchunk/pkg/embedding"
	"github.com/ragkit/textchunk/pkg/observability/logging"
	"github.com/ragkit/textchunk/pkg/text"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

// output is the JSON document written to stdout.
type output struct {
	Chunks     []chunking.Chunk     `json:"chunks"`
	Embeddings [][]float32          `json:"embeddings,omitempty"`
	Stats      *chunking.Statistics `json:"stats,omitempty"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	inputPath := flag.String("input", "-", "Input text file, or - for stdin")
	maxTokens := flag.Int("max-tokens", 0, "Override max tokens per chunk")
	minTokens := flag.Int("min-tokens", 0, "Override min tokens per chunk")
	embed := flag.Bool("embed", false, "Also compute one embedding per chunk")
	stats := flag.Bool("stats", false, "Include chunking statistics in the output")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("Textchunk\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.Default()
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Debug("Starting chunker", "version", Version, "build_time", BuildTime)

	if *maxTokens > 0 {
		cfg.Chunking.MaxChunkTokens = *maxTokens
	}
	if *minTokens >= 0 && flagWasSet("min-tokens") {
		cfg.Chunking.MinChunkTokens = *minTokens
	}

	input, err := readInput(*inputPath)
	if err != nil {
		logger.Error("Failed to read input", "error", err)
		os.Exit(1)
	}

	provider, err := chunking.NewTiktokenProvider(cfg.Tokenizer.Encoding)
	if err != nil {
		logger.Error("Failed to initialize tokenizer", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized tokenizer", "encoding", provider.Encoding())

	chunker, err := chunking.NewChunker(cfg.Chunking, provider,
		chunking.WithLogger(logger.Logger),
		chunking.WithSentenceSplitter(text.NewSplitter(cfg.Splitter.ToSplitter())))
	if err != nil {
		logger.Error("Invalid chunking configuration", "error", err)
		os.Exit(1)
	}

	chunks, err := chunker.Chunk(input)
	if err != nil {
		logger.Error("Chunking failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Chunking completed", "chunks", len(chunks))
	logger.Debug(chunker.Statistics().Summary())

	result := output{Chunks: chunks}
	if *stats {
		result.Stats = chunker.Statistics()
	}

	if *embed {
		if cfg.Embedding.Endpoint == "" {
			logger.Error("Embedding requested but embedding.endpoint is not configured")
			os.Exit(1)
		}
		client := embedding.NewOpenAIClient(
			cfg.Embedding.Endpoint,
			cfg.Embedding.APIKey,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
		)
		logger.Info("Initialized embedding client",
			"endpoint", cfg.Embedding.Endpoint, "model", cfg.Embedding.Model)

		embedder, err := embedding.NewWindowedEmbedder(client, provider, cfg.Window, logger.Logger)
		if err != nil {
			logger.Error("Failed to initialize embedder", "error", err)
			os.Exit(1)
		}
		vectors, err := embedder.EmbedChunks(context.Background(), chunks)
		if err != nil {
			logger.Error("Embedding failed", "error", err)
			os.Exit(1)
		}
		result.Embeddings = vectors
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("Failed to encode output", "error", err)
		os.Exit(1)
	}
}

func readInput(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
