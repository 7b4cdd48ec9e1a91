// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the tool configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ragkit/textchunk/pkg/chunking"
	"github.com/ragkit/textchunk/pkg/embedding"
	"github.com/ragkit/textchunk/pkg/text"
)

// Config represents the main configuration
type Config struct {
	Logging   LoggingConfig            `yaml:"logging"`
	Chunking  chunking.Config          `yaml:"chunking"`
	Splitter  SplitterConfig           `yaml:"splitter"`
	Tokenizer TokenizerConfig          `yaml:"tokenizer"`
	Embedding EmbeddingConfig          `yaml:"embedding"`
	Window    embedding.WindowedConfig `yaml:"window"`
}

// LoggingConfig contains logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SplitterConfig contains sentence splitter configuration
type SplitterConfig struct {
	MaxBufLength int    `yaml:"max_buf_length"`
	Delimiters   string `yaml:"delimiters"`
	ForceChars   string `yaml:"force_chars"`
	BracketPairs string `yaml:"bracket_pairs"` // e.g. "「」,『』"
}

// ToSplitter converts the section into the splitter's own config type.
func (c SplitterConfig) ToSplitter() text.SplitterConfig {
	return text.SplitterConfig{
		MaxBufLength: c.MaxBufLength,
		Delimiters:   c.Delimiters,
		ForceChars:   c.ForceChars,
		BracketPairs: c.BracketPairs,
	}
}

// TokenizerConfig selects the tiktoken encoding or model name
type TokenizerConfig struct {
	Encoding string `yaml:"encoding"` // e.g. "cl100k_base" or a model name
}

// EmbeddingConfig contains embedding service configuration
type EmbeddingConfig struct {
	Endpoint   string `yaml:"endpoint"` // e.g. "https://api.openai.com/v1"
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`      // e.g. "text-embedding-3-small"
	Dimensions int    `yaml:"dimensions"` // 0 uses the model default
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// Environment variables override file config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTENCE_SPLITTER_MAX_BUF_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Splitter.MaxBufLength = n
		}
	}
	if v := os.Getenv("SENTENCE_SPLITTER_DELIMITER_CHARS"); v != "" {
		cfg.Splitter.Delimiters = v
	}
	if v := os.Getenv("SENTENCE_SPLITTER_FORCE"); v != "" {
		cfg.Splitter.ForceChars = v
	}
	if v := os.Getenv("SENTENCE_SPLITTER_PARENTHESE_PAIRS"); v != "" {
		cfg.Splitter.BracketPairs = v
	}

	if v := os.Getenv("TOKENIZER_ENCODING"); v != "" {
		cfg.Tokenizer.Encoding = v
	}

	if v := os.Getenv("EMBEDDING_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Chunking.MaxChunkTokens == 0 {
		cfg.Chunking = chunking.DefaultConfig()
	}
	if cfg.Tokenizer.Encoding == "" {
		cfg.Tokenizer.Encoding = "cl100k_base"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
}
