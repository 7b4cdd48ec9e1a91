// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

// Config is the immutable per-run chunking policy.
type Config struct {
	// MaxChunkTokens is the hard upper bound on every output chunk's token
	// count. Must be greater than zero.
	MaxChunkTokens int `yaml:"max_chunk_tokens" json:"max_chunk_tokens"`
	// MinChunkTokens is the lower bound; smaller chunks are merged when
	// merging is enabled, otherwise dropped by the post-filter.
	MinChunkTokens int `yaml:"min_chunk_tokens" json:"min_chunk_tokens"`
	// EnableParagraphMerging merges consecutive undersized paragraphs.
	EnableParagraphMerging bool `yaml:"enable_paragraph_merging" json:"enable_paragraph_merging"`
	// EnableSentenceSplitting splits oversized paragraphs at sentence
	// boundaries before falling back to forced splitting.
	EnableSentenceSplitting bool `yaml:"enable_sentence_splitting" json:"enable_sentence_splitting"`
	// EnableForcedSplitting allows character-level splitting as a last resort.
	EnableForcedSplitting bool `yaml:"enable_forced_splitting" json:"enable_forced_splitting"`
}

// DefaultConfig returns the general-purpose policy.
func DefaultConfig() Config {
	return Config{
		MaxChunkTokens:          1024,
		MinChunkTokens:          50,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
}

// EmbeddingConfig returns a policy tuned for embedding generation: the
// minimum is kept very small so short but meaningful chunks survive.
func EmbeddingConfig(maxTokens int) Config {
	return Config{
		MaxChunkTokens:          maxTokens,
		MinChunkTokens:          5,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
}

// SpeedConfig returns a policy that skips paragraph merging.
func SpeedConfig() Config {
	return Config{
		MaxChunkTokens:          512,
		MinChunkTokens:          20,
		EnableParagraphMerging:  false,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
}

// QualityConfig returns a policy favoring large boundary-preserving chunks.
func QualityConfig() Config {
	return Config{
		MaxChunkTokens:          1536,
		MinChunkTokens:          100,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
}

// Validate checks the closed-range invariants. It must pass before the
// config is used; NewChunker enforces this.
func (c Config) Validate() error {
	if c.MaxChunkTokens <= 0 {
		return configErrorf("max_chunk_tokens must be greater than 0")
	}
	if c.MinChunkTokens >= c.MaxChunkTokens {
		return configErrorf("min_chunk_tokens must be less than max_chunk_tokens")
	}
	if !c.EnableSentenceSplitting && !c.EnableForcedSplitting {
		return configErrorf("at least one splitting method must be enabled")
	}
	return nil
}

// FallbackStrategy selects how token counts are produced when no token
// provider is available.
type FallbackStrategy int

const (
	// FallbackCharacterEstimation estimates one token per four bytes of text.
	FallbackCharacterEstimation FallbackStrategy = iota
	// FallbackCharacterLimit treats the byte count itself as the token count.
	FallbackCharacterLimit
	// FallbackRequireTokenProvider fails construction without a provider.
	FallbackRequireTokenProvider
)

func (s FallbackStrategy) String() string {
	switch s {
	case FallbackCharacterEstimation:
		return "character_estimation"
	case FallbackCharacterLimit:
		return "character_limit"
	case FallbackRequireTokenProvider:
		return "require_token_provider"
	default:
		return "unknown"
	}
}
