// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenSpan is the half-open rune-offset range one token covers in the text
// it was produced from.
type TokenSpan struct {
	Start int
	End   int
}

// TokenProvider is the tokenization capability consumed by the chunker.
// Implementations must be safe for concurrent use; each call is synchronous
// and expected to block until it returns.
type TokenProvider interface {
	// Tokenize converts text into an ordered sequence of token identifiers.
	Tokenize(text string) ([]int, error)
}

// TokenCountEstimator is an optional fast path for providers that can count
// tokens more cheaply than a full tokenization.
type TokenCountEstimator interface {
	EstimateTokenCount(text string) (int, error)
}

// BatchTokenizer is an optional batch capability.
type BatchTokenizer interface {
	TokenizeBatch(texts []string) ([][]int, error)
}

// SpanTokenizer is an optional capability reporting the rune span of every
// token; it substantially improves position reconciliation accuracy.
type SpanTokenizer interface {
	// TokenSpans returns one span per token, or nil if unsupported for text.
	TokenSpans(text string) ([]TokenSpan, error)
}

// PositionMapper is an optional capability for single position lookups in
// either direction.
type PositionMapper interface {
	// TokenToChar maps a token index to its starting rune offset. The bool
	// is false when the mapping is unavailable.
	TokenToChar(text string, tokenPos int) (int, bool, error)
	// CharToToken maps a rune offset to the index of the covering token.
	CharToToken(text string, charPos int) (int, bool, error)
}

// Detokenizer is an optional capability to turn token identifiers back into
// text. The windowed embedder requires it.
type Detokenizer interface {
	Detokenize(tokens []int) (string, error)
}

// EstimateTokenCount uses the provider's estimator when present, otherwise
// derives the count from a full tokenization.
func EstimateTokenCount(p TokenProvider, text string) (int, error) {
	if est, ok := p.(TokenCountEstimator); ok {
		return est.EstimateTokenCount(text)
	}
	tokens, err := p.Tokenize(text)
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

// TokenizeBatch uses the provider's batch capability when present, otherwise
// tokenizes one by one.
func TokenizeBatch(p TokenProvider, texts []string) ([][]int, error) {
	if b, ok := p.(BatchTokenizer); ok {
		return b.TokenizeBatch(texts)
	}
	out := make([][]int, len(texts))
	for i, text := range texts {
		tokens, err := p.Tokenize(text)
		if err != nil {
			return nil, err
		}
		out[i] = tokens
	}
	return out, nil
}

// TokenSpans returns per-token spans when the provider supports them, or nil
// with no error when it does not.
func TokenSpans(p TokenProvider, text string) ([]TokenSpan, error) {
	if s, ok := p.(SpanTokenizer); ok {
		return s.TokenSpans(text)
	}
	return nil, nil
}

const defaultEncoding = "cl100k_base"

// TiktokenProvider is a TokenProvider backed by a tiktoken BPE encoding.
// It does not support span reporting, so chunkers using it reconcile
// positions via string search.
type TiktokenProvider struct {
	encodingName string
	mu           sync.RWMutex
	tke          *tiktoken.Tiktoken
}

// NewTiktokenProvider creates a provider for the given model or encoding
// name, falling back to cl100k_base when the name is unknown.
func NewTiktokenProvider(modelOrEncoding string) (*TiktokenProvider, error) {
	if modelOrEncoding == "" {
		modelOrEncoding = defaultEncoding
	}
	tke, err := tiktoken.GetEncoding(modelOrEncoding)
	if err != nil {
		tke, err = tiktoken.EncodingForModel(modelOrEncoding)
		if err != nil {
			tke, err = tiktoken.GetEncoding(defaultEncoding)
			if err != nil {
				return nil, fmt.Errorf("failed to get default encoding %q: %w", defaultEncoding, err)
			}
			modelOrEncoding = defaultEncoding
		}
	}
	return &TiktokenProvider{encodingName: modelOrEncoding, tke: tke}, nil
}

// Encoding returns the name of the encoding actually in use.
func (p *TiktokenProvider) Encoding() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.encodingName
}

// Tokenize implements TokenProvider.
func (p *TiktokenProvider) Tokenize(text string) ([]int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tke == nil {
		return nil, fmt.Errorf("tiktoken encoder is not initialized for encoding %s", p.encodingName)
	}
	return p.tke.Encode(text, nil, nil), nil
}

// Detokenize implements Detokenizer.
func (p *TiktokenProvider) Detokenize(tokens []int) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.tke == nil {
		return "", fmt.Errorf("tiktoken encoder is not initialized for encoding %s", p.encodingName)
	}
	return p.tke.Decode(tokens), nil
}
