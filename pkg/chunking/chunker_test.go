// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// wordProvider counts whitespace-separated words as tokens.
type wordProvider struct{}

func (wordProvider) Tokenize(text string) ([]int, error) {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i := range tokens {
		tokens[i] = i + 1
	}
	return tokens, nil
}

// runeProvider treats every rune as one token and reports per-token spans.
type runeProvider struct{}

func (runeProvider) Tokenize(text string) ([]int, error) {
	runes := []rune(text)
	tokens := make([]int, len(runes))
	for i, r := range runes {
		tokens[i] = int(r)
	}
	return tokens, nil
}

func (runeProvider) TokenSpans(text string) ([]TokenSpan, error) {
	n := utf8.RuneCountInString(text)
	spans := make([]TokenSpan, n)
	for i := range spans {
		spans[i] = TokenSpan{Start: i, End: i + 1}
	}
	return spans, nil
}

// failingProvider always errors.
type failingProvider struct{}

func (failingProvider) Tokenize(string) ([]int, error) {
	return nil, errors.New("tokenizer unavailable")
}

func mustChunker(t *testing.T, cfg Config, provider TokenProvider, opts ...Option) *Chunker {
	t.Helper()
	c, err := NewChunker(cfg, provider, opts...)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	return c
}

func TestNewChunkerValidatesConfig(t *testing.T) {
	_, err := NewChunker(Config{MaxChunkTokens: 0}, wordProvider{})
	if !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewFallbackChunker(t *testing.T) {
	t.Run("rejects require token provider", func(t *testing.T) {
		_, err := NewFallbackChunker(DefaultConfig(), FallbackRequireTokenProvider)
		if !IsKind(err, KindConfiguration) {
			t.Fatalf("expected configuration error, got %v", err)
		}
	})

	t.Run("character estimation", func(t *testing.T) {
		c, err := NewFallbackChunker(DefaultConfig(), FallbackCharacterEstimation)
		if err != nil {
			t.Fatalf("NewFallbackChunker: %v", err)
		}
		if c.HasTokenProvider() {
			t.Error("fallback chunker should not have a token provider")
		}
	})
}

func TestChunkEmptyInput(t *testing.T) {
	c := mustChunker(t, DefaultConfig(), wordProvider{})

	for _, input := range []string{"", "   ", "\n\n\t  \n"} {
		chunks, err := c.Chunk(input)
		if err != nil {
			t.Errorf("Chunk(%q): unexpected error %v", input, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Chunk(%q): expected no chunks, got %d", input, len(chunks))
		}
	}
}

func TestChunkSingleShortJapaneseSentence(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          100,
		MinChunkTokens:          5,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c, err := NewFallbackChunker(cfg, FallbackCharacterEstimation)
	if err != nil {
		t.Fatalf("NewFallbackChunker: %v", err)
	}

	input := "これはテストです。"
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Type != ChunkTypeCompleteParagraph {
		t.Errorf("expected CompleteParagraph, got %v", chunks[0].Type)
	}
	if chunks[0].Content != input {
		t.Errorf("content = %q, want %q", chunks[0].Content, input)
	}
	if chunks[0].CharStart != 0 || chunks[0].CharEnd != utf8.RuneCountInString(input) {
		t.Errorf("char range = (%d, %d), want (0, %d)",
			chunks[0].CharStart, chunks[0].CharEnd, utf8.RuneCountInString(input))
	}
}

func TestChunkTwoParagraphsWithoutMerging(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          10,
		MinChunkTokens:          2,
		EnableParagraphMerging:  false,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, wordProvider{})

	chunks, err := c.Chunk("alpha beta gamma\n\ndelta epsilon zeta")
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Type != ChunkTypeCompleteParagraph {
			t.Errorf("chunk %d: expected CompleteParagraph, got %v", i, chunk.Type)
		}
		if strings.Contains(chunk.Content, "\n\n") {
			t.Errorf("chunk %d contains a paragraph separator: %q", i, chunk.Content)
		}
	}
	if chunks[0].Content != "alpha beta gamma" || chunks[1].Content != "delta epsilon zeta" {
		t.Errorf("unexpected contents: %q, %q", chunks[0].Content, chunks[1].Content)
	}
}

func TestChunkMergesSmallParagraphs(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          10,
		MinChunkTokens:          5,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, wordProvider{})

	input := "one two\n\nthree four\n\nfive six"
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) >= 3 {
		t.Fatalf("expected fewer chunks than paragraphs, got %d", len(chunks))
	}

	foundMerged := false
	for _, chunk := range chunks {
		if chunk.Type == ChunkTypeMergedParagraphs {
			foundMerged = true
			if !strings.Contains(chunk.Content, "\n\n") {
				t.Errorf("merged chunk should contain the paragraph separator: %q", chunk.Content)
			}
		}
	}
	if !foundMerged {
		t.Error("expected at least one MergedParagraphs chunk")
	}
}

func TestChunkForcedSplitWithoutNaturalBreaks(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          10,
		MinChunkTokens:          1,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, runeProvider{})

	input := strings.Repeat("あ", 50)
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, chunk := range chunks {
		if chunk.Type != ChunkTypeForcedSplit {
			t.Errorf("chunk %d: expected ForcedSplit, got %v", i, chunk.Type)
		}
		if len(chunk.Tokens) > cfg.MaxChunkTokens {
			t.Errorf("chunk %d: %d tokens exceeds budget %d", i, len(chunk.Tokens), cfg.MaxChunkTokens)
		}
	}
}

func TestChunkForcedSplitPrefersBreakCharacters(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          10,
		MinChunkTokens:          1,
		EnableParagraphMerging:  false,
		EnableSentenceSplitting: false,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, runeProvider{})

	// A comma sits just before the raw token limit so the backward scan
	// should cut right after it.
	input := "abcdefgh,xyzuvw"
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected forced split into multiple chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Content, ",") {
		t.Errorf("first chunk should end at the break character, got %q", chunks[0].Content)
	}
}

func TestChunkForcedSplittingDisabledError(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          5,
		MinChunkTokens:          1,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   false,
	}
	c := mustChunker(t, cfg, runeProvider{})

	// One unsplittable oversized sentence forces the disabled path.
	_, err := c.Chunk(strings.Repeat("x", 40))
	if !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestChunkSentenceBasedSplitting(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          10,
		MinChunkTokens:          1,
		EnableParagraphMerging:  false,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, runeProvider{})

	input := "一つ目の文です。二つ目の文です。三つ目の文です。"
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 sentence chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Type != ChunkTypeSentenceBasedSplit {
			t.Errorf("chunk %d: expected SentenceBasedSplit, got %v", i, chunk.Type)
		}
		if len(chunk.Tokens) > cfg.MaxChunkTokens {
			t.Errorf("chunk %d: %d tokens exceeds budget", i, len(chunk.Tokens))
		}
	}
	if chunks[0].Content != "一つ目の文です。" {
		t.Errorf("chunk 0 content = %q", chunks[0].Content)
	}
}

func TestChunkProviderFailurePropagates(t *testing.T) {
	c := mustChunker(t, DefaultConfig(), failingProvider{})

	_, err := c.Chunk("some text")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsKind(err, KindTokenProvider) && !IsKind(err, KindTokenization) {
		t.Fatalf("expected provider or tokenization error, got %v", err)
	}
}

func TestChunkOutputInvariants(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          12,
		MinChunkTokens:          2,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, wordProvider{})

	input := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu nu xi.\n" +
		"omicron pi rho sigma.\n\n" +
		"tau upsilon\n\n" +
		"phi chi psi omega one two three four five six seven eight nine ten."
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	textLen := utf8.RuneCountInString(input)
	for i, chunk := range chunks {
		if len(chunk.Tokens) > cfg.MaxChunkTokens {
			t.Errorf("chunk %d: token count %d exceeds max", i, len(chunk.Tokens))
		}
		if len(chunk.Tokens) < cfg.MinChunkTokens {
			t.Errorf("chunk %d: token count %d below min", i, len(chunk.Tokens))
		}
		if chunk.CharStart < 0 || chunk.CharStart > chunk.CharEnd || chunk.CharEnd > textLen {
			t.Errorf("chunk %d: invalid char range (%d, %d) for text length %d",
				i, chunk.CharStart, chunk.CharEnd, textLen)
		}
		if chunk.Index != i {
			t.Errorf("chunk %d: index = %d", i, chunk.Index)
		}
		if i > 0 {
			prev := chunks[i-1]
			if chunk.CharStart < prev.CharStart ||
				(chunk.CharStart == prev.CharStart && chunk.CharEnd < prev.CharEnd) {
				t.Errorf("chunk %d: not sorted by (char_start, char_end)", i)
			}
		}
	}
}

func TestChunkIdempotence(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          8,
		MinChunkTokens:          2,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	input := "first paragraph with several words here.\n\nsecond one is shorter.\n\nthird paragraph closes the text."

	run := func() []Chunk {
		c := mustChunker(t, cfg, wordProvider{})
		chunks, err := c.Chunk(input)
		if err != nil {
			t.Fatalf("Chunk: %v", err)
		}
		return chunks
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("outputs differ between identical runs:\n%v\n%v", first, second)
	}
}

func TestChunkRoundTripCoverage(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          10,
		MinChunkTokens:          1,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, wordProvider{})

	input := "alpha beta gamma delta.\n\nepsilon zeta eta theta iota kappa.\n\nlambda mu nu xi omicron pi rho."
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	origRunes := []rune(input)
	covered := make([]bool, len(origRunes))
	for _, chunk := range chunks {
		for i := chunk.CharStart; i < chunk.CharEnd && i < len(covered); i++ {
			covered[i] = true
		}
	}

	uncovered := 0
	for i, ok := range covered {
		if !ok && !isSpaceRune(origRunes[i]) {
			uncovered++
		}
	}
	if limit := len(origRunes) / 5; uncovered > limit {
		t.Errorf("uncovered non-whitespace runes %d exceed 20%% of text length %d", uncovered, len(origRunes))
	}
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '　'
}

func TestChunkTokenizerSpanReconciliation(t *testing.T) {
	cfg := Config{
		MaxChunkTokens:          10,
		MinChunkTokens:          3,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}
	c := mustChunker(t, cfg, runeProvider{})

	// The first paragraph stays complete; the two small ones are merged and
	// get their placeholder positions replaced from the token spans.
	input := "abcdefghij\n\nab\n\ncd"
	chunks, err := c.Chunk(input)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Type != ChunkTypeCompleteParagraph || chunks[1].Type != ChunkTypeMergedParagraphs {
		t.Fatalf("unexpected chunk types: %v, %v", chunks[0].Type, chunks[1].Type)
	}
	if chunks[0].CharStart != 0 || chunks[0].CharEnd != 10 {
		t.Errorf("chunk 0 range = (%d, %d), want (0, 10)", chunks[0].CharStart, chunks[0].CharEnd)
	}
	if chunks[1].CharStart == 0 && chunks[1].CharEnd == 0 {
		t.Error("merged chunk kept its placeholder position")
	}
	textLen := utf8.RuneCountInString(input)
	if chunks[1].CharEnd > textLen || chunks[1].CharStart > chunks[1].CharEnd {
		t.Errorf("merged chunk range (%d, %d) out of bounds", chunks[1].CharStart, chunks[1].CharEnd)
	}
}

func TestChunkBatch(t *testing.T) {
	c := mustChunker(t, Config{
		MaxChunkTokens:          20,
		MinChunkTokens:          1,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}, wordProvider{})

	texts := []string{
		"first document body.",
		"",
		"second document with a few more words in it.",
	}
	results, err := c.ChunkBatch(texts)
	if err != nil {
		t.Fatalf("ChunkBatch: %v", err)
	}
	if len(results) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(results))
	}
	if len(results[0]) == 0 || len(results[2]) == 0 {
		t.Error("non-empty texts should produce chunks")
	}
	if len(results[1]) != 0 {
		t.Error("empty text should produce no chunks")
	}

	stats := c.Statistics()
	if stats.CustomMetrics["batch_total_input_chars"] == 0 {
		t.Error("batch metrics not recorded")
	}
	if int(stats.CustomMetrics["batch_total_output_chunks"]) != len(results[0])+len(results[2]) {
		t.Error("batch chunk count metric mismatch")
	}
}

func TestChunkStatistics(t *testing.T) {
	c := mustChunker(t, Config{
		MaxChunkTokens:          20,
		MinChunkTokens:          1,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}, wordProvider{})

	input := "a handful of words for the statistics check."
	if _, err := c.Chunk(input); err != nil {
		t.Fatalf("Chunk: %v", err)
	}

	stats := c.Statistics()
	if stats.InputCharCount != len(input) {
		t.Errorf("InputCharCount = %d, want %d", stats.InputCharCount, len(input))
	}
	if stats.TotalChunksCreated == 0 {
		t.Error("expected chunks to be counted")
	}
	if stats.AvgTokensPerChunk == 0 {
		t.Error("derived metrics not calculated")
	}

	c.ResetStatistics()
	if c.Statistics().TotalChunksCreated != 0 {
		t.Error("Reset did not clear statistics")
	}
}

func TestChunkerCacheControls(t *testing.T) {
	c := mustChunker(t, Config{
		MaxChunkTokens:          20,
		MinChunkTokens:          1,
		EnableParagraphMerging:  true,
		EnableSentenceSplitting: true,
		EnableForcedSplitting:   true,
	}, wordProvider{})

	if _, err := c.Chunk("cache me once."); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	estimates, tokenizations, _ := c.CacheStats()
	if estimates == 0 && tokenizations == 0 {
		t.Error("expected cache entries after chunking")
	}

	c.ClearCache()
	estimates, tokenizations, _ = c.CacheStats()
	if estimates != 0 || tokenizations != 0 {
		t.Error("ClearCache left entries behind")
	}

	c.ConfigureCache(10, false)
	if _, err := c.Chunk("cache me twice."); err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	estimates, tokenizations, _ = c.CacheStats()
	if estimates != 0 || tokenizations != 0 {
		t.Error("disabled cache should store nothing")
	}
}
