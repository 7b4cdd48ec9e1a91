// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunking splits arbitrary text into token-bounded chunks suitable
// for embedding generation, preserving semantic boundaries (paragraphs,
// sentences) where possible and reporting character-offset provenance for
// every chunk.
package chunking

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ragkit/textchunk/pkg/text"
)

// Paragraph boundaries: a blank line, or a newline followed by an
// indentation character (full-width space or tab).
var paragraphBoundaryRe = regexp.MustCompile("\n\\s*\n|\n\\s*[　\t]")

// Break characters the forced splitter scans backward for so a cut does not
// land mid-word when avoidable.
const forcedSplitBreakChars = "。！？.!?、,"

// How far back (in runes) the forced splitter looks for a break character.
const forcedSplitSearchRange = 20

// paragraphSpan is one detected paragraph with its rune offsets into the
// source text.
type paragraphSpan struct {
	content   string
	charStart int
	charEnd   int
}

// pendingParagraph is an undersized paragraph waiting for the merge phase.
type pendingParagraph struct {
	content string
	tokens  []int
}

// Chunker drives the three-level splitting policy: paragraph, sentence,
// forced character split. A Chunker is exclusively owned by its caller and
// processes one text (or one batch, sequentially) at a time; it must not be
// shared across goroutines. The TokenProvider it holds may be shared.
type Chunker struct {
	config   Config
	provider TokenProvider
	splitter *text.Splitter
	fallback FallbackStrategy
	stats    *Statistics
	cache    *TokenizationCache
	log      *slog.Logger
}

// Option customizes a Chunker.
type Option func(*Chunker)

// WithLogger sets the logger; the default discards nothing and uses
// slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(c *Chunker) { c.log = log }
}

// WithSentenceSplitter replaces the default sentence splitter.
func WithSentenceSplitter(s *text.Splitter) Option {
	return func(c *Chunker) { c.splitter = s }
}

// WithFallbackStrategy sets the token-count fallback used when no provider
// is available.
func WithFallbackStrategy(s FallbackStrategy) Option {
	return func(c *Chunker) { c.fallback = s }
}

// WithCache replaces the tokenization cache; pass
// DisabledTokenizationCache() to turn caching off.
func WithCache(cache *TokenizationCache) Option {
	return func(c *Chunker) { c.cache = cache }
}

// NewChunker creates a chunker that tokenizes through provider.
func NewChunker(cfg Config, provider TokenProvider, opts ...Option) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Chunker{
		config:   cfg,
		provider: provider,
		splitter: text.NewSplitter(text.SplitterConfig{}),
		fallback: FallbackCharacterEstimation,
		stats:    NewStatistics(),
		cache:    NewTokenizationCache(defaultCacheSize),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFallbackChunker creates a chunker with no token provider; token counts
// come from the fallback strategy. FallbackRequireTokenProvider is rejected.
func NewFallbackChunker(cfg Config, strategy FallbackStrategy, opts ...Option) (*Chunker, error) {
	if strategy == FallbackRequireTokenProvider {
		return nil, configErrorf("token provider required but not provided")
	}
	c, err := NewChunker(cfg, nil, opts...)
	if err != nil {
		return nil, err
	}
	c.fallback = strategy
	return c, nil
}

// Config returns the chunker's policy.
func (c *Chunker) Config() Config {
	return c.config
}

// HasTokenProvider reports whether a token provider is configured.
func (c *Chunker) HasTokenProvider() bool {
	return c.provider != nil
}

// Statistics returns the accumulator for the last chunking operation.
func (c *Chunker) Statistics() *Statistics {
	return c.stats
}

// ResetStatistics discards accumulated statistics before reuse.
func (c *Chunker) ResetStatistics() {
	c.stats.Reset()
}

// CacheStats returns (estimate entries, tokenization entries, capacity).
func (c *Chunker) CacheStats() (int, int, int) {
	return c.cache.Stats()
}

// ClearCache drops all cached tokenizations.
func (c *Chunker) ClearCache() {
	c.cache.Clear()
}

// ConfigureCache replaces the cache with one of the given capacity, or with
// a pass-through cache when enabled is false.
func (c *Chunker) ConfigureCache(maxSize int, enabled bool) {
	if enabled {
		c.cache = NewTokenizationCache(maxSize)
	} else {
		c.cache = DisabledTokenizationCache()
	}
}

// Chunk runs the full pipeline on one text and returns the ordered chunks.
// Empty or whitespace-only input yields an empty result without error.
func (c *Chunker) Chunk(input string) ([]Chunk, error) {
	c.log.Debug("starting hierarchical chunking", "chars", len(input))

	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	totalStart := time.Now()
	c.stats.RecordInput(input)

	paraStart := time.Now()
	paragraphs := c.detectParagraphBoundaries(input)
	c.stats.AddParagraphDetectionTime(time.Since(paraStart))
	c.stats.DetectedParagraphCount = len(paragraphs)
	c.log.Debug("detected paragraphs", "count", len(paragraphs))

	var finalChunks []Chunk
	var pending []pendingParagraph

	for _, para := range paragraphs {
		trimmed := strings.TrimSpace(para.content)
		if trimmed == "" {
			continue
		}

		tokenCount, err := c.tokenCount(trimmed)
		if err != nil {
			return nil, err
		}

		switch {
		case tokenCount <= c.config.MaxChunkTokens && tokenCount >= c.config.MinChunkTokens:
			tokens, err := c.tokenize(trimmed)
			if err != nil {
				return nil, err
			}
			finalChunks = append(finalChunks, c.newChunk(
				trimmed, tokens, para.charStart, para.charEnd,
				ChunkTypeCompleteParagraph, len(finalChunks)))

		case tokenCount <= c.config.MaxChunkTokens:
			// Too small; defer to the merge phase.
			tokens, err := c.tokenize(trimmed)
			if err != nil {
				return nil, err
			}
			pending = append(pending, pendingParagraph{content: trimmed, tokens: tokens})

		default:
			c.log.Debug("paragraph exceeds token budget, splitting", "tokens", tokenCount)
			split, err := c.splitParagraphBySentences(trimmed)
			if err != nil {
				return nil, err
			}
			for _, chunk := range split {
				chunk.Index = len(finalChunks)
				finalChunks = append(finalChunks, chunk)
			}
		}
	}

	if c.config.EnableParagraphMerging && len(pending) > 0 {
		merged, err := c.mergeSmallParagraphs(pending)
		if err != nil {
			return nil, err
		}
		for _, chunk := range merged {
			chunk.Index = len(finalChunks)
			finalChunks = append(finalChunks, chunk)
		}
	} else {
		// Merging disabled: emit small paragraphs individually rather than
		// silently dropping them.
		for _, p := range pending {
			finalChunks = append(finalChunks, c.newChunk(
				p.content, p.tokens, 0, utf8.RuneCountInString(p.content),
				ChunkTypeCompleteParagraph, len(finalChunks)))
		}
	}

	posStart := time.Now()
	c.adjustCharacterPositions(input, finalChunks)
	c.stats.AddPositionAdjustmentTime(time.Since(posStart))

	finalChunks = c.filterChunks(finalChunks)

	sort.Slice(finalChunks, func(i, j int) bool {
		if finalChunks[i].CharStart != finalChunks[j].CharStart {
			return finalChunks[i].CharStart < finalChunks[j].CharStart
		}
		return finalChunks[i].CharEnd < finalChunks[j].CharEnd
	})
	for i := range finalChunks {
		finalChunks[i].Index = i
	}

	c.stats.TotalProcessingTime = time.Since(totalStart)
	c.stats.CalculateDerivedMetrics()

	c.log.Debug("hierarchical chunking completed", "chunks", len(finalChunks))
	return finalChunks, nil
}

// ChunkBatch runs the pipeline sequentially over texts, sharing one cache
// and one statistics accumulator, and records aggregate batch metrics.
func (c *Chunker) ChunkBatch(texts []string) ([][]Chunk, error) {
	batchStart := time.Now()
	results := make([][]Chunk, 0, len(texts))
	totalInputChars := 0
	totalOutputChunks := 0

	for _, input := range texts {
		totalInputChars += len(input)
		chunks, err := c.Chunk(input)
		if err != nil {
			return nil, err
		}
		totalOutputChunks += len(chunks)
		results = append(results, chunks)
	}

	batchTime := time.Since(batchStart)
	c.stats.AddCustomMetric("batch_processing_time_ms", float64(batchTime.Microseconds())/1000.0)
	c.stats.AddCustomMetric("batch_total_input_chars", float64(totalInputChars))
	c.stats.AddCustomMetric("batch_total_output_chunks", float64(totalOutputChunks))
	if secs := batchTime.Seconds(); secs > 0 {
		c.stats.AddCustomMetric("batch_throughput_chars_per_sec", float64(totalInputChars)/secs)
	}

	c.log.Info("batch chunking completed",
		"texts", len(texts),
		"total_chars", totalInputChars,
		"total_chunks", totalOutputChunks,
		"elapsed_ms", batchTime.Milliseconds())
	return results, nil
}

// detectParagraphBoundaries splits input at blank lines and
// indentation-introduced breaks, keeping rune offsets into input. When no
// boundary exists the whole text is one paragraph.
func (c *Chunker) detectParagraphBoundaries(input string) []paragraphSpan {
	var paragraphs []paragraphSpan
	lastEnd := 0 // byte offset

	for _, m := range paragraphBoundaryRe.FindAllStringIndex(input, -1) {
		if m[0] > lastEnd {
			segment := input[lastEnd:m[0]]
			if strings.TrimSpace(segment) != "" {
				paragraphs = append(paragraphs, paragraphSpan{
					content:   segment,
					charStart: utf8.RuneCountInString(input[:lastEnd]),
					charEnd:   utf8.RuneCountInString(input[:m[0]]),
				})
			}
		}
		lastEnd = m[1]
	}

	if lastEnd < len(input) {
		remaining := input[lastEnd:]
		if strings.TrimSpace(remaining) != "" {
			paragraphs = append(paragraphs, paragraphSpan{
				content:   remaining,
				charStart: utf8.RuneCountInString(input[:lastEnd]),
				charEnd:   utf8.RuneCountInString(input),
			})
		}
	}

	if len(paragraphs) == 0 && strings.TrimSpace(input) != "" {
		paragraphs = append(paragraphs, paragraphSpan{
			content:   strings.TrimSpace(input),
			charStart: 0,
			charEnd:   utf8.RuneCountInString(input),
		})
	}

	return paragraphs
}

// splitParagraphBySentences is level-2 processing: greedy accumulation of
// sentences into groups bounded by MaxChunkTokens. Offsets produced here are
// relative to the paragraph and corrected during position reconciliation.
func (c *Chunker) splitParagraphBySentences(paragraph string) ([]Chunk, error) {
	if !c.config.EnableSentenceSplitting {
		return c.applyForcedSplitting(paragraph)
	}

	sentStart := time.Now()
	sentences := c.splitter.Split(paragraph)

	var chunks []Chunk
	var group []string
	charPos := 0 // rune offset within the local splitting context

	for _, sentence := range sentences {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}

		combined := trimmed
		if len(group) > 0 {
			combined = strings.Join(group, " ") + " " + trimmed
		}
		tokenCount, err := c.tokenCount(combined)
		if err != nil {
			return nil, err
		}

		if tokenCount <= c.config.MaxChunkTokens {
			group = append(group, trimmed)
			continue
		}

		// The previous group is full; finalize it without the overflowing
		// sentence.
		if len(group) > 0 {
			content := strings.Join(group, " ")
			tokens, err := c.tokenize(content)
			if err != nil {
				return nil, err
			}
			contentLen := utf8.RuneCountInString(content)
			chunks = append(chunks, c.newChunk(
				content, tokens, charPos, charPos+contentLen,
				ChunkTypeSentenceBasedSplit, len(chunks)))
			charPos += contentLen
		}

		group = []string{trimmed}

		singleCount, err := c.tokenCount(trimmed)
		if err != nil {
			return nil, err
		}
		if singleCount > c.config.MaxChunkTokens {
			c.log.Warn("single sentence exceeds token budget, applying forced splitting",
				"tokens", singleCount)
			forced, err := c.applyForcedSplitting(trimmed)
			if err != nil {
				return nil, err
			}
			for _, chunk := range forced {
				chunkLen := utf8.RuneCountInString(chunk.Content)
				chunk.CharStart += charPos
				chunk.CharEnd += charPos
				chunk.Index = len(chunks)
				chunks = append(chunks, chunk)
				charPos += chunkLen
			}
			group = nil
		}
	}

	if len(group) > 0 {
		content := strings.Join(group, " ")
		tokenCount, err := c.tokenCount(content)
		if err != nil {
			return nil, err
		}
		if tokenCount <= c.config.MaxChunkTokens {
			tokens, err := c.tokenize(content)
			if err != nil {
				return nil, err
			}
			contentLen := utf8.RuneCountInString(content)
			chunks = append(chunks, c.newChunk(
				content, tokens, charPos, charPos+contentLen,
				ChunkTypeSentenceBasedSplit, len(chunks)))
		} else {
			c.log.Warn("trailing sentence group exceeds token budget, applying forced splitting",
				"tokens", tokenCount)
			forced, err := c.applyForcedSplitting(content)
			if err != nil {
				return nil, err
			}
			for _, chunk := range forced {
				chunkLen := utf8.RuneCountInString(chunk.Content)
				chunk.CharStart += charPos
				chunk.CharEnd += charPos
				chunk.Index = len(chunks)
				chunks = append(chunks, chunk)
				charPos += chunkLen
			}
		}
	}

	c.stats.AddSentenceSplittingTime(time.Since(sentStart))
	return chunks, nil
}

// applyForcedSplitting is level-3 processing: character-level cuts bounded
// by the token budget. Offsets are relative to input.
func (c *Chunker) applyForcedSplitting(input string) ([]Chunk, error) {
	if !c.config.EnableForcedSplitting {
		return nil, configErrorf("forced splitting is disabled but required")
	}

	forcedStart := time.Now()
	chars := []rune(input)
	var chunks []Chunk
	startPos := 0

	for startPos < len(chars) {
		endPos, err := c.findForcedSplitPosition(chars, startPos)
		if err != nil {
			return nil, err
		}
		chunkText := string(chars[startPos:endPos])
		tokens, err := c.tokenize(chunkText)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c.newChunk(
			chunkText, tokens, startPos, endPos, ChunkTypeForcedSplit, len(chunks)))
		startPos = endPos
	}

	c.stats.AddForcedSplittingTime(time.Since(forcedStart))
	return chunks, nil
}

// findForcedSplitPosition binary-searches for the furthest end offset whose
// substring stays within the token budget, then scans backward a short
// window for a natural break character.
func (c *Chunker) findForcedSplitPosition(chars []rune, startPos int) (int, error) {
	if len(chars)-startPos == 0 {
		return len(chars), nil
	}

	// Conservative three characters per token bounds the search space.
	initialEstimate := min(startPos+c.config.MaxChunkTokens*3, len(chars))

	low := startPos + 1
	high := initialEstimate
	bestPos := low

	for low <= high {
		mid := (low + high) / 2
		count, err := c.tokenCount(string(chars[startPos:mid]))
		if err == nil && count <= c.config.MaxChunkTokens {
			bestPos = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	searchStart := max(bestPos-forcedSplitSearchRange, 0)
	for i := bestPos - 1; i >= searchStart; i-- {
		if i < startPos {
			break
		}
		if !unicode.IsSpace(chars[i]) && !strings.ContainsRune(forcedSplitBreakChars, chars[i]) {
			continue
		}
		count, err := c.tokenCount(string(chars[startPos : i+1]))
		if err == nil && count <= c.config.MaxChunkTokens {
			return i + 1, nil
		}
	}

	return bestPos, nil
}

// mergeSmallParagraphs is the undersized branch of level-3 processing:
// greedy blank-line-joined grouping under MaxChunkTokens. Positions are
// placeholders until reconciliation.
func (c *Chunker) mergeSmallParagraphs(pending []pendingParagraph) ([]Chunk, error) {
	c.log.Debug("merging small paragraphs", "count", len(pending))

	var merged []Chunk
	var group []string

	finalize := func() error {
		if len(group) == 0 {
			return nil
		}
		content := strings.Join(group, "\n\n")
		tokens, err := c.tokenize(content)
		if err != nil {
			return err
		}
		merged = append(merged, c.newChunk(
			content, tokens, 0, 0, ChunkTypeMergedParagraphs, len(merged)))
		return nil
	}

	for _, p := range pending {
		combined := p.content
		if len(group) > 0 {
			combined = strings.Join(group, "\n\n") + "\n\n" + p.content
		}
		tokenCount, err := c.tokenCount(combined)
		if err != nil {
			return nil, err
		}
		if tokenCount <= c.config.MaxChunkTokens {
			group = append(group, p.content)
			continue
		}
		if err := finalize(); err != nil {
			return nil, err
		}
		group = []string{p.content}
	}
	if err := finalize(); err != nil {
		return nil, err
	}

	return merged, nil
}

// tokenCount returns the (cache-checked) token count for text, using the
// provider's estimate or the configured fallback.
func (c *Chunker) tokenCount(input string) (int, error) {
	if count, ok := c.cache.Estimate(input); ok {
		return count, nil
	}

	tokenStart := time.Now()
	defer func() { c.stats.AddTokenizationTime(time.Since(tokenStart)) }()

	var count int
	if c.provider != nil {
		n, err := EstimateTokenCount(c.provider, input)
		if err != nil {
			return 0, providerError("estimate token count", err)
		}
		count = n
	} else {
		switch c.fallback {
		case FallbackCharacterEstimation:
			count = (len(input) + 3) / 4
		case FallbackCharacterLimit:
			count = len(input)
		default:
			return 0, configErrorf("token provider required but not available")
		}
	}

	c.cache.PutEstimate(input, count)
	return count, nil
}

// tokenize returns the (cache-checked) full tokenization for text. Without a
// provider it fabricates sequential identifiers matching the estimate.
func (c *Chunker) tokenize(input string) ([]int, error) {
	if tokens, ok := c.cache.Tokens(input); ok {
		return tokens, nil
	}

	var tokens []int
	if c.provider != nil {
		tokenStart := time.Now()
		t, err := c.provider.Tokenize(input)
		c.stats.AddTokenizationTime(time.Since(tokenStart))
		if err != nil {
			return nil, tokenizationError("tokenize", err)
		}
		tokens = t
	} else {
		count, err := c.tokenCount(input)
		if err != nil {
			return nil, err
		}
		tokens = make([]int, count)
		for i := range tokens {
			tokens[i] = i + 1
		}
	}

	c.cache.PutTokens(input, tokens)
	return tokens, nil
}

func (c *Chunker) newChunk(content string, tokens []int, charStart, charEnd int, typ ChunkType, index int) Chunk {
	c.stats.RecordChunkCreation(typ)
	c.stats.RecordTokenStats(len(tokens))
	return NewChunk(content, tokens, charStart, charEnd, typ, index)
}

// adjustCharacterPositions restores absolute rune offsets into the original
// text: tokenizer spans when the provider supports them, string search
// otherwise.
func (c *Chunker) adjustCharacterPositions(original string, chunks []Chunk) {
	if c.provider != nil {
		spans, err := TokenSpans(c.provider, original)
		if err != nil {
			c.log.Debug("token span lookup failed, falling back to string search", "error", err)
		} else if spans != nil {
			c.adjustPositionsWithTokenizer(original, chunks, spans)
			return
		}
	}
	c.adjustPositionsWithStringSearch(original, chunks)
}

// adjustPositionsWithTokenizer walks chunks in emission order, consuming
// token spans sequentially. Chunks whose positions already look structurally
// valid keep them (clamped); everything is clamped to [0, textLen] with
// start <= end.
func (c *Chunker) adjustPositionsWithTokenizer(original string, chunks []Chunk, spans []TokenSpan) {
	textLen := utf8.RuneCountInString(original)
	cursor := 0

	for i := range chunks {
		chunk := &chunks[i]
		tokenCount := len(chunk.Tokens)

		positionsLookCorrect := (i == 0 && chunk.CharStart == 0 && chunk.CharEnd > 0) ||
			(i > 0 && chunk.CharStart > 0 && chunk.CharEnd > chunk.CharStart)

		if positionsLookCorrect {
			cursor += tokenCount
		} else if cursor+tokenCount <= len(spans) && tokenCount > 0 {
			chunk.CharStart = spans[cursor].Start
			chunk.CharEnd = spans[cursor+tokenCount-1].End
			cursor += tokenCount
		} else {
			c.log.Warn("not enough token spans for chunk positioning",
				"needed", tokenCount, "remaining", len(spans)-cursor)
			estimatedStart := textLen
			if cursor < len(spans) {
				estimatedStart = spans[cursor].Start
			}
			chunk.CharStart = estimatedStart
			chunk.CharEnd = min(estimatedStart+utf8.RuneCountInString(chunk.Content), textLen)
		}

		clampChunk(chunk, textLen)
	}
}

// adjustPositionsWithStringSearch recalculates every chunk's position by
// searching for its literal content: first from the previous match's end,
// then globally, then by sequential placement.
func (c *Chunker) adjustPositionsWithStringSearch(original string, chunks []Chunk) {
	origRunes := []rune(original)
	textLen := len(origRunes)
	searchPos := 0

	for i := range chunks {
		chunk := &chunks[i]
		contentLen := utf8.RuneCountInString(chunk.Content)

		if pos := runeIndex(origRunes, chunk.Content, searchPos); pos >= 0 {
			chunk.CharStart = pos
			chunk.CharEnd = pos + contentLen
			searchPos = chunk.CharEnd
		} else if pos := runeIndex(origRunes, chunk.Content, 0); pos >= 0 {
			chunk.CharStart = pos
			chunk.CharEnd = pos + contentLen
		} else {
			c.log.Warn("chunk content not found in original text, placing sequentially",
				"chunk_index", i)
			chunk.CharStart = searchPos
			chunk.CharEnd = searchPos + contentLen
			searchPos = chunk.CharEnd
		}

		clampChunk(chunk, textLen)
	}
}

// filterChunks drops zero-length chunks and then chunks below the minimum
// token count; the latter only removes stray fragments since it runs after
// merging.
func (c *Chunker) filterChunks(chunks []Chunk) []Chunk {
	kept := chunks[:0]
	for _, chunk := range chunks {
		if chunk.CharEnd == chunk.CharStart {
			c.log.Warn("filtering zero-length chunk",
				"char_start", chunk.CharStart, "char_end", chunk.CharEnd)
			continue
		}
		if len(chunk.Tokens) < c.config.MinChunkTokens {
			c.log.Warn("filtering chunk below min_chunk_tokens",
				"tokens", len(chunk.Tokens), "min", c.config.MinChunkTokens)
			continue
		}
		kept = append(kept, chunk)
	}
	return kept
}

func clampChunk(chunk *Chunk, textLen int) {
	if chunk.CharEnd > textLen {
		chunk.CharEnd = textLen
	}
	if chunk.CharStart > textLen {
		chunk.CharStart = textLen
	}
	if chunk.CharStart > chunk.CharEnd {
		chunk.CharStart = chunk.CharEnd
	}
}

// runeIndex finds needle in haystack starting at rune offset from, returning
// the rune offset of the match or -1.
func runeIndex(haystack []rune, needle string, from int) int {
	if from > len(haystack) {
		return -1
	}
	tail := string(haystack[from:])
	idx := strings.Index(tail, needle)
	if idx < 0 {
		return -1
	}
	return from + utf8.RuneCountInString(tail[:idx])
}
