// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

import (
	"fmt"
	"strings"
	"time"
)

// Statistics accumulates timing and count metrics for one chunking run (or
// one batch sharing a chunker). It is owned by a single chunker and is not
// safe for concurrent use. Derived metrics are computed once by
// CalculateDerivedMetrics.
type Statistics struct {
	TotalProcessingTime    time.Duration `json:"total_processing_time"`
	TokenizationTime       time.Duration `json:"tokenization_time"`
	ParagraphDetectionTime time.Duration `json:"paragraph_detection_time"`
	SentenceSplittingTime  time.Duration `json:"sentence_splitting_time"`
	ForcedSplittingTime    time.Duration `json:"forced_splitting_time"`
	PositionAdjustmentTime time.Duration `json:"position_adjustment_time"`

	InputCharCount         int `json:"input_char_count"`
	InputLineCount         int `json:"input_line_count"`
	DetectedParagraphCount int `json:"detected_paragraph_count"`

	TotalChunksCreated      int `json:"total_chunks_created"`
	CompleteParagraphChunks int `json:"complete_paragraph_chunks"`
	MergedParagraphChunks   int `json:"merged_paragraph_chunks"`
	SplitParagraphChunks    int `json:"split_paragraph_chunks"`
	SentenceBasedChunks     int `json:"sentence_based_chunks"`
	ForcedSplitChunks       int `json:"forced_split_chunks"`

	TotalTokensProcessed int     `json:"total_tokens_processed"`
	AvgTokensPerChunk    float64 `json:"avg_tokens_per_chunk"`
	MaxTokensInChunk     int     `json:"max_tokens_in_chunk"`
	MinTokensInChunk     int     `json:"min_tokens_in_chunk"`

	ParagraphBoundaryPreservationRate float64 `json:"paragraph_boundary_preservation_rate"`
	SentenceBoundaryPreservationRate  float64 `json:"sentence_boundary_preservation_rate"`

	CharsPerSecond  float64 `json:"chars_per_second"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	ChunksPerSecond float64 `json:"chunks_per_second"`

	EstimatedPeakMemoryMB float64 `json:"estimated_peak_memory_mb"`

	CustomMetrics map[string]float64 `json:"custom_metrics,omitempty"`
}

// NewStatistics creates an empty accumulator.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// Reset returns the accumulator to its zero state for reuse.
func (s *Statistics) Reset() {
	*s = Statistics{}
}

// RecordInput captures input text statistics.
func (s *Statistics) RecordInput(text string) {
	s.InputCharCount = len(text)
	s.InputLineCount = strings.Count(text, "\n")
	if len(text) > 0 && !strings.HasSuffix(text, "\n") {
		s.InputLineCount++
	}
}

// AddTokenizationTime accumulates time spent tokenizing.
func (s *Statistics) AddTokenizationTime(d time.Duration) {
	s.TokenizationTime += d
}

// AddParagraphDetectionTime accumulates time spent detecting paragraphs.
func (s *Statistics) AddParagraphDetectionTime(d time.Duration) {
	s.ParagraphDetectionTime += d
}

// AddSentenceSplittingTime accumulates time spent splitting sentences.
func (s *Statistics) AddSentenceSplittingTime(d time.Duration) {
	s.SentenceSplittingTime += d
}

// AddForcedSplittingTime accumulates time spent in forced splitting.
func (s *Statistics) AddForcedSplittingTime(d time.Duration) {
	s.ForcedSplittingTime += d
}

// AddPositionAdjustmentTime accumulates time spent reconciling positions.
func (s *Statistics) AddPositionAdjustmentTime(d time.Duration) {
	s.PositionAdjustmentTime += d
}

// RecordChunkCreation counts one chunk of the given type. Custom types are
// not counted in the per-type tallies.
func (s *Statistics) RecordChunkCreation(typ ChunkType) {
	s.TotalChunksCreated++
	switch typ {
	case ChunkTypeCompleteParagraph:
		s.CompleteParagraphChunks++
	case ChunkTypeMergedParagraphs:
		s.MergedParagraphChunks++
	case ChunkTypeSplitParagraph:
		s.SplitParagraphChunks++
	case ChunkTypeSentenceBasedSplit:
		s.SentenceBasedChunks++
	case ChunkTypeForcedSplit:
		s.ForcedSplitChunks++
	}
}

// RecordTokenStats updates the token extrema and totals with one chunk's
// token count.
func (s *Statistics) RecordTokenStats(tokenCount int) {
	s.TotalTokensProcessed += tokenCount
	if s.MaxTokensInChunk == 0 || tokenCount > s.MaxTokensInChunk {
		s.MaxTokensInChunk = tokenCount
	}
	if s.MinTokensInChunk == 0 || tokenCount < s.MinTokensInChunk {
		s.MinTokensInChunk = tokenCount
	}
}

// AddCustomMetric stores an ad-hoc metric by name.
func (s *Statistics) AddCustomMetric(name string, value float64) {
	if s.CustomMetrics == nil {
		s.CustomMetrics = make(map[string]float64)
	}
	s.CustomMetrics[name] = value
}

// CalculateDerivedMetrics computes averages, preservation rates and
// throughput. Call once after all processing is complete.
func (s *Statistics) CalculateDerivedMetrics() {
	if s.TotalChunksCreated > 0 {
		s.AvgTokensPerChunk = float64(s.TotalTokensProcessed) / float64(s.TotalChunksCreated)

		boundaryPreserving := s.CompleteParagraphChunks + s.MergedParagraphChunks
		s.ParagraphBoundaryPreservationRate = float64(boundaryPreserving) / float64(s.TotalChunksCreated)
		s.SentenceBoundaryPreservationRate = float64(boundaryPreserving+s.SentenceBasedChunks) / float64(s.TotalChunksCreated)
	}

	if secs := s.TotalProcessingTime.Seconds(); secs > 0 {
		s.CharsPerSecond = float64(s.InputCharCount) / secs
		s.TokensPerSecond = float64(s.TotalTokensProcessed) / secs
		s.ChunksPerSecond = float64(s.TotalChunksCreated) / secs
	}

	avgChunkSize := 0
	if s.TotalChunksCreated > 0 {
		avgChunkSize = s.InputCharCount / s.TotalChunksCreated
	}
	s.EstimatedPeakMemoryMB = float64(s.InputCharCount+avgChunkSize*s.TotalChunksCreated*2) / (1 << 20)
}

// Summary renders a single-line overview for logging.
func (s *Statistics) Summary() string {
	return fmt.Sprintf(
		"chunking stats: %d chars -> %d chunks (%.1f avg tokens/chunk) in %.2fms | "+
			"para preservation: %.1f%%, sent preservation: %.1f%% | "+
			"speed: %.0f chars/s, %.0f tokens/s, %.1f chunks/s",
		s.InputCharCount,
		s.TotalChunksCreated,
		s.AvgTokensPerChunk,
		float64(s.TotalProcessingTime.Microseconds())/1000.0,
		s.ParagraphBoundaryPreservationRate*100,
		s.SentenceBoundaryPreservationRate*100,
		s.CharsPerSecond,
		s.TokensPerSecond,
		s.ChunksPerSecond,
	)
}
