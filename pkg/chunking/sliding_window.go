// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

// Window is a half-open token-index range.
type Window struct {
	Start int
	End   int
}

// SlidingWindows computes window positions covering a token sequence that is
// longer than the model's maximum input.
//
// textLength and instructionLength are in tokens; the instruction prefix is
// prepended to every window, so it shrinks the effective window size. A final
// window smaller than minWindowSize is skipped unless it is the only one.
func SlidingWindows(textLength, instructionLength, maxSeqLength, windowStride, minWindowSize int) ([]Window, error) {
	if instructionLength >= maxSeqLength {
		return nil, configErrorf("instruction too long: %d tokens >= max_seq_length %d", instructionLength, maxSeqLength)
	}

	effectiveWindowSize := maxSeqLength - instructionLength

	if textLength <= effectiveWindowSize {
		return []Window{{Start: 0, End: textLength}}, nil
	}

	var windows []Window
	startPos := 0
	windowIndex := 0

	for startPos < textLength {
		endPos := min(startPos+effectiveWindowSize, textLength)

		if endPos-startPos < minWindowSize && windowIndex > 0 {
			break
		}

		windows = append(windows, Window{Start: startPos, End: endPos})

		if endPos >= textLength {
			break
		}
		startPos += windowStride
		windowIndex++
	}

	return windows, nil
}

// WindowWeights returns per-window weights favoring the middle windows, in
// the range [1.0, 1.2]. With one or two windows all weights are 1.0.
func WindowWeights(numWindows int) []float32 {
	weights := make([]float32, numWindows)
	for i := range weights {
		weights[i] = 1.0
	}
	if numWindows > 2 {
		for i := range weights {
			position := float32(i) / float32(numWindows-1)
			distanceFromCenter := position - 0.5
			if distanceFromCenter < 0 {
				distanceFromCenter = -distanceFromCenter
			}
			distanceFromCenter *= 2
			weights[i] = 1.0 + (1.0-distanceFromCenter)*0.2
		}
	}
	return weights
}

// MergeStrategy selects how window embeddings are combined.
type MergeStrategy string

const (
	// MergeAverage takes the simple mean of all windows.
	MergeAverage MergeStrategy = "average"
	// MergeWeightedAverage favors middle windows (see WindowWeights).
	MergeWeightedAverage MergeStrategy = "weighted_average"
	// MergeFirstWindow keeps only the first window.
	MergeFirstWindow MergeStrategy = "first_window"
	// MergeLastWindow keeps only the last window.
	MergeLastWindow MergeStrategy = "last_window"
)

// MergeEmbeddings combines same-dimension window embeddings into one vector.
// It fails on empty input, dimension mismatch or an unknown strategy.
func MergeEmbeddings(embeddings [][]float32, strategy MergeStrategy) ([]float32, error) {
	if len(embeddings) == 0 {
		return nil, validationErrorf("no embeddings to merge")
	}
	if len(embeddings) == 1 {
		out := make([]float32, len(embeddings[0]))
		copy(out, embeddings[0])
		return out, nil
	}

	dim := len(embeddings[0])
	for i, emb := range embeddings {
		if len(emb) != dim {
			return nil, validationErrorf("embedding %d has dimension %d but expected %d", i, len(emb), dim)
		}
	}

	switch strategy {
	case MergeAverage:
		return mergeByAverage(embeddings), nil
	case MergeWeightedAverage:
		return mergeByWeightedAverage(embeddings), nil
	case MergeFirstWindow:
		out := make([]float32, dim)
		copy(out, embeddings[0])
		return out, nil
	case MergeLastWindow:
		out := make([]float32, dim)
		copy(out, embeddings[len(embeddings)-1])
		return out, nil
	default:
		return nil, validationErrorf("unknown merge strategy %q", string(strategy))
	}
}

func mergeByAverage(embeddings [][]float32) []float32 {
	merged := make([]float32, len(embeddings[0]))
	for _, emb := range embeddings {
		for i, v := range emb {
			merged[i] += v
		}
	}
	n := float32(len(embeddings))
	for i := range merged {
		merged[i] /= n
	}
	return merged
}

func mergeByWeightedAverage(embeddings [][]float32) []float32 {
	merged := make([]float32, len(embeddings[0]))
	weights := WindowWeights(len(embeddings))

	var totalWeight float32
	for _, w := range weights {
		totalWeight += w
	}

	for wi, emb := range embeddings {
		for i, v := range emb {
			merged[i] += v * weights[wi]
		}
	}
	for i := range merged {
		merged[i] /= totalWeight
	}
	return merged
}
