// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

// Package text provides sentence-level segmentation primitives used by the
// chunking engine, plus small text utilities.
package text

import (
	"regexp"
	"strings"
)

// DefaultMaxBufLength bounds sentence emission; it mirrors the max input
// length of common BERT-style models (max_position_embeddings).
const DefaultMaxBufLength = 512

// DefaultDelimiters are the characters that end a sentence. The full-width
// forms are listed explicitly rather than normalized, so half-width '.' can
// stay a non-delimiter in Japanese text (URLs would over-split otherwise).
const DefaultDelimiters = "。．！？!?\n"

// DefaultBracketPairs are the bracket pairs inside which delimiters do not
// split. Half-width () and [] are excluded: they show up in code and
// emoticons too often to treat as quoting.
var DefaultBracketPairs = map[rune]rune{
	'「': '」',
	'『': '』',
	'【': '】',
}

// SplitterConfig configures a Splitter. Zero values select the defaults
// above; BracketPairs entries with fewer than two runes are ignored.
type SplitterConfig struct {
	MaxBufLength int
	// Delimiters is the sentence-ending character set.
	Delimiters string
	// ForceChars force a split even inside an open bracket pair.
	ForceChars string
	// BracketPairs is a comma-separated list of two-rune open/close pairs,
	// e.g. "「」,『』".
	BracketPairs string
}

// Splitter splits text into sentence-like substrings. It is bracket-depth
// aware and guarantees buffer-length-bounded emission even mid-bracket.
type Splitter struct {
	maxBufLength int
	delimiters   map[rune]struct{}
	force        map[rune]struct{}
	pairs        map[rune]rune
	revPairs     map[rune]rune
}

// NewSplitter builds a Splitter from cfg, applying defaults for zero values.
func NewSplitter(cfg SplitterConfig) *Splitter {
	maxBufLength := cfg.MaxBufLength
	if maxBufLength <= 0 {
		maxBufLength = DefaultMaxBufLength
	}

	delimiters := runeSet(cfg.Delimiters)
	if cfg.Delimiters == "" {
		delimiters = runeSet(DefaultDelimiters)
	}

	pairs := make(map[rune]rune)
	if cfg.BracketPairs == "" {
		for open, closing := range DefaultBracketPairs {
			pairs[open] = closing
		}
	} else {
		for _, pair := range strings.Split(cfg.BracketPairs, ",") {
			runes := []rune(pair)
			if len(runes) < 2 {
				continue
			}
			pairs[runes[0]] = runes[1]
		}
	}

	revPairs := make(map[rune]rune, len(pairs))
	for open, closing := range pairs {
		revPairs[closing] = open
	}

	return &Splitter{
		maxBufLength: maxBufLength,
		delimiters:   delimiters,
		force:        runeSet(cfg.ForceChars),
		pairs:        pairs,
		revPairs:     revPairs,
	}
}

// MaxBufLength returns the emission bound in runes.
func (s *Splitter) MaxBufLength() int {
	return s.maxBufLength
}

// Split returns the ordered sentence-like substrings of text. Delimiters do
// not split inside a tracked bracket pair unless a force character appears,
// and any buffer reaching MaxBufLength is emitted as-is.
func (s *Splitter) Split(input string) []string {
	var sentences []string
	buf := make([]rune, 0, s.maxBufLength)
	var waiting []rune

	for _, c := range input {
		buf = append(buf, c)

		if closing, ok := s.pairs[c]; ok {
			waiting = append(waiting, closing)
		} else if len(waiting) > 0 {
			if c == waiting[len(waiting)-1] {
				waiting = waiting[:len(waiting)-1]
			} else if _, forced := s.force[c]; forced {
				sentences = append(sentences, string(buf))
				buf = buf[:0]
				waiting = waiting[:0]
			}
		} else if _, ok := s.delimiters[c]; ok {
			sentences = append(sentences, string(buf))
			buf = buf[:0]
		}

		if len(buf) >= s.maxBufLength {
			sentences = append(sentences, string(buf))
			buf = buf[:0]
			waiting = waiting[:0]
		}
	}
	if len(buf) > 0 {
		sentences = append(sentences, string(buf))
	}
	return sentences
}

// SplitReverse splits right to left, attaching each delimiter to the
// sentence that follows it in reverse order. A leading sentence longer than
// MaxBufLength is truncated into bounded pieces.
func (s *Splitter) SplitReverse(input string) []string {
	var sentences []string
	var buf []rune
	var waiting []rune

	runes := []rune(input)
	for i := len(runes) - 1; i >= 0; i-- {
		c := runes[i]

		if open, ok := s.revPairs[c]; ok {
			waiting = append(waiting, open)
		} else if len(waiting) > 0 {
			if c == waiting[len(waiting)-1] {
				waiting = waiting[:len(waiting)-1]
			} else if _, forced := s.force[c]; forced {
				sentences = prependRunes(sentences, buf)
				buf = nil
				waiting = waiting[:0]
			}
		} else if _, ok := s.delimiters[c]; ok && len(buf) > 0 {
			sentences = prependRunes(sentences, buf)
			buf = nil
		}
		buf = append([]rune{c}, buf...)

		if len(buf) >= s.maxBufLength {
			sentences = prependRunes(sentences, buf)
			buf = nil
			waiting = waiting[:0]
		}
	}
	if len(buf) > 0 {
		sentences = prependRunes(sentences, buf)
	}
	return sentences
}

// SplitByPattern divides text at every match of re, keeping the matched
// substrings as their own elements. Used to separate inline markers such as
// "<|7.54|>" timestamps from the text between them.
func SplitByPattern(re *regexp.Regexp, text string) []string {
	var divided []string
	prev := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		if prev < start {
			divided = append(divided, text[prev:start])
		}
		divided = append(divided, text[start:end])
		prev = end
	}
	if prev < len(text) {
		divided = append(divided, text[prev:])
	}
	return divided
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, c := range s {
		set[c] = struct{}{}
	}
	return set
}

func prependRunes(sentences []string, buf []rune) []string {
	return append([]string{string(buf)}, sentences...)
}
