// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

package chunking

import "fmt"

// Chunk is one token-bounded segment of the original input text.
//
// CharStart and CharEnd are a half-open rune-offset range into the original
// text, so that slicing []rune(original)[CharStart:CharEnd] recovers the
// region the chunk was cut from. Index is the zero-based position among the
// final ordered output and is reassigned after the final sort.
type Chunk struct {
	Content   string            `json:"content"`
	Tokens    []int             `json:"tokens"`
	CharStart int               `json:"char_start"`
	CharEnd   int               `json:"char_end"`
	Type      ChunkType         `json:"chunk_type"`
	Index     int               `json:"chunk_index"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewChunk creates a chunk with empty metadata.
func NewChunk(content string, tokens []int, charStart, charEnd int, typ ChunkType, index int) Chunk {
	return Chunk{
		Content:   content,
		Tokens:    tokens,
		CharStart: charStart,
		CharEnd:   charEnd,
		Type:      typ,
		Index:     index,
	}
}

// CharLength returns the chunk length in runes of the original text.
func (c *Chunk) CharLength() int {
	return c.CharEnd - c.CharStart
}

// TokenCount returns the number of tokens in this chunk.
func (c *Chunk) TokenCount() int {
	return len(c.Tokens)
}

// IsEmpty reports whether the chunk has no content.
func (c *Chunk) IsEmpty() bool {
	return c.Content == ""
}

// CharRange returns the (start, end) rune-offset pair.
func (c *Chunk) CharRange() (int, int) {
	return c.CharStart, c.CharEnd
}

// SetMetadata attaches a caller annotation, allocating the map on first use.
func (c *Chunk) SetMetadata(key, value string) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]string)
	}
	c.Metadata[key] = value
}

// GetMetadata returns the annotation for key, if present.
func (c *Chunk) GetMetadata(key string) (string, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

type chunkKind uint8

const (
	kindCompleteParagraph chunkKind = iota + 1
	kindMergedParagraphs
	kindSplitParagraph
	kindSentenceBasedSplit
	kindForcedSplit
	kindCustom
)

// ChunkType records which splitting policy produced a chunk. It is a closed
// set of named reasons plus CustomChunkType as the extension point; values
// are comparable with ==.
type ChunkType struct {
	kind  chunkKind
	label string
}

var (
	// ChunkTypeCompleteParagraph marks a paragraph kept intact.
	ChunkTypeCompleteParagraph = ChunkType{kind: kindCompleteParagraph}
	// ChunkTypeMergedParagraphs marks several small paragraphs merged together.
	ChunkTypeMergedParagraphs = ChunkType{kind: kindMergedParagraphs}
	// ChunkTypeSplitParagraph is reserved for paragraph-internal splitting;
	// no current code path produces it.
	ChunkTypeSplitParagraph = ChunkType{kind: kindSplitParagraph}
	// ChunkTypeSentenceBasedSplit marks a sentence-level split of an
	// oversized paragraph.
	ChunkTypeSentenceBasedSplit = ChunkType{kind: kindSentenceBasedSplit}
	// ChunkTypeForcedSplit marks a last-resort character-level split.
	ChunkTypeForcedSplit = ChunkType{kind: kindForcedSplit}
)

// CustomChunkType returns a labeled chunk type outside the built-in taxonomy.
func CustomChunkType(label string) ChunkType {
	return ChunkType{kind: kindCustom, label: label}
}

// PreservesBoundaries reports whether the chunk's provenance reflects a
// natural paragraph boundary rather than an artificial cut.
func (t ChunkType) PreservesBoundaries() bool {
	return t.kind == kindCompleteParagraph || t.kind == kindMergedParagraphs
}

// IsForcedSplit reports whether the chunk required forced splitting.
func (t ChunkType) IsForcedSplit() bool {
	return t.kind == kindForcedSplit
}

// IsCustom reports whether this is a caller-defined type.
func (t ChunkType) IsCustom() bool {
	return t.kind == kindCustom
}

// Label returns the label of a custom type, or "" for built-in types.
func (t ChunkType) Label() string {
	return t.label
}

// Description returns a human-readable description of the chunk type.
func (t ChunkType) Description() string {
	switch t.kind {
	case kindCompleteParagraph:
		return "Complete paragraph"
	case kindMergedParagraphs:
		return "Merged small paragraphs"
	case kindSplitParagraph:
		return "Split large paragraph"
	case kindSentenceBasedSplit:
		return "Sentence-based split"
	case kindForcedSplit:
		return "Forced character/token split"
	case kindCustom:
		return "Custom splitting strategy"
	default:
		return "Unknown"
	}
}

func (t ChunkType) String() string {
	if t.kind == kindCustom {
		return fmt.Sprintf("Custom(%s)", t.label)
	}
	return t.Description()
}

// MarshalJSON encodes the type as its string form.
func (t ChunkType) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", t.String())), nil
}
