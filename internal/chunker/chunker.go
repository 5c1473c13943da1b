// Package chunker splits cleaned document text into overlapping,
// sentence-aligned chunks for question generation.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/mcqgen/internal/model"
)

// sentenceSep marks a sentence boundary in cleaned text.
const sentenceSep = ". "

// ErrInvalidConfig is returned when chunk parameters are out of range.
var ErrInvalidConfig = errors.New("invalid chunk configuration")

// Chunker holds immutable segmentation parameters and is safe for concurrent use.
type Chunker struct {
	maxSize int
	overlap int
}

// New validates the parameters and returns a Chunker. maxSize is a soft bound
// in characters (runes); overlap is the number of trailing words carried into the next chunk.
func New(maxSize, overlap int) (*Chunker, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// FromConfig is New with parameters taken from cfg.
func FromConfig(cfg model.ChunkConfig) (*Chunker, error) {
	return New(cfg.MaxSize, cfg.Overlap)
}

// Split is a convenience wrapper around New and (*Chunker).Split.
func Split(text string, maxSize, overlap int) ([]model.Chunk, error) {
	c, err := New(maxSize, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// MaxSize returns the configured soft chunk bound.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap in words.
func (c *Chunker) Overlap() int { return c.overlap }

// Split partitions text into chunks. Sentences are never cut: a sentence
// longer than the bound becomes a chunk of its own. Every chunk after the
// first starts with the last Overlap words of the previous one.
func (c *Chunker) Split(text string) []model.Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []model.Chunk
	var buf strings.Builder
	bufRunes := 0

	emit := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		chunks = append(chunks, model.Chunk{Index: len(chunks), Text: s})
	}

	for _, s := range sentences {
		n := utf8.RuneCountInString(s)
		if buf.Len() == 0 {
			buf.WriteString(s)
			bufRunes = n
			continue
		}
		if bufRunes+1+n < c.maxSize {
			buf.WriteByte(' ')
			buf.WriteString(s)
			bufRunes += 1 + n
			continue
		}

		closed := buf.String()
		emit(closed)

		buf.Reset()
		bufRunes = 0
		if tail := overlapTail(closed, c.overlap); tail != "" {
			buf.WriteString(tail)
			buf.WriteByte(' ')
			bufRunes = utf8.RuneCountInString(tail) + 1
		}
		buf.WriteString(s)
		bufRunes += n
	}
	emit(buf.String())

	return chunks
}

// splitSentences breaks text on ". " and restores the period on every
// sentence but the last, which keeps its own terminator.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts := strings.Split(text, sentenceSep)
	sentences := make([]string, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i < len(parts)-1 {
			p += "."
		}
		sentences = append(sentences, p)
	}
	return sentences
}

// overlapTail returns the last n words of s joined by single spaces.
// When s has n words or fewer the whole of s is reused.
func overlapTail(s string, n int) string {
	if n == 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
