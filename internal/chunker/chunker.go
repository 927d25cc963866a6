// Package chunker splits normalized text into bounded, overlapping passages.
//
// Splitting is deterministic: identical input always yields byte-identical
// chunk boundaries. Re-run diffing in the pipeline depends on this.
package chunker

import (
	"fmt"
	"strings"
)

// Chunk is one passage of a document's normalized text.
type Chunk struct {
	// DocumentID is the parent document identifier.
	DocumentID string

	// Index is the 0-based sequential chunk index, no gaps.
	Index int

	// Text is the chunk content, sliced verbatim from the normalized text.
	Text string

	// Start and End are rune offsets into the normalized text (End exclusive).
	Start int
	End   int
}

// ID returns the stable chunk identifier "{document id}:{index}".
func (c Chunk) ID() string {
	return fmt.Sprintf("%s:%d", c.DocumentID, c.Index)
}

// Chunker splits text at paragraph boundaries first, sentences second, and
// mid-sentence only when a single sentence exceeds the maximum size.
type Chunker struct {
	size    int // maximum chunk length in runes
	overlap int // runes carried over between consecutive chunks
}

// New creates a Chunker. overlap must be smaller than size; values are
// clamped to sane minimums rather than erroring.
func New(size, overlap int) *Chunker {
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// segment is a half-open rune-offset range that never exceeds the chunk size.
type segment struct {
	start, end int
}

// Split chunks text into an ordered sequence of Chunks.
func (c *Chunker) Split(docID, text string) []Chunk {
	runes := []rune(text)
	segments := c.segmentize(runes)
	if len(segments) == 0 {
		return nil
	}

	var chunks []Chunk
	emit := func(first, last segment) {
		chunks = append(chunks, Chunk{
			DocumentID: docID,
			Index:      len(chunks),
			Text:       string(runes[first.start:last.end]),
			Start:      first.start,
			End:        last.end,
		})
	}

	var current []segment
	fresh := 0 // segments in current that were not carried over as overlap
	for _, seg := range segments {
		if len(current) > 0 && seg.end-current[0].start > c.size {
			if fresh > 0 {
				emit(current[0], current[len(current)-1])
			}
			// Carry a tail of at most overlap runes into the next chunk,
			// shrinking it further until the new segment fits.
			tail := c.overlapTail(current)
			for len(tail) > 0 && seg.end-tail[0].start > c.size {
				tail = tail[1:]
			}
			current = tail
			fresh = 0
		}
		current = append(current, seg)
		fresh++
	}
	if fresh > 0 {
		emit(current[0], current[len(current)-1])
	}
	return chunks
}

// overlapTail returns the trailing segments whose combined span is at most
// the configured overlap.
func (c *Chunker) overlapTail(segs []segment) []segment {
	if c.overlap == 0 {
		return nil
	}
	last := segs[len(segs)-1].end
	i := len(segs)
	for i > 0 && last-segs[i-1].start <= c.overlap {
		i--
	}
	return append([]segment(nil), segs[i:]...)
}

// segmentize cuts text into segments no longer than the chunk size:
// paragraphs, then sentences for oversize paragraphs, then hard splits for
// oversize sentences. Whitespace-only spans produce no segments.
func (c *Chunker) segmentize(runes []rune) []segment {
	var segs []segment
	for _, par := range splitParagraphs(runes) {
		if par.end-par.start <= c.size {
			segs = append(segs, par)
			continue
		}
		for _, sent := range splitSentences(runes, par) {
			if sent.end-sent.start <= c.size {
				segs = append(segs, sent)
				continue
			}
			for start := sent.start; start < sent.end; start += c.size {
				end := start + c.size
				if end > sent.end {
					end = sent.end
				}
				segs = append(segs, segment{start, end})
			}
		}
	}
	return segs
}

// splitParagraphs finds spans separated by blank lines.
func splitParagraphs(runes []rune) []segment {
	var segs []segment
	start := -1
	i := 0
	flush := func(end int) {
		if start >= 0 {
			segs = append(segs, segment{start, end})
			start = -1
		}
	}
	for i < len(runes) {
		if runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			flush(trimEnd(runes, i))
			for i < len(runes) && runes[i] == '\n' {
				i++
			}
			continue
		}
		if start < 0 && !isSpace(runes[i]) {
			start = i
		}
		i++
	}
	flush(trimEnd(runes, len(runes)))
	return segs
}

// splitSentences cuts a paragraph span at sentence-final punctuation
// followed by whitespace. The punctuation stays with the left sentence.
func splitSentences(runes []rune, par segment) []segment {
	var segs []segment
	start := par.start
	for i := par.start; i < par.end-1; i++ {
		if isSentenceEnd(runes[i]) && isSpace(runes[i+1]) {
			segs = append(segs, segment{start, i + 1})
			start = i + 1
			for start < par.end && isSpace(runes[start]) {
				start++
			}
			i = start - 1
		}
	}
	if start < par.end {
		segs = append(segs, segment{start, par.end})
	}
	return segs
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// trimEnd returns the offset just past the last non-space rune before end.
func trimEnd(runes []rune, end int) int {
	for end > 0 && isSpace(runes[end-1]) {
		end--
	}
	return end
}

// Preview returns a short prefix of the chunk text for logging.
func (c Chunk) Preview(n int) string {
	r := []rune(strings.TrimSpace(c.Text))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
