package chunker

import (
	"unicode"

	"eventbot/internal/domain"
)

// DefaultSeparators are tried in order when looking for a chunk boundary:
// paragraph, line, sentence, word. A hard cut is used when none fits.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// WindowChunker splits text into windows of at most size runes. Consecutive
// windows of the same document share at least overlap runes, and each window
// ends on the most natural boundary available.
type WindowChunker struct {
	size       int
	overlap    int
	separators [][]rune
}

func NewWindowChunker(size, overlap int, separators []string) (*WindowChunker, error) {
	if size <= 0 {
		return nil, domain.Configf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, domain.Configf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	c := &WindowChunker{size: size, overlap: overlap}
	for _, s := range separators {
		if s != "" {
			c.separators = append(c.separators, []rune(s))
		}
	}
	return c, nil
}

// Split implements domain.Chunker. Seq numbers run across all documents in
// the order given; Part restarts at zero for each document.
func (c *WindowChunker) Split(documents []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	seq := 0
	for _, doc := range documents {
		rs := trimRunes([]rune(doc.Content))
		for part, w := range c.windows(rs) {
			chunks = append(chunks, domain.Chunk{
				Source: doc.Source,
				Seq:    seq,
				Part:   part,
				Text:   string(rs[w.start:w.end]),
			})
			seq++
		}
	}
	return chunks
}

type span struct{ start, end int }

func (c *WindowChunker) windows(rs []rune) []span {
	n := len(rs)
	if n == 0 {
		return nil
	}
	var out []span
	start, prevEnd := 0, 0
	for {
		if n-start <= c.size {
			out = append(out, span{start, n})
			return out
		}
		limit := start + c.size
		// the break must leave room for the overlap and move past the previous window
		lo := max(start+c.overlap, prevEnd)
		end := c.breakAt(rs, start, lo, limit)
		out = append(out, span{start, end})
		start = wordStartBefore(rs, start, end-c.overlap)
		prevEnd = end
	}
}

// breakAt returns the position just after the last occurrence of the
// highest-priority separator ending in (lo, limit], or limit.
func (c *WindowChunker) breakAt(rs []rune, start, lo, limit int) int {
	for _, sep := range c.separators {
		for p := limit; p > lo; p-- {
			i := p - len(sep)
			if i < start {
				break
			}
			if hasAt(rs, i, sep) {
				return p
			}
		}
	}
	return limit
}

// wordStartBefore returns the last position in (start, bound] that begins a
// word, or bound when there is none.
func wordStartBefore(rs []rune, start, bound int) int {
	for j := bound; j > start; j-- {
		if unicode.IsSpace(rs[j-1]) && !unicode.IsSpace(rs[j]) {
			return j
		}
	}
	return bound
}

func hasAt(rs []rune, i int, sep []rune) bool {
	if i+len(sep) > len(rs) {
		return false
	}
	for k, r := range sep {
		if rs[i+k] != r {
			return false
		}
	}
	return true
}

func trimRunes(rs []rune) []rune {
	i, j := 0, len(rs)
	for i < j && unicode.IsSpace(rs[i]) {
		i++
	}
	for j > i && unicode.IsSpace(rs[j-1]) {
		j--
	}
	return rs[i:j]
}
