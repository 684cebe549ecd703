package postprocessors

import (
	"fmt"
	"iter"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// breakSearchWindow is how far back from a window end the chunker looks for a
// natural break point, in runes.
const breakSearchWindow = 100

var (
	paragraphBreak = []rune("\n\n")
	sentenceEnders = [][]rune{
		[]rune(". "), []rune("! "), []rune("? "),
		[]rune(".\n"), []rune("!\n"), []rune("?\n"),
	}
	lineBreak = []rune("\n")
	wordBreak = []rune(" ")
)

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxChunkSize is the maximum runes per chunk
	MaxChunkSize int `yaml:"max_chunk_size"`

	// Overlap is the rune overlap between consecutive chunks
	Overlap int `yaml:"overlap"`

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool `yaml:"preserve_sentences"`

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool `yaml:"preserve_paragraphs"`
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize:       512,
		Overlap:            50,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Validate checks the sizes are usable.
func (c ChunkConfig) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max chunk size must be positive, got %d", domain.ErrConfiguration, c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrConfiguration, c.Overlap)
	}
	if c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max chunk size %d", domain.ErrConfiguration, c.Overlap, c.MaxChunkSize)
	}
	return nil
}

// Segment is one piece of text produced by the chunker.
// Start and End are byte offsets into the input.
type Segment struct {
	Text  string
	Start int
	End   int
}

// Chunker splits content into overlapping chunks.
// This is the first processor in the pipeline (Order = 0).
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

// Process splits content into chunks.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk

	for _, chunk := range chunks {
		for seg := range c.Segments(chunk.Content) {
			result = append(result, driven.Chunk{
				Content:     seg.Text,
				Position:    len(result),
				StartOffset: chunk.StartOffset + seg.Start,
				EndOffset:   chunk.StartOffset + seg.End,
			})
		}
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// Split returns the segment texts of content.
func (c *Chunker) Split(content string) []string {
	var out []string
	for seg := range c.Segments(content) {
		out = append(out, seg.Text)
	}
	return out
}

// Segments lazily yields the segments of content in order.
// Each segment holds at most MaxChunkSize runes; consecutive segments share
// Overlap runes and together they cover the whole input. Content no longer
// than MaxChunkSize yields exactly one segment. The sequence can be ranged
// over more than once.
func (c *Chunker) Segments(content string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		if utf8.RuneCountInString(content) <= c.config.MaxChunkSize {
			yield(Segment{Text: content, Start: 0, End: len(content)})
			return
		}

		runes := []rune(content)
		offsets := byteOffsets(content, len(runes))
		n := len(runes)
		start := 0

		for start < n {
			end := min(start+c.config.MaxChunkSize, n)

			// Only accept a break that still lets the next window advance
			if end < n {
				if bp := c.findBreakPoint(runes, start, end); bp-c.config.Overlap > start {
					end = bp
				}
			}

			seg := Segment{
				Text:  content[offsets[start]:offsets[end]],
				Start: offsets[start],
				End:   offsets[end],
			}
			if !yield(seg) {
				return
			}

			if end >= n {
				return
			}
			start = end - c.config.Overlap
		}
	}
}

// findBreakPoint returns the rune index just after the best natural break in
// the last breakSearchWindow runes before maxEnd, or maxEnd if none exists.
// Preference: paragraph, sentence end, line break, word.
func (c *Chunker) findBreakPoint(runes []rune, start, maxEnd int) int {
	searchStart := max(maxEnd-breakSearchWindow, start)
	window := runes[searchStart:maxEnd]

	if c.config.PreserveParagraphs {
		if idx := lastIndexRunes(window, paragraphBreak); idx != -1 {
			return searchStart + idx + len(paragraphBreak)
		}
	}

	if c.config.PreserveSentences {
		best := -1
		for _, ender := range sentenceEnders {
			if idx := lastIndexRunes(window, ender); idx != -1 {
				best = max(best, idx+len(ender))
			}
		}
		if best > 0 {
			return searchStart + best
		}
	}

	if idx := lastIndexRunes(window, lineBreak); idx != -1 {
		return searchStart + idx + 1
	}

	if idx := lastIndexRunes(window, wordBreak); idx != -1 {
		return searchStart + idx + 1
	}

	return maxEnd
}

// lastIndexRunes returns the index of the last occurrence of sep in s, or -1.
func lastIndexRunes(s, sep []rune) int {
outer:
	for i := len(s) - len(sep); i >= 0; i-- {
		for j := range sep {
			if s[i+j] != sep[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// byteOffsets maps each rune index (0..n inclusive) to its byte offset in s.
func byteOffsets(s string, n int) []int {
	offsets := make([]int, 0, n+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}
