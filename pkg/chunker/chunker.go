// Package chunker splits document text into ordered, paragraph-aligned chunks.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/soundprediction/noirgraph/pkg/types"
)

const (
	// DefaultTargetSize is the preferred upper bound of a chunk in characters.
	DefaultTargetSize = 800
	// DefaultMinSize is the size below which a chunk keeps absorbing paragraphs.
	DefaultMinSize = 100

	paragraphSeparator = "\n\n"
)

// Options controls chunk sizing. Sizes are measured in characters (runes).
type Options struct {
	TargetSize int `json:"target_size" mapstructure:"target_size"`
	MinSize    int `json:"min_size" mapstructure:"min_size"`
}

// DefaultOptions returns the default sizing.
func DefaultOptions() Options {
	return Options{TargetSize: DefaultTargetSize, MinSize: DefaultMinSize}
}

// withDefaults fills in the zero Options, a non-positive target and a
// negative minimum. An explicit zero minimum with a target set means no
// minimum.
func (o Options) withDefaults() Options {
	if o == (Options{}) {
		return DefaultOptions()
	}
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultTargetSize
	}
	if o.MinSize < 0 {
		o.MinSize = DefaultMinSize
	}
	return o
}

// Chunk splits text into chunks of whole paragraphs.
//
// Paragraphs are accumulated into a buffer joined by a blank line. The next
// paragraph is appended while buffer+paragraph fits in targetSize, or while
// the buffer is still shorter than minSize. Otherwise the buffer is flushed
// and a new one starts with the paragraph. A paragraph is never split, so a
// paragraph larger than targetSize produces an oversized chunk.
func Chunk(text string, targetSize, minSize int) []string {
	opts := Options{TargetSize: targetSize, MinSize: minSize}.withDefaults()

	var (
		chunks []string
		buffer strings.Builder
		bufLen int
	)

	for _, paragraph := range types.SplitParagraphs(text) {
		paraLen := utf8.RuneCountInString(paragraph)

		switch {
		case bufLen == 0, bufLen+paraLen <= opts.TargetSize, bufLen < opts.MinSize:
			if buffer.Len() > 0 {
				buffer.WriteString(paragraphSeparator)
				bufLen += len(paragraphSeparator)
			}
			buffer.WriteString(paragraph)
			bufLen += paraLen
		default:
			chunks = append(chunks, buffer.String())
			buffer.Reset()
			buffer.WriteString(paragraph)
			bufLen = paraLen
		}
	}

	if buffer.Len() > 0 {
		chunks = append(chunks, buffer.String())
	}
	return chunks
}

// Chunker turns documents into typed chunks.
type Chunker struct {
	opts Options
}

// New creates a Chunker. The zero Options use the defaults.
func New(opts Options) *Chunker {
	return &Chunker{opts: opts.withDefaults()}
}

// Options returns the effective sizing.
func (c *Chunker) Options() Options {
	return c.opts
}

// Split chunks the document content. Indexes are 0-based and sequential.
func (c *Chunker) Split(doc *types.Document) []*types.Chunk {
	texts := Chunk(doc.Content, c.opts.TargetSize, c.opts.MinSize)
	chunks := make([]*types.Chunk, len(texts))
	for i, content := range texts {
		chunks[i] = &types.Chunk{
			Index:      i,
			DocumentID: doc.ID,
			Content:    content,
		}
	}
	return chunks
}
