// Package extractor turns chunk text into normalized statement drafts using
// the extraction collaborator.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/prompts"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// DefaultHistoryWindow is the number of preceding paragraphs sent as context.
const DefaultHistoryWindow = 3

// Options tunes extraction.
type Options struct {
	HistoryWindow     int    `json:"history_window" mapstructure:"history_window"`
	SplitConjunctions bool   `json:"split_conjunctions" mapstructure:"split_conjunctions"`
	CustomPrompt      string `json:"custom_prompt" mapstructure:"custom_prompt"`
}

// Extractor calls the collaborator and cleans up what it returns.
type Extractor struct {
	llm     nlp.Client
	prompts *prompts.Library
	opts    Options
	logger  *slog.Logger
}

// New creates an Extractor. lib and logger may be nil.
func New(llm nlp.Client, lib *prompts.Library, opts Options, logger *slog.Logger) *Extractor {
	if lib == nil {
		lib = prompts.NewLibrary()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HistoryWindow < 0 {
		opts.HistoryWindow = 0
	}
	return &Extractor{llm: llm, prompts: lib, opts: opts, logger: logger}
}

// Options returns the effective options.
func (e *Extractor) Options() Options {
	return e.opts
}

// Extract returns the statement drafts found in text and the number of drafts
// the collaborator returned but that had to be discarded. A reply that cannot
// be decoded counts as an empty result. Errors are only returned when the
// collaborator could not be reached.
func (e *Extractor) Extract(ctx context.Context, text string, history []string) ([]types.StatementDraft, int, error) {
	messages, err := e.prompts.ExtractStatements.Call(map[string]any{
		"text":          text,
		"history":       history,
		"custom_prompt": e.opts.CustomPrompt,
		"logger":        e.logger,
	})
	if err != nil {
		if errors.Is(err, prompts.ErrMissingText) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("render extraction prompt: %w", err)
	}

	resp, err := e.llm.ChatWithStructuredOutput(ctx, messages, prompts.StatementsSchema())
	if err != nil {
		if errors.Is(err, &nlp.EmptyResponseError{}) {
			e.logger.Warn("Extraction returned no content", "error", err)
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("statement extraction failed: %w", err)
	}

	drafts, discarded, err := Parse(resp.Content)
	if err != nil {
		e.logger.Warn("Discarding malformed extraction reply", "error", err)
		return nil, 0, nil
	}

	out := make([]types.StatementDraft, 0, len(drafts))
	for _, d := range drafts {
		d = NormalizeDraft(d)
		if e.opts.SplitConjunctions {
			out = append(out, ExpandConjunctions(d)...)
			continue
		}
		out = append(out, d)
	}
	if discarded > 0 {
		e.logger.Debug("Discarded incomplete statements", "discarded", discarded)
	}
	return out, discarded, nil
}

// History returns up to window paragraphs that precede chunk index, oldest
// first.
func History(chunks []*types.Chunk, index, window int) []string {
	if window <= 0 || index <= 0 {
		return nil
	}
	var paragraphs []string
	for i := index - 1; i >= 0 && len(paragraphs) < window; i-- {
		if i >= len(chunks) {
			continue
		}
		ps := types.SplitParagraphs(chunks[i].Content)
		for j := len(ps) - 1; j >= 0 && len(paragraphs) < window; j-- {
			paragraphs = append(paragraphs, ps[j])
		}
	}
	slices.Reverse(paragraphs)
	return paragraphs
}

// ToStatements stamps drafts with ids from nextID, the document and the chunk.
func ToStatements(drafts []types.StatementDraft, documentID string, chunkIndex int, nextID func() int) []*types.Statement {
	statements := make([]*types.Statement, 0, len(drafts))
	for _, d := range drafts {
		statements = append(statements, &types.Statement{
			ID:          nextID(),
			DocumentID:  documentID,
			ChunkIndex:  chunkIndex,
			Subject:     d.Subject,
			Predicate:   d.Predicate,
			Object:      d.Object,
			Modality:    types.NormalizeModality(d.Modality),
			Sentence:    d.Sentence,
			Explanation: d.Explanation,
		})
	}
	return statements
}
