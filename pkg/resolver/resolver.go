// Package resolver merges the subject and object mentions of a statement
// batch into canonical entities and classifies them against the registry.
//
// The collaborator is untrusted. Every entity it returns is reconciled
// against the statements of the batch: references to unknown statement IDs
// are dropped, entities named by a bare pronoun get the most specific alias
// as name, entities left without any statement are rejected, unknown
// categories fall back to the wildcard and attributes are filtered through
// the registry.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/nlp"
	"github.com/soundprediction/noirgraph/pkg/prompts"
	"github.com/soundprediction/noirgraph/pkg/registry"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// Options tunes resolution.
type Options struct {
	CustomPrompt string `json:"custom_prompt" mapstructure:"custom_prompt"`
}

// Report counts what reconciliation had to fix or drop.
type Report struct {
	// DroppedReferences counts statement IDs not present in the batch.
	DroppedReferences int `json:"dropped_references"`
	// Rejected counts entities with no usable name or no grounding.
	Rejected int `json:"rejected"`
	// Reclassified counts entities whose category was not registered.
	Reclassified int `json:"reclassified"`
	// Merged counts entities folded into another one with the same name.
	Merged int `json:"merged"`
	// AttributeProblems counts attributes removed by the registry.
	AttributeProblems int `json:"attribute_problems"`
}

// Resolver calls the resolution collaborator.
type Resolver struct {
	llm      nlp.Client
	prompts  *prompts.Library
	registry *registry.Registry
	opts     Options
	logger   *slog.Logger
}

// New creates a Resolver. lib, reg and logger may be nil; a nil registry
// means the built-in crime registry.
func New(llm nlp.Client, lib *prompts.Library, reg *registry.Registry, opts Options, logger *slog.Logger) *Resolver {
	if lib == nil {
		lib = prompts.NewLibrary()
	}
	if reg == nil {
		reg = registry.DefaultCrimeRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{llm: llm, prompts: lib, registry: reg, opts: opts, logger: logger}
}

// Registry returns the registry entities are classified against.
func (r *Resolver) Registry() *registry.Registry {
	return r.registry
}

// Resolve returns reconciled entity drafts for the statements. text is the
// chunk the statements were extracted from. Malformed replies count as an
// empty result; an error means the collaborator could not be reached.
func (r *Resolver) Resolve(ctx context.Context, text string, statements []*types.Statement) ([]types.EntityDraft, Report, error) {
	if len(statements) == 0 {
		return nil, Report{}, nil
	}

	categories, err := r.registry.CategoryContext()
	if err != nil {
		return nil, Report{}, err
	}

	messages, err := r.prompts.ResolveEntities.Call(map[string]any{
		"statements":    prompts.NewStatementContexts(statements),
		"categories":    categories,
		"text":          text,
		"custom_prompt": r.opts.CustomPrompt,
		"logger":        r.logger,
	})
	if err != nil {
		return nil, Report{}, fmt.Errorf("render resolution prompt: %w", err)
	}

	resp, err := r.llm.ChatWithStructuredOutput(ctx, messages, prompts.EntitiesSchema())
	if err != nil {
		if errors.Is(err, &nlp.EmptyResponseError{}) {
			r.logger.Warn("Resolution returned no content", "error", err)
			return nil, Report{}, nil
		}
		return nil, Report{}, fmt.Errorf("entity resolution failed: %w", err)
	}

	drafts, err := Parse(resp.Content)
	if err != nil {
		r.logger.Warn("Discarding malformed resolution reply", "error", err)
		return nil, Report{}, nil
	}

	entities, report := r.Reconcile(drafts, statements)
	if report.DroppedReferences > 0 || report.Rejected > 0 {
		r.logger.Info("Reconciled entities",
			"entities", len(entities),
			"dropped", report.DroppedReferences,
			"rejected", report.Rejected,
			"reclassified", report.Reclassified)
	}
	return entities, report, nil
}

// Reconcile enforces the entity invariants on drafts against the batch.
func (r *Resolver) Reconcile(drafts []types.EntityDraft, statements []*types.Statement) ([]types.EntityDraft, Report) {
	var report Report

	byID := make(map[int]*types.Statement, len(statements))
	for _, s := range statements {
		byID[s.ID] = s
	}

	var out []types.EntityDraft
	index := make(map[string]int)
	for _, d := range drafts {
		d.Name = strings.TrimSpace(d.Name)
		d.Aliases = cleanAliases(d.Aliases)

		if d.Name == "" || types.IsPronoun(d.Name) {
			name, ok := bestAlias(d.Aliases)
			if !ok {
				r.logger.Warn("Rejected entity without a specific name", "name", d.Name, "aliases", d.Aliases)
				report.Rejected++
				continue
			}
			if d.Name != "" {
				d.Aliases = appendUnique(d.Aliases, d.Name)
			}
			d.Name = name
		}

		var dropped int
		d.SubjectStatementIDs, dropped = keepKnown(d.SubjectStatementIDs, byID)
		report.DroppedReferences += dropped
		d.ObjectStatementIDs, dropped = keepKnown(d.ObjectStatementIDs, byID)
		report.DroppedReferences += dropped

		if len(d.SubjectStatementIDs)+len(d.ObjectStatementIDs) == 0 {
			d.SubjectStatementIDs, d.ObjectStatementIDs = groundByMention(d, statements)
		}
		if len(d.SubjectStatementIDs)+len(d.ObjectStatementIDs) == 0 {
			r.logger.Warn("Rejected ungrounded entity", "name", d.Name)
			report.Rejected++
			continue
		}

		d.Category = strings.TrimSpace(d.Category)
		if d.Category == "" {
			d.Category = registry.WildcardCategory
		} else if _, ok := r.registry.Category(d.Category); !ok && d.Category != registry.WildcardCategory {
			r.logger.Warn("Unknown category, using wildcard", "name", d.Name, "category", d.Category)
			d.Category = registry.WildcardCategory
			report.Reclassified++
		}

		attrs, problems := r.filterAttributes(d.Category, d.Attributes)
		for _, p := range problems {
			r.logger.Warn("Dropped entity attribute", "name", d.Name, "error", p)
		}
		report.AttributeProblems += len(problems)
		d.Attributes = attrs

		key := strings.ToLower(d.Name)
		if i, ok := index[key]; ok {
			out[i] = merge(out[i], d)
			report.Merged++
			continue
		}
		index[key] = len(out)
		out = append(out, d)
	}
	return out, report
}

func (r *Resolver) filterAttributes(category string, attrs map[string]any) (map[string]any, []error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	if category != registry.WildcardCategory {
		return r.registry.FilterAttributes(category, attrs)
	}

	clean := make(map[string]any, len(attrs))
	var problems []error
	for k, v := range attrs {
		if registry.IsReserved(k) {
			problems = append(problems, &registry.ValidationError{Field: k, Value: k, Err: registry.ErrReservedAttribute})
			continue
		}
		if s, ok := v.(string); ok {
			clean[k] = s
		}
	}
	return clean, problems
}

// ToEntities stamps drafts with ids from nextID, the document and the chunk
// they were resolved from.
func ToEntities(drafts []types.EntityDraft, documentID string, chunkIndex int, nextID func() int) []*types.Entity {
	entities := make([]*types.Entity, 0, len(drafts))
	for _, d := range drafts {
		entities = append(entities, &types.Entity{
			ID:                  nextID(),
			DocumentID:          documentID,
			ChunkIndex:          chunkIndex,
			Name:                d.Name,
			Aliases:             d.Aliases,
			Type:                strings.TrimSpace(d.Type),
			Category:            d.Category,
			Description:         strings.TrimSpace(d.Description),
			Explanation:         strings.TrimSpace(d.Explanation),
			Attributes:          d.Attributes,
			SubjectStatementIDs: d.SubjectStatementIDs,
			ObjectStatementIDs:  d.ObjectStatementIDs,
		})
	}
	return entities
}

func keepKnown(ids []int, known map[int]*types.Statement) ([]int, int) {
	out := make([]int, 0, len(ids))
	dropped := 0
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			dropped++
			continue
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, dropped
}

// groundByMention links an entity to statements whose subject or object
// matches its name or a non-pronoun alias.
func groundByMention(d types.EntityDraft, statements []*types.Statement) ([]int, []int) {
	var forms []string
	for _, f := range append([]string{d.Name}, d.Aliases...) {
		if f == d.Name || !types.IsPronoun(f) {
			if m := normalizeMention(f); m != "" {
				forms = append(forms, m)
			}
		}
	}

	var subjects, objects []int
	for _, s := range statements {
		if slices.Contains(forms, normalizeMention(s.Subject)) {
			subjects = append(subjects, s.ID)
		}
		if slices.Contains(forms, normalizeMention(s.Object)) {
			objects = append(objects, s.ID)
		}
	}
	return subjects, objects
}

func normalizeMention(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, article := range []string{"the ", "a ", "an "} {
		s = strings.TrimPrefix(s, article)
	}
	return s
}

func cleanAliases(aliases []string) []string {
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		out = appendUnique(out, a)
	}
	return out
}

func appendUnique(list []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

// bestAlias picks the longest alias that is not a pronoun.
func bestAlias(aliases []string) (string, bool) {
	best := ""
	for _, a := range aliases {
		if types.IsPronoun(a) {
			continue
		}
		if len(a) > len(best) {
			best = a
		}
	}
	return best, best != ""
}

func merge(into, from types.EntityDraft) types.EntityDraft {
	for _, a := range from.Aliases {
		into.Aliases = appendUnique(into.Aliases, a)
	}
	for _, id := range from.SubjectStatementIDs {
		if !slices.Contains(into.SubjectStatementIDs, id) {
			into.SubjectStatementIDs = append(into.SubjectStatementIDs, id)
		}
	}
	for _, id := range from.ObjectStatementIDs {
		if !slices.Contains(into.ObjectStatementIDs, id) {
			into.ObjectStatementIDs = append(into.ObjectStatementIDs, id)
		}
	}
	if into.Description == "" {
		into.Description = from.Description
	}
	if into.Type == "" {
		into.Type = from.Type
	}
	if into.Category == registry.WildcardCategory && from.Category != registry.WildcardCategory {
		into.Category = from.Category
		into.Attributes = from.Attributes
	}
	return into
}
