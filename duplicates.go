package noirgraph

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/types"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

// DefaultDuplicateThreshold is the name similarity above which two entities
// are reported as possible duplicates.
const DefaultDuplicateThreshold = 0.92

// DuplicatePair is two entities that probably refer to the same referent.
// OriginalID is the older (lower) ID.
type DuplicatePair struct {
	OriginalID    int     `json:"original_id"`
	DuplicateID   int     `json:"duplicate_id"`
	OriginalName  string  `json:"original_name"`
	DuplicateName string  `json:"duplicate_name"`
	Similarity    float64 `json:"similarity"`
}

// FindDuplicateCandidates compares the name embeddings of entity pairs from
// different resolution passes and returns the pairs above threshold, most
// similar first. A pass is one chunk of one document; entities resolved
// together were already merged by the resolver. Entities without an
// embedding fall back to a case-insensitive name match. Nothing is merged;
// deciding what to do with a pair is up to the caller.
func FindDuplicateCandidates(entities []*types.Entity, threshold float64) []DuplicatePair {
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}

	var pairs []DuplicatePair
	for i, a := range entities {
		for _, b := range entities[i+1:] {
			if a == nil || b == nil || a.DocumentID != b.DocumentID || a.ID == b.ID || a.ChunkIndex == b.ChunkIndex {
				continue
			}
			sim := nameSimilarity(a, b)
			if sim < threshold {
				continue
			}
			original, duplicate := a, b
			if b.ID < a.ID {
				original, duplicate = b, a
			}
			pairs = append(pairs, DuplicatePair{
				OriginalID:    original.ID,
				DuplicateID:   duplicate.ID,
				OriginalName:  original.Name,
				DuplicateName: duplicate.Name,
				Similarity:    sim,
			})
		}
	}

	slices.SortFunc(pairs, func(x, y DuplicatePair) int {
		return cmp.Or(
			cmp.Compare(y.Similarity, x.Similarity),
			cmp.Compare(x.OriginalID, y.OriginalID),
			cmp.Compare(x.DuplicateID, y.DuplicateID),
		)
	})
	return pairs
}

func nameSimilarity(a, b *types.Entity) float64 {
	if len(a.NameEmbedding) > 0 && len(a.NameEmbedding) == len(b.NameEmbedding) {
		return utils.CosineSimilarity(a.NameEmbedding, b.NameEmbedding)
	}
	if strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)) {
		return 1
	}
	return 0
}

// DuplicateCandidates runs FindDuplicateCandidates over the entities saved
// in the open session.
func (c *Client) DuplicateCandidates(ctx context.Context, threshold float64) ([]DuplicatePair, error) {
	session := c.Session()
	if session == "" {
		return nil, nil
	}
	entities, err := c.config.Sessions.LoadAllEntities(ctx, session)
	if err != nil {
		return nil, err
	}
	return FindDuplicateCandidates(entities, threshold), nil
}
