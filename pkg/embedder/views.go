package embedder

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/noirgraph/pkg/types"
)

// EmbedViews embeds the name and profile views of a batch concurrently,
// one Embed call per view.
func EmbedViews(ctx context.Context, client Client, names, profiles []string) ([][]float32, [][]float32, error) {
	var nameVecs, profileVecs [][]float32

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nameVecs, err = client.Embed(gctx, names)
		if err != nil {
			return fmt.Errorf("embed names: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		profileVecs, err = client.Embed(gctx, profiles)
		if err != nil {
			return fmt.Errorf("embed profiles: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if len(nameVecs) != len(names) || len(profileVecs) != len(profiles) {
		return nil, nil, fmt.Errorf("embedding count mismatch: names %d/%d, profiles %d/%d",
			len(nameVecs), len(names), len(profileVecs), len(profiles))
	}
	return nameVecs, profileVecs, nil
}

// EmbedStatements fills NameEmbedding and ProfileEmbedding of every statement.
func EmbedStatements(ctx context.Context, client Client, statements []*types.Statement) error {
	if len(statements) == 0 {
		return nil
	}
	names := make([]string, len(statements))
	profiles := make([]string, len(statements))
	for i, s := range statements {
		names[i] = s.NameString()
		profiles[i] = s.ProfileString()
	}

	nameVecs, profileVecs, err := EmbedViews(ctx, client, names, profiles)
	if err != nil {
		return err
	}
	for i, s := range statements {
		s.NameEmbedding = nameVecs[i]
		s.ProfileEmbedding = profileVecs[i]
	}
	return nil
}

// EmbedEntities fills NameEmbedding and ProfileEmbedding of every entity.
func EmbedEntities(ctx context.Context, client Client, entities []*types.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	names := make([]string, len(entities))
	profiles := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.NameString()
		profiles[i] = e.ProfileString()
	}

	nameVecs, profileVecs, err := EmbedViews(ctx, client, names, profiles)
	if err != nil {
		return err
	}
	for i, e := range entities {
		e.NameEmbedding = nameVecs[i]
		e.ProfileEmbedding = profileVecs[i]
	}
	return nil
}

// EmbedChunks fills the content embedding of every chunk.
func EmbedChunks(ctx context.Context, client Client, chunks []*types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := client.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d for %d chunks", len(vectors), len(chunks))
	}
	for i, c := range chunks {
		c.Embedding = vectors[i]
	}
	return nil
}
