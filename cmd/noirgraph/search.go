package noirgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/noirgraph/pkg/driver"
)

var searchCmd = &cobra.Command{
	Use:       "search <chunks|statements|entities> <query>",
	Short:     "Vector search over the graph",
	Args:      cobra.MinimumNArgs(2),
	ValidArgs: []string{"chunks", "statements", "entities"},
	RunE:      runSearch,
}

var (
	searchK    int
	searchView string
)

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVarP(&searchK, "k", "k", 10, "number of results")
	searchCmd.Flags().StringVar(&searchView, "view", "name", "embedding view for statements and entities (name, profile)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	view, err := driver.ParseView(searchView)
	if err != nil {
		return err
	}
	query := strings.Join(args[1:], " ")

	client, err := buildClient(cfg, appLogger)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch args[0] {
	case "chunks":
		hits, err := client.SearchChunks(ctx, query, searchK)
		if err != nil {
			return err
		}
		for _, h := range hits {
			fmt.Fprintf(out, "%.4f  %s  %s\n", h.Score, h.Chunk.ChunkID(), h.Chunk.Content)
		}
	case "statements":
		hits, err := client.SearchStatements(ctx, view, query, searchK)
		if err != nil {
			return err
		}
		for _, h := range hits {
			s := h.Statement
			fmt.Fprintf(out, "%.4f  %s  %s | %s | %s  %v\n", h.Score, s.Key(), s.Subject, s.Predicate, s.Object, s.Modality)
		}
	case "entities":
		hits, err := client.SearchEntities(ctx, view, query, searchK)
		if err != nil {
			return err
		}
		for _, h := range hits {
			e := h.Entity
			fmt.Fprintf(out, "%.4f  %s  %s (%s) %v\n", h.Score, e.Key(), e.Name, e.Category, e.Aliases)
		}
	default:
		return fmt.Errorf("unknown search kind %q", args[0])
	}
	return nil
}
