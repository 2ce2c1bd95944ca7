package noirgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/noirgraph"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the whole graph or one document",
	Long: `Clear detach-deletes every node and edge in the graph. With --document
only that document and its chunks, statements and entities are removed.
This cannot be undone.`,
	RunE: runClear,
}

var (
	clearDocument string
	clearYes      bool
)

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().StringVar(&clearDocument, "document", "", "delete only this document")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "confirm the deletion")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return errors.New("refusing to delete without --yes")
	}

	client, err := buildClient(cfg, appLogger)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	var res noirgraph.StageResult
	if clearDocument != "" {
		res = client.ClearDocument(cmd.Context(), clearDocument)
	} else {
		res = client.ClearGraph(cmd.Context())
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Report)
	if !res.OK {
		return errors.New(res.Message)
	}
	return nil
}
