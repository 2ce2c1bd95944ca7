package noirgraph

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/soundprediction/noirgraph/pkg/checkpoint"
	"github.com/soundprediction/noirgraph/pkg/utils"
)

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Write the chunks, statements and entities of a session to Parquet",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var exportDir string

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "output directory (default <session>/parquet)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	session := args[0]

	store, err := checkpoint.NewStore(cfg.Data.Path, cfg.Data.NamePrefix)
	if err != nil {
		return err
	}
	dir, err := store.SessionPath(session)
	if err != nil {
		return err
	}
	outDir := exportDir
	if outDir == "" {
		outDir = filepath.Join(dir, "parquet")
	}

	chunks, err := store.LoadChunks(ctx, session)
	if err != nil {
		return err
	}
	statements, err := store.LoadAllStatements(ctx, session)
	if err != nil {
		return err
	}
	entities, err := store.LoadAllEntities(ctx, session)
	if err != nil {
		return err
	}
	if len(chunks)+len(statements)+len(entities) == 0 {
		return fmt.Errorf("session %s has nothing to export", session)
	}

	writer, err := utils.NewParquetWriter(outDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, write := range []struct {
		kind  string
		count int
		run   func() (string, error)
	}{
		{"chunks", len(chunks), func() (string, error) { return writer.WriteChunks(ctx, chunks) }},
		{"statements", len(statements), func() (string, error) { return writer.WriteStatements(ctx, statements) }},
		{"entities", len(entities), func() (string, error) { return writer.WriteEntities(ctx, entities) }},
	} {
		if write.count == 0 {
			continue
		}
		path, err := write.run()
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", write.kind, err)
		}
		fmt.Fprintf(out, "Wrote %d %s to %s\n", write.count, write.kind, path)
	}
	return nil
}
