package noirgraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/noirgraph"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the database, language model and embedding connections",
	RunE:  runCheck,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the graph constraints and vector indexes",
	Long: `Schema creates the uniqueness constraints and the vector indexes for
chunks, statements and entities. It is safe to run against a populated graph.`,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(checkCmd, schemaCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	client, err := buildClient(cfg, appLogger)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	failed := 0
	for _, check := range []func(context.Context) noirgraph.StageResult{
		client.TestDatabase,
		client.TestLanguageModel,
		client.TestEmbedding,
	} {
		res := check(ctx)
		fmt.Fprintln(out, res.Report)
		fmt.Fprintln(out)
		if !res.OK {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	return nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	client, err := buildClient(cfg, appLogger)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	ctx := cmd.Context()
	if res := client.TestDatabase(ctx); !res.OK {
		fmt.Fprintln(cmd.OutOrStdout(), res.Report)
		return errors.New(res.Message)
	}
	if err := client.CreateIndices(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := client.GetDriver().VerifySchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schema is in place")
	return nil
}
