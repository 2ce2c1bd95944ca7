package noirgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soundprediction/noirgraph"
	"github.com/soundprediction/noirgraph/pkg/chunker"
	"github.com/soundprediction/noirgraph/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Chunk, extract and resolve a document into the graph",
	Long: `Ingest loads a text file, splits it into chunks, extracts statements and
resolves entities. Everything is written to the graph and mirrored into a
session folder under data.path.

With --resume the document, chunks and statements of the session are reused
and only the stages not skipped are run again.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Print the chunks a document would be split into",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunk,
}

var (
	ingestID             string
	ingestTitle          string
	ingestSession        string
	ingestResume         bool
	ingestSkipExtraction bool
	ingestSkipResolution bool
	ingestChunkLimit     int
)

func init() {
	rootCmd.AddCommand(ingestCmd, chunkCmd)

	ingestCmd.Flags().StringVar(&ingestID, "id", "", "document id (generated when empty)")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestSession, "session", "", "session folder name (most recent or new when empty)")
	ingestCmd.Flags().BoolVar(&ingestResume, "resume", false, "reuse the document and statements saved in the session")
	ingestCmd.Flags().BoolVar(&ingestSkipExtraction, "skip-extraction", false, "do not run extraction")
	ingestCmd.Flags().BoolVar(&ingestSkipResolution, "skip-resolution", false, "do not run resolution")
	ingestCmd.Flags().IntVar(&ingestChunkLimit, "chunk-limit", 0, "process only the first N chunks")
}

func readDocument(path, id, title string) (*types.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &types.Document{ID: id, Title: title, Content: string(data)}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	if !ingestResume && len(args) == 0 {
		return errors.New("a file is required unless --resume is set")
	}
	if cmd.Flags().Changed("chunk-limit") {
		cfg.Pipeline.ChunkLimit = ingestChunkLimit
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := buildClient(cfg, appLogger)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	session, err := client.OpenSession(ctx, ingestSession)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ingestResume {
		if err := client.Resume(ctx); err != nil {
			return err
		}
	} else {
		doc, err := readDocument(args[0], ingestID, ingestTitle)
		if err != nil {
			return err
		}
		chunks, err := client.LoadDocument(ctx, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Loaded %s (%s) into session %s: %d chunks\n", doc.Title, doc.ID, session, len(chunks))
	}

	if !ingestSkipExtraction {
		res, _ := client.ExtractAll(ctx)
		if err := printStage(out, res); err != nil {
			return err
		}
	}
	if !ingestSkipResolution {
		res, _ := client.ResolveAll(ctx)
		if err := printStage(out, res); err != nil {
			return err
		}

		pairs, err := client.DuplicateCandidates(ctx, noirgraph.DefaultDuplicateThreshold)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			fmt.Fprintf(out, "Possible duplicate: %d %q and %d %q (%.3f)\n",
				p.OriginalID, p.OriginalName, p.DuplicateID, p.DuplicateName, p.Similarity)
		}
	}
	return nil
}

// printStage writes the stage report and turns a fatal stage into an error.
func printStage(w io.Writer, res noirgraph.StageResult) error {
	fmt.Fprintln(w, res.Message)
	if res.OK {
		return nil
	}
	fmt.Fprintln(w, res.Report)
	for _, se := range res.Errors {
		if se.Fatal {
			return &se
		}
	}
	return nil
}

func runChunk(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(args[0], "preview", "")
	if err != nil {
		return err
	}
	c := chunker.New(chunker.Options{TargetSize: cfg.Chunking.TargetSize, MinSize: cfg.Chunking.MinSize})
	out := cmd.OutOrStdout()
	for _, chunk := range c.Split(doc) {
		fmt.Fprintf(out, "--- chunk %d (%d chars)\n%s\n", chunk.Index, len([]rune(chunk.Content)), chunk.Content)
	}
	return nil
}
