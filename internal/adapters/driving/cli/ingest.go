package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Index a folder of documents",
	Long: `Extracts text from every PDF and text file in the folder, tags it from
the file name (class10_science_c3.pdf) and indexes its chunks. Files that do
not follow the naming convention are skipped. Without an argument the
configured data directory is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the batch result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	folder := a.Config.Ingestion.DataDir
	if len(args) == 1 {
		folder = args[0]
	}

	result, err := a.Corpus.IngestFolder(ctx, folder)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		return outputJSON(cmd, result)
	}

	outputBatch(cmd, folder, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", result.Failed, len(result.Results))
	}
	return nil
}

func outputBatch(cmd *cobra.Command, folder string, result *domain.BatchResult) {
	cmd.Printf("Ingested %s\n", folder)
	for _, r := range result.Results {
		if r.Succeeded() {
			cmd.Printf("  ok    %s (%d chunks)\n", r.DocumentID, r.Chunks)
		} else {
			cmd.Printf("  fail  %s: %s\n", r.DocumentID, r.Error)
		}
	}
	for _, name := range result.Skipped {
		cmd.Printf("  skip  %s\n", name)
	}
	cmd.Printf("%d succeeded, %d failed, %d skipped\n", result.Succeeded, result.Failed, len(result.Skipped))
}
