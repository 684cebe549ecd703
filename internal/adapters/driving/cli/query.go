package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	queryClass    string
	querySubject  string
	queryChapter  string
	queryTopK     int
	queryRetrieve bool
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieves the passages most similar to the question, optionally restricted
by class, subject and chapter, and asks the configured LLM to answer from
them. With --retrieve only the ranked passages are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryClass, "class", "", `restrict to a class, e.g. "Class 10"`)
	queryCmd.Flags().StringVar(&querySubject, "subject", "", `restrict to a subject, e.g. "Science"`)
	queryCmd.Flags().StringVar(&queryChapter, "chapter", "", `restrict to a chapter, e.g. "Chapter 3"`)
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", domain.DefaultTopK, "number of passages to retrieve")
	queryCmd.Flags().BoolVar(&queryRetrieve, "retrieve", false, "print passages without generating an answer")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := domain.RetrievalRequest{
		Query:   args[0],
		Filters: queryFilters(),
		TopK:    queryTopK,
	}

	if queryRetrieve {
		result, err := a.Retrieval.Retrieve(ctx, req)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		if queryJSON {
			return outputJSON(cmd, result)
		}
		outputPassages(cmd, result.Passages)
		return nil
	}

	answer, err := a.Answer.Answer(ctx, req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if queryJSON {
		return outputJSON(cmd, answer)
	}

	cmd.Println(answer.Response)
	if len(answer.Passages) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		outputPassages(cmd, answer.Passages)
	}
	return nil
}

func queryFilters() map[string]string {
	filters := map[string]string{}
	if queryClass != "" {
		filters["class"] = queryClass
	}
	if querySubject != "" {
		filters["subject"] = querySubject
	}
	if queryChapter != "" {
		filters["chapter"] = queryChapter
	}
	return filters
}

func outputPassages(cmd *cobra.Command, passages []domain.Passage) {
	if len(passages) == 0 {
		cmd.Println("No passages found.")
		return
	}
	for i, p := range passages {
		// Format: [N] document (score)
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, p.DocumentID, p.Score)
		cmd.Printf("      %s\n", snippet(p.Text, 160))
	}
}

func snippet(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
