package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aeqip/imgsim/internal/search"
	"github.com/aeqip/imgsim/internal/ui"
)

var (
	searchTopK     int
	searchCategory string
	searchMinScore float64
)

var searchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Find stored images similar to the given one",
	Long: `Search the local database for images similar to the query image. The
query is sent to the extraction server for features, scored against
every stored vector, and the top matches are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 10, "maximum number of results")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "restrict the search to one category")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", -1, "minimum similarity score (default: thresholds.goodConfidence)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read query image: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ext, err := newExtractor()
	if err != nil {
		return fmt.Errorf("configure extractor: %w", err)
	}
	defer func() { _ = ext.Close() }()

	features, err := ext.Extract(cmd.Context(), image)
	if err != nil {
		return fmt.Errorf("extract features: %w", err)
	}

	records, err := st.List(searchCategory)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}
	candidates := make([]search.Candidate, len(records))
	for i, rec := range records {
		candidates[i] = search.Candidate{
			ID:          rec.ID,
			Vector:      rec.Features,
			Filename:    rec.Filename,
			Category:    rec.Category,
			StoragePath: rec.StoragePath,
		}
	}

	minScore := searchMinScore
	if minScore < 0 {
		minScore = cfg.Thresholds.GoodConfidence
	}

	results, err := newRanker().Rank(features, candidates, search.Options{
		TopK:     searchTopK,
		MinScore: minScore,
	})
	if err != nil {
		return fmt.Errorf("rank candidates: %w", err)
	}

	cls := search.Classify(results, cfg.Thresholds)
	switch cls.Status {
	case search.StatusExactMatch:
		fmt.Println(ui.StyleSuccess.Render(cls.Message))
	case search.StatusHighConfidence:
		fmt.Println(ui.StyleWarning.Render(cls.Message))
	default:
		fmt.Println(ui.StyleSubtle.Render(cls.Message))
	}
	if len(results) == 0 {
		return nil
	}

	tbl := &ui.Table{
		Headers:  []string{"ID", "Score", "Category", "Filename"},
		MaxWidth: 100,
	}
	for _, r := range results {
		tbl.Rows = append(tbl.Rows, []string{
			ui.TruncateID(r.ID),
			fmt.Sprintf("%.4f", r.Score),
			r.Category,
			r.Filename,
		})
	}
	fmt.Println()
	fmt.Print(tbl.Render())
	return nil
}
