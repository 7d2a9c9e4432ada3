package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aeqip/imgsim/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.GetStats()
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	fmt.Println(ui.StyleTitle.Render("Image database"))
	fmt.Printf("  Total images:  %d\n", stats.TotalImages)
	fmt.Printf("  Scheme:        %s\n", cfg.Similarity.Scheme)
	fmt.Printf("  Dimension:     %d\n", cfg.Feature.Dimension)

	if len(stats.Categories) == 0 {
		return nil
	}

	names := make([]string, 0, len(stats.Categories))
	for name := range stats.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	tbl := &ui.Table{Headers: []string{"Category", "Images"}}
	for _, name := range names {
		tbl.Rows = append(tbl.Rows, []string{name, fmt.Sprintf("%d", stats.Categories[name])})
	}
	fmt.Println()
	fmt.Print(tbl.Render())
	return nil
}
