package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aeqip/imgsim/internal/store"
	"github.com/aeqip/imgsim/internal/ui"
)

var indexCategory string

var indexCmd = &cobra.Command{
	Use:   "index [files or directories...]",
	Short: "Extract features and store images in the local database",
	Long: `Index one or more images. Each file is sent to the extraction server
for features, then persisted with its vector so later searches can find
it. Directories are walked recursively; non-image files are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexCategory, "category", "", "category label for the indexed images (required)")
	_ = indexCmd.MarkFlagRequired("category")
}

// imageExtensions lists the file types worth sending to the extractor.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	paths, err := collectImagePaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found under %s", strings.Join(args, ", "))
	}

	indexed, failed := 0, 0
	for _, path := range paths {
		image, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.StyleError.Render("✗"), path, err)
			failed++
			continue
		}

		features, err := ext.Extract(cmd.Context(), image)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.StyleError.Render("✗"), path, err)
			failed++
			continue
		}

		rec := &store.ImageRecord{
			ID:       uuid.NewString(),
			Filename: filepath.Base(path),
			Category: indexCategory,
			Features: features,
		}
		if err := st.Insert(rec, image); err != nil {
			fmt.Fprintf(os.Stderr, "%s %s: %v\n", ui.StyleError.Render("✗"), path, err)
			failed++
			continue
		}

		fmt.Printf("%s %s (%s)\n", ui.StyleSuccess.Render("✓"), path, ui.TruncateID(rec.ID))
		indexed++
	}

	fmt.Printf("\nIndexed %d image(s)", indexed)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
	if failed > 0 && indexed == 0 {
		return fmt.Errorf("all %d image(s) failed to index", failed)
	}
	return nil
}

// collectImagePaths expands the argument list into image file paths,
// walking directories recursively.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if imageExtensions[strings.ToLower(filepath.Ext(path))] {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}
