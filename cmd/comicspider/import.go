package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/comicspider/internal/config"
	"github.com/nao1215/comicspider/internal/seed"
	"github.com/spf13/cobra"
)

// errNoBookmarks is returned when a bookmarks file has no usable links.
var errNoBookmarks = errors.New("no http(s) bookmarks found")

// NewImportCmd creates the import command.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <bookmarks.html>",
		Short: "Create a source file from a browser bookmarks export",
		Long: `Import reads a bookmarks file exported by a web browser (Netscape
bookmark HTML format) and writes one "url,domain" line per site.

Only http and https links are used. When several bookmarks point to the same
domain, the first one becomes the seed.

Examples:
  # Write source.txt from exported bookmarks
  comicspider import bookmarks.html

  # Write to another file, replacing it if it exists
  comicspider import -f -o webcomics.txt bookmarks.html`,
		Args: cobra.ExactArgs(1),
		RunE: runImportCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultSourceFile,
		"Source file to write")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing source file")

	return cmd
}

// runImportCmd executes the import command.
func runImportCmd(cmd *cobra.Command, args []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("source file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	f, err := os.Open(filepath.Clean(args[0]))
	if err != nil {
		return fmt.Errorf("failed to open bookmarks file: %w", err)
	}
	defer f.Close()

	tasks, err := seed.ParseBookmarks(f)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("%w in %s", errNoBookmarks, args[0])
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := seed.WriteFile(outputPath, tasks); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d domains into %s\n", len(tasks), outputPath)
	return nil
}
