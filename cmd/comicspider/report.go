package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nao1215/comicspider/internal/config"
	"github.com/nao1215/comicspider/internal/database"
	"github.com/nao1215/comicspider/internal/model"
	"github.com/spf13/cobra"
)

// errNoRuns is returned when the history has nothing for the request.
var errNoRuns = errors.New("no recorded runs")

// reportOptions holds the flags of the report command.
type reportOptions struct {
	dbDir   string
	domain  string
	runID   string
	history bool
	pages   bool
	limit   int
	cfg     *config.Config
}

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show crawl results from the history database",
		Long: `Report renders the crawl history recorded by 'comicspider run'.

Without flags it summarizes the latest run of every domain. With --domain it
lists the images of the domain's latest run; add --history to list every run
of the domain instead. --run selects a single run by ID.

Examples:
  # Summary of the latest run of every domain
  comicspider report

  # Images kept and trashed on the last crawl of xkcd.com
  comicspider report --domain xkcd.com

  # Every recorded run of xkcd.com as Markdown
  comicspider report --domain xkcd.com --history -m

  # Pages visited by one run
  comicspider report --run xkcd.com-1760000000000000000 --pages

  # Write the summary as JSON to a file
  comicspider report -j -o history.json`,
		Args: cobra.NoArgs,
		RunE: runReportCmd,
	}

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().StringP("domain", "d", "",
		"Show the images of the latest run of this domain")
	cmd.Flags().StringP("run", "r", "",
		"Show the images of the run with this ID")
	cmd.Flags().BoolP("history", "H", false,
		"With --domain, list every run of the domain")
	cmd.Flags().Bool("pages", false,
		"With --run, list the visited pages instead of the images")
	cmd.Flags().IntP("limit", "n", 0,
		"Maximum number of domains in the summary (0 = all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to this file instead of stdout")

	return cmd
}

// runReportCmd executes the report command.
func runReportCmd(cmd *cobra.Command, _ []string) error {
	opts, err := buildReportOptions(cmd)
	if err != nil {
		return err
	}

	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if err != nil {
		if errors.Is(err, database.ErrDatabaseNotFound) {
			return fmt.Errorf("%w (run 'comicspider run' first)", err)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if opts.cfg.ReportFile != "" {
		f, err := createReportFile(opts.cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return writeHistory(cmd.Context(), db, opts, out)
}

// buildReportOptions reads and checks the report flags.
func buildReportOptions(cmd *cobra.Command) (*reportOptions, error) {
	flags := cmd.Flags()
	opts := &reportOptions{cfg: config.NewConfig()}

	var err error
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if opts.domain, err = flags.GetString("domain"); err != nil {
		return nil, err
	}
	if opts.runID, err = flags.GetString("run"); err != nil {
		return nil, err
	}
	if opts.history, err = flags.GetBool("history"); err != nil {
		return nil, err
	}
	if opts.pages, err = flags.GetBool("pages"); err != nil {
		return nil, err
	}
	if opts.limit, err = flags.GetInt("limit"); err != nil {
		return nil, err
	}
	if opts.cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if opts.cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	opts.cfg.Verbose = getVerboseFlag(cmd)

	if opts.cfg.JSONReport && opts.cfg.MarkdownReport {
		return nil, config.ErrConflictingFormats
	}
	if opts.domain != "" && opts.runID != "" {
		return nil, errors.New("--domain and --run cannot be used together")
	}
	if opts.history && opts.domain == "" {
		return nil, errors.New("--history requires --domain")
	}
	if opts.pages && opts.runID == "" {
		return nil, errors.New("--pages requires --run")
	}
	return opts, nil
}

// writeHistory renders the part of the history selected by opts.
func writeHistory(ctx context.Context, db *database.CrawlDB, opts *reportOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	w := newSummaryWriter(opts.cfg, out)

	switch {
	case opts.runID != "":
		run, err := db.GetRun(ctx, opts.runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("%w with ID %s", errNoRuns, opts.runID)
		}
		if opts.pages {
			pages, err := db.PagesForRun(ctx, run.RunID)
			if err != nil {
				return err
			}
			return writePages(out, run, pages)
		}
		images, err := db.ImagesForRun(ctx, run.RunID)
		if err != nil {
			return err
		}
		_, err = w.WriteImages(run.Task.DomainName, images)
		return err

	case opts.domain != "" && opts.history:
		runs, err := db.RunHistory(ctx, opts.domain)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("%w for %s", errNoRuns, opts.domain)
		}
		_, err = w.Write(model.NewBatchSummary(runs, time.Now()))
		return err

	case opts.domain != "":
		runs, err := db.RunHistory(ctx, opts.domain)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("%w for %s", errNoRuns, opts.domain)
		}
		images, err := db.ImagesForDomain(ctx, opts.domain)
		if err != nil {
			return err
		}
		_, err = w.WriteImages(runs[0].Task.DomainName, images)
		return err

	default:
		runs, err := db.LatestRuns(ctx, opts.limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return errNoRuns
		}
		_, err = w.Write(model.NewBatchSummary(runs, time.Now()))
		return err
	}
}

// writePages prints one line per visited page of run.
func writePages(out io.Writer, run *model.DomainReport, pages []model.PageVisit) error {
	if _, err := fmt.Fprintf(out, "%s (%s): %d pages\n\n", run.Task.DomainName, run.RunID, len(pages)); err != nil {
		return err
	}
	for _, p := range pages {
		line := fmt.Sprintf("  %3d  %3d img  %4d links  %s", p.StatusCode, p.Images, p.Links, p.URL)
		if p.URL != p.RequestedURL && p.RequestedURL != "" {
			line += fmt.Sprintf(" (from %s, %d redirects)", p.RequestedURL, p.Redirects)
		}
		if p.Error != "" {
			line += "  error: " + p.Error
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
