package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/comicspider/internal/config"
	"github.com/nao1215/comicspider/internal/crawler"
	"github.com/nao1215/comicspider/internal/database"
	applog "github.com/nao1215/comicspider/internal/log"
	"github.com/nao1215/comicspider/internal/model"
	"github.com/nao1215/comicspider/internal/pipeline"
	"github.com/nao1215/comicspider/internal/report"
	"github.com/nao1215/comicspider/internal/seed"
	"github.com/nao1215/comicspider/internal/transport"
	"github.com/nao1215/comicspider/internal/trash"
	"github.com/spf13/cobra"
)

// errNoDomains is returned when the source file yields nothing to crawl.
var errNoDomains = errors.New("no domains to crawl")

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [source-file]",
		Short: "Crawl the domains of a source file and download their images",
		Long: `Run crawls every domain listed in the source file (default: source.txt).

Each line of the source file is "url,domain". Blank lines and lines starting
with # are ignored; when the domain is omitted it is derived from the URL.
Domains are crawled in groups of --batch; the next group starts when every
domain of the current one has finished.

Images are saved to <output>/<label>/. When a domain is finished, images
smaller than a third of the domain's average size are moved to
<output>/<label>/trash/ and listed in the trash log. Domains where fewer than
one page in ten produced an image are listed in the concerns log.

Examples:
  # Crawl source.txt, asking for confirmation first
  comicspider run

  # Crawl another list without asking, 8 domains at a time
  comicspider run -y --batch 8 webcomics.txt

  # Limit every domain to 200 pages and 10 minutes
  comicspider run --max-pages 200 --domain-timeout 10m

  # Route requests through a SOCKS5 proxy
  comicspider run --proxy 127.0.0.1:9050

  # Write a Markdown summary to a file
  comicspider run -m --report-file reports/latest.md

Configuration file (.comicspider) example:
  defaults:
    delay: 2s
  domains:
    xkcd.com:
      maxPages: 500
    example-comic.net:
      cookie: "age_verified=1"
      headers:
        Referer: "https://example-comic.net/"
    spam-comic.org:
      skip: true`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRunCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("batch", "b", config.DefaultGroupSize,
		"Number of domains crawled at the same time")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Pause after each page of a domain")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request")
	cmd.Flags().Duration("domain-timeout", 0,
		"Maximum crawl time per domain (0 = no limit)")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Maximum number of pages per domain (0 = no limit)")
	cmd.Flags().Int("max-redirects", config.DefaultMaxRedirects,
		"Maximum meta refresh hops followed per page")
	cmd.Flags().Int("image-concurrency", config.DefaultImageConcurrency,
		"Maximum concurrent image downloads per domain")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Directory holding one comic directory per domain")
	cmd.Flags().String("trash-log", config.DefaultTrashLog,
		"Log of trashed image URLs")
	cmd.Flags().String("concerns-log", config.DefaultConcernsLog,
		"Log of low-yield domains")
	cmd.Flags().String("log-file", "",
		"Append log output to this file as well as stderr")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .comicspider in current or home directory)")

	// Transport flags
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// History and report flags
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().BoolP("json", "j", false,
		"Output the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().String("report-file", "",
		"Also write the summary to this file (creates directories if needed)")
	cmd.Flags().BoolP("yes", "y", false,
		"Start without asking for confirmation")

	return cmd
}

// runRunCmd executes the run command.
func runRunCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildRunConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, closer, err := applog.New(cfg.Verbose, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
}

// buildRunConfig creates a Config from cobra command flags.
func buildRunConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	if len(args) > 0 {
		cfg.SourceFile = args[0]
	}

	var err error
	if cfg.GroupSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.DomainTimeout, err = flags.GetDuration("domain-timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, err
	}
	if cfg.MaxRedirects, err = flags.GetInt("max-redirects"); err != nil {
		return nil, err
	}
	if cfg.ImageConcurrency, err = flags.GetInt("image-concurrency"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.TrashLog, err = flags.GetString("trash-log"); err != nil {
		return nil, err
	}
	if cfg.ConcernsLog, err = flags.GetString("concerns-log"); err != nil {
		return nil, err
	}
	if cfg.LogFile, err = flags.GetString("log-file"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report-file"); err != nil {
		return nil, err
	}
	if cfg.AssumeYes, err = flags.GetBool("yes"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if err := loadDomainConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDomainConfig loads the per-domain overrides. A config file given with
// --config must exist; the default locations are optional.
func loadDomainConfig(cfg *config.Config) error {
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.Domains = file
	case explicitConfigPath:
		return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.Domains = &config.File{Domains: make(map[string]config.DomainConfig)}
	}
	return nil
}

// runCrawl crawls every domain of the source file and prints a summary to out.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	tasks, err := loadTasks(cfg, logger)
	if err != nil {
		return err
	}

	if !cfg.AssumeYes {
		ok, err := confirm(in, out, cfg, tasks)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	client, stopTransport, err := newTransport(ctx, cfg, logger, out)
	if err != nil {
		return err
	}
	defer stopTransport()
	httpClient := client.HTTPClient()

	trashLog, err := trash.OpenAppendLog(cfg.TrashLog)
	if err != nil {
		return err
	}
	defer trashLog.Close()

	concernsLog, err := trash.OpenAppendLog(cfg.ConcernsLog)
	if err != nil {
		return err
	}
	defer concernsLog.Close()

	var recorder crawler.Recorder
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		recorder = db
		logger.Info("database opened", "path", db.Path())
	}

	run := func(ctx context.Context, task model.DomainTask) *model.DomainReport {
		dc := cfg.ForDomain(task.DomainName)
		w := crawler.NewWorker(httpClient, task,
			crawler.WithOutputDir(cfg.OutputDir),
			crawler.WithDelay(*dc.Delay),
			crawler.WithDomainTimeout(cfg.DomainTimeout),
			crawler.WithMaxPages(dc.MaxPages),
			crawler.WithMaxRedirects(cfg.MaxRedirects),
			crawler.WithMaxPageSize(cfg.MaxPageSize),
			crawler.WithMaxImageSize(cfg.MaxImageSize),
			crawler.WithImageConcurrency(cfg.ImageConcurrency),
			crawler.WithTrashLog(trashLog),
			crawler.WithConcernsLog(concernsLog),
			crawler.WithRecorder(recorder),
			crawler.WithLogger(logger),
		)
		return w.Run(ctx)
	}

	var mu sync.Mutex
	scheduler := pipeline.NewBatchScheduler(run,
		pipeline.WithGroupSize(cfg.GroupSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithOnDone(func(r *model.DomainReport, index int) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "[%d/%d] %s: %s (%d pages, %d images kept, %d trashed)\n",
				index+1, len(tasks), r.Task.DomainName, r.State,
				r.PagesVisited, r.ImagesKept, r.ImagesTrashed+r.ImagesQuarantined)
		}),
	)

	fmt.Fprintf(out, "Crawling %d domains (%d at a time)...\n\n", len(tasks), cfg.GroupSize)
	startTime := time.Now()
	reports, runErr := scheduler.Run(ctx, tasks)
	fmt.Fprintf(out, "\nCrawl finished in %s\n\n", time.Since(startTime).Round(time.Millisecond))

	summary := model.NewBatchSummary(reports, time.Now())
	if err := outputSummary(cfg, summary, out); err != nil {
		logger.Error("report failed", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("crawl interrupted: %w", runErr)
	}
	return nil
}

// loadTasks reads the source file and drops the domains the config file
// marks as skipped. Malformed lines are logged and ignored.
func loadTasks(cfg *config.Config, logger *slog.Logger) ([]model.DomainTask, error) {
	all, skippedLines, err := seed.LoadFile(cfg.SourceFile)
	if err != nil {
		return nil, err
	}
	for _, lineErr := range skippedLines {
		logger.Warn("skipping source line", "file", cfg.SourceFile, "line", lineErr.Line, "error", lineErr.Err)
	}

	tasks := make([]model.DomainTask, 0, len(all))
	for _, task := range all {
		if cfg.ForDomain(task.DomainName).Skip {
			logger.Info("domain skipped by configuration", "domain", task.DomainName)
			continue
		}
		tasks = append(tasks, task)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoDomains, cfg.SourceFile)
	}
	return tasks, nil
}

// confirm lists the domains and asks whether to start. Only "y" and "yes"
// are accepted; end of input counts as no.
func confirm(in io.Reader, out io.Writer, cfg *config.Config, tasks []model.DomainTask) (bool, error) {
	fmt.Fprintf(out, "%d domains will be crawled into %s:\n", len(tasks), cfg.OutputDir)
	for _, task := range tasks {
		fmt.Fprintf(out, "  %s (%s)\n", task.DomainName, task.SeedURL)
	}
	fmt.Fprint(out, "proceed? [y/N] ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// newTransport builds the HTTP transport: direct, through a SOCKS5 proxy,
// or through an embedded Tor daemon. The returned stop function is never nil.
func newTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*transport.Client, func(), error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithSiteHeaders(cfg.SiteHeaders),
	}

	if cfg.UseTor {
		return startEmbeddedTor(ctx, cfg, logger, out, opts)
	}

	if cfg.ProxyAddress != "" {
		opts = append(opts, transport.WithProxyAddress(cfg.ProxyAddress))
	}
	client, err := transport.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if cfg.ProxyAddress != "" {
		if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				status.Error(), cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}
	return client, func() {}, nil
}

// startEmbeddedTor starts an embedded Tor daemon using tornago and returns
// a client routed through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, opts []transport.Option) (*transport.Client, func(), error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := transport.NewEmbeddedTor(
		transport.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started",
		"socksAddr", embeddedTor.SocksAddr(),
		"controlAddr", embeddedTor.ControlAddr(),
	)

	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := embeddedTor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	client, err := embeddedTor.NewClient(opts...)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != transport.ProxyStatusOK {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Error())
	}

	fmt.Fprintf(out, "Embedded Tor daemon started, SOCKS proxy: %s\n\n", embeddedTor.SocksAddr())
	return client, stop, nil
}

// outputSummary prints the summary to out and, when a report file is
// configured, writes a copy to it in the selected format.
func outputSummary(cfg *config.Config, summary *model.BatchSummary, out io.Writer) error {
	writers := []report.Writer{newSummaryWriter(cfg, out)}

	if cfg.ReportFile != "" {
		f, err := createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		writers = append(writers, newSummaryWriter(cfg, f))
	}

	_, err := report.NewMultiWriter(writers...).Write(summary)
	return err
}

// newSummaryWriter returns the report writer of the selected format.
func newSummaryWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// createReportFile creates or truncates path with owner-only permissions.
func createReportFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path comes from a CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
