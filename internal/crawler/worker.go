package crawler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/comicspider/internal/model"
	"github.com/nao1215/comicspider/internal/trash"
)

const (
	// DefaultDelay is the pause after each page.
	DefaultDelay = 3 * time.Second

	// DefaultImageConcurrency bounds the image downloads of one domain.
	DefaultImageConcurrency = 8

	// DefaultOutputDir is the parent of all comic directories.
	DefaultOutputDir = "comics"

	// trashDirName is the quarantine subdirectory of a comic directory.
	trashDirName = "trash"
)

// Worker crawls a single domain. A Worker is used for one Run.
type Worker struct {
	client           *http.Client
	task             model.DomainTask
	outputDir        string
	delay            time.Duration
	domainTimeout    time.Duration
	maxPages         int
	maxRedirects     int
	maxPageSize      int64
	maxImageSize     int64
	imageConcurrency int64
	trashLog         *trash.AppendLog
	concernsLog      *trash.AppendLog
	recorder         Recorder
	logger           *slog.Logger

	state    model.WorkerState
	report   *model.DomainReport
	frontier *Frontier
	tracker  *AverageTracker
	registry *trash.Registry
	fetcher  *PageFetcher
	resolver *ImageResolver
	comicDir string
	images   *errgroup.Group
	sem      *semaphore.Weighted
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithOutputDir sets the directory that holds the comic directories.
func WithOutputDir(dir string) WorkerOption {
	return func(w *Worker) {
		w.outputDir = dir
	}
}

// WithDelay sets the pause after each page.
func WithDelay(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.delay = d
	}
}

// WithDomainTimeout bounds the whole run. Zero means no limit.
// A run that exceeds it is abandoned without cleanup.
func WithDomainTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.domainTimeout = d
	}
}

// WithMaxPages limits the pages fetched. Zero means no limit.
func WithMaxPages(n int) WorkerOption {
	return func(w *Worker) {
		w.maxPages = n
	}
}

// WithMaxRedirects sets how many meta refresh hops are followed per page.
func WithMaxRedirects(n int) WorkerOption {
	return func(w *Worker) {
		w.maxRedirects = n
	}
}

// WithMaxPageSize sets the maximum page body size parsed.
func WithMaxPageSize(size int64) WorkerOption {
	return func(w *Worker) {
		w.maxPageSize = size
	}
}

// WithMaxImageSize sets the maximum image size written.
func WithMaxImageSize(size int64) WorkerOption {
	return func(w *Worker) {
		w.maxImageSize = size
	}
}

// WithImageConcurrency bounds the concurrent image downloads of the domain.
func WithImageConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.imageConcurrency = int64(n)
		}
	}
}

// WithTrashLog sets the shared quarantine log.
func WithTrashLog(l *trash.AppendLog) WorkerOption {
	return func(w *Worker) {
		w.trashLog = l
	}
}

// WithConcernsLog sets the shared log of low-yield domains.
func WithConcernsLog(l *trash.AppendLog) WorkerOption {
	return func(w *Worker) {
		w.concernsLog = l
	}
}

// WithRecorder sets the run history recorder.
func WithRecorder(r Recorder) WorkerOption {
	return func(w *Worker) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithLogger sets the logger. The worker adds a domain attribute.
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker for task that sends requests through client.
func NewWorker(client *http.Client, task model.DomainTask, opts ...WorkerOption) *Worker {
	w := &Worker{
		client:           client,
		task:             task,
		outputDir:        DefaultOutputDir,
		delay:            DefaultDelay,
		maxRedirects:     DefaultMaxRedirects,
		maxPageSize:      DefaultMaxPageSize,
		maxImageSize:     DefaultMaxImageSize,
		imageConcurrency: DefaultImageConcurrency,
		recorder:         nopRecorder{},
		logger:           slog.New(slog.DiscardHandler),
		state:            model.StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("domain", task.DomainName)
	w.comicDir = filepath.Join(w.outputDir, task.Label())
	return w
}

// State returns the current state.
func (w *Worker) State() model.WorkerState {
	return w.state
}

// ComicDir returns the directory images are saved into.
func (w *Worker) ComicDir() string {
	return w.comicDir
}

// Registry returns the trash registry of the current run, or nil before Run.
func (w *Worker) Registry() *trash.Registry {
	return w.registry
}

// Run crawls the domain to completion and returns its report. Failures are
// reported in the returned report; Run never panics on network errors.
func (w *Worker) Run(ctx context.Context) *model.DomainReport {
	report := model.NewDomainReport(w.task)
	report.StartedAt = time.Now()
	report.RunID = fmt.Sprintf("%s-%d", w.task.DomainName, report.StartedAt.UnixNano())
	w.report = report

	w.logger.Info("worker starting", "seed", w.task.SeedURL)
	defer func() {
		report.FinishedAt = time.Now()
		report.State = w.state
		if err := w.recorder.RecordDomain(context.WithoutCancel(ctx), report); err != nil {
			w.logger.Warn("failed to record domain", "error", err)
		}
		w.logger.Info("worker finished",
			"state", report.State.String(),
			"pages", report.PagesVisited,
			"kept", report.ImagesKept,
			"quarantined", report.ImagesQuarantined,
			"duration", report.Duration().Round(time.Millisecond))
	}()

	runCtx := ctx
	if w.domainTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.domainTimeout)
		defer cancel()
	}

	if err := w.seed(); err != nil {
		w.fail(err)
		return report
	}

	w.state = model.StateCrawling
	if err := w.crawl(runCtx); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			w.state = model.StateTimedOut
			report.Error = ErrDomainTimeout.Error()
			w.logger.Warn("domain abandoned", "timeout", w.domainTimeout)
			w.fillCounts(0)
			return report
		}
		w.fail(err)
		return report
	}

	if err := w.images.Wait(); err != nil {
		w.logger.Warn("some images failed", "first_error", err)
	}

	w.state = model.StateCleaning
	moved, err := w.Cleanup()
	if err != nil {
		w.fail(err)
		return report
	}
	w.fillCounts(moved)
	w.checkYield()

	w.state = model.StateDone
	return report
}

// seed resets the per-run state and creates the comic directory.
func (w *Worker) seed() error {
	w.state = model.StateSeeding

	w.tracker = &AverageTracker{}
	w.registry = trash.NewRegistry(w.trashLog)
	w.frontier = NewFrontier(NewScope(w.task.DomainName))
	w.frontier.Seed(w.task.SeedURL)
	w.fetcher = NewPageFetcher(w.client,
		WithFetcherMaxBodySize(w.maxPageSize),
		WithFetcherMaxRedirects(w.maxRedirects),
	)
	w.resolver = NewImageResolver(w.client, w.comicDir, w.registry, w.tracker)
	w.resolver.recorder = w.recorder
	w.resolver.runID = w.report.RunID
	w.resolver.maxSize = w.maxImageSize
	w.resolver.logger = w.logger
	w.images = &errgroup.Group{}
	w.sem = semaphore.NewWeighted(w.imageConcurrency)

	if w.frontier.Len() == 0 {
		return fmt.Errorf("seed %s is not an http(s) URL", w.task.SeedURL)
	}
	if err := os.MkdirAll(w.comicDir, 0750); err != nil {
		return fmt.Errorf("failed to create comic directory: %w", err)
	}
	return nil
}

// crawl runs the dequeue, fetch and sleep loop until the frontier is empty.
// It returns the context error when the run is cancelled or times out.
func (w *Worker) crawl(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.maxPages > 0 && w.report.PagesVisited >= w.maxPages {
			w.logger.Info("page limit reached", "max_pages", w.maxPages, "queued", w.frontier.Len())
			return nil
		}

		pageURL, ok := w.frontier.Dequeue()
		if !ok {
			return nil
		}
		w.visit(ctx, pageURL)

		if w.delay > 0 && w.frontier.Len() > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.delay):
			}
		}
	}
}

// visit fetches one page, queues its links and dispatches its images.
// Errors only abort this page.
func (w *Worker) visit(ctx context.Context, pageURL string) {
	w.logger.Info("visiting", "url", pageURL)

	page, err := w.fetcher.Fetch(ctx, pageURL)
	w.report.PagesVisited += len(page.Chain)
	for _, u := range page.Chain[1:] {
		w.frontier.MarkVisited(u)
	}

	visit := model.PageVisit{
		URL:          page.URL,
		RequestedURL: pageURL,
		StatusCode:   page.StatusCode,
		Redirects:    len(page.Chain) - 1,
		VisitedAt:    time.Now(),
	}
	if visit.URL == "" {
		visit.URL = page.Chain[len(page.Chain)-1]
	}

	if err != nil {
		w.logger.Warn("page skipped", "url", pageURL, "error", err)
		visit.Error = err.Error()
		w.recordPage(ctx, visit)
		return
	}

	if page.Redirected() {
		target := page.Chain[len(page.Chain)-1]
		if host := hostOf(target); host != "" {
			w.frontier.SetScope(NewScope(host))
		}
		w.logger.Info("following meta refresh", "from", pageURL, "to", target, "scope", w.frontier.Scope().Domain())
	}

	result := page.Result
	for _, link := range result.Links {
		if w.frontier.Enqueue(link) {
			w.logger.Debug("link queued", "url", link)
		}
	}
	for _, ref := range result.Images {
		w.dispatchImage(ctx, page.URL, ref)
	}

	visit.Links = len(result.Links)
	visit.Images = len(result.Images)
	w.recordPage(ctx, visit)
}

// dispatchImage starts a supervised goroutine for one image reference.
// The download itself ignores cancellation of ctx; only tasks still waiting
// for a slot are dropped when the run ends early.
func (w *Worker) dispatchImage(ctx context.Context, pageURL, ref string) {
	w.images.Go(func() error {
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		defer w.sem.Release(1)

		outcome, err := w.resolver.Resolve(context.WithoutCancel(ctx), pageURL, ref)
		if err != nil {
			w.logger.Warn("image skipped", "ref", ref, "page", pageURL, "outcome", outcome.String(), "error", err)
			return err
		}
		return nil
	})
}

func (w *Worker) recordPage(ctx context.Context, visit model.PageVisit) {
	if err := w.recorder.RecordPage(context.WithoutCancel(ctx), w.report.RunID, visit); err != nil {
		w.logger.Warn("failed to record page", "url", visit.URL, "error", err)
	}
}

// Cleanup moves saved files smaller than a third of the average kept size
// into the trash subdirectory. The candidates are the kept images and the
// names of recorded trash entries, checked by their size on disk. Files that
// are already gone are skipped, so a second call moves nothing. An empty
// comic directory is removed afterwards. Cleanup returns the number of files
// moved.
//
// A collision entry is judged by the size of the file already saved under
// its name, not by the size of the rejected fetch.
func (w *Worker) Cleanup() (int, error) {
	if w.registry == nil {
		return 0, nil
	}

	count, avg := w.tracker.Snapshot()
	moved := 0
	if count > 0 {
		threshold := avg / 3
		urls := make(map[string]string)
		for _, e := range w.registry.Entries() {
			if _, ok := urls[e.Filename]; !ok {
				urls[e.Filename] = e.URL
			}
		}
		for _, c := range w.registry.Kept() {
			urls[c.Filename] = c.URL
		}

		names := make([]string, 0, len(urls))
		for name := range urls {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			ok, err := w.quarantine(name, urls[name], threshold)
			if err != nil {
				return moved, err
			}
			if ok {
				moved++
			}
		}
	}

	w.removeIfEmpty()
	return moved, nil
}

// quarantine moves <comic>/<name> into trash/ when it is smaller than
// threshold.
func (w *Worker) quarantine(name, imageURL string, threshold float64) (bool, error) {
	src := filepath.Join(w.comicDir, name)
	info, err := os.Stat(src)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("failed to stat image", "file", src, "error", err)
		}
		return false, nil
	}
	if info.IsDir() || float64(info.Size()) >= threshold {
		return false, nil
	}

	trashDir := filepath.Join(w.comicDir, trashDirName)
	if err := os.MkdirAll(trashDir, 0750); err != nil {
		return false, fmt.Errorf("failed to create trash directory: %w", err)
	}
	if err := os.Rename(src, filepath.Join(trashDir, name)); err != nil {
		w.logger.Warn("failed to quarantine image", "file", src, "error", err)
		return false, nil
	}
	w.logger.Info("removed undersized image", "file", name, "size", info.Size(), "threshold", int64(threshold))

	if _, err := w.registry.Record(model.TrashEntry{
		URL:       imageURL,
		SizeBytes: info.Size(),
		Filename:  name,
		Reason:    model.TrashReasonUndersized,
	}); err != nil {
		w.logger.Warn("failed to append trash log", "url", imageURL, "error", err)
	}

	record := model.ImageRecord{
		URL:        imageURL,
		Filename:   name,
		SizeBytes:  info.Size(),
		Status:     model.ImageStatusQuarantined,
		RecordedAt: time.Now(),
	}
	if err := w.recorder.RecordImage(context.Background(), w.report.RunID, record); err != nil {
		w.logger.Warn("failed to record image", "url", imageURL, "error", err)
	}
	return true, nil
}

// removeIfEmpty deletes the comic directory when nothing was saved in it.
func (w *Worker) removeIfEmpty() {
	entries, err := os.ReadDir(w.comicDir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(w.comicDir); err == nil {
		w.logger.Info("removed empty comic directory", "dir", w.comicDir)
	}
}

// checkYield flags the domain when fewer than a tenth of the visited pages
// produced a kept image.
func (w *Worker) checkYield() {
	visited := w.report.PagesVisited
	withImages := w.report.PagesWithImages
	if withImages*10 >= visited {
		return
	}
	w.report.LowYield = true
	w.logger.Warn("low image yield", "visited", visited, "with_images", withImages)
	if w.concernsLog == nil {
		return
	}
	if err := w.concernsLog.Appendf("%s, %d, %d", w.task.DomainName, visited, withImages); err != nil {
		w.logger.Warn("failed to append concerns log", "error", err)
	}
}

// fillCounts copies the registry and tracker totals into the report.
// Kept images count only while their file is still in the comic directory.
func (w *Worker) fillCounts(quarantined int) {
	_, avg := w.tracker.Snapshot()
	w.report.AverageSize = avg
	w.report.PagesWithImages = w.registry.PagesWithImages()

	kept := 0
	for _, c := range w.registry.Kept() {
		if _, err := os.Stat(filepath.Join(w.comicDir, c.Filename)); err == nil {
			kept++
		}
	}
	w.report.ImagesKept = kept
	w.report.ImagesTrashed = w.registry.CountByReason(model.TrashReasonCollision)
	w.report.ImagesQuarantined = quarantined
}

// fail moves the worker to StateFailed.
func (w *Worker) fail(err error) {
	w.state = model.StateFailed
	w.report.Error = err.Error()
	w.logger.Error("worker failed", "error", err)
	if w.registry != nil {
		w.fillCounts(0)
	}
}
