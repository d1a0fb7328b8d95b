package crawler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/comicspider/internal/model"
	"github.com/nao1215/comicspider/internal/trash"
)

func mustTask(t *testing.T, seed, domain string) model.DomainTask {
	t.Helper()
	task, err := model.NewDomainTask(seed, domain)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	return task
}

// recordingRecorder keeps everything in memory.
type recordingRecorder struct {
	mu      sync.Mutex
	pages   []model.PageVisit
	images  []model.ImageRecord
	domains []*model.DomainReport
}

func (r *recordingRecorder) RecordPage(_ context.Context, _ string, v model.PageVisit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, v)
	return nil
}

func (r *recordingRecorder) RecordImage(_ context.Context, _ string, img model.ImageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images = append(r.images, img)
	return nil
}

func (r *recordingRecorder) RecordDomain(_ context.Context, report *model.DomainReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains = append(r.domains, report)
	return nil
}

// TestWorkerCleanupScenario crawls a page with a 2000 byte and a 100 byte
// image. The mean is 1050, the threshold 350, so only y.jpg is moved.
func TestWorkerCleanupScenario(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(t)
	web.page("a.test/", `<img src="x.jpg"><img src="y.jpg">`)
	web.image("a.test/x.jpg", 2000)
	web.image("a.test/y.jpg", 100)

	out := t.TempDir()
	var trashBuf bytes.Buffer
	rec := &recordingRecorder{}
	w := NewWorker(web.client(), mustTask(t, "http://a.test/", "a.test"),
		WithOutputDir(out),
		WithDelay(0),
		WithTrashLog(trash.NewAppendLog(&trashBuf)),
		WithRecorder(rec),
	)

	report := w.Run(context.Background())
	if report.State != model.StateDone {
		t.Fatalf("expected done, got %v (%s)", report.State, report.Error)
	}

	comic := filepath.Join(out, "a")
	if _, err := os.Stat(filepath.Join(comic, "x.jpg")); err != nil {
		t.Errorf("x.jpg should remain: %v", err)
	}
	if _, err := os.Stat(filepath.Join(comic, "y.jpg")); !os.IsNotExist(err) {
		t.Errorf("y.jpg should be moved, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(comic, "trash", "y.jpg")); err != nil {
		t.Errorf("y.jpg missing from trash: %v", err)
	}

	if report.AverageSize != 1050 {
		t.Errorf("average = %f, want 1050", report.AverageSize)
	}
	if report.ImagesKept != 1 || report.ImagesQuarantined != 1 || report.ImagesTrashed != 0 {
		t.Errorf("unexpected counts %+v", report)
	}
	if report.PagesVisited != 1 || report.PagesWithImages != 1 || report.LowYield {
		t.Errorf("unexpected yield %+v", report)
	}
	if got := trashBuf.String(); got != "http://a.test/y.jpg, 100\n" {
		t.Errorf("unexpected trash log %q", got)
	}

	t.Run("cleanup is idempotent", func(t *testing.T) {
		moved, err := w.Cleanup()
		if err != nil || moved != 0 {
			t.Errorf("second cleanup moved %d files (err %v)", moved, err)
		}
		if _, err := os.Stat(filepath.Join(comic, "trash", "y.jpg")); err != nil {
			t.Errorf("quarantined file disturbed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(comic, "x.jpg")); err != nil {
			t.Errorf("kept file disturbed: %v", err)
		}
	})

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.domains) != 1 || len(rec.pages) != 1 {
		t.Errorf("unexpected history: %d domains, %d pages", len(rec.domains), len(rec.pages))
	}
	statuses := make(map[model.ImageStatus]int)
	for _, img := range rec.images {
		statuses[img.Status]++
		if img.Status == model.ImageStatusKept && len(img.Hash) != 64 {
			t.Errorf("kept image without hash: %+v", img)
		}
	}
	if statuses[model.ImageStatusKept] != 2 || statuses[model.ImageStatusQuarantined] != 1 {
		t.Errorf("unexpected image history %v", statuses)
	}
}

// TestWorkerCleanupCollision fetches two images that share a file name. The
// 100 byte one arrives second and is rejected as a collision; cleanup judges
// the name by the 2000 byte file on disk and leaves it in place.
func TestWorkerCleanupCollision(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(t)
	web.page("a.test/", `<img src="/big/x.jpg"><img src="/small/x.jpg">`)
	web.image("a.test/big/x.jpg", 2000)
	web.image("a.test/small/x.jpg", 100)
	web.delay("a.test/small/x.jpg", 200*time.Millisecond)

	out := t.TempDir()
	w := NewWorker(web.client(), mustTask(t, "http://a.test/", "a.test"),
		WithOutputDir(out),
		WithDelay(0),
	)

	report := w.Run(context.Background())
	if report.State != model.StateDone {
		t.Fatalf("expected done, got %v (%s)", report.State, report.Error)
	}

	comic := filepath.Join(out, "a")
	info, err := os.Stat(filepath.Join(comic, "x.jpg"))
	if err != nil {
		t.Fatalf("x.jpg should remain: %v", err)
	}
	if info.Size() != 2000 {
		t.Errorf("x.jpg size = %d, want 2000", info.Size())
	}
	if _, err := os.Stat(filepath.Join(comic, "trash", "x.jpg")); !os.IsNotExist(err) {
		t.Errorf("x.jpg should not be quarantined, stat err = %v", err)
	}
	if report.ImagesKept != 1 || report.ImagesTrashed != 1 || report.ImagesQuarantined != 0 {
		t.Errorf("unexpected counts %+v", report)
	}
}

// TestWorkerMetaRefresh checks that a refresh page is replaced by its
// target and that the scope follows the target host.
func TestWorkerMetaRefresh(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(t)
	web.page("a.test/", `<meta http-equiv="refresh" content="0;url=http://b.test/"><a href="/a-only">a</a>`)
	web.page("b.test/", `<a href="/next">next</a><a href="http://a.test/other">back</a>`)
	web.page("b.test/next", `<p>end</p>`)
	web.page("a.test/other", `<p>other</p>`)

	w := NewWorker(web.client(), mustTask(t, "http://a.test/", "a.test"),
		WithOutputDir(t.TempDir()),
		WithDelay(0),
	)
	report := w.Run(context.Background())

	if report.State != model.StateDone {
		t.Fatalf("expected done, got %v (%s)", report.State, report.Error)
	}
	if web.hitCount("b.test/") != 1 || web.hitCount("b.test/next") != 1 {
		t.Errorf("redirect target not crawled: b=%d next=%d", web.hitCount("b.test/"), web.hitCount("b.test/next"))
	}
	if web.hitCount("a.test/a-only") != 0 {
		t.Error("original page was scanned for links")
	}
	if web.hitCount("a.test/other") != 0 {
		t.Error("link outside the new scope was crawled")
	}
	if report.PagesVisited != 3 {
		t.Errorf("pages visited = %d, want 3", report.PagesVisited)
	}
}

// TestWorkerIsolation runs two domains at once and checks that neither
// writes into the other's comic directory.
func TestWorkerIsolation(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(t)
	web.page("a.test/", `<img src="/a1.jpg"><img src="/a2.jpg"><a href="http://b.test/">b</a>`)
	web.page("b.test/", `<img src="/b1.jpg"><a href="http://a.test/">a</a>`)
	web.image("a.test/a1.jpg", 500)
	web.image("a.test/a2.jpg", 600)
	web.image("b.test/b1.jpg", 700)

	out := t.TempDir()
	shared := trash.NewAppendLog(&bytes.Buffer{})
	client := web.client()

	workers := []*Worker{
		NewWorker(client, mustTask(t, "http://a.test/", ""), WithOutputDir(out), WithDelay(0), WithTrashLog(shared)),
		NewWorker(client, mustTask(t, "http://b.test/", ""), WithOutputDir(out), WithDelay(0), WithTrashLog(shared)),
	}

	var wg sync.WaitGroup
	reports := make([]*model.DomainReport, len(workers))
	for i, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = w.Run(context.Background())
		}()
	}
	wg.Wait()

	expect := map[string][]string{
		"a": {"a1.jpg", "a2.jpg"},
		"b": {"b1.jpg"},
	}
	for label, want := range expect {
		entries, err := os.ReadDir(filepath.Join(out, label))
		if err != nil {
			t.Fatalf("failed to read %s: %v", label, err)
		}
		var got []string
		for _, e := range entries {
			got = append(got, e.Name())
		}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("%s contains %v, want %v", label, got, want)
		}
	}
	for _, r := range reports {
		if r.State != model.StateDone || r.PagesVisited != 1 {
			t.Errorf("unexpected report %+v", r)
		}
	}
}

// TestWorkerLowYield checks that a domain without images is listed in the
// concerns log.
func TestWorkerLowYield(t *testing.T) {
	t.Parallel()

	web := newFakeWeb(t)
	web.page("a.test/", `<a href="/p1">1</a><a href="/p2">2</a>`)
	web.page("a.test/p1", `<p>text</p>`)
	web.page("a.test/p2", `<p>text</p>`)

	out := t.TempDir()
	var concerns bytes.Buffer
	w := NewWorker(web.client(), mustTask(t, "http://a.test/", ""),
		WithOutputDir(out),
		WithDelay(0),
		WithConcernsLog(trash.NewAppendLog(&concerns)),
	)
	report := w.Run(context.Background())

	if !report.LowYield {
		t.Error("expected low yield flag")
	}
	if concerns.String() != "a.test, 3, 0\n" {
		t.Errorf("unexpected concerns log %q", concerns.String())
	}
	if _, err := os.Stat(filepath.Join(out, "a")); !os.IsNotExist(err) {
		t.Error("empty comic directory was not removed")
	}
}

// TestWorkerLimits tests the page limit and the domain timeout.
func TestWorkerLimits(t *testing.T) {
	t.Parallel()

	t.Run("max pages", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(t)
		web.page("a.test/", `<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a>`)
		for _, p := range []string{"1", "2", "3"} {
			web.page("a.test/"+p, `<p>x</p>`)
		}

		w := NewWorker(web.client(), mustTask(t, "http://a.test/", ""),
			WithOutputDir(t.TempDir()), WithDelay(0), WithMaxPages(2))
		report := w.Run(context.Background())
		if report.PagesVisited != 2 || report.State != model.StateDone {
			t.Errorf("unexpected report %+v", report)
		}
	})

	t.Run("domain timeout skips cleanup", func(t *testing.T) {
		t.Parallel()

		web := newFakeWeb(t)
		web.page("a.test/", `<p>slow</p>`)
		web.delay("a.test/", 2*time.Second)

		out := t.TempDir()
		w := NewWorker(web.client(), mustTask(t, "http://a.test/", ""),
			WithOutputDir(out), WithDelay(0), WithDomainTimeout(50*time.Millisecond))
		report := w.Run(context.Background())

		if report.State != model.StateTimedOut {
			t.Fatalf("expected timed out, got %v (%s)", report.State, report.Error)
		}
		if report.Error != ErrDomainTimeout.Error() {
			t.Errorf("unexpected error %q", report.Error)
		}
		if _, err := os.Stat(filepath.Join(out, "a")); err != nil {
			t.Errorf("cleanup ran on a timed out domain: %v", err)
		}
	})

	t.Run("unwritable output fails only the domain", func(t *testing.T) {
		t.Parallel()

		out := t.TempDir()
		blocker := filepath.Join(out, "file")
		if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		web := newFakeWeb(t)
		w := NewWorker(web.client(), mustTask(t, "http://a.test/", ""), WithOutputDir(blocker), WithDelay(0))
		report := w.Run(context.Background())
		if report.State != model.StateFailed || report.Error == "" {
			t.Errorf("expected failed state, got %+v", report)
		}
		if web.hitCount("a.test/") != 0 {
			t.Error("crawl started without a comic directory")
		}
	})
}
