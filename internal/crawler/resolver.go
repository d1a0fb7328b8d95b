package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/nao1215/comicspider/internal/media"
	"github.com/nao1215/comicspider/internal/model"
	"github.com/nao1215/comicspider/internal/trash"
)

// DefaultMaxImageSize limits how many bytes of one image are written.
const DefaultMaxImageSize int64 = 50 * 1024 * 1024

// Outcome is what happened to one image reference.
type Outcome int

const (
	// OutcomeSkipped means the reference was not fetched: it did not
	// resolve to an http(s) URL or was already in the trash registry.
	OutcomeSkipped Outcome = iota

	// OutcomeKept means the image was written to the comic directory.
	OutcomeKept

	// OutcomeCollision means a file with the same name already existed.
	// A trash entry was recorded and nothing was written.
	OutcomeCollision

	// OutcomeExists means the file appeared between the collision check and
	// the exclusive create. Nothing was written.
	OutcomeExists

	// OutcomeFailed means the fetch or the write failed.
	OutcomeFailed
)

// String returns the lower-case name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeKept:
		return "kept"
	case OutcomeCollision:
		return "collision"
	case OutcomeExists:
		return "exists"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImageResolver fetches image references and saves them into a comic
// directory. One resolver serves one domain run; Resolve is safe for
// concurrent use.
type ImageResolver struct {
	client   *http.Client
	dir      string
	registry *trash.Registry
	tracker  *AverageTracker
	recorder Recorder
	runID    string
	maxSize  int64
	logger   *slog.Logger
}

// NewImageResolver creates a resolver writing into dir. registry and tracker
// receive the collision entries and kept sizes of the run.
func NewImageResolver(client *http.Client, dir string, registry *trash.Registry, tracker *AverageTracker) *ImageResolver {
	return &ImageResolver{
		client:   client,
		dir:      dir,
		registry: registry,
		tracker:  tracker,
		recorder: nopRecorder{},
		maxSize:  DefaultMaxImageSize,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// Resolve handles one raw image reference found on pageURL:
//
//  1. the reference is resolved; trashed URLs are not fetched again
//  2. the image is requested and must answer 2xx
//  3. the file name is the base of the final request path
//  4. an existing file of that name turns the fetch into a collision
//  5. otherwise the body is written with an exclusive create, so
//     concurrent fetches of one name leave exactly one file
//
// Errors are returned with OutcomeFailed and only concern this image.
func (r *ImageResolver) Resolve(ctx context.Context, pageURL, rawRef string) (Outcome, error) {
	imageURL := ResolveReference(pageURL, rawRef)
	if imageURL == "" || r.registry.Has(imageURL) {
		return OutcomeSkipped, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("failed to fetch image %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OutcomeFailed, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, imageURL, resp.StatusCode)
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	filename, err := imageFilename(finalURL)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %s", err, imageURL)
	}
	dest := filepath.Join(r.dir, filename)

	if _, err := os.Stat(dest); err == nil {
		return r.collide(ctx, resp, imageURL, pageURL, filename)
	}

	f, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644) //nolint:gosec // dest is inside the comic directory
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			r.logger.Info("image already exists", "file", dest)
			return OutcomeExists, nil
		}
		return OutcomeFailed, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	written, err := io.Copy(f, io.LimitReader(resp.Body, r.maxSize+1))
	if err == nil && written > r.maxSize {
		err = fmt.Errorf("%w: %s", ErrImageTooLarge, imageURL)
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", dest, closeErr)
	}
	if err != nil {
		_ = os.Remove(dest)
		return OutcomeFailed, fmt.Errorf("failed to save %s: %w", imageURL, err)
	}

	size := resp.ContentLength
	if size < 0 {
		size = written
	}
	r.tracker.Update(size)
	r.registry.Keep(model.ImageCandidate{
		URL:       imageURL,
		PageURL:   pageURL,
		SizeBytes: size,
		Filename:  filename,
	})
	r.logger.Info("image saved", "file", dest, "size", size)

	record := model.ImageRecord{
		URL:        imageURL,
		PageURL:    pageURL,
		Filename:   filename,
		SizeBytes:  size,
		Status:     model.ImageStatusKept,
		RecordedAt: time.Now(),
	}
	if info, err := media.Inspect(dest); err == nil {
		record.Hash = info.Hash
		record.Exif = info.Exif
	} else {
		r.logger.Debug("failed to inspect image", "file", dest, "error", err)
	}
	if err := r.recorder.RecordImage(ctx, r.runID, record); err != nil {
		r.logger.Warn("failed to record image", "url", imageURL, "error", err)
	}
	return OutcomeKept, nil
}

// collide records a trash entry for an image whose file name is taken.
// The size is the Content-Length, or the drained body length when the
// header is missing.
func (r *ImageResolver) collide(ctx context.Context, resp *http.Response, imageURL, pageURL, filename string) (Outcome, error) {
	size := resp.ContentLength
	if size < 0 {
		n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, r.maxSize))
		if err != nil {
			return OutcomeFailed, fmt.Errorf("failed to read image %s: %w", imageURL, err)
		}
		size = n
	}

	added, err := r.registry.Record(model.TrashEntry{
		URL:       imageURL,
		SizeBytes: size,
		Filename:  filename,
		Reason:    model.TrashReasonCollision,
	})
	if err != nil {
		r.logger.Warn("failed to append trash log", "url", imageURL, "error", err)
	}
	if !added {
		return OutcomeCollision, nil
	}
	r.logger.Info("image skipped, file name taken", "file", filename, "url", imageURL, "size", size)

	record := model.ImageRecord{
		URL:        imageURL,
		PageURL:    pageURL,
		Filename:   filename,
		SizeBytes:  size,
		Status:     model.ImageStatusTrashed,
		RecordedAt: time.Now(),
	}
	if err := r.recorder.RecordImage(ctx, r.runID, record); err != nil {
		r.logger.Warn("failed to record image", "url", imageURL, "error", err)
	}
	return OutcomeCollision, nil
}

// imageFilename returns the last element of the URL path.
func imageFilename(u *url.URL) (string, error) {
	name := path.Base(u.Path)
	switch name {
	case "", ".", "..", "/":
		return "", ErrInvalidFilename
	}
	if filepath.Base(name) != name {
		return "", ErrInvalidFilename
	}
	return name, nil
}
