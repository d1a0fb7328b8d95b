package crawler

import (
	"context"

	"github.com/nao1215/comicspider/internal/model"
)

// Recorder persists the history of a domain run. Implementations must be
// safe for concurrent use: image goroutines record in parallel.
type Recorder interface {
	RecordPage(ctx context.Context, runID string, visit model.PageVisit) error
	RecordImage(ctx context.Context, runID string, image model.ImageRecord) error
	RecordDomain(ctx context.Context, report *model.DomainReport) error
}

// nopRecorder discards everything.
type nopRecorder struct{}

func (nopRecorder) RecordPage(context.Context, string, model.PageVisit) error {
	return nil
}

func (nopRecorder) RecordImage(context.Context, string, model.ImageRecord) error {
	return nil
}

func (nopRecorder) RecordDomain(context.Context, *model.DomainReport) error {
	return nil
}
