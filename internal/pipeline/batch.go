package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/comicspider/internal/model"
)

// DefaultGroupSize is the number of domains crawled at the same time.
const DefaultGroupSize = 4

// RunFunc crawls one domain to a terminal state and returns its report.
// It must not return nil.
type RunFunc func(ctx context.Context, task model.DomainTask) *model.DomainReport

// BatchScheduler runs domain tasks in fixed-size groups. Groups run one
// after another; the domains of a group run concurrently.
type BatchScheduler struct {
	run       RunFunc
	groupSize int
	logger    *slog.Logger
	onDone    func(report *model.DomainReport, index int)
}

// BatchOption configures a BatchScheduler.
type BatchOption func(*BatchScheduler)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchScheduler) {
		b.logger = logger
	}
}

// WithGroupSize sets how many domains run at the same time.
// Non-positive values keep the default.
func WithGroupSize(n int) BatchOption {
	return func(b *BatchScheduler) {
		if n > 0 {
			b.groupSize = n
		}
	}
}

// WithOnDone registers a callback invoked as soon as a domain finishes.
// It is called from the domain's goroutine and receives the index of the
// task in the input slice.
func WithOnDone(fn func(report *model.DomainReport, index int)) BatchOption {
	return func(b *BatchScheduler) {
		b.onDone = fn
	}
}

// NewBatchScheduler creates a scheduler that crawls each domain with run.
func NewBatchScheduler(run RunFunc, opts ...BatchOption) *BatchScheduler {
	b := &BatchScheduler{
		run:       run,
		groupSize: DefaultGroupSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Partition splits tasks into consecutive groups of at most size tasks.
func Partition(tasks []model.DomainTask, size int) [][]model.DomainTask {
	if size <= 0 {
		size = DefaultGroupSize
	}
	groups := make([][]model.DomainTask, 0, (len(tasks)+size-1)/size)
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		groups = append(groups, tasks[start:end])
	}
	return groups
}

// Run crawls every task and returns one report per task, in input order.
// A failing domain never stops its siblings. Cancelling ctx stops the
// scheduling of further groups; the reports of tasks that never started
// are nil and ctx.Err() is returned.
func (b *BatchScheduler) Run(ctx context.Context, tasks []model.DomainTask) ([]*model.DomainReport, error) {
	groups := Partition(tasks, b.groupSize)
	b.logger.Info("starting batch",
		"domains", len(tasks),
		"groups", len(groups),
		"group_size", b.groupSize,
	)

	startTime := time.Now()
	reports := make([]*model.DomainReport, len(tasks))
	offset := 0

	for n, group := range groups {
		if err := ctx.Err(); err != nil {
			b.logger.Warn("batch cancelled", "completed_groups", n, "error", err)
			return reports, err
		}

		b.logger.Info("starting group", "group", n+1, "total", len(groups), "domains", len(group))
		b.runGroup(ctx, group, offset, reports)
		offset += len(group)
	}

	b.logger.Info("batch complete",
		"domains", len(tasks),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)
	return reports, nil
}

// runGroup runs every task of a group concurrently and waits for all of
// them. Reports are stored at reports[offset+i].
func (b *BatchScheduler) runGroup(ctx context.Context, group []model.DomainTask, offset int, reports []*model.DomainReport) {
	var g errgroup.Group
	g.SetLimit(len(group))

	for i, task := range group {
		index := offset + i
		g.Go(func() error {
			report := b.run(ctx, task)
			if report == nil {
				report = model.NewDomainReport(task)
				report.State = model.StateFailed
			}
			reports[index] = report

			if report.Succeeded() {
				b.logger.Info("domain completed", "domain", task.DomainName, "state", report.State.String())
			} else {
				b.logger.Warn("domain did not complete",
					"domain", task.DomainName,
					"state", report.State.String(),
					"error", report.Error,
				)
			}
			if b.onDone != nil {
				b.onDone(report, index)
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // domain errors are stored in the reports
}
