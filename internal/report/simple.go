package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/comicspider/internal/model"
)

// SimpleWriter renders plain text for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the seed URL and error of every domain.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose adds per-domain details to the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders the summary.
func (w *SimpleWriter) Write(summary *model.BatchSummary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeDomains(&sb, summary)
	w.writeConcerns(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, c string) {
	sb.WriteString(strings.Repeat(c, 70))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *model.BatchSummary) {
	sb.WriteString("\n")
	rule(sb, "=")
	sb.WriteString("                        COMICSPIDER REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Generated:          %s\n", s.GeneratedAt.Format(timeLayout))
	fmt.Fprintf(sb, "Domains:            %d (done %d, failed %d, timed out %d)\n", s.Domains(), s.Done, s.Failed, s.TimedOut)
	fmt.Fprintf(sb, "Pages visited:      %s\n", humanize.Comma(int64(s.PagesVisited)))
	fmt.Fprintf(sb, "Images kept:        %s\n", humanize.Comma(int64(s.ImagesKept)))
	fmt.Fprintf(sb, "Images trashed:     %s\n", humanize.Comma(int64(s.ImagesTrashed)))
	fmt.Fprintf(sb, "Images quarantined: %s\n", humanize.Comma(int64(s.ImagesQuarantined)))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeDomains(sb *strings.Builder, s *model.BatchSummary) {
	rule(sb, "-")
	sb.WriteString("DOMAINS\n")
	rule(sb, "-")
	sb.WriteString("\n")

	if len(s.Reports) == 0 {
		sb.WriteString("  No domains crawled\n\n")
		return
	}

	for _, r := range s.Reports {
		fmt.Fprintf(sb, "[%s] %s (%s)\n", stateIndicator(r.State), displayName(r.Task.DomainName), r.Task.DomainName)
		fmt.Fprintf(sb, "    state: %s, pages: %d (%d with images), duration: %s\n",
			r.State, r.PagesVisited, r.PagesWithImages, formatDuration(r.Duration()))
		fmt.Fprintf(sb, "    kept: %d, trashed: %d, quarantined: %d, average size: %s\n",
			r.ImagesKept, r.ImagesTrashed, r.ImagesQuarantined, formatSize(r.AverageSize))
		if w.verbose {
			fmt.Fprintf(sb, "    seed: %s\n", r.Task.SeedURL)
			if r.RunID != "" {
				fmt.Fprintf(sb, "    run: %s\n", r.RunID)
			}
		}
		if r.Error != "" {
			fmt.Fprintf(sb, "    error: %s\n", r.Error)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeConcerns(sb *strings.Builder, s *model.BatchSummary) {
	if len(s.LowYield) == 0 {
		return
	}
	rule(sb, "-")
	sb.WriteString("CONCERNS (fewer than 1 in 10 pages had images)\n")
	rule(sb, "-")
	sb.WriteString("\n")
	for _, d := range s.LowYield {
		fmt.Fprintf(sb, "  [!] %s\n", d)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	rule(sb, "=")
	sb.WriteString("Report generated by comicspider\n")
	rule(sb, "=")
}

// WriteImages renders one line per image record.
func (w *SimpleWriter) WriteImages(domain string, images []model.ImageRecord) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Images of %s (%s): %d\n", displayName(domain), domain, len(images))
	for _, img := range images {
		fmt.Fprintf(&sb, "  %-11s %-30s %10s  %s\n", img.Status, img.Filename, formatSize(float64(img.SizeBytes)), img.URL)
		if w.verbose {
			fmt.Fprintf(&sb, "              hash: %s\n", shortHash(img.Hash))
			if camera := cameraOf(img); camera != "" {
				fmt.Fprintf(&sb, "              camera: %s\n", camera)
			}
		}
	}
	return io.WriteString(w.output, sb.String())
}

// stateIndicator returns a short marker for a worker state.
func stateIndicator(s model.WorkerState) string {
	switch s {
	case model.StateDone:
		return "ok"
	case model.StateTimedOut:
		return "!"
	case model.StateFailed:
		return "!!"
	default:
		return "?"
	}
}

// cameraOf joins the Make and Model EXIF tags.
func cameraOf(img model.ImageRecord) string {
	return strings.TrimSpace(img.Exif["Make"] + " " + img.Exif["Model"])
}
