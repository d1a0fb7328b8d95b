package report

import (
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/comicspider/internal/model"
)

// Writer renders summaries and image listings.
type Writer interface {
	// Write renders a batch summary. It returns the number of bytes written.
	Write(summary *model.BatchSummary) (int, error)

	// WriteImages renders the image records of one domain.
	WriteImages(domain string, images []model.ImageRecord) (int, error)
}

// MultiWriter writes to several Writers in order and stops at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders the summary with every writer.
func (m *MultiWriter) Write(summary *model.BatchSummary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteImages renders the image records with every writer.
func (m *MultiWriter) WriteImages(domain string, images []model.ImageRecord) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteImages(domain, images)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

const timeLayout = "2006-01-02 15:04:05 MST"

// displayName returns the title-cased label of a domain: "xkcd.com"
// becomes "Xkcd".
func displayName(domain string) string {
	return cases.Title(language.English).String(model.DomainLabel(domain))
}

// formatSize formats a byte count for humans.
func formatSize(size float64) string {
	if size <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(size))
}

// formatDuration rounds d to whole seconds.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

// shortHash returns the first 12 characters of a hex digest.
func shortHash(hash string) string {
	if hash == "" {
		return "-"
	}
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
