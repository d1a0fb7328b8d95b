package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/comicspider/internal/model"
)

// JSONWriter renders summaries as JSON.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed output.
	indent bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint enables two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders the summary.
func (w *JSONWriter) Write(summary *model.BatchSummary) (int, error) {
	return w.writeJSON(summary)
}

// imageListing is the JSON shape of WriteImages.
type imageListing struct {
	Domain string              `json:"domain"`
	Images []model.ImageRecord `json:"images"`
}

// WriteImages renders the image records of domain.
func (w *JSONWriter) WriteImages(domain string, images []model.ImageRecord) (int, error) {
	if images == nil {
		images = []model.ImageRecord{}
	}
	return w.writeJSON(imageListing{Domain: domain, Images: images})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
