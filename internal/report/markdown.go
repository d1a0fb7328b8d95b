package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/comicspider/internal/model"
)

// MarkdownWriter renders summaries as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write renders the summary.
func (w *MarkdownWriter) Write(summary *model.BatchSummary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeAlert(md, summary)
	w.writeDomains(md, summary)
	w.writeConcerns(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.BatchSummary) {
	md.H1("ComicSpider Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", s.GeneratedAt.Format(timeLayout)},
			{"Domains", strconv.Itoa(s.Domains())},
			{"Pages Visited", strconv.Itoa(s.PagesVisited)},
			{"Images Kept", strconv.Itoa(s.ImagesKept)},
			{"Images Trashed", strconv.Itoa(s.ImagesTrashed)},
			{"Images Quarantined", strconv.Itoa(s.ImagesQuarantined)},
		},
	})
	md.PlainText("")

	if s.TotalImages() > 0 {
		w.writePieChart(md, s)
	}
}

// writePieChart writes a mermaid pie chart of image outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *model.BatchSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Image Outcomes"),
		piechart.WithShowData(true),
	)

	if s.ImagesKept > 0 {
		chart.LabelAndIntValue("Kept", uint64(s.ImagesKept))
	}
	if s.ImagesQuarantined > 0 {
		chart.LabelAndIntValue("Quarantined", uint64(s.ImagesQuarantined))
	}
	if s.ImagesTrashed > 0 {
		chart.LabelAndIntValue("Trashed", uint64(s.ImagesTrashed))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.BatchSummary) {
	switch {
	case s.Domains() == 0:
		md.Note("No domains were crawled.")
	case s.Failed > 0:
		md.Cautionf("%d domain(s) failed. See the error column below.", s.Failed)
	case s.TimedOut > 0:
		md.Warningf("%d domain(s) timed out before cleanup. Their directories were not cleaned.", s.TimedOut)
	case len(s.LowYield) > 0:
		md.Importantf("%d domain(s) produced images on fewer than 1 in 10 pages.", len(s.LowYield))
	default:
		md.Tip("Every domain was crawled and cleaned.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDomains(md *markdown.Markdown, s *model.BatchSummary) {
	md.H2("Domains")
	md.PlainText("")

	if len(s.Reports) == 0 {
		md.PlainText("No domains crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Reports))
	for i, r := range s.Reports {
		errMsg := r.Error
		if errMsg == "" {
			errMsg = "-"
		}
		rows[i] = []string{
			displayName(r.Task.DomainName) + " (`" + r.Task.DomainName + "`)",
			stateBadge(r.State),
			strconv.Itoa(r.PagesVisited),
			strconv.Itoa(r.PagesWithImages),
			strconv.Itoa(r.ImagesKept),
			strconv.Itoa(r.ImagesTrashed),
			strconv.Itoa(r.ImagesQuarantined),
			formatSize(r.AverageSize),
			formatDuration(r.Duration()),
			truncateString(errMsg, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Domain", "State", "Pages", "With Images", "Kept", "Trashed", "Quarantined", "Avg Size", "Duration", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeConcerns(md *markdown.Markdown, s *model.BatchSummary) {
	if len(s.LowYield) == 0 {
		return
	}
	md.H2("Concerns")
	md.PlainText("")
	md.PlainText("Domains where fewer than 1 in 10 visited pages produced a kept image:")
	md.PlainText("")
	md.BulletList(s.LowYield...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [comicspider](https://github.com/nao1215/comicspider)*")
}

// WriteImages renders a table of image records.
func (w *MarkdownWriter) WriteImages(domain string, images []model.ImageRecord) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H2("Images of " + displayName(domain))
	md.PlainText("")

	if len(images) == 0 {
		md.PlainText("No images recorded.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, len(images))
	for i, img := range images {
		camera := cameraOf(img)
		if camera == "" {
			camera = "-"
		}
		rows[i] = []string{
			"`" + img.Filename + "`",
			string(img.Status),
			formatSize(float64(img.SizeBytes)),
			"`" + shortHash(img.Hash) + "`",
			camera,
			truncateString(img.URL, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"File", "Status", "Size", "SHA3", "Camera", "URL"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

// stateBadge returns the state with an emoji marker.
func stateBadge(s model.WorkerState) string {
	switch s {
	case model.StateDone:
		return "✅ done"
	case model.StateTimedOut:
		return "⚠️ timed out"
	case model.StateFailed:
		return "❌ failed"
	default:
		return strings.ReplaceAll(s.String(), "_", " ")
	}
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
