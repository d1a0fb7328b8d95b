package seed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/comicspider/internal/model"
)

var (
	// ErrMalformedLine marks a seed line that does not describe a task.
	ErrMalformedLine = errors.New("malformed seed line")

	// ErrLabelInUse marks a domain whose comic directory label is already
	// taken by an earlier domain, as with comic.test and comic.org.
	ErrLabelInUse = errors.New("comic directory label already in use")
)

// LineError describes a skipped seed line.
type LineError struct {
	Line int
	Text string
	Err  error
}

// Error implements error.
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

// Unwrap returns the cause.
func (e *LineError) Unwrap() error {
	return e.Err
}

// LoadFile reads the seed file at path. See Parse.
func LoadFile(path string) ([]model.DomainTask, []*LineError, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads "url,domain" lines from r. Malformed lines are skipped and
// returned as LineErrors wrapping ErrMalformedLine. A domain listed twice
// keeps its first seed, and a domain whose label is already taken is
// skipped with ErrLabelInUse. The error is non-nil only when r cannot be
// read.
func Parse(r io.Reader) ([]model.DomainTask, []*LineError, error) {
	var (
		tasks   []model.DomainTask
		skipped []*LineError
		seen    = make(map[string]bool)
		labels  = make(labelSet)
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		task, err := parseLine(line)
		if err != nil {
			skipped = append(skipped, &LineError{Line: lineNo, Text: line, Err: err})
			continue
		}
		if seen[task.DomainName] {
			skipped = append(skipped, &LineError{
				Line: lineNo,
				Text: line,
				Err:  fmt.Errorf("%w: duplicate domain %s", ErrMalformedLine, task.DomainName),
			})
			continue
		}
		if err := labels.claim(task); err != nil {
			skipped = append(skipped, &LineError{
				Line: lineNo,
				Text: line,
				Err:  fmt.Errorf("%w: %w", ErrMalformedLine, err),
			})
			continue
		}
		seen[task.DomainName] = true
		tasks = append(tasks, task)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read seed list: %w", err)
	}
	return tasks, skipped, nil
}

// labelSet maps comic directory labels to the domain that owns them.
type labelSet map[string]string

func (s labelSet) claim(task model.DomainTask) error {
	label := task.Label()
	if owner, ok := s[label]; ok && owner != task.DomainName {
		return fmt.Errorf("%w: %s is used by %s", ErrLabelInUse, label, owner)
	}
	s[label] = task.DomainName
	return nil
}

func parseLine(line string) (model.DomainTask, error) {
	rawURL, domain, _ := strings.Cut(line, ",")
	if strings.Contains(domain, ",") {
		return model.DomainTask{}, fmt.Errorf("%w: too many fields", ErrMalformedLine)
	}

	task, err := model.NewDomainTask(rawURL, domain)
	if err != nil {
		return model.DomainTask{}, fmt.Errorf("%w: %w", ErrMalformedLine, err)
	}
	return task, nil
}

// Write writes tasks to w as "url,domain" lines.
func Write(w io.Writer, tasks []model.DomainTask) error {
	bw := bufio.NewWriter(w)
	for _, t := range tasks {
		if _, err := fmt.Fprintf(bw, "%s,%s\n", t.SeedURL, t.DomainName); err != nil {
			return fmt.Errorf("failed to write seed line: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write seed list: %w", err)
	}
	return nil
}

// WriteFile writes tasks to the seed file at path, replacing it.
func WriteFile(path string, tasks []model.DomainTask) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create seed file: %w", err)
	}
	if err := Write(f, tasks); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close seed file: %w", err)
	}
	return nil
}
