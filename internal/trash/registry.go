package trash

import (
	"sort"
	"sync"

	"github.com/nao1215/comicspider/internal/model"
)

// Registry records the trash entries and kept images of one domain run.
// Image tasks of the same domain use it concurrently.
type Registry struct {
	mu      sync.Mutex
	entries map[string]model.TrashEntry
	order   []string
	kept    map[string]model.ImageCandidate
	pages   map[string]struct{}
	log     *AppendLog
}

// NewRegistry creates an empty registry. Entries recorded for the first time
// are appended to log as "url, size" lines; log may be nil.
func NewRegistry(log *AppendLog) *Registry {
	return &Registry{
		entries: make(map[string]model.TrashEntry),
		kept:    make(map[string]model.ImageCandidate),
		pages:   make(map[string]struct{}),
		log:     log,
	}
}

// Record adds a trash entry. It returns false when the URL was already
// recorded; the existing entry is left untouched and nothing is logged.
// The returned error reports a failed log append; the entry is recorded
// in memory either way.
func (r *Registry) Record(entry model.TrashEntry) (bool, error) {
	r.mu.Lock()
	if _, ok := r.entries[entry.URL]; ok {
		r.mu.Unlock()
		return false, nil
	}
	r.entries[entry.URL] = entry
	r.order = append(r.order, entry.URL)
	r.mu.Unlock()

	if r.log == nil {
		return true, nil
	}
	return true, r.log.Appendf("%s, %d", entry.URL, entry.SizeBytes)
}

// Has reports whether url has a trash entry.
func (r *Registry) Has(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[url]
	return ok
}

// Entries returns the trash entries in the order they were recorded.
func (r *Registry) Entries() []model.TrashEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.TrashEntry, 0, len(r.order))
	for _, u := range r.order {
		out = append(out, r.entries[u])
	}
	return out
}

// CountByReason returns how many entries were recorded for reason.
func (r *Registry) CountByReason(reason model.TrashReason) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.entries {
		if e.Reason == reason {
			n++
		}
	}
	return n
}

// Keep registers an image written to the comic directory.
func (r *Registry) Keep(candidate model.ImageCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kept[candidate.Filename] = candidate
	if candidate.PageURL != "" {
		r.pages[candidate.PageURL] = struct{}{}
	}
}

// Kept returns the kept images sorted by filename.
func (r *Registry) Kept() []model.ImageCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.ImageCandidate, 0, len(r.kept))
	for _, c := range r.kept {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

// PagesWithImages returns the number of distinct pages that produced at
// least one kept image.
func (r *Registry) PagesWithImages() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}
