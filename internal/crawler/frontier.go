package crawler

// Frontier holds the pending URLs of one domain run and the URLs already
// fetched. It is owned by a single Worker and is not safe for concurrent use.
type Frontier struct {
	scope   Scope
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier creates an empty frontier limited to scope.
func NewFrontier(scope Scope) *Frontier {
	return &Frontier{
		scope:   scope,
		queue:   make([]string, 0),
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Enqueue appends rawURL to the queue. It returns false and does nothing when
// the URL is empty, not an http(s) URL, out of scope, already queued or
// already visited.
func (f *Frontier) Enqueue(rawURL string) bool {
	if rawURL == "" || !f.scope.Contains(rawURL) {
		return false
	}
	key := normalizeURL(rawURL)
	if _, ok := f.visited[key]; ok {
		return false
	}
	if _, ok := f.queued[key]; ok {
		return false
	}
	f.queued[key] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

// Seed queues the first URL of a run. Unlike Enqueue it does not check the
// scope: a seed may live on another host than the domain it is filed under.
func (f *Frontier) Seed(rawURL string) bool {
	if hostOf(rawURL) == "" {
		return false
	}
	key := normalizeURL(rawURL)
	if _, ok := f.queued[key]; ok {
		return false
	}
	f.queued[key] = struct{}{}
	f.queue = append(f.queue, rawURL)
	return true
}

// Dequeue pops the oldest URL and marks it visited before returning it,
// so a page linking to itself is never queued again.
func (f *Frontier) Dequeue() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	next := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]

	key := normalizeURL(next)
	delete(f.queued, key)
	f.visited[key] = struct{}{}
	return next, true
}

// MarkVisited records rawURL as fetched without queueing it. Meta refresh
// targets fetched in place of a page are marked this way.
func (f *Frontier) MarkVisited(rawURL string) {
	if rawURL == "" {
		return
	}
	f.visited[normalizeURL(rawURL)] = struct{}{}
}

// IsVisited reports whether rawURL was dequeued or marked visited.
func (f *Frontier) IsVisited(rawURL string) bool {
	_, ok := f.visited[normalizeURL(rawURL)]
	return ok
}

// Scope returns the current crawl scope.
func (f *Frontier) Scope() Scope {
	return f.scope
}

// SetScope replaces the crawl scope. URLs already queued stay queued.
func (f *Frontier) SetScope(scope Scope) {
	f.scope = scope
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// VisitedCount returns the number of visited URLs.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}
