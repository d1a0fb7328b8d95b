package crawler

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeWeb serves pages and images for any host name. Requests are routed by
// Host header and path, so tests can use names such as a.test and b.test.
type fakeWeb struct {
	mu     sync.Mutex
	pages  map[string]string
	images map[string][]byte
	slow   map[string]time.Duration
	hits   map[string]int
	srv    *httptest.Server
}

func newFakeWeb(t *testing.T) *fakeWeb {
	t.Helper()

	w := &fakeWeb{
		pages:  make(map[string]string),
		images: make(map[string][]byte),
		slow:   make(map[string]time.Duration),
		hits:   make(map[string]int),
	}
	w.srv = httptest.NewServer(http.HandlerFunc(w.serve))
	t.Cleanup(w.srv.Close)
	return w
}

func (w *fakeWeb) page(key, body string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[key] = body
}

func (w *fakeWeb) image(key string, size int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	w.images[key] = data
}

func (w *fakeWeb) delay(key string, d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.slow[key] = d
}

func (w *fakeWeb) hitCount(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hits[key]
}

func (w *fakeWeb) serve(rw http.ResponseWriter, r *http.Request) {
	key := r.Host + r.URL.Path

	w.mu.Lock()
	w.hits[key]++
	body, isPage := w.pages[key]
	data, isImage := w.images[key]
	d := w.slow[key]
	w.mu.Unlock()

	if d > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(d):
		}
	}

	switch {
	case isPage:
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write([]byte(body))
	case isImage:
		rw.Header().Set("Content-Type", "image/jpeg")
		rw.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = rw.Write(data)
	default:
		http.NotFound(rw, r)
	}
}

// client returns an HTTP client that dials the fake server for every host.
func (w *fakeWeb) client() *http.Client {
	addr := w.srv.Listener.Addr().String()
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}
