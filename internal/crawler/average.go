package crawler

import "sync"

// AverageTracker keeps the count and running mean of kept image sizes for
// one domain run. Image goroutines update it concurrently.
type AverageTracker struct {
	mu    sync.Mutex
	count int
	avg   float64
}

// Update adds one kept image size to the mean.
func (a *AverageTracker) Update(size int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++
	if a.count == 1 {
		a.avg = float64(size)
		return
	}
	a.avg += (float64(size) - a.avg) / float64(a.count)
}

// Snapshot returns the current count and mean.
func (a *AverageTracker) Snapshot() (int, float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count, a.avg
}

// Threshold returns the cleanup threshold, a third of the mean. It returns
// 0 when nothing was kept, so no file is below it.
func (a *AverageTracker) Threshold() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return 0
	}
	return a.avg / 3
}

// Reset sets the tracker back to zero.
func (a *AverageTracker) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.avg = 0
}
