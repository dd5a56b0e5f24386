package twin

import (
	"net/http"
	"sync"
	"time"
)

// faults holds injected failures and per-path request counts.
type faults struct {
	mu      sync.Mutex
	queued  []int
	latency time.Duration
	hits    map[string]int
}

func newFaults() *faults {
	return &faults{hits: make(map[string]int)}
}

// next records a hit and returns the injected status for it, or 0.
func (f *faults) next(path string) (int, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[path]++
	if len(f.queued) == 0 {
		return 0, f.latency
	}
	status := f.queued[0]
	f.queued = f.queued[1:]
	return status, f.latency
}

// FailNext makes the next requests answer with the given statuses, in order.
func (t *Twin) FailNext(statuses ...int) {
	t.faults.mu.Lock()
	defer t.faults.mu.Unlock()
	t.faults.queued = append(t.faults.queued, statuses...)
}

// SetLatency delays every response by d.
func (t *Twin) SetLatency(d time.Duration) {
	t.faults.mu.Lock()
	defer t.faults.mu.Unlock()
	t.faults.latency = d
}

// Hits returns how many requests reached path, including failed ones.
func (t *Twin) Hits(path string) int {
	t.faults.mu.Lock()
	defer t.faults.mu.Unlock()
	return t.faults.hits[path]
}

func (t *Twin) faultMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, latency := t.faults.next(r.URL.Path)
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}
