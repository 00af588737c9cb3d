package dispatch

import "sync"

// FailedJobLog is an append-only, ordered record of failed source URLs.
type FailedJobLog struct {
	mu   sync.Mutex
	urls []string
}

func (l *FailedJobLog) Append(url string) {
	l.mu.Lock()
	l.urls = append(l.urls, url)
	l.mu.Unlock()
}

// Snapshot returns a copy in arrival order.
func (l *FailedJobLog) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

func (l *FailedJobLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.urls)
}
