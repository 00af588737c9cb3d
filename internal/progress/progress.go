// Package progress reduces transfer progress samples to the single
// percentage and status line shown to the user.
package progress

import (
	"fmt"
	"sync"
)

type Phase int

const (
	Downloading Phase = iota
	Finalizing
)

// Sample is one progress observation from a transfer worker. BytesTotal is
// zero when the total size is unknown.
type Sample struct {
	JobID      string
	BytesDone  int64
	BytesTotal int64
	Phase      Phase
}

// Display is what the interface shows. HasPercent is false while the
// transfer size is unknown.
type Display struct {
	JobID      string
	Percent    int
	HasPercent bool
	Status     string
}

const (
	StatusDownloading = "Downloading..."
	StatusFinalizing  = "Processing downloaded video..."
)

// Reduce maps one sample to a display state.
func Reduce(s Sample) Display {
	d := Display{JobID: s.JobID}
	if s.Phase == Finalizing {
		d.Percent = 0
		d.HasPercent = true
		d.Status = StatusFinalizing
		return d
	}
	if s.BytesTotal <= 0 {
		d.Status = StatusDownloading
		return d
	}
	pct := int(100 * s.BytesDone / s.BytesTotal)
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	d.Percent = pct
	d.HasPercent = true
	d.Status = fmt.Sprintf("Downloading... %d%%", pct)
	return d
}

// Reporter keeps the most recent display. Samples from concurrent jobs
// overwrite each other; there is one indicator, not one per job.
type Reporter struct {
	mu   sync.Mutex
	last Display
	seen bool
}

func NewReporter() *Reporter {
	return &Reporter{}
}

// OnSample reduces s and makes it the current display.
func (r *Reporter) OnSample(s Sample) Display {
	d := Reduce(s)
	r.mu.Lock()
	r.last = d
	r.seen = true
	r.mu.Unlock()
	return d
}

// Current returns the latest display and whether any sample arrived.
func (r *Reporter) Current() (Display, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.seen
}

// Reset clears the display between jobs.
func (r *Reporter) Reset() {
	r.mu.Lock()
	r.last = Display{}
	r.seen = false
	r.mu.Unlock()
}
