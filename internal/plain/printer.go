package plain

import (
	"fmt"
	"io"

	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/progress"
)

// progressStep is the percent bucket size for progress lines.
const progressStep = 10

const (
	bucketUnknown    = -1
	bucketFinalizing = -2
)

// Printer renders worker events as text lines. It prints a progress line
// only when a job moves into a new bucket.
type Printer struct {
	out  io.Writer
	last map[string]int
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, last: make(map[string]int)}
}

func (p *Printer) Event(ev dispatch.Event) {
	name := ev.Job.Title
	if name == "" {
		name = ev.Job.SourceURL
	}
	switch ev.Kind {
	case dispatch.EventJobStarted:
		fmt.Fprintf(p.out, "Starting %s\n", name)
	case dispatch.EventJobProgress:
		d := progress.Reduce(ev.Sample)
		b := bucket(ev.Sample, d)
		if prev, ok := p.last[ev.Job.ID]; ok && prev == b {
			return
		}
		p.last[ev.Job.ID] = b
		fmt.Fprintf(p.out, "%s: %s\n", name, d.Status)
	case dispatch.EventJobFinished:
		delete(p.last, ev.Job.ID)
		fmt.Fprintf(p.out, "Download completed: %s\n", name)
	case dispatch.EventJobFailed:
		delete(p.last, ev.Job.ID)
		fmt.Fprintf(p.out, "Download failed: %s: %v\n", name, ev.Err)
	case dispatch.EventExpanded:
		fmt.Fprintf(p.out, "Playlist expanded: %d items\n", ev.Count)
	case dispatch.EventExpansionFailed:
		fmt.Fprintf(p.out, "Could not expand playlist %s: %v\n", ev.URL, ev.Err)
	}
}

func bucket(s progress.Sample, d progress.Display) int {
	switch {
	case s.Phase == progress.Finalizing:
		return bucketFinalizing
	case !d.HasPercent:
		return bucketUnknown
	}
	return d.Percent / progressStep * progressStep
}
