package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lvcoi/ytdl-here/internal/classify"
	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/engine"
	"github.com/lvcoi/ytdl-here/internal/plain"
	"github.com/lvcoi/ytdl-here/internal/session"
)

// Result is the outcome of one job or one failed collection expansion.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func newResult(url, title string, err error) Result {
	r := Result{URL: url, Title: title, Err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Get downloads urls without prompting and waits for every job. The exit
// code is the highest code among failures, or 130 when ctx was cancelled.
func (a *App) Get(ctx context.Context, urls []string, selector string, asJSON bool) ([]Result, int) {
	events := make(chan dispatch.Event, 64)
	disp := dispatch.New(ctx, a.engine, a.dispatchOptions(func(ev dispatch.Event) { events <- ev })...)

	output := make([]Result, 0, len(urls))
	for _, raw := range urls {
		url := classify.Normalize(raw)
		if !classify.IsHTTPURL(url) {
			err := engine.Wrap(engine.CategoryInvalidURL, fmt.Errorf("not an http(s) url: %q", raw))
			output = append(output, newResult(raw, "", err))
			continue
		}
		disp.Dispatch(dispatch.Request{URL: url, Dir: a.cfg.Dir, Selector: selector})
	}

	// Close events after all workers finish
	go func() {
		disp.Wait()
		close(events)
	}()

	printer := plain.NewPrinter(a.out)
	for ev := range events {
		if !asJSON {
			printer.Event(ev)
		}
		switch ev.Kind {
		case dispatch.EventJobFinished:
			output = append(output, newResult(ev.Job.SourceURL, ev.Job.Title, nil))
		case dispatch.EventJobFailed:
			output = append(output, newResult(ev.Job.SourceURL, ev.Job.Title, ev.Err))
		case dispatch.EventExpansionFailed:
			output = append(output, newResult(ev.URL, "", ev.Err))
		}
	}

	exitCode := 0
	for _, res := range output {
		if res.Err != nil {
			if code := engine.ExitCode(res.Err); code > exitCode {
				exitCode = code
			}
		}
	}
	if ctx.Err() != nil && exitCode == 0 {
		exitCode = 130
	}

	if asJSON {
		enc := json.NewEncoder(a.out)
		for _, res := range output {
			if err := enc.Encode(res); err != nil {
				a.log.Error().Err(err).Msg("writing result")
			}
		}
	} else if failed := disp.Failed().Snapshot(); len(failed) > 0 {
		fmt.Fprint(a.out, session.Summary(failed))
	}
	return output, exitCode
}
