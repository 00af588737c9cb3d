package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lvcoi/ytdl-here/internal/catalog"
	"github.com/lvcoi/ytdl-here/internal/classify"
	"github.com/lvcoi/ytdl-here/internal/dispatch"
	"github.com/lvcoi/ytdl-here/internal/engine"
	"github.com/lvcoi/ytdl-here/internal/history"
	"github.com/lvcoi/ytdl-here/internal/plain"
)

var errHistoryDisabled = errors.New("job history is disabled or unavailable")

var historyHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFE66D"))

// Formats prints the format table for url.
func (a *App) Formats(ctx context.Context, raw string) error {
	url := classify.Normalize(raw)
	if !classify.IsHTTPURL(url) {
		return engine.Wrap(engine.CategoryInvalidURL, fmt.Errorf("not an http(s) url: %q", raw))
	}
	cand := classify.Candidate{URL: url, Kind: classify.Default().Classify(url), Seq: 1}
	cat, err := catalog.NewBuilder(a.engine, a.cfg.FetchTimeout, a.log).Build(ctx, cand)
	if err != nil {
		return err
	}
	plain.PrintCatalog(a.out, cat)
	return nil
}

// History prints recorded jobs, newest first.
func (a *App) History(ctx context.Context, failedOnly bool, limit int) error {
	if a.history == nil {
		return engine.Wrap(engine.CategoryConfig, errHistoryDisabled)
	}
	filter := history.Filter{}
	if failedOnly {
		filter.Status = dispatch.StatusFailed.String()
	}
	if limit > 0 {
		filter.Limit = uint64(limit)
	}
	records, err := a.history.List(ctx, filter)
	if err != nil {
		return engine.Wrap(engine.CategoryFilesystem, err)
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No jobs recorded.")
		return nil
	}

	fmt.Fprintln(a.out, historyHeaderStyle.Render("Job history"))
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "UPDATED\tSTATUS\tTITLE\tURL\tERROR")
	for _, r := range records {
		title := r.Title
		if title == "" {
			title = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.UpdatedAt.Local().Format(time.DateTime), r.Status, title, r.SourceURL, r.Error)
	}
	return w.Flush()
}
