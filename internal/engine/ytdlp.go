package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"github.com/lvcoi/ytdl-here/internal/classify"
)

const defaultProgressInterval = 250 * time.Millisecond

// YtDlp drives an installed yt-dlp binary.
type YtDlp struct {
	executable       string
	progressInterval time.Duration
	log              zerolog.Logger
}

// NewYtDlp returns an engine using executable, or yt-dlp from PATH when
// executable is empty.
func NewYtDlp(executable string, log zerolog.Logger) *YtDlp {
	return &YtDlp{
		executable:       executable,
		progressInterval: defaultProgressInterval,
		log:              log.With().Str("engine", "ytdlp").Logger(),
	}
}

func (y *YtDlp) Name() string { return "ytdlp" }

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

func (y *YtDlp) Extract(ctx context.Context, url string, opts ExtractOptions) (*Metadata, error) {
	cmd := y.command().
		SkipDownload().
		DumpSingleJSON().
		NoWarnings()
	if opts.EnumerateEntries {
		cmd.FlatPlaylist()
	} else {
		cmd.NoPlaylist()
	}

	start := time.Now()
	res, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, extractionErr(url, err)
	}
	if res == nil || strings.TrimSpace(res.Stdout) == "" {
		return nil, extractionErr(url, errors.New("yt-dlp returned no metadata"))
	}
	md, err := parseInfoJSON([]byte(res.Stdout))
	if err != nil {
		return nil, extractionErr(url, err)
	}
	y.log.Debug().
		Str("url", url).
		Int("formats", len(md.Formats)).
		Int("entries", len(md.Entries)).
		Dur("took", time.Since(start)).
		Msg("extracted")
	return md, nil
}

func (y *YtDlp) Transfer(ctx context.Context, url string, opts TransferOptions) error {
	expr := opts.FormatExpression
	if expr == "" {
		expr = "best"
	}
	cmd := y.command().
		NoPlaylist().
		NoWarnings().
		Format(expr).
		Output(opts.OutputTemplate)
	if opts.Progress != nil {
		report := opts.Progress
		cmd.ProgressFunc(y.progressInterval, func(update ytdlp.ProgressUpdate) {
			report(progressFromUpdate(update))
		})
	}
	if _, err := cmd.Run(ctx, url); err != nil {
		return transferErr(url, err)
	}
	return nil
}

func progressFromUpdate(update ytdlp.ProgressUpdate) Progress {
	p := Progress{
		BytesDone:  int64(update.DownloadedBytes),
		BytesTotal: int64(update.TotalBytes),
		Phase:      PhaseDownloading,
	}
	switch update.Status {
	case ytdlp.ProgressStatusPostProcessing, ytdlp.ProgressStatusFinished:
		p.Phase = PhaseFinalizing
	}
	if update.Info != nil && update.Info.Title != nil {
		p.Title = *update.Info.Title
	}
	return p
}

// rawInfo mirrors the parts of yt-dlp's info JSON we read.
type rawInfo struct {
	Type       string      `json:"_type"`
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Ext        string      `json:"ext"`
	Uploader   string      `json:"uploader"`
	Duration   *float64    `json:"duration"`
	URL        string      `json:"url"`
	WebpageURL string      `json:"webpage_url"`
	Formats    []rawFormat `json:"formats"`
	Entries    []*rawInfo  `json:"entries"`
}

type rawFormat struct {
	FormatID       string   `json:"format_id"`
	Ext            string   `json:"ext"`
	FormatNote     string   `json:"format_note"`
	VCodec         string   `json:"vcodec"`
	ACodec         string   `json:"acodec"`
	Width          *float64 `json:"width"`
	Height         *float64 `json:"height"`
	FPS            *float64 `json:"fps"`
	TBR            *float64 `json:"tbr"`
	FileSize       *float64 `json:"filesize"`
	FileSizeApprox *float64 `json:"filesize_approx"`
}

func parseInfoJSON(data []byte) (*Metadata, error) {
	var info rawInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	md := &Metadata{
		ID:       info.ID,
		Title:    info.Title,
		Ext:      info.Ext,
		Uploader: info.Uploader,
		Duration: deref(info.Duration),
	}
	for _, f := range info.Formats {
		md.Formats = append(md.Formats, Format{
			ID:             f.FormatID,
			Ext:            f.Ext,
			Note:           f.FormatNote,
			VCodec:         f.VCodec,
			ACodec:         f.ACodec,
			Width:          int(deref(f.Width)),
			Height:         int(deref(f.Height)),
			FPS:            deref(f.FPS),
			TBR:            deref(f.TBR),
			FileSize:       int64(math.Round(deref(f.FileSize))),
			FileSizeApprox: int64(math.Round(deref(f.FileSizeApprox))),
		})
	}
	for _, e := range info.Entries {
		if e == nil {
			continue
		}
		entry := Entry{ID: e.ID, Title: e.Title, URL: e.WebpageURL}
		if entry.URL == "" {
			entry.URL = e.URL
		}
		if !classify.IsHTTPURL(entry.URL) {
			entry.URL = classify.WatchURL(e.ID)
		}
		if entry.URL == "" {
			continue
		}
		md.Entries = append(md.Entries, entry)
	}
	return md, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
