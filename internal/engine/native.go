package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	id3v2 "github.com/bogem/id3v2/v2"
	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/lvcoi/ytdl-here/internal/classify"
)

// YouTubeClient is the part of *youtube.Client the native engine uses.
type YouTubeClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

var _ YouTubeClient = (*youtube.Client)(nil)

// mergeFunc and convertFunc shell out to ffmpeg; tests replace them.
var (
	mergeFunc   = mergeStreams
	convertFunc = convertToMP3
)

// Native talks to YouTube directly and uses ffmpeg only for muxing.
type Native struct {
	client   YouTubeClient
	audioMP3 bool
	log      zerolog.Logger
}

type NativeOption func(*Native)

// WithClient swaps the YouTube client.
func WithClient(c YouTubeClient) NativeOption {
	return func(n *Native) { n.client = c }
}

// WithMP3 converts audio-only transfers to tagged mp3 files.
func WithMP3(enabled bool) NativeOption {
	return func(n *Native) { n.audioMP3 = enabled }
}

func NewNative(log zerolog.Logger, opts ...NativeOption) *Native {
	n := &Native{
		client: &youtube.Client{},
		log:    log.With().Str("engine", "native").Logger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Native) Name() string { return "native" }

func (n *Native) Extract(ctx context.Context, url string, opts ExtractOptions) (*Metadata, error) {
	if opts.EnumerateEntries {
		playlist, err := n.client.GetPlaylistContext(ctx, url)
		if err != nil {
			return nil, extractionErr(url, err)
		}
		md := &Metadata{ID: playlist.ID, Title: playlist.Title, Uploader: playlist.Author}
		for _, e := range playlist.Videos {
			if e == nil || e.ID == "" {
				continue
			}
			md.Entries = append(md.Entries, Entry{ID: e.ID, Title: e.Title, URL: classify.WatchURL(e.ID)})
		}
		return md, nil
	}

	video, err := n.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, extractionErr(url, err)
	}
	md := &Metadata{
		ID:       video.ID,
		Title:    video.Title,
		Uploader: video.Author,
		Duration: video.Duration.Seconds(),
	}
	for i := range video.Formats {
		md.Formats = append(md.Formats, formatFromYouTube(&video.Formats[i]))
	}
	if len(md.Formats) > 0 {
		md.Ext = md.Formats[0].Ext
	}
	return md, nil
}

func formatFromYouTube(f *youtube.Format) Format {
	out := Format{
		ID:       strconv.Itoa(f.ItagNo),
		Ext:      mimeToExt(f.MimeType),
		Note:     f.QualityLabel,
		Width:    f.Width,
		Height:   f.Height,
		FPS:      float64(f.FPS),
		FileSize: f.ContentLength,
		VCodec:   "none",
		ACodec:   "none",
	}
	bitrate := f.AverageBitrate
	if bitrate == 0 {
		bitrate = f.Bitrate
	}
	out.TBR = float64(bitrate) / 1000
	codecs := mimeCodecs(f.MimeType)
	switch {
	case isAudioOnly(f):
		out.ACodec = codecs
		out.Note = strings.TrimPrefix(strings.ToLower(f.AudioQuality), "audio_quality_")
	case isMuxed(f):
		if v, a, ok := strings.Cut(codecs, ", "); ok {
			out.VCodec, out.ACodec = v, a
		} else {
			out.VCodec = codecs
		}
	default:
		out.VCodec = codecs
	}
	return out
}

func (n *Native) Transfer(ctx context.Context, url string, opts TransferOptions) error {
	alts, err := parseExpression(opts.FormatExpression)
	if err != nil {
		return transferErr(url, err)
	}
	video, err := n.client.GetVideoContext(ctx, url)
	if err != nil {
		return transferErr(url, err)
	}
	picked, ok := resolve(alts, video.Formats)
	if !ok {
		return transferErr(url, fmt.Errorf("no format matches %q", opts.FormatExpression))
	}

	report := opts.Progress
	if report == nil {
		report = func(Progress) {}
	}
	tmpl := opts.OutputTemplate
	if tmpl == "" {
		tmpl = OutputTemplate(".")
	}

	if len(picked) == 1 {
		f := picked[0]
		out := ExpandTemplate(tmpl, video.Title, mimeToExt(f.MimeType), video.ID)
		if err := n.stream(ctx, video, f, out, report); err != nil {
			return transferErr(url, err)
		}
		if isAudioOnly(f) && n.audioMP3 {
			report(Progress{Phase: PhaseFinalizing, Title: video.Title})
			mp3 := strings.TrimSuffix(out, filepath.Ext(out)) + ".mp3"
			if err := convertFunc(out, mp3); err != nil {
				return transferErr(url, fmt.Errorf("convert to mp3: %w", err))
			}
			_ = os.Remove(out)
			if err := tagMP3(mp3, video); err != nil {
				n.log.Warn().Err(err).Str("path", mp3).Msg("id3 tagging failed")
			}
		}
		return nil
	}

	videoFmt, audioFmt := picked[0], picked[1]
	ext := "mkv"
	if mimeToExt(videoFmt.MimeType) == "mp4" && mimeToExt(audioFmt.MimeType) == "m4a" {
		ext = "mp4"
	}
	out := ExpandTemplate(tmpl, video.Title, ext, video.ID)
	videoPart := out + ".f" + strconv.Itoa(videoFmt.ItagNo)
	audioPart := out + ".f" + strconv.Itoa(audioFmt.ItagNo)
	defer os.Remove(videoPart)
	defer os.Remove(audioPart)

	if err := n.stream(ctx, video, videoFmt, videoPart, report); err != nil {
		return transferErr(url, err)
	}
	if err := n.stream(ctx, video, audioFmt, audioPart, report); err != nil {
		return transferErr(url, err)
	}
	report(Progress{Phase: PhaseFinalizing, Title: video.Title})
	if err := mergeFunc(videoPart, audioPart, out); err != nil {
		return transferErr(url, fmt.Errorf("merge streams: %w", err))
	}
	return nil
}

func (n *Native) stream(ctx context.Context, video *youtube.Video, f *youtube.Format, path string, report ProgressFunc) error {
	body, size, err := n.client.GetStreamContext(ctx, video, f)
	if err != nil {
		return err
	}
	defer body.Close()
	if size <= 0 {
		size = f.ContentLength
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	pw := newProgressWriter(size, video.Title, report)
	_, err = copyWithContext(ctx, io.MultiWriter(file, pw), body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	pw.flush()
	n.log.Debug().Str("path", path).Int("itag", f.ItagNo).Int64("bytes", pw.done.Load()).Msg("stream saved")
	return nil
}

func mergeStreams(videoPath, audioPath, outPath string) error {
	return ffmpeg.Output(
		[]*ffmpeg.Stream{ffmpeg.Input(videoPath), ffmpeg.Input(audioPath)},
		outPath,
		ffmpeg.KwArgs{"c": "copy"},
	).OverWriteOutput().Silent(true).Run()
}

func convertToMP3(inPath, outPath string) error {
	return ffmpeg.Input(inPath).
		Output(outPath, ffmpeg.KwArgs{"vn": "", "acodec": "libmp3lame", "q:a": "2"}).
		OverWriteOutput().
		Silent(true).
		Run()
}

func tagMP3(path string, video *youtube.Video) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()
	if video.Title != "" {
		tag.SetTitle(video.Title)
	}
	if video.Author != "" {
		tag.SetArtist(video.Author)
	}
	return tag.Save()
}

func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	parts := strings.Split(mime, "/")
	if len(parts) == 2 {
		switch parts[1] {
		case "mp4":
			if parts[0] == "audio" {
				return "m4a"
			}
			return "mp4"
		case "3gpp":
			return "3gp"
		default:
			return parts[1]
		}
	}
	return "bin"
}

func mimeCodecs(mime string) string {
	_, params, ok := strings.Cut(mime, "codecs=")
	if !ok {
		return ""
	}
	return strings.Trim(params, `"' `)
}

// progressWriter counts bytes and reports at most every 100ms.
type progressWriter struct {
	size       int64
	title      string
	report     ProgressFunc
	done       atomic.Int64
	lastReport atomic.Int64
}

func newProgressWriter(size int64, title string, report ProgressFunc) *progressWriter {
	pw := &progressWriter{size: size, title: title, report: report}
	pw.report(Progress{BytesTotal: size, Title: title})
	return pw
}

func (p *progressWriter) Write(b []byte) (int, error) {
	done := p.done.Add(int64(len(b)))
	now := time.Now().UnixNano()
	last := p.lastReport.Load()
	if now-last >= int64(100*time.Millisecond) && p.lastReport.CompareAndSwap(last, now) {
		p.report(Progress{BytesDone: done, BytesTotal: p.size, Title: p.title})
	}
	return len(b), nil
}

func (p *progressWriter) flush() {
	p.report(Progress{BytesDone: p.done.Load(), BytesTotal: p.size, Title: p.title})
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, r.ctx.Err()
	default:
		return r.r.Read(p)
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, &contextReader{ctx: ctx, r: src})
}
