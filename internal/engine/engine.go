// Package engine defines the extraction and transfer contract the
// orchestrator drives, plus a yt-dlp backed and a native implementation.
package engine

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
)

// Engine extracts metadata for a URL and transfers media to disk.
// Implementations must be safe for concurrent use.
type Engine interface {
	Name() string
	// Extract fails with *ExtractionError.
	Extract(ctx context.Context, url string, opts ExtractOptions) (*Metadata, error)
	// Transfer fails with *TransferError.
	Transfer(ctx context.Context, url string, opts TransferOptions) error
}

type ExtractOptions struct {
	// EnumerateEntries asks for a flat member listing of a collection
	// instead of per-format detail.
	EnumerateEntries bool
}

// Metadata is the subset of extracted information the orchestrator uses.
type Metadata struct {
	ID       string
	Title    string
	Ext      string
	Uploader string
	// Duration is in seconds; zero when unknown.
	Duration float64
	Formats  []Format
	Entries  []Entry
}

// Format is one raw format record. Zero means missing for every numeric
// field.
type Format struct {
	ID     string
	Ext    string
	Note   string
	VCodec string
	ACodec string
	Width  int
	Height int
	FPS    float64
	// TBR is the total bitrate in kbit/s.
	TBR            float64
	FileSize       int64
	FileSizeApprox int64
}

// Entry is one member of a collection.
type Entry struct {
	ID    string
	Title string
	URL   string
}

type Phase int

const (
	PhaseDownloading Phase = iota
	PhaseFinalizing
)

func (p Phase) String() string {
	if p == PhaseFinalizing {
		return "finalizing"
	}
	return "downloading"
}

// Progress is reported by Transfer. BytesTotal is zero when unknown.
type Progress struct {
	BytesDone  int64
	BytesTotal int64
	Phase      Phase
	Title      string
}

type ProgressFunc func(Progress)

type TransferOptions struct {
	FormatExpression string
	// OutputTemplate uses yt-dlp's %(field)s syntax; only title and ext
	// are guaranteed to be honoured by every engine.
	OutputTemplate string
	Progress       ProgressFunc
}

// OutputTemplate returns the standard "<dir>/<title>.<ext>" template.
func OutputTemplate(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "%(title)s.%(ext)s")
}

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// SanitizeFilename replaces characters that are invalid in file names.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "-")
	name = strings.TrimSpace(name)
	if name == "" {
		return "video"
	}
	return name
}

// ExpandTemplate fills %(title)s, %(ext)s and %(id)s. Unknown fields are
// left as-is.
func ExpandTemplate(tmpl, title, ext, id string) string {
	r := strings.NewReplacer(
		"%(title)s", SanitizeFilename(title),
		"%(ext)s", ext,
		"%(id)s", id,
	)
	return r.Replace(tmpl)
}
