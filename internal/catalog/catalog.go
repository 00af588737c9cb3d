// Package catalog turns extracted format metadata into the ordered list of
// choices shown to the user.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/lvcoi/ytdl-here/internal/classify"
	"github.com/lvcoi/ytdl-here/internal/engine"
)

// Resolution tiers offered for collections, best first.
const (
	Tier4K        = "4k"
	Tier1440p     = "1440p"
	Tier1080p     = "1080p"
	Tier720p      = "720p"
	Tier360p      = "360p"
	TierAudioOnly = "audio only"
)

// Tiers is the fixed tier list shown for every collection.
var Tiers = []string{Tier4K, Tier1440p, Tier1080p, Tier720p, Tier360p, TierAudioOnly}

// ErrEmptyCatalog is returned when extraction succeeds but yields no formats.
var ErrEmptyCatalog = engine.CategorizedError{
	Category: engine.CategoryEmptyCatalog,
	Err:      errors.New("no formats found"),
}

// Entry is one selectable option. Exactly one of FormatID and Tier is set.
type Entry struct {
	Rank     int
	Label    string
	FormatID string
	Tier     string

	Width   int
	Height  int
	FPS     int
	Bitrate float64
	Ext     string
	Note    string

	// SizeBytes is zero when unknown. SizeSource says where it came from.
	SizeBytes  int64
	SizeSource SizeSource
}

// Selector is the value handed to the dispatcher for this entry.
func (e Entry) Selector() string {
	if e.Tier != "" {
		return e.Tier
	}
	return e.FormatID
}

type SizeSource int

const (
	SizeUnknown SizeSource = iota
	SizeReported
	SizeApproximate
	SizeEstimated
)

// Catalog is the full option list for one URL.
type Catalog struct {
	URL      string
	Kind     classify.Kind
	Title    string
	Duration float64
	Entries  []Entry
}

func (c Catalog) Empty() bool {
	return len(c.Entries) == 0
}

// Extractor is the part of engine.Engine the builder needs.
type Extractor interface {
	Extract(ctx context.Context, url string, opts engine.ExtractOptions) (*engine.Metadata, error)
}

// Builder builds catalogs. The zero timeout means no deadline.
type Builder struct {
	extractor Extractor
	timeout   time.Duration
	log       zerolog.Logger
}

func NewBuilder(extractor Extractor, timeout time.Duration, log zerolog.Logger) *Builder {
	return &Builder{
		extractor: extractor,
		timeout:   timeout,
		log:       log.With().Str("component", "catalog").Logger(),
	}
}

// Build returns the tier list for a collection without any network call,
// and otherwise performs exactly one extraction. On failure the returned
// catalog is empty and the error explains why.
func (b *Builder) Build(ctx context.Context, cand classify.Candidate) (cat Catalog, err error) {
	cat = Catalog{URL: cand.URL, Kind: cand.Kind}
	if cand.Kind == classify.Collection {
		cat.Entries = TierEntries()
		return cat, nil
	}

	defer func() {
		if r := recover(); r != nil {
			cat.Entries = nil
			err = &engine.ExtractionError{URL: cand.URL, Err: fmt.Errorf("extractor panic: %v", r)}
		}
	}()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	md, err := b.extractor.Extract(ctx, cand.URL, engine.ExtractOptions{})
	if err != nil {
		b.log.Warn().Err(err).Str("url", cand.URL).Msg("extraction failed")
		return cat, err
	}
	if md == nil || len(md.Formats) == 0 {
		return cat, ErrEmptyCatalog
	}
	cat.Title = md.Title
	cat.Duration = md.Duration
	cat.Entries = Entries(md.Formats, md.Duration)
	b.log.Debug().Str("url", cand.URL).Int("entries", len(cat.Entries)).Msg("catalog built")
	return cat, nil
}

// TierEntries returns a fresh copy of the collection tier list.
func TierEntries() []Entry {
	entries := make([]Entry, len(Tiers))
	for i, tier := range Tiers {
		entries[i] = Entry{Rank: i + 1, Tier: tier, Label: tier}
	}
	return entries
}

// Entries maps raw formats to sorted, ranked and labelled entries.
func Entries(formats []engine.Format, duration float64) []Entry {
	sorted := make([]engine.Format, len(formats))
	copy(sorted, formats)
	SortFormats(sorted)

	entries := make([]Entry, len(sorted))
	for i, f := range sorted {
		e := Entry{
			Rank:     i + 1,
			FormatID: f.ID,
			Width:    f.Width,
			Height:   f.Height,
			FPS:      int(math.Floor(f.FPS)),
			Bitrate:  f.TBR,
			Ext:      f.Ext,
			Note:     f.Note,
		}
		e.SizeBytes, e.SizeSource = sizeOf(f, duration)
		e.Label = Label(e)
		entries[i] = e
	}
	return entries
}

// SortFormats orders formats by descending (width, fps, tbr). Missing
// values count as zero and ties keep their original order.
func SortFormats(formats []engine.Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		return less(formats[i], formats[j])
	})
}

func less(a, b engine.Format) bool {
	if a.Width != b.Width {
		return a.Width > b.Width
	}
	if a.FPS != b.FPS {
		return a.FPS > b.FPS
	}
	return a.TBR > b.TBR
}

func sizeOf(f engine.Format, duration float64) (int64, SizeSource) {
	switch {
	case f.FileSize > 0:
		return f.FileSize, SizeReported
	case f.FileSizeApprox > 0:
		return f.FileSizeApprox, SizeApproximate
	}
	if est := EstimateSize(f.TBR, duration); est > 0 {
		return est, SizeEstimated
	}
	return 0, SizeUnknown
}

// EstimateSize returns tbr (kbit/s) * 1000 * duration (s) / 8 bytes, or 0
// when either input is missing.
func EstimateSize(tbrKbps, durationSec float64) int64 {
	if tbrKbps <= 0 || durationSec <= 0 {
		return 0
	}
	return int64(math.Round(tbrKbps * 1000 * durationSec / 8))
}
