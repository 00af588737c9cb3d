package catalog

import (
	"fmt"
	"strconv"
)

const mebibyte = 1024 * 1024

// MB converts bytes to mebibytes.
func MB(bytes int64) float64 {
	return float64(bytes) / mebibyte
}

// Resolution is "WxH", or "(audio)" when either side is missing.
func (e Entry) Resolution() string {
	if e.Width > 0 && e.Height > 0 {
		return fmt.Sprintf("%dx%d", e.Width, e.Height)
	}
	return "(audio)"
}

// SizeText renders the size in MB. Sizes taken from the extractor carry a
// "~" prefix; sizes computed from the bitrate do not.
func (e Entry) SizeText() string {
	switch e.SizeSource {
	case SizeReported, SizeApproximate:
		return fmt.Sprintf("~%.2f MB", MB(e.SizeBytes))
	case SizeEstimated:
		return fmt.Sprintf("%.2f MB", MB(e.SizeBytes))
	default:
		return "N/A"
	}
}

func (e Entry) BitrateText() string {
	if e.Bitrate <= 0 {
		return "N/A"
	}
	return strconv.FormatFloat(e.Bitrate, 'f', 1, 64)
}

// Label renders "<rank> - <res>, <fps> fps, <ext>, <size>, <kbps> kbps, <note>".
func Label(e Entry) string {
	if e.Tier != "" {
		return e.Tier
	}
	return fmt.Sprintf("%d - %s, %d fps, %s, %s, %s kbps, %s",
		e.Rank, e.Resolution(), e.FPS, e.Ext, e.SizeText(), e.BitrateText(), e.Note)
}
