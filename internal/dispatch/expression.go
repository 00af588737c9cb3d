package dispatch

import (
	"strings"

	"github.com/lvcoi/ytdl-here/internal/catalog"
)

// BestExpression is the unconstrained fallback.
const BestExpression = "best"

var tierExpressions = map[string]string{
	catalog.Tier4K:        "bestvideo[height<=2160]+bestaudio/best[height<=2160]",
	catalog.Tier1440p:     "bestvideo[height<=1440]+bestaudio/best[height<=1440]",
	catalog.Tier1080p:     "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	catalog.Tier720p:      "bestvideo[height<=720]+bestaudio/best[height<=720]",
	catalog.Tier360p:      "bestvideo[height<=360]+bestaudio/best[height<=360]",
	catalog.TierAudioOnly: "bestaudio/best",
}

var fallbackLadder = []string{
	"bestvideo[height<=720]+bestaudio",
	"bestvideo[height<=480]+bestaudio",
	"bestvideo[height<=360]+bestaudio",
	BestExpression,
}

// TierExpression maps a resolution tier to a transfer expression. Unknown
// tiers get BestExpression.
func TierExpression(tier string) string {
	if expr, ok := tierExpressions[strings.ToLower(strings.TrimSpace(tier))]; ok {
		return expr
	}
	return BestExpression
}

// FormatExpression prefers id merged with the best audio, then id alone,
// then progressively lower resolutions, then best.
func FormatExpression(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return BestExpression
	}
	parts := make([]string, 0, len(fallbackLadder)+2)
	parts = append(parts, id+"+bestaudio", id)
	parts = append(parts, fallbackLadder...)
	return strings.Join(parts, "/")
}

// Expression picks the table for the selector's origin: tiers come from
// collections, format ids from single items.
func Expression(selector string, tier bool) string {
	if tier {
		return TierExpression(selector)
	}
	return FormatExpression(selector)
}
