package plain

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lvcoi/ytdl-here/internal/catalog"
)

const (
	indexWidth      = 2
	resolutionWidth = 10
	fpsWidth        = 3
	formatWidth     = 6
	filesizeWidth   = 13
	bitrateWidth    = 8
	noteWidth       = 10
	separatorWidth  = indexWidth + resolutionWidth + fpsWidth + formatWidth + filesizeWidth + bitrateWidth + noteWidth + 16
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFE66D"))
	tierStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FDBFF"))
)

// PrintCatalog writes the numbered format table. Collection catalogs list
// their tiers instead.
func PrintCatalog(w io.Writer, cat catalog.Catalog) {
	if cat.Title != "" {
		fmt.Fprintln(w, headerStyle.Render(cat.Title))
	}
	if len(cat.Entries) > 0 && cat.Entries[0].Tier != "" {
		fmt.Fprintln(w, "Available quality tiers:")
		for i, e := range cat.Entries {
			fmt.Fprintf(w, "%-*d | %s\n", indexWidth, i+1, tierStyle.Render(e.Tier))
		}
		return
	}

	rule := strings.Repeat("-", separatorWidth)
	fmt.Fprintln(w, "Available formats:")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, headerStyle.Render(row("#", "Resolution", "FPS", "Format", "Filesize", "(kbps)", "Note")))
	fmt.Fprintln(w, rule)
	for _, e := range cat.Entries {
		fmt.Fprintln(w, row(
			strconv.Itoa(e.Rank),
			e.Resolution(),
			strconv.Itoa(e.FPS),
			e.Ext,
			e.SizeText(),
			e.BitrateText(),
			e.Note,
		))
	}
}

func row(index, resolution, fps, format, size, bitrate, note string) string {
	return fmt.Sprintf("%-*s | %-*s | %-*s | %-*s | %-*s | %-*s | %-*s",
		indexWidth, index,
		resolutionWidth, resolution,
		fpsWidth, fps,
		formatWidth, format,
		filesizeWidth, size,
		bitrateWidth, bitrate,
		noteWidth, note,
	)
}
