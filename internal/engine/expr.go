package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// The native engine understands the subset of yt-dlp's format syntax the
// dispatcher emits: "/" separated alternatives, "+" merges of at most two
// terms, best/bestvideo/bestaudio and literal ids, and [height<=N] filters.

type termKind int

const (
	termBest termKind = iota
	termBestVideo
	termBestAudio
	termID
)

type term struct {
	kind      termKind
	id        string
	maxHeight int
}

type alternative []term

func parseExpression(expr string) ([]alternative, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return []alternative{{{kind: termBest}}}, nil
	}
	var alts []alternative
	for _, raw := range strings.Split(expr, "/") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, "+")
		if len(parts) > 2 {
			return nil, fmt.Errorf("format %q: at most two streams can be merged", raw)
		}
		var alt alternative
		for _, p := range parts {
			t, err := parseTerm(p)
			if err != nil {
				return nil, err
			}
			alt = append(alt, t)
		}
		alts = append(alts, alt)
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("format %q: empty expression", expr)
	}
	return alts, nil
}

func parseTerm(s string) (term, error) {
	s = strings.TrimSpace(s)
	name, filter := s, ""
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return term{}, fmt.Errorf("format %q: unterminated filter", s)
		}
		name, filter = s[:i], s[i+1:len(s)-1]
	}
	var t term
	switch name {
	case "best", "b":
		t.kind = termBest
	case "bestvideo", "bv":
		t.kind = termBestVideo
	case "bestaudio", "ba":
		t.kind = termBestAudio
	case "":
		return term{}, fmt.Errorf("format %q: missing selector", s)
	default:
		t.kind = termID
		t.id = name
	}
	if filter != "" {
		v, ok := strings.CutPrefix(filter, "height<=")
		if !ok {
			return term{}, fmt.Errorf("format %q: unsupported filter %q", s, filter)
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return term{}, fmt.Errorf("format %q: bad height %q", s, v)
		}
		t.maxHeight = n
	}
	return t, nil
}

func isAudioOnly(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "audio/")
}

func isVideoOnly(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "video/") && f.AudioChannels == 0
}

func isMuxed(f *youtube.Format) bool {
	return strings.HasPrefix(f.MimeType, "video/") && f.AudioChannels > 0
}

func betterVideo(a, b *youtube.Format) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	if a.FPS != b.FPS {
		return a.FPS > b.FPS
	}
	return a.Bitrate > b.Bitrate
}

func (t term) pick(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if t.maxHeight > 0 && f.Height > t.maxHeight {
			continue
		}
		switch t.kind {
		case termID:
			if strconv.Itoa(f.ItagNo) == t.id {
				return f
			}
		case termBestAudio:
			if isAudioOnly(f) && (best == nil || f.Bitrate > best.Bitrate) {
				best = f
			}
		case termBestVideo:
			if isVideoOnly(f) && (best == nil || betterVideo(f, best)) {
				best = f
			}
		case termBest:
			if isMuxed(f) && (best == nil || betterVideo(f, best)) {
				best = f
			}
		}
	}
	if best == nil && t.kind == termBest && t.maxHeight == 0 {
		// No muxed stream: fall back to the best audio-only stream.
		return term{kind: termBestAudio}.pick(formats)
	}
	return best
}

// resolve returns the first alternative whose terms all match.
func resolve(alts []alternative, formats youtube.FormatList) ([]*youtube.Format, bool) {
	for _, alt := range alts {
		picked := make([]*youtube.Format, 0, len(alt))
		for _, t := range alt {
			f := t.pick(formats)
			if f == nil {
				picked = nil
				break
			}
			picked = append(picked, f)
		}
		if len(picked) == 0 {
			continue
		}
		if len(picked) == 2 && picked[0] == picked[1] {
			picked = picked[:1]
		}
		if len(picked) == 2 && !isVideoOnly(picked[0]) {
			// Only a video-only stream needs an audio partner.
			picked = picked[:1]
		}
		return picked, true
	}
	return nil, false
}
