package classify

import (
	"net/url"
	"strings"
)

// IsHTTPURL reports whether s starts with an http or https scheme.
func IsHTTPURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// normalizeHostname lowercases the host and strips "www." and any port.
func normalizeHostname(parsed *url.URL) string {
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsYouTube reports whether raw points at a YouTube host.
func IsYouTube(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch normalizeHostname(parsed) {
	case "youtube.com", "youtu.be", "music.youtube.com", "m.youtube.com":
		return true
	}
	return false
}

// Normalize rewrites youtu.be, shorts, live and music hosts into the
// canonical watch form. Other URLs are returned trimmed but unchanged.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := normalizeHostname(parsed)
	query := parsed.Query()
	switch host {
	case "music.youtube.com", "m.youtube.com":
		parsed.Host = "www.youtube.com"
		query.Del("si")
		parsed.RawQuery = query.Encode()
		return parsed.String()
	case "youtu.be":
		id := strings.TrimPrefix(parsed.Path, "/")
		if id == "" {
			return raw
		}
		query.Set("v", id)
		query.Del("si")
		parsed.Host = "www.youtube.com"
		parsed.Path = "/watch"
		parsed.RawQuery = query.Encode()
		return parsed.String()
	case "youtube.com":
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(parts) >= 2 && (parts[0] == "live" || parts[0] == "shorts") && parts[1] != "" {
			if query.Get("v") == "" {
				query.Set("v", parts[1])
			}
			parsed.Path = "/watch"
			parsed.RawQuery = query.Encode()
			return parsed.String()
		}
	}
	return raw
}

// WatchURL returns the canonical single-item URL for a video id.
func WatchURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + id
}
