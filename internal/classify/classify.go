// Package classify tags a URL as a single item or a collection using the
// URL's structure alone.
package classify

import (
	"net/url"
	"strings"
)

// Kind is the classification of a URL.
type Kind int

const (
	// Single is a URL that resolves to exactly one media item.
	Single Kind = iota
	// Collection is a playlist, channel or user listing.
	Collection
)

func (k Kind) String() string {
	switch k {
	case Collection:
		return "collection"
	default:
		return "single"
	}
}

// Indicators enumerates the URL features that mark a collection.
type Indicators struct {
	// QueryParams are query keys whose non-empty presence marks a playlist.
	QueryParams []string
	// PathSegments are path segments that mark a channel or user listing.
	PathSegments []string
	// HandlePrefix marks a first path segment such as "@name".
	HandlePrefix string
}

// DefaultIndicators is the indicator table used by Default.
var DefaultIndicators = Indicators{
	QueryParams:  []string{"list", "p"},
	PathSegments: []string{"channel", "c", "user"},
	HandlePrefix: "@",
}

// Classifier decides Kind from a fixed indicator table.
type Classifier struct {
	params   map[string]struct{}
	segments map[string]struct{}
	handle   string
}

// Option extends a Classifier's indicator table.
type Option func(*Classifier)

// WithQueryParams adds playlist query keys.
func WithQueryParams(keys ...string) Option {
	return func(c *Classifier) {
		for _, k := range keys {
			c.params[k] = struct{}{}
		}
	}
}

// WithPathSegments adds listing path segments.
func WithPathSegments(segments ...string) Option {
	return func(c *Classifier) {
		for _, s := range segments {
			c.segments[strings.ToLower(s)] = struct{}{}
		}
	}
}

// New builds a classifier from an indicator table plus options.
func New(ind Indicators, opts ...Option) *Classifier {
	c := &Classifier{
		params:   make(map[string]struct{}, len(ind.QueryParams)),
		segments: make(map[string]struct{}, len(ind.PathSegments)),
		handle:   ind.HandlePrefix,
	}
	WithQueryParams(ind.QueryParams...)(c)
	WithPathSegments(ind.PathSegments...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns a classifier over DefaultIndicators.
func Default() *Classifier {
	return New(DefaultIndicators)
}

// Classify never fails; anything unparseable is Single.
func (c *Classifier) Classify(raw string) Kind {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Single
	}
	query := parsed.Query()
	for key := range c.params {
		if query.Get(key) != "" {
			return Collection
		}
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, ok := c.segments[strings.ToLower(part)]; ok {
			return Collection
		}
		if i == 0 && c.handle != "" && strings.HasPrefix(part, c.handle) && len(part) > len(c.handle) {
			return Collection
		}
	}
	return Single
}

// Candidate is a classified URL. Seq orders candidates within a session;
// a larger Seq supersedes a smaller one.
type Candidate struct {
	URL  string
	Kind Kind
	Seq  uint64
}

// IsZero reports whether no URL is bound.
func (c Candidate) IsZero() bool {
	return c.URL == ""
}
