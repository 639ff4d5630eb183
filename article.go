package geonews

import (
	"sort"
	"strings"
	"time"
)

// Source is a publisher link attached to an article.
type Source struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Article is a validated news record ready for clustering.
type Article struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Language    string    `json:"language"`
	Sources     []Source  `json:"sources"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// GroupKind discriminates the two shapes a Group can take.
type GroupKind string

const (
	KindEvent     GroupKind = "event"
	KindSingleton GroupKind = "singleton"
)

// Group is a set of articles judged to describe the same event. A Singleton
// always has exactly one member; an Event has two or more.
type Group struct {
	Kind    GroupKind `json:"kind"`
	Members []Article `json:"members"`
}

// IsEvent reports whether the group has more than one source article.
func (g Group) IsEvent() bool {
	return g.Kind == KindEvent
}

// Representative returns the article whose title and summary stand in for the
// whole group. It is always the first member by input order; no centroid or
// medoid selection is done.
func (g Group) Representative() Article {
	if len(g.Members) == 0 {
		return Article{}
	}
	return g.Members[0]
}

// Languages returns the distinct language codes of the members, uppercased and sorted.
func (g Group) Languages() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, m := range g.Members {
		code := strings.ToUpper(m.Language)
		if seen[code] {
			continue
		}
		seen[code] = true
		langs = append(langs, code)
	}
	sort.Strings(langs)
	return langs
}
