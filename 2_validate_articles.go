package geonews

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

const (
	minTitleLength   = 20
	minSummaryLength = 30
	removedTitle     = "[Removed]"
	unknownLanguage  = "n/a"
)

// Validation errors.
var (
	ErrMissingTitle      = errors.New("missing title")
	ErrRemovedTitle      = errors.New("title was removed by the publisher")
	ErrShortTitle        = errors.New("title too short")
	ErrMissingSummary    = errors.New("missing description")
	ErrShortSummary      = errors.New("description too short")
	ErrMissingURL        = errors.New("missing url")
	ErrMissingSourceName = errors.New("missing source name")
)

// ValidationStats counts how many raw records were kept and why the rest were dropped.
type ValidationStats struct {
	Accepted int
	Skipped  map[error]int
}

// ValidateArticle converts one raw record into an Article, or returns the
// first rule it breaks.
func ValidateArticle(raw RawArticle) (Article, error) {
	title := strings.TrimSpace(raw.Title)
	summary := strings.TrimSpace(raw.Description)

	switch {
	case title == "":
		return Article{}, ErrMissingTitle
	case raw.URL == "":
		return Article{}, ErrMissingURL
	case strings.TrimSpace(raw.Source.Name) == "":
		return Article{}, ErrMissingSourceName
	case title == removedTitle:
		return Article{}, ErrRemovedTitle
	case utf8.RuneCountInString(title) < minTitleLength:
		return Article{}, ErrShortTitle
	case summary == "":
		return Article{}, ErrMissingSummary
	case utf8.RuneCountInString(summary) < minSummaryLength:
		return Article{}, ErrShortSummary
	}

	lang := strings.ToLower(strings.TrimSpace(raw.SearchLanguage))
	if lang == "" {
		lang = unknownLanguage
	}

	article := Article{
		Title:    title,
		Summary:  summary,
		Language: lang,
		Sources:  []Source{{Label: strings.TrimSpace(raw.Source.Name), URL: raw.URL}},
	}
	if t, err := time.Parse(time.RFC3339, raw.PublishedAt); err == nil {
		article.PublishedAt = t
	}
	return article, nil
}

// ValidateArticles keeps the well-formed records in input order.
func ValidateArticles(raw []RawArticle) ([]Article, ValidationStats) {
	stats := ValidationStats{Skipped: make(map[error]int)}
	articles := make([]Article, 0, len(raw))
	for _, r := range raw {
		a, err := ValidateArticle(r)
		if err != nil {
			stats.Skipped[err]++
			log.Debug().Err(err).Str("url", r.URL).Msg("Skipping article")
			continue
		}
		articles = append(articles, a)
	}
	stats.Accepted = len(articles)

	skipped := 0
	for _, n := range stats.Skipped {
		skipped += n
	}
	log.Info().Int("accepted", stats.Accepted).Int("skipped", skipped).Msg("Validated articles")
	return articles, stats
}
