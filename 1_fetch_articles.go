package geonews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sosodev/duration"
	"github.com/spf13/cobra"
)

// RawArticle is a NewsAPI record tagged with the language it was searched in.
type RawArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author         string `json:"author"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	URL            string `json:"url"`
	PublishedAt    string `json:"publishedAt"`
	SearchLanguage string `json:"search_language"`
}

// newsAPIBase is the NewsAPI search endpoint. Tests point it at an httptest server.
var newsAPIBase = "https://newsapi.org/v2/everything"

// languagePause is the delay between per-language requests.
var languagePause = 500 * time.Millisecond

const rawArticlesPath = "articles/raw.json"

// FetchOptions controls a multi-language search.
type FetchOptions struct {
	Query     string
	Languages []string
	PageSize  int
	From      time.Time
	To        time.Time
}

// NewsClient queries NewsAPI.
type NewsClient struct {
	HTTPClient *http.Client
	APIKey     string
	// BaseURL overrides newsAPIBase when set.
	BaseURL string
}

type newsAPIResponse struct {
	Status   string       `json:"status"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Articles []RawArticle `json:"articles"`
}

var FetchArticlesCmd = &cobra.Command{
	Use:   "fetch-articles",
	Short: "Fetch recent articles for every configured language",
	Run: func(cmd *cobra.Command, args []string) {
		if err := fetchArticles(cmd.Context()); err != nil {
			log.Error().Err(err).Msg("Failed to fetch articles")
			return
		}
		log.Info().Msg("Fetch complete.")
	},
}

func fetchArticles(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if Config.NewsAPIKey == "" {
		return fmt.Errorf("NEWSAPI_KEY is not set")
	}

	from, to, err := searchWindow(Config.SearchWindow, Config.Timezone, time.Now())
	if err != nil {
		return err
	}

	client := &NewsClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		APIKey:     Config.NewsAPIKey,
	}
	raw, err := client.Fetch(ctx, FetchOptions{
		Query:     Config.Query,
		Languages: Config.Languages,
		PageSize:  Config.ArticlesPerLanguage,
		From:      from,
		To:        to,
	})
	if err != nil {
		return err
	}

	unique := DedupByURL(raw)
	log.Info().Int("raw", len(raw)).Int("unique", len(unique)).Msg("Removed duplicate URLs")
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("discarding articles: %w", err)
	}

	return writeJSON(rawArticlesPath, unique)
}

// searchWindow returns the [from, to] range ending at now, where window is an
// ISO-8601 duration such as "P2D" and now is taken in the given timezone.
func searchWindow(window, timezone string, now time.Time) (time.Time, time.Time, error) {
	d, err := duration.Parse(window)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to parse search window %q: %w", window, err)
	}

	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			log.Warn().Str("timezone", timezone).Msg("Unknown timezone, using UTC")
		} else {
			loc = l
		}
	}

	to := now.In(loc)
	from := to.Add(-d.ToTimeDuration())
	return from, to, nil
}

// Fetch runs one search per language and concatenates the results. A failing
// language is logged and skipped so one bad request does not lose the batch.
func (c *NewsClient) Fetch(ctx context.Context, opts FetchOptions) ([]RawArticle, error) {
	fromISO := opts.From.UTC().Format("2006-01-02T15:04:05Z")
	toISO := opts.To.UTC().Format("2006-01-02T15:04:05Z")
	log.Info().Str("from", fromISO).Str("to", toISO).Strs("languages", opts.Languages).Msg("Searching news")

	var all []RawArticle
	for i, lang := range opts.Languages {
		if i > 0 && languagePause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(languagePause):
			}
		}

		articles, err := c.fetchLanguage(ctx, opts, lang, fromISO, toISO)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("language", lang).Msg("Failed to fetch language")
			continue
		}
		log.Info().Str("language", strings.ToUpper(lang)).Int("found", len(articles)).Msg("Fetched articles")
		all = append(all, articles...)
	}

	log.Info().Int("total", len(all)).Msg("Search finished")
	return all, nil
}

func (c *NewsClient) fetchLanguage(ctx context.Context, opts FetchOptions, lang, fromISO, toISO string) ([]RawArticle, error) {
	params := url.Values{
		"q":        {opts.Query},
		"from":     {fromISO},
		"to":       {toISO},
		"language": {lang},
		"sortBy":   {"relevancy"},
		"pageSize": {strconv.Itoa(opts.PageSize)},
		"apiKey":   {c.APIKey},
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	base := c.BaseURL
	if base == "" {
		base = newsAPIBase
	}
	status, body, err := doWithRetry(ctx, client, base+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var result newsAPIResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode NewsAPI response (status %d): %w", status, err)
	}
	if status != http.StatusOK || result.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI error (status %d): %s: %s", status, result.Code, result.Message)
	}

	for i := range result.Articles {
		result.Articles[i].SearchLanguage = lang
	}
	return result.Articles, nil
}

// DedupByURL removes records without a URL and collapses records sharing a URL.
// The last record for a URL wins; positions follow first appearance.
func DedupByURL(articles []RawArticle) []RawArticle {
	index := make(map[string]int)
	var unique []RawArticle
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		if i, ok := index[a.URL]; ok {
			unique[i] = a
			continue
		}
		index[a.URL] = len(unique)
		unique = append(unique, a)
	}
	return unique
}

func readRawArticles(path string) ([]RawArticle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw articles: %w", err)
	}
	var raw []RawArticle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse raw articles: %w", err)
	}
	return raw, nil
}

// writeJSON writes v as indented JSON without HTML escaping, creating the parent directory.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	encoder := json.NewEncoder(f)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
