package geonews

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageGroups() []Group {
	return []Group{
		{Kind: KindEvent, Members: []Article{
			{
				Title:    "Leaders meet for summit in Geneva",
				Summary:  "Heads of state discussed the ceasefire plan.",
				Language: "en",
				Sources:  []Source{{Label: "Wire", URL: "https://example.com/en"}},
			},
			{
				Title:    "Les dirigeants se réunissent à Genève",
				Summary:  "Les chefs d'État ont discuté du plan.",
				Language: "fr",
				Sources:  []Source{{Label: "Dépêche", URL: "https://example.com/fr"}},
			},
		}},
		{Kind: KindSingleton, Members: []Article{
			{
				Title:    "Lokale Wahlergebnisse veröffentlicht",
				Summary:  "Die Ergebnisse der Gemeindewahlen liegen vor.",
				Language: "de",
				Sources:  []Source{{Label: "Zeitung", URL: "https://example.com/de"}},
			},
		}},
	}
}

func fixedOptions() PageOptions {
	return PageOptions{
		Now:      time.Date(2024, 3, 2, 15, 4, 5, 0, time.UTC),
		Location: time.UTC,
	}
}

func TestRenderPage_Groups(t *testing.T) {
	page, err := RenderPage(context.Background(), pageGroups(), fixedOptions())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "Leaders meet for summit in Geneva")
	assert.Contains(t, page, `<span class="lang-indicator">[EN,FR]</span> (2 fontes)`)
	assert.Contains(t, page, `<span class="lang-indicator">[DE]</span>`)
	assert.Contains(t, page, `href="https://example.com/fr"`)
	assert.Contains(t, page, "Ver artigo original em Zeitung")
	assert.Contains(t, page, "02/03/2024 15:04:05 UTC")
	assert.Contains(t, page, "1 eventos, 2 itens")

	// Events render before singletons.
	assert.Less(t, strings.Index(page, "Geneva"), strings.Index(page, "Wahlergebnisse"))
	// Only the representative title is a heading.
	assert.NotContains(t, page, "<h3 id=\"les-dirigeants")
}

func TestRenderPage_Empty(t *testing.T) {
	page, err := RenderPage(context.Background(), nil, fixedOptions())
	require.NoError(t, err)
	assert.Contains(t, page, "Nenhuma notícia encontrada")
}

func TestRenderPage_EscapesArticleText(t *testing.T) {
	groups := []Group{{Kind: KindSingleton, Members: []Article{{
		Title:    `<script>alert("x")</script> *breaking*`,
		Summary:  "Summary with [a link](javascript:alert(1)) inside.",
		Language: "en",
		Sources:  []Source{{Label: "Wire", URL: "https://example.com/a b"}},
	}}}}

	page, err := RenderPage(context.Background(), groups, fixedOptions())
	require.NoError(t, err)
	assert.NotContains(t, page, "<script>")
	assert.Contains(t, page, "&lt;script&gt;")
	assert.NotContains(t, page, "<em>breaking</em>")
	assert.NotContains(t, page, `href="javascript`)
	assert.Contains(t, page, `href="https://example.com/a%20b"`)
}

func TestRenderPage_Translates(t *testing.T) {
	fake := &fakeTranslator{}
	opts := fixedOptions()
	opts.Translator = fake
	opts.TargetLanguage = "pt"

	page, err := RenderPage(context.Background(), pageGroups(), opts)
	require.NoError(t, err)
	assert.Contains(t, page, "[pt] Leaders meet for summit in Geneva")
	assert.Contains(t, page, "[pt] Lokale Wahlergebnisse")
	assert.Contains(t, page, `<html lang="pt">`)
	// Title and summary of each representative.
	assert.Equal(t, 4, fake.calls)
}

func TestRenderPage_TranslationFailureShowsOriginal(t *testing.T) {
	opts := fixedOptions()
	opts.Translator = &fakeTranslator{err: errors.New("quota exceeded")}
	opts.TargetLanguage = "pt"

	page, err := RenderPage(context.Background(), pageGroups(), opts)
	require.NoError(t, err)
	assert.Contains(t, page, "Leaders meet for summit in Geneva")
	assert.NotContains(t, page, "[pt]")
}

func TestMdEscape(t *testing.T) {
	assert.Equal(t, `a\*b\* \[c\]`, mdEscape("a*b* [c]"))
	assert.Equal(t, "Cúpula em Genebra", mdEscape("Cúpula em Genebra"))
	assert.Equal(t, `line one line two`, mdEscape("line one\nline two"))
}

func TestGeneratePage_WritesOutput(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	saved := Config
	t.Cleanup(func() { Config = saved })
	Config.OpenAIKey = ""
	Config.OutputPath = filepath.Join("site", "index.html")
	Config.Timezone = "UTC"

	require.NoError(t, writeJSON(groupsPath, pageGroups()))
	require.NoError(t, generatePage(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "site", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Leaders meet for summit in Geneva")
}
