package geonews

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/page.html
var pageTemplate string

//go:embed templates/styles.css
var pageStyles string

const pageTitle = "GeoNotícias"

// PageOptions controls rendering of the static page.
type PageOptions struct {
	// Translator is optional. Without one every text is shown as published.
	Translator     Translator
	TargetLanguage string
	Now            time.Time
	Location       *time.Location
}

var GeneratePageCmd = &cobra.Command{
	Use:   "generate-page",
	Short: "Render clustered groups into the static HTML page",
	Run: func(cmd *cobra.Command, args []string) {
		if err := generatePage(cmd.Context()); err != nil {
			log.Error().Err(err).Msg("Failed to generate page")
			return
		}
		log.Info().Str("path", Config.OutputPath).Msg("Page generated")
	},
}

func generatePage(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	groups, err := readGroups(groupsPath)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(Config.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", Config.Timezone).Msg("Unknown timezone, using UTC")
		loc = time.UTC
	}

	opts := PageOptions{
		TargetLanguage: Config.TargetLanguage,
		Now:            time.Now(),
		Location:       loc,
	}
	if Config.OpenAIKey == "" || Config.TargetLanguage == "" {
		log.Warn().Msg("Translation disabled, showing articles in their original language")
	} else {
		cache, err := OpenCachedTranslator(Config.TranslationCache, NewOpenAITranslator(Config.OpenAIKey, Config.TranslationModel))
		if err != nil {
			return err
		}
		defer func() {
			if err := cache.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close translation cache")
			}
		}()
		opts.Translator = cache
	}

	page, err := RenderPage(ctx, groups, opts)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("discarding page: %w", err)
	}

	if dir := filepath.Dir(Config.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(Config.OutputPath, []byte(page), 0644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

func readGroups(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read groups file: %w", err)
	}
	var groups []Group
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to parse groups: %w", err)
	}
	return groups, nil
}

// RenderPage returns the complete HTML document for groups.
func RenderPage(ctx context.Context, groups []Group, opts PageOptions) (string, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	now := opts.Now.In(opts.Location)

	body, err := markdownToHTML(formatGroups(ctx, groups, opts))
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML template: %w", err)
	}

	lang := opts.TargetLanguage
	if lang == "" {
		lang = "pt"
	}
	data := struct {
		Title  string
		Lang   string
		Date   string
		Year   int
		Events int
		Total  int
		Body   template.HTML
		CSS    template.CSS
	}{
		Title:  pageTitle,
		Lang:   lang,
		Date:   now.Format("02/01/2006 15:04:05 MST"),
		Year:   now.Year(),
		Events: countEvents(groups),
		Total:  len(groups),
		Body:   template.HTML(body),
		CSS:    template.CSS(pageStyles),
	}

	var result bytes.Buffer
	if err := tmpl.Execute(&result, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return result.String(), nil
}

func countEvents(groups []Group) int {
	n := 0
	for _, g := range groups {
		if g.IsEvent() {
			n++
		}
	}
	return n
}

// formatGroups builds the markdown body. Article text is escaped, the only
// raw HTML is the language indicator span.
func formatGroups(ctx context.Context, groups []Group, opts PageOptions) string {
	if len(groups) == 0 {
		return "Nenhuma notícia encontrada para o período.\n"
	}

	var b strings.Builder
	for _, g := range groups {
		switch g.Kind {
		case KindEvent:
			formatEvent(ctx, &b, g, opts)
		case KindSingleton:
			formatSingleton(ctx, &b, g, opts)
		default:
			log.Warn().Str("kind", string(g.Kind)).Msg("Skipping group of unknown kind")
		}
	}
	return b.String()
}

func formatEvent(ctx context.Context, b *strings.Builder, g Group, opts PageOptions) {
	rep := g.Representative()
	title := displayText(ctx, rep.Title, rep.Language, opts)
	summary := displayText(ctx, rep.Summary, rep.Language, opts)

	fmt.Fprintf(b, "### %s %s (%d fontes)\n\n", mdEscape(title), langIndicator(g.Languages()), len(g.Members))
	if summary != "" {
		fmt.Fprintf(b, "*(Resumo de uma das fontes):* %s\n\n", mdEscape(summary))
	}
	b.WriteString("**Fontes sobre este evento:**\n\n")
	for i, m := range g.Members {
		src := firstSource(m)
		fmt.Fprintf(b, "%d. %s [%s]: [Ver artigo original](%s \"%s\")\n",
			i+1, mdEscape(src.Label), strings.ToUpper(m.Language), mdURL(src.URL), mdEscape("Original: "+m.Title))
	}
	b.WriteString("\n---\n\n")
}

func formatSingleton(ctx context.Context, b *strings.Builder, g Group, opts PageOptions) {
	a := g.Representative()
	title := displayText(ctx, a.Title, a.Language, opts)
	summary := displayText(ctx, a.Summary, a.Language, opts)

	fmt.Fprintf(b, "### %s %s\n\n", mdEscape(title), langIndicator([]string{strings.ToUpper(a.Language)}))
	if summary != "" {
		fmt.Fprintf(b, "%s\n\n", mdEscape(summary))
	}
	src := firstSource(a)
	fmt.Fprintf(b, "[Ver artigo original em %s](%s)\n\n---\n\n", mdEscape(src.Label), mdURL(src.URL))
}

// displayText translates text when a translator is configured. A failed
// translation is logged and the original text is shown instead.
func displayText(ctx context.Context, text, lang string, opts PageOptions) string {
	if opts.Translator == nil || opts.TargetLanguage == "" {
		return text
	}
	translated, err := opts.Translator.Translate(ctx, text, lang, opts.TargetLanguage)
	if err != nil {
		log.Warn().Err(err).Str("language", lang).Msg("Translation failed, showing original text")
		return text
	}
	return translated
}

func firstSource(a Article) Source {
	if len(a.Sources) == 0 {
		return Source{Label: "Fonte desconhecida", URL: "#"}
	}
	return a.Sources[0]
}

func langIndicator(codes []string) string {
	return `<span class="lang-indicator">[` + template.HTMLEscapeString(strings.Join(codes, ",")) + `]</span>`
}

// mdEscape backslash-escapes ASCII punctuation so text is never parsed as
// markdown or raw HTML.
func mdEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r) {
			b.WriteByte('\\')
		}
		if r == '\n' || r == '\r' {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

// mdURL wraps a link destination in angle brackets, encoding the characters
// that cannot appear there.
func mdURL(u string) string {
	if u == "" {
		u = "#"
	}
	r := strings.NewReplacer("<", "%3C", ">", "%3E", " ", "%20", "\n", "", "\r", "")
	return "<" + r.Replace(u) + ">"
}

func markdownToHTML(markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Linkify,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			html.WithUnsafe(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return buf.String(), nil
}
