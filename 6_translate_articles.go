package geonews

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	_ "github.com/mattn/go-sqlite3"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"
)

// Translator renders text in another language for display. Failures are
// returned to the caller, which decides whether to show the original.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// needsTranslation reports whether text has to go through a translator at all.
func needsTranslation(text, sourceLang, targetLang string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return !strings.EqualFold(sourceLang, targetLang)
}

// TranslationResponse is the structured output requested from the model.
type TranslationResponse struct {
	Translation string `json:"translation" jsonschema:"description=The input text translated into the target language"`
}

// OpenAITranslator translates with chat completions and a strict JSON schema.
type OpenAITranslator struct {
	client openai.Client
	model  string
}

// NewOpenAITranslator creates a translator using the given chat model.
func NewOpenAITranslator(apiKey, model string, opts ...option.RequestOption) *OpenAITranslator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAITranslator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (t *OpenAITranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if !needsTranslation(text, sourceLang, targetLang) {
		return text, nil
	}

	schema, err := translationSchema()
	if err != nil {
		return "", err
	}

	systemContent := fmt.Sprintf(`You translate news headlines and summaries into the language with ISO 639-1 code %q.
Keep names of people, places and organizations accurate. Do not add commentary.
Return only the translated text.`, targetLang)
	userContent := fmt.Sprintf("Source language: %s\n\n%s", sourceLang, text)

	chatCompletion, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemContent),
			openai.UserMessage(userContent),
		},
		Model:       openai.ChatModel(t.model),
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "translation",
					Description: openai.String("Translate news text for display"),
					Schema:      schema,
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(chatCompletion.Choices) == 0 || chatCompletion.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content in translation response")
	}

	var resp TranslationResponse
	if err := json.Unmarshal([]byte(chatCompletion.Choices[0].Message.Content), &resp); err != nil {
		return "", fmt.Errorf("failed to parse translation response: %w", err)
	}
	if strings.TrimSpace(resp.Translation) == "" {
		return "", fmt.Errorf("empty translation")
	}
	return resp.Translation, nil
}

// translationSchema converts the reflected schema to the generic value the
// OpenAI SDK expects.
func translationSchema() (any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schemaObj := reflector.Reflect(&TranslationResponse{})
	if schemaObj.Type == "" {
		schemaObj.Type = "object"
	}

	schemaBytes, err := json.Marshal(schemaObj)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schema any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	return schema, nil
}

// CachedTranslator memoizes another Translator in a SQLite file keyed by
// target language and source text.
type CachedTranslator struct {
	next Translator
	db   *sql.DB
}

// OpenCachedTranslator opens or creates the cache database at path.
func OpenCachedTranslator(path string, next Translator) (*CachedTranslator, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open translation cache: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS translations (
		target_lang TEXT NOT NULL,
		source_text TEXT NOT NULL,
		translation TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (target_lang, source_text)
	);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close translation cache")
		}
		return nil, fmt.Errorf("failed to create translation table: %w", err)
	}

	return &CachedTranslator{next: next, db: db}, nil
}

// Close releases the database handle.
func (c *CachedTranslator) Close() error {
	return c.db.Close()
}

func (c *CachedTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if !needsTranslation(text, sourceLang, targetLang) {
		return text, nil
	}
	target := strings.ToLower(targetLang)

	var cached string
	err := c.db.QueryRowContext(ctx,
		"SELECT translation FROM translations WHERE target_lang = ? AND source_text = ?",
		target, text).Scan(&cached)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to query translation cache: %w", err)
	}

	translated, err := c.next.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}

	if _, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO translations (target_lang, source_text, translation) VALUES (?, ?, ?)",
		target, text, translated); err != nil {
		// The translation is still usable without the cache entry.
		log.Warn().Err(err).Msg("Failed to store translation")
	}
	return translated, nil
}
