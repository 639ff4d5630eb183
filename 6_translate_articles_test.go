package geonews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTranslator prefixes text with the target language and counts calls.
type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "[" + targetLang + "] " + text, nil
}

func openCache(t *testing.T, next Translator) *CachedTranslator {
	t.Helper()
	c, err := OpenCachedTranslator(filepath.Join(t.TempDir(), "translations.db"), next)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCachedTranslator_Memoizes(t *testing.T) {
	fake := &fakeTranslator{}
	c := openCache(t, fake)
	ctx := context.Background()

	got, err := c.Translate(ctx, "Leaders meet in Geneva", "en", "pt")
	require.NoError(t, err)
	assert.Equal(t, "[pt] Leaders meet in Geneva", got)

	got, err = c.Translate(ctx, "Leaders meet in Geneva", "en", "PT")
	require.NoError(t, err)
	assert.Equal(t, "[pt] Leaders meet in Geneva", got)
	assert.Equal(t, 1, fake.calls)

	_, err = c.Translate(ctx, "Leaders meet in Geneva", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestCachedTranslator_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "translations.db")
	ctx := context.Background()

	first := &fakeTranslator{}
	c, err := OpenCachedTranslator(path, first)
	require.NoError(t, err)
	_, err = c.Translate(ctx, "Ceasefire announced", "en", "pt")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	second := &fakeTranslator{}
	c, err = OpenCachedTranslator(path, second)
	require.NoError(t, err)
	defer c.Close()
	got, err := c.Translate(ctx, "Ceasefire announced", "en", "pt")
	require.NoError(t, err)
	assert.Equal(t, "[pt] Ceasefire announced", got)
	assert.Zero(t, second.calls)
}

func TestCachedTranslator_PassThrough(t *testing.T) {
	fake := &fakeTranslator{}
	c := openCache(t, fake)

	got, err := c.Translate(context.Background(), "Cúpula em Genebra", "pt", "pt")
	require.NoError(t, err)
	assert.Equal(t, "Cúpula em Genebra", got)

	got, err = c.Translate(context.Background(), "  ", "en", "pt")
	require.NoError(t, err)
	assert.Equal(t, "  ", got)
	assert.Zero(t, fake.calls)
}

func TestCachedTranslator_ErrorNotCached(t *testing.T) {
	fake := &fakeTranslator{err: errors.New("rate limited")}
	c := openCache(t, fake)
	ctx := context.Background()

	_, err := c.Translate(ctx, "Summit postponed", "en", "pt")
	require.Error(t, err)

	fake.err = nil
	got, err := c.Translate(ctx, "Summit postponed", "en", "pt")
	require.NoError(t, err)
	assert.Equal(t, "[pt] Summit postponed", got)
	assert.Equal(t, 2, fake.calls)
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4.1-mini", body["model"])
		format, _ := body["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4.1-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestOpenAITranslator_Translate(t *testing.T) {
	ts := chatServer(t, `{"translation":"Líderes se reúnem em Genebra"}`)
	tr := NewOpenAITranslator("test-key", "gpt-4.1-mini", option.WithBaseURL(ts.URL+"/v1/"), option.WithMaxRetries(0))

	got, err := tr.Translate(context.Background(), "Leaders meet in Geneva", "en", "pt")
	require.NoError(t, err)
	assert.Equal(t, "Líderes se reúnem em Genebra", got)
}

func TestOpenAITranslator_BadResponse(t *testing.T) {
	ts := chatServer(t, `not json`)
	tr := NewOpenAITranslator("test-key", "gpt-4.1-mini", option.WithBaseURL(ts.URL+"/v1/"), option.WithMaxRetries(0))

	_, err := tr.Translate(context.Background(), "Leaders meet in Geneva", "en", "pt")
	assert.Error(t, err)
}

func TestTranslationSchema(t *testing.T) {
	schema, err := translationSchema()
	require.NoError(t, err)
	m, ok := schema.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, false, m["additionalProperties"])
	assert.Contains(t, m["properties"], "translation")
}
