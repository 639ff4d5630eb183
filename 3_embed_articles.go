package geonews

import (
	"context"
	"fmt"
	"math"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// embeddingSeparator joins title and summary so both contribute to the vector.
const embeddingSeparator = " [SEP] "

// Encoder maps text into a shared multilingual vector space. Implementations
// must be deterministic and safe for concurrent use.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// EmbeddingText is the encoder input for an article.
func EmbeddingText(a Article) string {
	return a.Title + embeddingSeparator + a.Summary
}

// OpenAIEncoder produces embeddings with the OpenAI embeddings API.
type OpenAIEncoder struct {
	client openai.Client
	model  string
}

// NewOpenAIEncoder creates an encoder for the given embedding model. Extra
// request options (base URL, retries) are passed through to the client.
func NewOpenAIEncoder(apiKey, model string, opts ...option.RequestOption) *OpenAIEncoder {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIEncoder{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Model returns the embedding model identifier.
func (e *OpenAIEncoder) Model() string { return e.model }

// Encode returns the unit-normalized embedding of text.
func (e *OpenAIEncoder) Encode(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return normalize(resp.Data[0].Embedding)
}

// normalize scales v to unit L2 norm. A zero or non-finite vector cannot be
// normalized and is rejected.
func normalize(v []float64) ([]float64, error) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("cannot normalize embedding with norm %v", norm)
	}

	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out, nil
}

// EmbedArticles encodes every article with up to workers concurrent calls.
// The result is index-aligned with articles; any failure aborts the batch.
func EmbedArticles(ctx context.Context, enc Encoder, articles []Article, workers int) ([][]float64, error) {
	if workers < 1 {
		workers = 1
	}
	vectors := make([][]float64, len(articles))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, a := range articles {
		g.Go(func() error {
			v, err := enc.Encode(ctx, EmbeddingText(a))
			if err != nil {
				return fmt.Errorf("failed to embed article %d (%q): %w", i, a.Title, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(vectors) > 0 {
		log.Info().Int("articles", len(vectors)).Int("dimensions", len(vectors[0])).Str("model", enc.Model()).Msg("Generated embeddings")
	}
	return vectors, nil
}
