package geonews

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Pipeline embeds, clusters and classifies a batch of validated articles.
type Pipeline struct {
	Encoder   Encoder
	Threshold float64
	Workers   int

	// SingletonFallback returns every article as a Singleton when clustering
	// fails numerically instead of failing the run.
	SingletonFallback bool
}

// Run groups articles into Events and Singletons. Each call processes the
// batch from scratch.
func (p *Pipeline) Run(ctx context.Context, articles []Article) ([]Group, error) {
	if len(articles) == 0 {
		return []Group{}, nil
	}
	if p.Encoder == nil {
		return nil, fmt.Errorf("%w: pipeline has no encoder", ErrMalformedInput)
	}

	vectors, err := EmbedArticles(ctx, p.Encoder, articles, p.Workers)
	if err != nil {
		return nil, err
	}

	labels, err := ClusterEmbeddings(vectors, p.Threshold)
	if err != nil {
		if p.SingletonFallback && errors.Is(err, ErrClusteringFailure) {
			log.Warn().Err(err).Int("articles", len(articles)).Msg("Clustering failed, falling back to singletons")
			return singletons(articles), nil
		}
		return nil, err
	}

	return ClassifyGroups(articles, labels)
}

func singletons(articles []Article) []Group {
	groups := make([]Group, len(articles))
	for i, a := range articles {
		groups[i] = Group{Kind: KindSingleton, Members: []Article{a}}
	}
	return groups
}
