package geonews

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type stage struct {
	name string
	fn   func(context.Context) error
}

// RunPipeline runs fetch, cluster and page generation in order and, when
// upload is set, publishes the page. It stops at the first failing stage.
// A stage that outlives ctx does not write its output.
func RunPipeline(ctx context.Context, upload bool) error {
	stages := []stage{
		{"fetch-articles", fetchArticles},
		{"cluster-articles", clusterArticles},
		{"generate-page", generatePage},
	}
	if upload {
		stages = append(stages, stage{"upload-site", uploadSite})
	}

	for _, s := range stages {
		log.Info().Str("stage", s.name).Msg("Running stage")
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("stage %s failed: %w", s.name, err)
		}
	}
	return nil
}
