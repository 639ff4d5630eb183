package geonews

import "time"

// Settings holds everything the pipeline stages read at runtime. Secrets come
// from the environment, the rest is filled by viper in cmd/geonews.
type Settings struct {
	NewsAPIKey string `mapstructure:"-"`
	OpenAIKey  string `mapstructure:"-"`

	// Clustering
	DistanceThreshold float64 `mapstructure:"distance_threshold"`
	EmbeddingModel    string  `mapstructure:"embedding_model"`
	EmbedWorkers      int     `mapstructure:"embed_workers"`
	SingletonFallback bool    `mapstructure:"singleton_fallback"`

	// Fetching
	Languages           []string `mapstructure:"languages"`
	ArticlesPerLanguage int      `mapstructure:"articles_per_language"`
	SearchWindow        string   `mapstructure:"search_window"`
	Query               string   `mapstructure:"query"`

	// Rendering
	TranslationModel string `mapstructure:"translation_model"`
	TargetLanguage   string `mapstructure:"target_language"`
	TranslationCache string `mapstructure:"translation_cache"`
	Timezone         string `mapstructure:"timezone"`
	OutputPath       string `mapstructure:"output_path"`

	PipelineTimeout time.Duration `mapstructure:"pipeline_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DefaultQuery is the multilingual geopolitics search expression.
const DefaultQuery = `"geopolitics" OR "international relations" OR "diplomacy" OR "international conflict" OR "summit" OR ` +
	`"geopolítica" OR "relações internacionais" OR "diplomacia" OR "conflito internacional" OR "cúpula" OR ` +
	`"geopolitik" OR "internationale beziehungen" OR "diplomatie" OR "gipfel" OR ` +
	`"géopolitique" OR "relations internationales" OR "sommet" OR ` +
	`"geopolítica" OR "relaciones internacionales" OR "cumbre"`

// Defaults returns the settings used when no config file or env override is present.
func Defaults() Settings {
	return Settings{
		DistanceThreshold:   0.4,
		EmbeddingModel:      "text-embedding-3-large",
		EmbedWorkers:        4,
		Languages:           []string{"pt", "en", "es", "fr", "de"},
		ArticlesPerLanguage: 15,
		SearchWindow:        "P2D",
		Query:               DefaultQuery,
		TranslationModel:    "gpt-4.1-mini",
		TargetLanguage:      "pt",
		TranslationCache:    "translations.db",
		Timezone:            "America/Sao_Paulo",
		OutputPath:          "index.html",
		PipelineTimeout:     10 * time.Minute,
		LogLevel:            "info",
	}
}

// Config holds the active settings for the commands in this package.
var Config = Defaults()
