package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/geonews"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "geonews",
	Short: "Multilingual geopolitics news grouped by event",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Debug().Err(err).Msg("No .env file loaded")
		}
		geonews.Config.NewsAPIKey = os.Getenv("NEWSAPI_KEY")
		geonews.Config.OpenAIKey = os.Getenv("OPENAI_API_KEY")
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./geonews.yaml or ~/.config/geonews/geonews.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	runCmd.Flags().Bool("upload", false, "publish the page to GitHub Pages after generating it")

	rootCmd.AddCommand(geonews.FetchArticlesCmd)
	rootCmd.AddCommand(geonews.ClusterArticlesCmd)
	rootCmd.AddCommand(geonews.GeneratePageCmd)
	rootCmd.AddCommand(geonews.UploadSiteCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanCmd)
}

func initConfig() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("geonews")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "geonews"))
		}
	}

	d := geonews.Defaults()
	viper.SetDefault("distance_threshold", d.DistanceThreshold)
	viper.SetDefault("embedding_model", d.EmbeddingModel)
	viper.SetDefault("embed_workers", d.EmbedWorkers)
	viper.SetDefault("singleton_fallback", d.SingletonFallback)
	viper.SetDefault("languages", d.Languages)
	viper.SetDefault("articles_per_language", d.ArticlesPerLanguage)
	viper.SetDefault("search_window", d.SearchWindow)
	viper.SetDefault("query", d.Query)
	viper.SetDefault("translation_model", d.TranslationModel)
	viper.SetDefault("target_language", d.TargetLanguage)
	viper.SetDefault("translation_cache", d.TranslationCache)
	viper.SetDefault("timezone", d.Timezone)
	viper.SetDefault("output_path", d.OutputPath)
	viper.SetDefault("pipeline_timeout", d.PipelineTimeout)
	viper.SetDefault("log_level", d.LogLevel)

	viper.SetEnvPrefix("GEONEWS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn().Err(err).Msg("Failed to read config file")
		}
	}

	if err := viper.Unmarshal(&geonews.Config); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(geonews.Config.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", geonews.Config.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	if debug, _ := rootCmd.PersistentFlags().GetBool("debug"); debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run the full pipeline: fetch-articles -> cluster-articles -> generate-page",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := uuid.NewString()
		log.Logger = log.With().Str("run_id", runID).Logger()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if timeout := geonews.Config.PipelineTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		upload, _ := cmd.Flags().GetBool("upload")
		log.Info().Dur("timeout", geonews.Config.PipelineTimeout).Msg("Running full pipeline")
		if err := geonews.RunPipeline(ctx, upload); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("pipeline timed out, output discarded: %w", err)
			}
			return err
		}
		log.Info().Msg("Pipeline complete.")
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove fetched articles, groups and the generated page",
	Run: func(cmd *cobra.Command, args []string) {
		for _, dir := range []string{"articles", "clusters"} {
			files, err := os.ReadDir(dir)
			if err != nil {
				if !os.IsNotExist(err) {
					log.Warn().Err(err).Str("dir", dir).Msg("Failed to read directory")
				}
				continue
			}
			for _, file := range files {
				if file.IsDir() {
					continue
				}
				if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
					log.Warn().Err(err).Str("file", file.Name()).Msg("Failed to remove file")
				}
			}
		}

		if err := os.Remove(geonews.Config.OutputPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", geonews.Config.OutputPath).Msg("Failed to remove page")
		}

		log.Info().Msg("Cleaned articles and clusters directories and the generated page.")
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
