package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/illmade-knight/go-recipecache/pkg/config"
	"github.com/illmade-knight/go-recipecache/pkg/fetch"
	"github.com/illmade-knight/go-recipecache/pkg/imagecache"
	"github.com/illmade-knight/go-recipecache/pkg/microservice"
	"github.com/illmade-knight/go-recipecache/pkg/recipe"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the recipe service",
		RunE:  runServe,
	}

	cmd.Flags().StringVarP(&configPath, "file", "f", "",
		"configuration file path (e.g. /etc/recipecache.yml); defaults are used when empty")

	return cmd
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Parse(bytes.NewReader(nil))
	}
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file at path %s: %w", configPath, err)
	}
	cfg, err := config.Parse(bytes.NewReader(configBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file at path %s: %w", configPath, err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, _ := cfg.Level()
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.With().Str("service", cfg.ServiceName).Logger()

	router, err := newImageFetcher(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}

	httpCfg, _ := cfg.HTTPConfig()
	imageCfg, _ := cfg.ImageCacheConfig()
	images, err := imagecache.New(imageCfg, router, nil, logger)
	if err != nil {
		return errors.Join(err, router.Close())
	}
	defer func() {
		if err := images.Close(); err != nil {
			logger.Error().Err(err).Msg("Error closing image cache.")
		}
	}()

	recipes, err := recipe.NewClient(cfg.RecipeAPI.BaseURL, fetch.NewHTTPFetcher(httpCfg, nil, logger), logger)
	if err != nil {
		return err
	}

	svc, err := microservice.NewRecipeService(cfg.HTTPPort, recipes, images, logger)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}

// newImageFetcher routes http(s) keys to an HTTPFetcher using client, and gs://
// keys to GCS when configured. Fetchers already built are closed on error.
func newImageFetcher(ctx context.Context, cfg *config.Config, client *http.Client, logger zerolog.Logger) (*fetch.SchemeRouter, error) {
	httpCfg, err := cfg.HTTPConfig()
	if err != nil {
		return nil, err
	}
	router := fetch.NewSchemeRouter().
		Handle(fetch.NewHTTPFetcher(httpCfg, client, logger), "http", "https")

	if gcsCfg, ok := cfg.GCSConfig(); ok {
		if err := handleGCS(ctx, router, gcsCfg, httpCfg.MaxBodyBytes, logger); err != nil {
			return nil, errors.Join(err, router.Close())
		}
	}
	return router, nil
}

// handleGCS registers a gs:// fetcher on router.
func handleGCS(ctx context.Context, router *fetch.SchemeRouter, cfg fetch.GCSConfig, maxBodyBytes int64, logger zerolog.Logger) error {
	client, err := fetch.NewGCSClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create GCS client: %w", err)
	}
	gcsFetcher, err := fetch.NewGCSFetcher(client, maxBodyBytes, logger)
	if err != nil {
		return errors.Join(err, client.Close())
	}
	router.Handle(gcsFetcher, "gs")
	return nil
}
